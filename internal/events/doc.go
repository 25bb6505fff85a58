// Package events provides types and interfaces for session lifecycle events.
//
// Sessions emit events without knowing which handlers will process them.
// Metrics, logging and any future subscribers register as handlers, which
// keeps the session package free of those dependencies.
//
// The primary components are:
// - SessionEvent: a lifecycle event tagged with the session it concerns
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
package events
