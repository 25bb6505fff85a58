// Package api exposes study sessions over HTTP.
//
// A client creates a session with POST /api/sessions and receives a bearer
// token scoped to that session. Every other route under /api/session acts on
// the session named by the token: submitting content, accepting the web
// search fallback, starting a generation, and paging through the results.
// Responses carry a snapshot of the session so clients can render the current
// phase without tracking transitions themselves.
//
// Failures are mapped to status codes in one place (MapErrorToStatusCode) and
// only user-safe messages leave the process.
package api
