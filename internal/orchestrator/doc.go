// Package orchestrator sequences one generation: content normalization, the
// sufficiency gate, a single provider call, and response normalization.
//
// It is the boundary of the error taxonomy. Every error it returns is a
// *generation.Error whose kind is one of the generation failure kinds.
package orchestrator
