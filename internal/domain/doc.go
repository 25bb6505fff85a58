// Package domain contains the core entities of the study-material generator:
// the canonical content payload, generation modes and requests, and the study
// items (flashcards and quiz questions) that make up a generation result.
// It is independent of any LLM provider or delivery mechanism.
package domain
