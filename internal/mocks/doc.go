// Package mocks provides centralized mock implementations for testing.
//
// MockGenerator stands in for a generation.Generator. It can return canned
// text, fail with a taxonomy error, block until released, or answer each
// request with exactly the requested number of valid items:
//
//	gen := mocks.NewMockGeneratorForMode()
//	engine := orchestrator.New(logger, gen, nil, nil, nil, orchestrator.Config{})
//
// FlashcardsJSON and QuizJSON build well-formed provider responses for
// tests that set Text directly.
package mocks
