// Package openaicompat implements generation.Generator against any endpoint
// speaking the OpenAI chat completions protocol. The defaults target
// Cerebras; other compatible hosts are selected with llm.base_url.
//
// The adapter is text only and has no search support.
package openaicompat
