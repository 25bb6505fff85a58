// Package generation defines the boundary between the application and external
// LLM services. It holds the Generator interface every provider adapter
// implements, the structured output contract requested from providers, the
// response normalizer that turns raw model output into validated study items,
// and the failure taxonomy used throughout the generation pipeline.
package generation
