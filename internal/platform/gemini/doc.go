// Package gemini provides an implementation of the generation.Generator interface
// that uses Google's Gemini API for generating study items.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the application's generation pipeline to Google's external Gemini
// service without exposing the details of that service to the core.
//
// Key behaviors:
//
// 1. Structured output:
//   - Requests application/json with a response schema per generation mode
//   - When web search is requested the Google Search tool is enabled instead,
//     and the output contract is described in the prompt
//
// 2. Inputs:
//   - Text payloads are truncated to the configured character bound
//   - Images and PDFs are sent inline as binary parts
//
// 3. Error handling:
//   - API errors are classified into the generation failure kinds
//   - Safety blocks surface as provider errors
//   - Calls are never retried here; recovery is the caller's decision
package gemini
