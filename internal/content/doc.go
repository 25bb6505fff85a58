// Package content turns raw study material into canonical payloads.
//
// A Normalizer accepts an uploaded file, pasted text, or a bare topic and
// produces a domain.ContentPayload. Files are sniffed for a media type and
// either passed through as binary (when the active provider reads the format
// natively) or converted to text: PDF, DOCX and HTML documents are extracted,
// plain text is decoded as UTF-8. All text has whitespace runs collapsed.
//
// The Gate decides whether text from a file or paste carries enough material
// to generate from. It is a policy decision, never an error.
package content
