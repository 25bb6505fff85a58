package generation

import (
	"context"

	"github.com/phrazzld/studbud/internal/domain"
)

// Generator defines the interface for generating study items from content.
// This interface serves as a boundary between the application core and
// external LLM services, following the hexagonal architecture pattern.
type Generator interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// AcceptsMediaType reports whether the provider can read a binary payload
	// of the given media type directly.
	AcceptsMediaType(mediaType string) bool

	// CheckCredentials reports an ErrAuth error when the provider has no usable
	// credentials. It must not contact the network.
	CheckCredentials() error

	// Generate makes a single provider call and returns the raw model output.
	// Failures are returned as *Error values; adapters never retry.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is what an adapter needs to build one provider call.
type Request struct {
	Payload   domain.ContentPayload
	Mode      domain.GenerationMode
	Count     int
	UseSearch bool
}

// Response is the raw provider output before normalization.
type Response struct {
	// Text is the model's textual output, expected to be JSON.
	Text string

	// Sources are web citations collected when search was enabled.
	Sources []domain.Source

	// Structured is true when schema-constrained decoding was used.
	Structured bool
}
