package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/studbud/internal/domain"
)

// Failure kinds. Every error leaving the orchestrator matches exactly one of
// these with errors.Is.
var (
	// ErrRead is returned when input content cannot be decoded or is empty.
	ErrRead = errors.New("could not read content")

	// ErrAuth is returned when the provider rejects or lacks credentials.
	ErrAuth = errors.New("authentication failed")

	// ErrRateLimit is returned when the provider throttles the request.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrEmptyResponse is returned when the provider responds without content.
	ErrEmptyResponse = errors.New("empty response from language model")

	// ErrMalformedResponse is returned when the response cannot be parsed,
	// even after repair, or yields no usable items.
	ErrMalformedResponse = errors.New("malformed response from language model")

	// ErrProvider covers every other backend failure, including safety blocks
	// and network errors.
	ErrProvider = errors.New("language model provider error")

	// ErrValidation is returned for out-of-range counts and invalid requests.
	ErrValidation = domain.ErrValidation
)

// ErrInvalidConfig is returned when a generator is constructed with invalid
// configuration. It is not a runtime failure kind.
var ErrInvalidConfig = errors.New("invalid generator configuration")

var kinds = []error{
	ErrRead,
	ErrAuth,
	ErrRateLimit,
	ErrEmptyResponse,
	ErrMalformedResponse,
	ErrValidation,
	ErrProvider,
}

// Error is a classified generation failure.
type Error struct {
	// Kind is one of the package failure kinds.
	Kind error

	// Message is a human-readable detail. For provider errors it is the
	// backend's own message.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// NewError creates a classified error.
func NewError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Errorf creates a classified error with a formatted message.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the failure kind of err. Errors that carry no known kind are
// reported as ErrProvider.
func KindOf(err error) error {
	if err == nil {
		return nil
	}

	var gerr *Error
	if errors.As(err, &gerr) && gerr.Kind != nil {
		return gerr.Kind
	}

	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrProvider
}

// Classify guarantees err is a *Error. An error that is already classified is
// returned unchanged; anything else becomes a provider error, so a specific
// kind is never downgraded.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var gerr *Error
	if errors.As(err, &gerr) {
		return err
	}

	kind := KindOf(err)
	if kind == ErrProvider && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return NewError(ErrProvider, "request did not complete in time", err)
	}
	return NewError(kind, "", err)
}

// UserMessage returns a single human-readable message suitable for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var gerr *Error
	hasDetail := errors.As(err, &gerr) && gerr.Message != ""

	switch KindOf(err) {
	case ErrAuth:
		return "Authentication failed. Please verify your API key."
	case ErrRateLimit:
		return "The provider is rate limiting requests. Please wait a moment and try again."
	case ErrEmptyResponse:
		return "The model returned an empty response. Please try again."
	case ErrMalformedResponse:
		return "The model returned a response that could not be used. Please try again."
	case ErrRead:
		if hasDetail {
			return "Could not read the content: " + gerr.Message
		}
		return "Could not read the content."
	case ErrValidation:
		if hasDetail {
			return gerr.Message
		}
		return err.Error()
	default:
		if hasDetail {
			return "Generation failed: " + gerr.Message
		}
		return "Generation failed. Please try again."
	}
}
