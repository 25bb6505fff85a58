package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/studbud/internal/generation"
	"google.golang.org/genai"
)

// classifyError maps a Gemini client error to a generation failure kind.
// Context errors are returned unchanged so the caller can tell a timeout
// from a backend failure.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	code, message, ok := apiErrorDetails(err)
	if !ok {
		return generation.NewError(generation.ErrProvider, err.Error(), err)
	}

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return generation.NewError(generation.ErrAuth, message, err)
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "api key"):
		return generation.NewError(generation.ErrAuth, message, err)
	case code == http.StatusTooManyRequests:
		return generation.NewError(generation.ErrRateLimit, message, err)
	default:
		return generation.NewError(generation.ErrProvider, message, err)
	}
}

// apiErrorDetails extracts the HTTP code and backend message from either form
// of genai.APIError.
func apiErrorDetails(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}

	return 0, "", false
}
