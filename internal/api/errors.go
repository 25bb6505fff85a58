package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/studbud/internal/api/shared"
	"github.com/phrazzld/studbud/internal/generation"
	"github.com/phrazzld/studbud/internal/service/auth"
	"github.com/phrazzld/studbud/internal/session"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound

	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict

	case errors.Is(err, generation.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, generation.ErrRead):
		return http.StatusUnprocessableEntity

	case errors.Is(err, generation.ErrRateLimit):
		return http.StatusTooManyRequests

	// The upstream provider failed; the request itself was fine.
	case errors.Is(err, generation.ErrAuth),
		errors.Is(err, generation.ErrEmptyResponse),
		errors.Is(err, generation.ErrMalformedResponse),
		errors.Is(err, generation.ErrProvider):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, session.ErrSessionNotFound):
		return "Session not found or expired"

	case errors.Is(err, session.ErrInvalidTransition):
		return "That action is not available in the current session state"

	case errors.Is(err, generation.ErrValidation),
		errors.Is(err, generation.ErrRead),
		errors.Is(err, generation.ErrAuth),
		errors.Is(err, generation.ErrRateLimit),
		errors.Is(err, generation.ErrEmptyResponse),
		errors.Is(err, generation.ErrMalformedResponse),
		errors.Is(err, generation.ErrProvider):
		return generation.UserMessage(err)

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the mapped status and safe message for err. A
// non-empty fallback replaces the message for unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
