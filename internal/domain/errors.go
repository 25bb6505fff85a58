package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidMode is returned when a generation mode is not recognized.
	ErrInvalidMode = errors.New("invalid generation mode")

	// ErrInvalidCount is returned when a requested item count is out of range.
	ErrInvalidCount = errors.New("item count out of range")

	// ErrInvalidItem is returned when a study item is missing required fields
	// or violates quiz integrity.
	ErrInvalidItem = errors.New("invalid study item")
)
