package domain

import "fmt"

// Source is a web citation returned by search-augmented generation.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// GenerationRequest describes one call to a provider.
type GenerationRequest struct {
	Payload           ContentPayload
	Mode              GenerationMode
	Count             int
	UseExternalSearch bool
}

// Validate checks the request before any provider is contacted.
func (r GenerationRequest) Validate() error {
	if !r.Mode.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidMode, r.Mode)
	}
	if err := ValidateCount(r.Count); err != nil {
		return err
	}
	if r.Payload.IsEmpty() {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyContent)
	}
	return nil
}

// GenerationResult is the ordered item set produced for a request.
type GenerationResult struct {
	Mode    GenerationMode `json:"mode"`
	Items   []StudyItem    `json:"items"`
	Sources []Source       `json:"sources"`
}

// Len returns the number of items in the result.
func (r *GenerationResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}
