package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/generation"
)

// MockProvider is the name reported by MockGenerator unless overridden.
const MockProvider = "mock"

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// GenerateFn allows test cases to mock the Generate behavior
	GenerateFn func(ctx context.Context, req generation.Request) (*generation.Response, error)

	// Default response values
	Text    string
	Sources []domain.Source
	Err     error

	// CredentialsErr is returned by CheckCredentials
	CredentialsErr error

	// AcceptedTypes lists the binary media types the mock claims to read
	AcceptedTypes []string

	// ProviderName overrides Name
	ProviderName string

	// Call tracking for verification
	GenerateCalls struct {
		// mu protects the call tracking state for concurrent test cases
		mu sync.Mutex

		// Count tracks how many times Generate was called
		Count int

		// Requests contains all requests passed to Generate calls
		Requests []generation.Request
	}
}

var _ generation.Generator = (*MockGenerator)(nil)

// Name implements the generation.Generator interface
func (m *MockGenerator) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return MockProvider
}

// AcceptsMediaType implements the generation.Generator interface
func (m *MockGenerator) AcceptsMediaType(mediaType string) bool {
	for _, t := range m.AcceptedTypes {
		if t == mediaType {
			return true
		}
	}
	return false
}

// CheckCredentials implements the generation.Generator interface
func (m *MockGenerator) CheckCredentials() error {
	return m.CredentialsErr
}

// Generate implements the generation.Generator interface
func (m *MockGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	// Track call details for verification
	m.GenerateCalls.mu.Lock()
	m.GenerateCalls.Count++
	m.GenerateCalls.Requests = append(m.GenerateCalls.Requests, req)
	m.GenerateCalls.mu.Unlock()

	// Use custom function if provided
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}

	if m.Err != nil {
		return nil, m.Err
	}
	return &generation.Response{Text: m.Text, Sources: m.Sources, Structured: true}, nil
}

// CallCount returns how many times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()
	return m.GenerateCalls.Count
}

// LastRequest returns the most recent request, and false if there was none.
func (m *MockGenerator) LastRequest() (generation.Request, bool) {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()
	if len(m.GenerateCalls.Requests) == 0 {
		return generation.Request{}, false
	}
	return m.GenerateCalls.Requests[len(m.GenerateCalls.Requests)-1], true
}

// NewMockGeneratorWithText creates a MockGenerator that returns the given raw text
func NewMockGeneratorWithText(text string) *MockGenerator {
	return &MockGenerator{
		Text: text,
	}
}

// NewMockGeneratorWithError creates a MockGenerator that returns the specified error
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{
		Err: err,
	}
}

// NewMockGeneratorForMode creates a MockGenerator that answers every request
// with exactly the requested number of valid items for the request's mode.
func NewMockGeneratorForMode() *MockGenerator {
	return &MockGenerator{
		GenerateFn: func(_ context.Context, req generation.Request) (*generation.Response, error) {
			text := FlashcardsJSON(req.Count)
			if req.Mode == domain.ModeQuiz {
				text = QuizJSON(req.Count)
			}
			return &generation.Response{Text: text, Structured: true}, nil
		},
	}
}

// NewBlockingMockGenerator creates a MockGenerator whose calls wait until
// release is closed (or the context ends) and then return text.
func NewBlockingMockGenerator(release <-chan struct{}, text string) *MockGenerator {
	return &MockGenerator{
		GenerateFn: func(ctx context.Context, _ generation.Request) (*generation.Response, error) {
			select {
			case <-release:
				return &generation.Response{Text: text, Structured: true}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

// MockGeneratorWithoutCredentials creates a MockGenerator that fails the
// credential check
func MockGeneratorWithoutCredentials() *MockGenerator {
	return &MockGenerator{
		CredentialsErr: generation.Errorf(generation.ErrAuth, "no API key is configured"),
	}
}

// MockGeneratorWithRateLimit creates a MockGenerator that simulates throttling
func MockGeneratorWithRateLimit() *MockGenerator {
	return &MockGenerator{
		Err: generation.Errorf(generation.ErrRateLimit, "quota exceeded"),
	}
}

// Reset resets the call tracking state
func (m *MockGenerator) Reset() {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()

	m.GenerateCalls.Count = 0
	m.GenerateCalls.Requests = nil
}

// FlashcardsJSON returns a valid {"items": [...]} flashcard response with n items.
func FlashcardsJSON(n int) string {
	items := make([]map[string]string, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, map[string]string{
			"question": fmt.Sprintf("Question %d?", i),
			"answer":   fmt.Sprintf("Answer %d.", i),
		})
	}
	return envelope(items)
}

// QuizJSON returns a valid {"items": [...]} quiz response with n items.
func QuizJSON(n int) string {
	items := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		options := []string{
			fmt.Sprintf("Option %dA", i),
			fmt.Sprintf("Option %dB", i),
			fmt.Sprintf("Option %dC", i),
			fmt.Sprintf("Option %dD", i),
		}
		items = append(items, map[string]any{
			"question":      fmt.Sprintf("Question %d?", i),
			"options":       options,
			"correctAnswer": options[i%len(options)],
		})
	}
	return envelope(items)
}

func envelope(items any) string {
	b, err := json.Marshal(map[string]any{generation.ItemsField: items})
	if err != nil {
		panic(err)
	}
	return string(b)
}
