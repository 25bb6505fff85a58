package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/phrazzld/studbud/internal/config"
	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/generation"
	"github.com/phrazzld/studbud/internal/prompt"
)

// Provider is the name reported by Name.
const Provider = "openai"

// Defaults applied when the configuration leaves a field empty.
const (
	DefaultBaseURL       = "https://api.cerebras.ai/v1"
	DefaultModel         = "llama3.3-70b"
	DefaultMaxInputChars = 15000
)

// Generator implements generation.Generator over chat completions.
type Generator struct {
	logger  *slog.Logger
	config  config.LLMConfig
	prompts *prompt.Catalog

	// client is nil when no API key is configured
	client *openai.Client

	model         string
	maxInputChars int
}

var _ generation.Generator = (*Generator)(nil)

// New creates a Generator. An empty API key yields a generator whose calls
// fail CheckCredentials.
func New(logger *slog.Logger, cfg config.LLMConfig, prompts *prompt.Catalog) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if prompts == nil {
		return nil, fmt.Errorf("%w: prompt catalog cannot be nil", generation.ErrInvalidConfig)
	}

	g := &Generator{
		logger:        logger.With(slog.String("component", "openai_generator")),
		config:        cfg,
		prompts:       prompts,
		model:         cfg.ModelName,
		maxInputChars: cfg.MaxInputChars,
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.maxInputChars <= 0 {
		g.maxInputChars = DefaultMaxInputChars
	}

	if cfg.APIKey == "" {
		g.logger.Warn("no API key configured, generation will fail authentication")
		return g, nil
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	g.client = openai.NewClientWithConfig(clientConfig)

	g.logger.Info("OpenAI-compatible generator initialized",
		slog.String("model", g.model),
		slog.String("base_url", clientConfig.BaseURL))
	return g, nil
}

// Name implements generation.Generator.
func (g *Generator) Name() string {
	return Provider
}

// AcceptsMediaType implements generation.Generator. Only text is supported.
func (g *Generator) AcceptsMediaType(string) bool {
	return false
}

// CheckCredentials implements generation.Generator.
func (g *Generator) CheckCredentials() error {
	if g.client == nil {
		return generation.Errorf(generation.ErrAuth, "no API key is configured")
	}
	return nil
}

// Generate implements generation.Generator with a single chat completion.
// UseSearch is ignored.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	if err := g.CheckCredentials(); err != nil {
		return nil, err
	}
	if req.Payload.Kind() == domain.PayloadBinary {
		return nil, generation.Errorf(generation.ErrRead,
			"this provider reads text only, not %s", req.Payload.MediaType())
	}

	text, truncated := generation.Truncate(req.Payload.Text(), g.maxInputChars)
	if truncated {
		g.logger.InfoContext(ctx, "input truncated",
			slog.Int("original_chars", req.Payload.Len()),
			slog.Int("max_chars", g.maxInputChars))
	}

	structured := g.config.StructuredOutput
	data := prompt.Data{
		Mode:     req.Mode,
		Count:    req.Count,
		Contract: !structured,
	}
	if req.Payload.Origin() == domain.OriginTopic {
		data.Topic = text
	} else {
		data.Content = text
	}

	userPrompt, err := g.prompts.Render(data)
	if err != nil {
		return nil, generation.NewError(generation.ErrValidation, "", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.prompts.System()},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature:    g.config.Temperature,
		ResponseFormat: responseFormat(req.Mode, structured),
	}

	g.logger.InfoContext(ctx, "Making chat completion call",
		slog.String("model", g.model),
		slog.String("mode", req.Mode.String()),
		slog.Int("count", req.Count),
		slog.Bool("structured", structured))

	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		classified := classifyError(err)
		g.logger.ErrorContext(ctx, "chat completion call failed", slog.String("error", classified.Error()))
		return nil, classified
	}

	if len(resp.Choices) == 0 {
		return nil, generation.Errorf(generation.ErrEmptyResponse, "no choices returned")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, generation.Errorf(generation.ErrProvider, "response blocked by the provider's content filter")
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, generation.Errorf(generation.ErrEmptyResponse, "model returned no text")
	}

	g.logger.InfoContext(ctx, "chat completion call successful",
		slog.Int("response_length", len(choice.Message.Content)),
		slog.Int("total_tokens", resp.Usage.TotalTokens))

	return &generation.Response{
		Text:       choice.Message.Content,
		Structured: structured,
	}, nil
}

// responseFormat requests schema-constrained decoding when enabled, and plain
// JSON mode otherwise.
func responseFormat(mode domain.GenerationMode, structured bool) *openai.ChatCompletionResponseFormat {
	if !structured {
		return &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   strings.ToLower(mode.String()),
			Schema: generation.JSONSchema(mode),
			Strict: true,
		},
	}
}

// classifyError maps go-openai errors to generation failure kinds. Context
// errors are returned unchanged.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	code, message := 0, err.Error()
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		code, message = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		code = reqErr.HTTPStatusCode
	}

	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return generation.NewError(generation.ErrAuth, message, err)
	case http.StatusTooManyRequests:
		return generation.NewError(generation.ErrRateLimit, message, err)
	default:
		return generation.NewError(generation.ErrProvider, message, err)
	}
}
