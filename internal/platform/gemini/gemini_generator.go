package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/studbud/internal/config"
	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/generation"
	"github.com/phrazzld/studbud/internal/prompt"
	"google.golang.org/genai"
)

// Provider is the name reported by Name.
const Provider = "gemini"

// Defaults applied when the configuration leaves a field empty.
const (
	DefaultModel         = "gemini-2.5-flash"
	DefaultMaxInputChars = 30000
)

var acceptedMediaTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
}

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API.
type GeminiGenerator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// prompts renders the system and user prompts
	prompts *prompt.Catalog

	// client is nil when no API key is configured
	client *genai.Client

	// model is the name of the Gemini model to use
	model string

	maxInputChars int
}

var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a new GeminiGenerator. An empty API key is not
// an error: the generator is built without a client and every call fails
// CheckCredentials.
func NewGeminiGenerator(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
	prompts *prompt.Catalog,
) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if prompts == nil {
		return nil, fmt.Errorf("%w: prompt catalog cannot be nil", generation.ErrInvalidConfig)
	}

	g := &GeminiGenerator{
		logger:        logger.With(slog.String("component", "gemini_generator")),
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
		g.logger.WarnContext(ctx, "no Gemini API key configured, generation will fail authentication")
		return g, nil
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}
	g.client = client

	g.logger.InfoContext(ctx, "Gemini generator initialized", slog.String("model", g.model))
	return g, nil
}

// Name implements generation.Generator.
func (g *GeminiGenerator) Name() string {
	return Provider
}

// AcceptsMediaType implements generation.Generator. Gemini reads common image
// formats and PDFs natively.
func (g *GeminiGenerator) AcceptsMediaType(mediaType string) bool {
	return acceptedMediaTypes[mediaType]
}

// CheckCredentials implements generation.Generator.
func (g *GeminiGenerator) CheckCredentials() error {
	if g.client == nil {
		return generation.Errorf(generation.ErrAuth, "no Gemini API key is configured")
	}
	return nil
}

// Generate implements generation.Generator with a single GenerateContent call.
func (g *GeminiGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	if err := g.CheckCredentials(); err != nil {
		return nil, err
	}

	contents, err := g.buildContents(ctx, req)
	if err != nil {
		return nil, err
	}

	structured := !req.UseSearch
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.prompts.System(), genai.RoleUser),
		Temperature:       genai.Ptr(g.config.Temperature),
	}
	if structured {
		genConfig.ResponseMIMEType = "application/json"
		genConfig.ResponseSchema = responseSchema(req.Mode, req.Count)
	} else {
		// Search grounding cannot be combined with a response schema.
		genConfig.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	g.logger.InfoContext(ctx, "Making Gemini API call",
		slog.String("model", g.model),
		slog.String("mode", req.Mode.String()),
		slog.Int("count", req.Count),
		slog.Bool("search", req.UseSearch),
		slog.String("payload_kind", string(req.Payload.Kind())))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genConfig)
	if err != nil {
		classified := classifyError(err)
		g.logger.ErrorContext(ctx, "Gemini API call failed", slog.String("error", classified.Error()))
		return nil, classified
	}

	text, err := responseText(resp)
	if err != nil {
		g.logger.WarnContext(ctx, "Gemini API returned no usable content", slog.String("error", err.Error()))
		return nil, err
	}

	sources := groundingSources(resp)
	g.logger.InfoContext(ctx, "Gemini API call successful",
		slog.Int("response_length", len(text)),
		slog.Int("sources", len(sources)))

	return &generation.Response{
		Text:       text,
		Sources:    sources,
		Structured: structured,
	}, nil
}

// buildContents renders the user prompt and attaches binary payloads inline.
func (g *GeminiGenerator) buildContents(ctx context.Context, req generation.Request) ([]*genai.Content, error) {
	data := prompt.Data{
		Mode:     req.Mode,
		Count:    req.Count,
		Search:   req.UseSearch,
		Contract: req.UseSearch,
	}

	var attachment *genai.Part
	switch req.Payload.Kind() {
	case domain.PayloadBinary:
		if !g.AcceptsMediaType(req.Payload.MediaType()) {
			return nil, generation.Errorf(generation.ErrRead,
				"Gemini cannot read %s content", req.Payload.MediaType())
		}
		data.Attachment = true
		attachment = genai.NewPartFromBytes(req.Payload.Bytes(), req.Payload.MediaType())
	default:
		text, truncated := generation.Truncate(req.Payload.Text(), g.maxInputChars)
		if truncated {
			g.logger.InfoContext(ctx, "input truncated",
				slog.Int("original_chars", req.Payload.Len()),
				slog.Int("max_chars", g.maxInputChars))
		}
		if req.Payload.Origin() == domain.OriginTopic {
			data.Topic = text
		} else {
			data.Content = text
		}
	}

	userPrompt, err := g.prompts.Render(data)
	if err != nil {
		return nil, generation.NewError(generation.ErrValidation, "", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(userPrompt)}
	if attachment != nil {
		parts = append(parts, attachment)
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}

// responseText returns the candidate text, or a classified error when the
// prompt or response was blocked or came back empty.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", generation.Errorf(generation.ErrEmptyResponse, "nil response")
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		msg := fmt.Sprintf("prompt blocked: %s", fb.BlockReason)
		if fb.BlockReasonMessage != "" {
			msg += " (" + fb.BlockReasonMessage + ")"
		}
		return "", generation.Errorf(generation.ErrProvider, "%s", msg)
	}

	if len(resp.Candidates) == 0 {
		return "", generation.Errorf(generation.ErrEmptyResponse, "no candidates returned")
	}

	switch resp.Candidates[0].FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent, genai.FinishReasonSPII:
		return "", generation.Errorf(generation.ErrProvider,
			"response blocked by safety filters (%s)", resp.Candidates[0].FinishReason)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", generation.Errorf(generation.ErrEmptyResponse, "model returned no text")
	}
	return text, nil
}

// groundingSources collects web citations from the first candidate,
// de-duplicated by URI in order of appearance.
func groundingSources(resp *genai.GenerateContentResponse) []domain.Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	seen := make(map[string]bool)
	var sources []domain.Source
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true

		title := chunk.Web.Title
		if title == "" {
			title = chunk.Web.URI
		}
		sources = append(sources, domain.Source{Title: title, URI: chunk.Web.URI})
	}
	return sources
}
