// Package provider selects the generation backend named by configuration.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/studbud/internal/config"
	"github.com/phrazzld/studbud/internal/generation"
	"github.com/phrazzld/studbud/internal/platform/gemini"
	"github.com/phrazzld/studbud/internal/platform/openaicompat"
	"github.com/phrazzld/studbud/internal/prompt"
)

// New builds the generator for cfg.Provider. "cerebras" is an alias for the
// OpenAI-compatible adapter with its default endpoint.
func New(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
	prompts *prompt.Catalog,
) (generation.Generator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	logger.InfoContext(ctx, "initializing generation provider", slog.String("provider", name))

	switch name {
	case "", gemini.Provider:
		g, err := gemini.NewGeminiGenerator(ctx, logger, cfg, prompts)
		if err != nil {
			return nil, err
		}
		return g, nil
	case openaicompat.Provider, "cerebras":
		g, err := openaicompat.New(logger, cfg, prompts)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
}
