package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/phrazzld/studbud/internal/content"
	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/generation"
	"github.com/phrazzld/studbud/internal/metrics"
	"github.com/phrazzld/studbud/internal/redact"
)

// DefaultMaxConcurrent bounds concurrent provider calls when unconfigured.
const DefaultMaxConcurrent = 4

// Config tunes provider call admission.
type Config struct {
	// MaxConcurrent bounds in-flight provider calls across all sessions.
	MaxConcurrent int64

	// Timeout bounds a single provider call. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration
}

// Prepared is normalized input with the gate's verdict.
type Prepared struct {
	Payload domain.ContentPayload
	Verdict content.Verdict
}

// Outcome is the result of Orchestrate. Exactly one field is set.
type Outcome struct {
	Result *domain.GenerationResult

	// Insufficient is set when the gate declined the content and search was
	// not requested.
	Insufficient *content.Verdict
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	logger     *slog.Logger
	generator  generation.Generator
	normalizer *content.Normalizer
	gate       *content.Gate
	metrics    *metrics.Metrics
	sem        *semaphore.Weighted
	timeout    time.Duration
}

// New creates an Orchestrator. A nil normalizer or gate gets a default one;
// m may be nil.
func New(
	logger *slog.Logger,
	gen generation.Generator,
	normalizer *content.Normalizer,
	gate *content.Gate,
	m *metrics.Metrics,
	cfg Config,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if normalizer == nil {
		normalizer = content.NewNormalizer(logger, gen, 0)
	}
	if gate == nil {
		gate = content.NewGate(0)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}

	return &Orchestrator{
		logger:     logger.With(slog.String("component", "orchestrator")),
		generator:  gen,
		normalizer: normalizer,
		gate:       gate,
		metrics:    m,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrent),
		timeout:    cfg.Timeout,
	}
}

// Provider returns the active generator's name.
func (o *Orchestrator) Provider() string {
	return o.generator.Name()
}

// Prepare normalizes input and applies the sufficiency gate.
func (o *Orchestrator) Prepare(ctx context.Context, in content.Input) (*Prepared, error) {
	payload, err := o.normalizer.Normalize(ctx, in)
	if err != nil {
		o.logger.InfoContext(ctx, "input rejected",
			slog.String("error", redact.Error(err)))
		return nil, generation.Classify(err)
	}

	verdict := o.gate.Evaluate(payload)
	o.logger.DebugContext(ctx, "input prepared",
		slog.String("kind", string(payload.Kind())),
		slog.String("origin", string(payload.Origin())),
		slog.Int("length", payload.Len()),
		slog.Bool("sufficient", verdict.Sufficient))

	return &Prepared{Payload: payload, Verdict: verdict}, nil
}

// Orchestrate runs normalize, gate, generate. When the gate declines and
// useSearch is false it returns an Insufficient outcome without calling the
// provider; with useSearch it generates from the gate's seed as a topic.
func (o *Orchestrator) Orchestrate(
	ctx context.Context,
	in content.Input,
	mode domain.GenerationMode,
	count int,
	useSearch bool,
) (*Outcome, error) {
	if err := ValidateParams(mode, count); err != nil {
		return nil, err
	}

	prepared, err := o.Prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	payload := prepared.Payload
	if !prepared.Verdict.Sufficient {
		if !useSearch {
			verdict := prepared.Verdict
			return &Outcome{Insufficient: &verdict}, nil
		}
		payload = domain.NewTopicPayload(prepared.Verdict.Seed)
	}

	result, err := o.Generate(ctx, domain.GenerationRequest{
		Payload:           payload,
		Mode:              mode,
		Count:             count,
		UseExternalSearch: useSearch,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Result: result}, nil
}

// Generate makes one provider call for req and normalizes the response.
func (o *Orchestrator) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	start := time.Now()
	result, err := o.generate(ctx, req)
	elapsed := time.Since(start)

	o.metrics.ObserveGeneration(o.generator.Name(), req.Mode, result.Len(), elapsed, err)

	if err != nil {
		o.logger.WarnContext(ctx, "generation failed",
			slog.String("provider", o.generator.Name()),
			slog.String("mode", req.Mode.String()),
			slog.String("outcome", metrics.Outcome(err)),
			slog.String("error", redact.Error(err)),
			slog.Duration("elapsed", elapsed))
		return nil, err
	}

	o.logger.InfoContext(ctx, "generation succeeded",
		slog.String("provider", o.generator.Name()),
		slog.String("mode", req.Mode.String()),
		slog.Int("requested", req.Count),
		slog.Int("items", result.Len()),
		slog.Int("sources", len(result.Sources)),
		slog.Duration("elapsed", elapsed))
	return result, nil
}

func (o *Orchestrator) generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	if err := ValidateParams(req.Mode, req.Count); err != nil {
		return nil, err
	}
	if req.Payload.IsEmpty() {
		return nil, generation.Errorf(generation.ErrValidation, "there is no content to generate from")
	}

	if err := o.generator.CheckCredentials(); err != nil {
		if !errors.Is(err, generation.ErrAuth) {
			err = generation.NewError(generation.ErrAuth, "", err)
		}
		return nil, err
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, generation.Classify(err)
	}
	defer o.sem.Release(1)

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	resp, err := o.generator.Generate(ctx, generation.Request{
		Payload:   req.Payload,
		Mode:      req.Mode,
		Count:     req.Count,
		UseSearch: req.UseExternalSearch,
	})
	if err != nil {
		return nil, generation.Classify(err)
	}
	if resp == nil {
		return nil, generation.Errorf(generation.ErrEmptyResponse, "provider returned no response")
	}

	normalized, err := generation.NormalizeResponse(resp.Text, req.Mode, req.Count)
	if err != nil {
		o.logger.DebugContext(ctx, "response rejected",
			slog.Int("response_length", len(resp.Text)),
			slog.Bool("structured", resp.Structured))
		return nil, generation.Classify(err)
	}
	if normalized.Dropped > 0 || normalized.Repaired || len(normalized.Items) < req.Count {
		o.logger.InfoContext(ctx, "response normalized with adjustments",
			slog.Int("received", normalized.Received),
			slog.Int("dropped", normalized.Dropped),
			slog.Int("kept", len(normalized.Items)),
			slog.Bool("repaired", normalized.Repaired))
	}

	sources := resp.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return &domain.GenerationResult{
		Mode:    req.Mode,
		Items:   normalized.Items,
		Sources: sources,
	}, nil
}

// ValidateParams reports an invalid mode or count as a validation error with
// a message fit for display.
func ValidateParams(mode domain.GenerationMode, count int) error {
	if !mode.Valid() {
		return generation.NewError(generation.ErrValidation,
			fmt.Sprintf("unknown generation mode %q", mode), domain.ErrInvalidMode)
	}
	if err := domain.ValidateCount(count); err != nil {
		return generation.NewError(generation.ErrValidation,
			fmt.Sprintf("count must be between %d and %d", domain.MinItemCount, domain.MaxItemCount), err)
	}
	return nil
}
