package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/studbud/internal/content"
	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/events"
	"github.com/phrazzld/studbud/internal/generation"
	"github.com/phrazzld/studbud/internal/metrics"
	"github.com/phrazzld/studbud/internal/orchestrator"
	"github.com/phrazzld/studbud/internal/redact"
)

// Phase is a state of the session workflow.
type Phase string

const (
	PhaseIdle                Phase = "IDLE"
	PhaseSelectingMode       Phase = "SELECTING_MODE"
	PhaseInsufficientContent Phase = "INSUFFICIENT_CONTENT"
	PhaseProcessing          Phase = "PROCESSING"
	PhaseViewing             Phase = "VIEWING"
	PhaseError               Phase = "ERROR"
)

func (p Phase) String() string { return string(p) }

// ErrInvalidTransition is returned when a trigger is fired from a phase that
// does not accept it.
var ErrInvalidTransition = errors.New("invalid session transition")

// Engine prepares input and runs generations. *orchestrator.Orchestrator
// satisfies it.
type Engine interface {
	Prepare(ctx context.Context, in content.Input) (*orchestrator.Prepared, error)
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error)
}

// Options configures a Session. Zero values select defaults.
type Options struct {
	ID           uuid.UUID
	Logger       *slog.Logger
	Emitter      events.EventEmitter
	DefaultMode  domain.GenerationMode
	DefaultCount int

	// Context is the parent of every generation the session starts. It is
	// not canceled by Reset.
	Context context.Context

	// Now is the clock, for tests.
	Now func() time.Time
}

// PayloadInfo describes the held payload without exposing its content.
type PayloadInfo struct {
	Kind      domain.PayloadKind `json:"kind"`
	Origin    domain.Origin      `json:"origin"`
	Name      string             `json:"name,omitempty"`
	MediaType string             `json:"media_type"`
	Length    int                `json:"length"`
}

// Snapshot is a point-in-time copy of a session for presentation.
type Snapshot struct {
	ID                uuid.UUID             `json:"id"`
	Phase             Phase                 `json:"phase"`
	Mode              domain.GenerationMode `json:"mode"`
	Count             int                   `json:"count"`
	UseExternalSearch bool                  `json:"use_external_search"`
	Payload           *PayloadInfo          `json:"payload,omitempty"`
	Seed              string                `json:"seed,omitempty"`
	Items             []domain.StudyItem    `json:"items"`
	Cursor            int                   `json:"cursor"`
	Current           domain.StudyItem      `json:"current,omitempty"`
	Sources           []domain.Source       `json:"sources"`
	Error             string                `json:"error,omitempty"`
	ProcessingElapsed time.Duration         `json:"processing_elapsed"`
}

// Session is one user's study workflow. All methods are safe for concurrent
// use; state changes are serialized by the session mutex.
type Session struct {
	id      uuid.UUID
	engine  Engine
	logger  *slog.Logger
	emitter events.EventEmitter
	ctx     context.Context
	now     func() time.Time

	defaultMode  domain.GenerationMode
	defaultCount int

	mu         sync.Mutex
	phase      Phase
	payload    domain.ContentPayload
	hasPayload bool
	seed       string
	mode       domain.GenerationMode
	count      int
	useSearch  bool
	result     *domain.GenerationResult
	cursor     int
	errMsg     string
	epoch      uint64
	startedAt  time.Time
	lastActive time.Time
	pending    []*events.SessionEvent

	inflight sync.WaitGroup
}

// New creates a session in the IDLE phase.
func New(engine Engine, opts Options) *Session {
	if opts.ID == uuid.Nil {
		opts.ID = uuid.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if !opts.DefaultMode.Valid() {
		opts.DefaultMode = domain.DefaultMode
	}
	if domain.ValidateCount(opts.DefaultCount) != nil {
		opts.DefaultCount = domain.DefaultItemCount
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		id:           opts.ID,
		engine:       engine,
		logger:       opts.Logger.With(slog.String("session_id", opts.ID.String())),
		emitter:      opts.Emitter,
		ctx:          opts.Context,
		now:          opts.Now,
		defaultMode:  opts.DefaultMode,
		defaultCount: opts.DefaultCount,
		phase:        PhaseIdle,
		mode:         opts.DefaultMode,
		count:        opts.DefaultCount,
	}
	s.lastActive = s.now()
	return s
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastActive returns the time of the most recent trigger.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Submit normalizes input and gates it. Accepted content moves the session to
// SELECTING_MODE, content the gate declines to INSUFFICIENT_CONTENT, and
// unreadable content to ERROR. Validation failures, such as an empty topic,
// are returned without a transition.
func (s *Session) Submit(ctx context.Context, in content.Input) error {
	s.mu.Lock()
	if err := s.expect(PhaseIdle, "submit"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.touch()

	prepared, err := s.engine.Prepare(ctx, in)
	if err != nil {
		if errors.Is(err, generation.ErrValidation) {
			s.mu.Unlock()
			return err
		}
		s.errMsg = generation.UserMessage(err)
		s.transition(PhaseError)
		s.unlockAndEmit()
		return nil
	}

	s.payload = prepared.Payload
	s.hasPayload = true
	// Bare topics carry no material of their own.
	s.useSearch = prepared.Payload.Origin() == domain.OriginTopic
	if prepared.Verdict.Sufficient {
		s.transition(PhaseSelectingMode)
	} else {
		s.seed = prepared.Verdict.Seed
		s.transition(PhaseInsufficientContent)
	}
	s.unlockAndEmit()
	return nil
}

// Retry discards gated content and returns to IDLE.
func (s *Session) Retry() error {
	s.mu.Lock()
	if err := s.expect(PhaseInsufficientContent, "retry"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.touch()
	s.clearContent()
	s.transition(PhaseIdle)
	s.unlockAndEmit()
	return nil
}

// AcceptSearch replaces gated content with its seed as a topic and enables
// search augmentation.
func (s *Session) AcceptSearch() error {
	s.mu.Lock()
	if err := s.expect(PhaseInsufficientContent, "accept search"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.touch()
	s.payload = domain.NewTopicPayload(s.seed)
	s.hasPayload = true
	s.useSearch = true
	s.transition(PhaseSelectingMode)
	s.unlockAndEmit()
	return nil
}

// Start validates mode and count, moves to PROCESSING and runs the generation
// in the background. The returned channel is closed once the outcome has been
// applied or discarded. An invalid mode or count is returned as a validation
// error and the session stays in SELECTING_MODE.
func (s *Session) Start(mode domain.GenerationMode, count int) (<-chan struct{}, error) {
	s.mu.Lock()
	if err := s.expect(PhaseSelectingMode, "start"); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.touch()
	if err := orchestrator.ValidateParams(mode, count); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.mode = mode
	s.count = count
	s.epoch++
	epoch := s.epoch
	s.startedAt = s.now()
	req := domain.GenerationRequest{
		Payload:           s.payload,
		Mode:              mode,
		Count:             count,
		UseExternalSearch: s.useSearch,
	}
	s.transition(PhaseProcessing)

	done := make(chan struct{})
	s.inflight.Add(1)
	go s.run(epoch, req, done)

	s.unlockAndEmit()
	return done, nil
}

func (s *Session) run(epoch uint64, req domain.GenerationRequest, done chan struct{}) {
	defer s.inflight.Done()
	defer close(done)

	start := s.now()
	result, err := s.engine.Generate(s.ctx, req)
	elapsed := s.now().Sub(start)

	s.mu.Lock()
	if s.epoch != epoch || s.phase != PhaseProcessing {
		s.mu.Unlock()
		s.logger.Debug("discarding stale generation outcome",
			slog.Uint64("epoch", epoch),
			slog.Bool("failed", err != nil))
		return
	}

	if err != nil {
		s.errMsg = generation.UserMessage(err)
		s.transition(PhaseError)
		s.logger.Info("generation ended in error",
			slog.String("error", redact.Error(err)))
	} else {
		s.result = result
		s.cursor = 0
		s.transition(PhaseViewing)
	}
	s.record(events.TypeGenerationCompleted, events.GenerationCompleted{
		Mode:     req.Mode.String(),
		Items:    result.Len(),
		Outcome:  metrics.Outcome(err),
		Duration: elapsed,
	})
	s.unlockAndEmit()
}

// Reset returns to IDLE from any phase, discarding payload, result and error
// and restoring the default mode and count. An outstanding generation is
// left to finish and its outcome is ignored.
func (s *Session) Reset() {
	s.mu.Lock()
	s.touch()
	s.epoch++
	s.clearContent()
	s.mode = s.defaultMode
	s.count = s.defaultCount
	s.startedAt = time.Time{}
	if s.phase != PhaseIdle {
		s.transition(PhaseIdle)
	}
	s.unlockAndEmit()
}

// Next moves the cursor to the following item. It stays put on the last item.
func (s *Session) Next() error {
	return s.move(1)
}

// Prev moves the cursor to the preceding item. It stays put on the first item.
func (s *Session) Prev() error {
	return s.move(-1)
}

func (s *Session) move(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(PhaseViewing, "navigate"); err != nil {
		return err
	}
	s.touch()

	next := s.cursor + delta
	if next >= 0 && next < s.result.Len() {
		s.cursor = next
	}
	return nil
}

// Snapshot returns a copy of the session state for presentation.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                s.id,
		Phase:             s.phase,
		Mode:              s.mode,
		Count:             s.count,
		UseExternalSearch: s.useSearch,
		Seed:              s.seed,
		Items:             []domain.StudyItem{},
		Cursor:            s.cursor,
		Sources:           []domain.Source{},
		Error:             s.errMsg,
	}
	if s.hasPayload {
		snap.Payload = &PayloadInfo{
			Kind:      s.payload.Kind(),
			Origin:    s.payload.Origin(),
			Name:      s.payload.Name(),
			MediaType: s.payload.MediaType(),
			Length:    s.payload.Len(),
		}
	}
	if s.result != nil {
		snap.Items = append(snap.Items, s.result.Items...)
		snap.Sources = append(snap.Sources, s.result.Sources...)
		if s.cursor < len(snap.Items) {
			snap.Current = snap.Items[s.cursor]
		}
	}
	if s.phase == PhaseProcessing {
		snap.ProcessingElapsed = s.now().Sub(s.startedAt)
	}
	return snap
}

// Wait blocks until every generation the session started has finished.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// expect must be called with mu held.
func (s *Session) expect(phase Phase, trigger string) error {
	if s.phase != phase {
		return fmt.Errorf("%w: cannot %s in phase %s", ErrInvalidTransition, trigger, s.phase)
	}
	return nil
}

func (s *Session) touch() {
	s.lastActive = s.now()
}

func (s *Session) clearContent() {
	s.payload = domain.ContentPayload{}
	s.hasPayload = false
	s.seed = ""
	s.useSearch = false
	s.result = nil
	s.cursor = 0
	s.errMsg = ""
}

// transition must be called with mu held. The event is queued and sent by
// unlockAndEmit.
func (s *Session) transition(to Phase) {
	from := s.phase
	s.phase = to
	s.logger.Debug("phase changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	s.record(events.TypePhaseChanged, events.PhaseChange{From: from.String(), To: to.String()})
}

func (s *Session) record(eventType string, payload any) {
	if s.emitter == nil {
		return
	}
	event, err := events.NewSessionEvent(eventType, s.id, payload)
	if err != nil {
		s.logger.Error("failed to build session event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
		return
	}
	s.pending = append(s.pending, event)
}

// unlockAndEmit releases mu and then delivers queued events, so handlers
// never run under the session lock.
func (s *Session) unlockAndEmit() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, event := range pending {
		if err := s.emitter.EmitEvent(s.ctx, event); err != nil {
			s.logger.Warn("event handler failed",
				slog.String("event_type", event.Type),
				slog.String("error", err.Error()))
		}
	}
}
