package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/events"
)

// DefaultIdleTimeout applies when ManagerConfig.IdleTimeout is zero.
const DefaultIdleTimeout = 30 * time.Minute

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	IdleTimeout  time.Duration
	DefaultMode  domain.GenerationMode
	DefaultCount int
	Emitter      events.EventEmitter
	Now          func() time.Time
}

// Manager holds the sessions of one process, keyed by id.
type Manager struct {
	engine Engine
	logger *slog.Logger
	cfg    ManagerConfig

	// ctx parents every generation; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates a Manager whose sessions run generations through engine.
func NewManager(logger *slog.Logger, engine Engine, cfg ManagerConfig) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		engine:   engine,
		logger:   logger.With(slog.String("component", "session_manager")),
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a new idle session.
func (m *Manager) Create(ctx context.Context) *Session {
	s := New(m.engine, Options{
		Logger:       m.logger,
		Emitter:      m.cfg.Emitter,
		DefaultMode:  m.cfg.DefaultMode,
		DefaultCount: m.cfg.DefaultCount,
		Context:      m.ctx,
		Now:          m.cfg.Now,
	})

	m.mu.Lock()
	m.sessions[s.ID()] = s
	total := len(m.sessions)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session created",
		slog.String("session_id", s.ID().String()),
		slog.Int("active", total))
	m.emit(ctx, events.TypeSessionCreated, s.ID())
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove drops a session. An outstanding generation finishes in the
// background and its outcome is discarded with the session.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Reset()
	m.emit(ctx, events.TypeSessionClosed, id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the idle timeout and returns how
// many were removed. Sessions that are processing are never expired.
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := m.cfg.Now().Add(-m.cfg.IdleTimeout)

	// Phase waits on the session lock, which Submit holds while extracting,
	// so the checks run without m.mu.
	m.mu.Lock()
	candidates := make(map[uuid.UUID]*Session, len(m.sessions))
	for id, s := range m.sessions {
		candidates[id] = s
	}
	m.mu.Unlock()

	var stale []uuid.UUID
	for id, s := range candidates {
		if s.Phase() == PhaseProcessing {
			continue
		}
		if s.LastActive().Before(cutoff) {
			stale = append(stale, id)
		}
	}

	var expired []uuid.UUID
	m.mu.Lock()
	for _, id := range stale {
		if m.sessions[id] == candidates[id] {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.emit(ctx, events.TypeSessionClosed, id)
	}
	if len(expired) > 0 {
		m.logger.InfoContext(ctx, "expired idle sessions", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.cfg.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Close cancels outstanding generations and waits for them to finish.
func (m *Manager) Close() {
	m.cancel()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Wait()
	}
}

func (m *Manager) emit(ctx context.Context, eventType string, id uuid.UUID) {
	if m.cfg.Emitter == nil {
		return
	}
	event, err := events.NewSessionEvent(eventType, id, nil)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to build session event", slog.String("error", err.Error()))
		return
	}
	if err := m.cfg.Emitter.EmitEvent(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "event handler failed",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
	}
}
