package session

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/studbud/internal/content"
	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/events"
	"github.com/phrazzld/studbud/internal/metrics"
	"github.com/phrazzld/studbud/internal/mocks"
	"github.com/phrazzld/studbud/internal/orchestrator"
)

func newManager(gen *mocks.MockGenerator, cfg ManagerConfig) *Manager {
	return NewManager(discardLogger(), newEngine(gen), cfg)
}

func TestManagerCreateGetRemove(t *testing.T) {
	m := newManager(mocks.NewMockGeneratorForMode(), ManagerConfig{
		DefaultMode:  domain.ModeQuiz,
		DefaultCount: 15,
	})
	defer m.Close()
	ctx := context.Background()

	s := m.Create(ctx)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, domain.ModeQuiz, s.Snapshot().Mode)
	assert.Equal(t, 15, s.Snapshot().Count)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, m.Remove(ctx, s.ID()))
	assert.Equal(t, 0, m.Len())
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Remove(ctx, s.ID()), ErrSessionNotFound)
}

func TestManagerSweepExpiresIdleSessions(t *testing.T) {
	clock := newFakeClock()
	release := make(chan struct{})
	m := newManager(mocks.NewBlockingMockGenerator(release, mocks.FlashcardsJSON(1)), ManagerConfig{
		IdleTimeout: 10 * time.Minute,
		Now:         clock.Now,
	})
	defer m.Close()
	ctx := context.Background()

	stale := m.Create(ctx)
	busy := m.Create(ctx)
	require.NoError(t, busy.Submit(ctx, content.Input{Text: photosynthesis}))
	done, err := busy.Start(domain.ModeFlashcards, 1)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	fresh := m.Create(ctx)
	assert.Equal(t, 0, m.Sweep(ctx))

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, m.Sweep(ctx), "only the idle session expires")

	_, err = m.Get(stale.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(busy.ID())
	assert.NoError(t, err, "processing sessions are never expired")
	_, err = m.Get(fresh.ID())
	assert.NoError(t, err)

	close(release)
	waitDone(t, done)
}

// gatedEngine blocks Prepare until release is closed.
type gatedEngine struct {
	Engine
	entered chan struct{}
	release chan struct{}
}

func (e *gatedEngine) Prepare(ctx context.Context, in content.Input) (*orchestrator.Prepared, error) {
	close(e.entered)
	<-e.release
	return e.Engine.Prepare(ctx, in)
}

func TestManagerSweepDoesNotBlockLookups(t *testing.T) {
	engine := &gatedEngine{
		Engine:  newEngine(mocks.NewMockGeneratorForMode()),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := NewManager(discardLogger(), engine, ManagerConfig{})
	defer m.Close()
	ctx := context.Background()

	extracting := m.Create(ctx)
	other := m.Create(ctx)

	submitted := make(chan error, 1)
	go func() {
		submitted <- extracting.Submit(ctx, content.Input{Text: photosynthesis})
	}()
	<-engine.entered

	swept := make(chan int, 1)
	go func() {
		swept <- m.Sweep(ctx)
	}()
	// Give the sweep time to reach the session held by Submit.
	time.Sleep(50 * time.Millisecond)

	found := make(chan error, 1)
	go func() {
		_, err := m.Get(other.ID())
		found <- err
	}()
	select {
	case err := <-found:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Get blocked behind a sweep waiting on an extracting session")
	}
	assert.Equal(t, 2, m.Len())

	close(engine.release)
	require.NoError(t, <-submitted)
	assert.Equal(t, 0, <-swept)
}

func TestManagerEmitsLifecycleEvents(t *testing.T) {
	rec := &recorder{}
	met := metrics.New()
	emitter := events.NewInMemoryEventEmitter(discardLogger())
	emitter.RegisterHandler(rec)
	emitter.RegisterHandler(met)

	m := newManager(mocks.NewMockGeneratorForMode(), ManagerConfig{Emitter: emitter})
	defer m.Close()
	ctx := context.Background()

	a := m.Create(ctx)
	m.Create(ctx)
	assertActiveSessions(t, met, 2)

	require.NoError(t, m.Remove(ctx, a.ID()))
	assertActiveSessions(t, met, 1)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	var types []string
	for _, e := range rec.events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		events.TypeSessionCreated,
		events.TypeSessionCreated,
		events.TypeSessionClosed,
	}, types)
}

func assertActiveSessions(t *testing.T, met *metrics.Metrics, n int) {
	t.Helper()
	expected := fmt.Sprintf(`
# HELP studbud_sessions_active Sessions currently held by the server.
# TYPE studbud_sessions_active gauge
studbud_sessions_active %d
`, n)
	require.NoError(t, testutil.GatherAndCompare(met.Registry(), strings.NewReader(expected), "studbud_sessions_active"))
}

func TestManagerCloseCancelsOutstandingGenerations(t *testing.T) {
	m := newManager(mocks.NewBlockingMockGenerator(make(chan struct{}), mocks.FlashcardsJSON(1)), ManagerConfig{})
	ctx := context.Background()

	s := m.Create(ctx)
	require.NoError(t, s.Submit(ctx, content.Input{Text: photosynthesis}))
	done, err := s.Start(domain.ModeFlashcards, 1)
	require.NoError(t, err)

	m.Close()
	waitDone(t, done)

	snap := s.Snapshot()
	assert.Equal(t, PhaseError, snap.Phase)
	assert.NotEmpty(t, snap.Error)
}

func TestManagerRunStopsWithContext(t *testing.T) {
	m := newManager(mocks.NewMockGeneratorForMode(), ManagerConfig{})
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
