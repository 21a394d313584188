package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
)

// Stopper cancels outstanding timers (the broadcast fan-out, for one).
type Stopper interface {
	Stop()
}

// Flusher drains buffered outbound state (the batcher).
type Flusher interface {
	FlushAll()
}

// Manager orchestrates graceful shutdown: stop the reaper, cancel pending
// broadcast timers, flush batches, drain registered in-flight operations,
// then close every remaining transport and clear the registry.
type Manager struct {
	registry     *Registry
	reaper       *IdleReaper
	stoppers     []Stopper
	flushers     []Flusher
	clock        clockwork.Clock
	drainTimeout time.Duration
	pending      sync.WaitGroup
	shutdownOnce sync.Once
}

func NewManager(registry *Registry, reaper *IdleReaper, clock clockwork.Clock, drainTimeout time.Duration) *Manager {
	return &Manager{
		registry:     registry,
		reaper:       reaper,
		clock:        clock,
		drainTimeout: drainTimeout,
	}
}

// AddStopper registers a component whose timers must be cancelled before the
// drain phase.
func (m *Manager) AddStopper(s Stopper) {
	m.stoppers = append(m.stoppers, s)
}

// AddFlusher registers a component with buffered outbound state to flush
// before transports close.
func (m *Manager) AddFlusher(f Flusher) {
	m.flushers = append(m.flushers, f)
}

// TrackPending registers an arbitrary in-flight operation so that Shutdown
// does not race ahead of work it did not issue itself. The returned func
// marks the operation complete and is safe to call more than once.
func (m *Manager) TrackPending() func() {
	m.pending.Add(1)
	var once sync.Once
	return func() {
		once.Do(m.pending.Done)
	}
}

// Shutdown runs the full drain sequence. It returns once every transport has
// received a close frame and the indices are empty, or earlier if ctx
// expires mid-drain (transports are still closed in that case).
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	m.shutdownOnce.Do(func() {
		slog.Info("Pool shutdown starting", "active_connections", m.registry.Len())

		// No new admissions, sweeps, or broadcast flushes from here on.
		m.registry.markClosed()
		if m.reaper != nil {
			m.reaper.Stop()
		}
		for _, s := range m.stoppers {
			s.Stop()
		}
		for _, f := range m.flushers {
			f.FlushAll()
		}

		err = m.drain(ctx)

		m.registry.CloseAll(domain.CloseNormal, "server shutting down")
		slog.Info("Pool shutdown complete")
	})
	return err
}

func (m *Manager) drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(done)
	}()

	timer := m.clock.NewTimer(m.drainTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		slog.Warn("Shutdown drain interrupted", "error", ctx.Err())
		return ctx.Err()
	case <-timer.Chan():
		slog.Warn("Shutdown drain timed out", "timeout", m.drainTimeout)
		return context.DeadlineExceeded
	}
}
