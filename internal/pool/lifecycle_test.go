package pool

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
)

type recordingStopper struct{ calls int }

func (s *recordingStopper) Stop() { s.calls++ }

type recordingFlusher struct{ calls int }

func (f *recordingFlusher) FlushAll() { f.calls++ }

func TestManager_ShutdownDrainsAndClosesEverything(t *testing.T) {
	reg, clock := testRegistry(t, 10, 100)
	reaper := NewIdleReaper(reg, clock, time.Minute)
	reaper.Start()

	transports := make([]*fakeTransport, 3)
	for i, clientID := range []string{"alice", "bob", "carol"} {
		transports[i] = newFakeTransport()
		_, err := reg.Admit(transports[i], clientID, "table-1", Callbacks{})
		require.NoError(t, err)
	}

	stopper := &recordingStopper{}
	flusher := &recordingFlusher{}
	manager := NewManager(reg, reaper, clock, time.Second)
	manager.AddStopper(stopper)
	manager.AddFlusher(flusher)

	require.NoError(t, manager.Shutdown(context.Background()))

	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 1, stopper.calls)
	assert.Equal(t, 1, flusher.calls)
	for _, transport := range transports {
		code, reason := transport.closedWith()
		assert.Equal(t, domain.CloseNormal, code)
		assert.Equal(t, "server shutting down", reason)
	}

	_, err := reg.Admit(newFakeTransport(), "dave", "table-1", Callbacks{})
	assert.ErrorIs(t, err, domain.ErrPoolClosed)
}

func TestManager_ShutdownWaitsForPendingWork(t *testing.T) {
	reg, clock := testRegistry(t, 10, 100)
	manager := NewManager(reg, nil, clock, 5*time.Second)

	done := manager.TrackPending()

	finished := make(chan error, 1)
	go func() { finished <- manager.Shutdown(context.Background()) }()

	select {
	case <-finished:
		t.Fatal("shutdown completed before pending work was done")
	case <-time.After(50 * time.Millisecond):
	}

	done()
	done() // safe to call twice

	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown never completed")
	}
}

func TestManager_ShutdownDrainTimeout(t *testing.T) {
	reg, _ := testRegistry(t, 10, 100)
	manager := NewManager(reg, nil, clockwork.NewRealClock(), 30*time.Millisecond)

	transport := newFakeTransport()
	_, err := reg.Admit(transport, "alice", "table-1", Callbacks{})
	require.NoError(t, err)

	// Never completed: the drain gives up at the timeout but transports
	// are still closed.
	_ = manager.TrackPending()

	err = manager.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, reg.Len())
	code, _ := transport.closedWith()
	assert.Equal(t, domain.CloseNormal, code)
}

func TestManager_ShutdownHonorsContextCancellation(t *testing.T) {
	reg, clock := testRegistry(t, 10, 100)
	manager := NewManager(reg, nil, clock, time.Minute)

	_ = manager.TrackPending()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := manager.Shutdown(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, reg.Len())
}

func TestManager_ShutdownOnlyRunsOnce(t *testing.T) {
	reg, clock := testRegistry(t, 10, 100)
	stopper := &recordingStopper{}
	manager := NewManager(reg, nil, clock, time.Second)
	manager.AddStopper(stopper)

	require.NoError(t, manager.Shutdown(context.Background()))
	require.NoError(t, manager.Shutdown(context.Background()))
	assert.Equal(t, 1, stopper.calls)
}
