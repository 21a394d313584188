package pool

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// The sweep interval is fixed policy, independent of per-connection state
// and unaffected by load.
const reapInterval = 10 * time.Second

// IdleReaper periodically evicts connections inactive past the idle timeout.
type IdleReaper struct {
	registry    *Registry
	clock       clockwork.Clock
	idleTimeout time.Duration
	doneCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewIdleReaper(registry *Registry, clock clockwork.Clock, idleTimeout time.Duration) *IdleReaper {
	return &IdleReaper{
		registry:    registry,
		clock:       clock,
		idleTimeout: idleTimeout,
		doneCh:      make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (ir *IdleReaper) Start() {
	ir.wg.Add(1)
	go ir.run()
}

// Stop halts the sweep loop. No sweep starts after Stop returns.
func (ir *IdleReaper) Stop() {
	ir.stopOnce.Do(func() {
		close(ir.doneCh)
	})
	ir.wg.Wait()
}

func (ir *IdleReaper) run() {
	defer ir.wg.Done()

	ticker := ir.clock.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			ir.sweep()
		case <-ir.doneCh:
			return
		}
	}
}

// sweep evicts every connection idle past the timeout. A close that panics
// is swallowed so one bad socket never aborts the pass for the others.
func (ir *IdleReaper) sweep() {
	evicted := 0
	for _, conn := range ir.registry.Connections() {
		if ir.clock.Since(conn.LastActivity()) <= ir.idleTimeout {
			continue
		}
		ir.evict(conn)
		evicted++
	}
	if evicted > 0 {
		slog.Info("Idle sweep complete", "evicted", evicted)
	}
}

func (ir *IdleReaper) evict(conn *Connection) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Idle eviction panicked",
				"connection_id", conn.ID().String(),
				"panic", r,
			)
			ir.registry.Remove(conn.ID())
		}
	}()
	ir.registry.evictIdle(conn)
}
