package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/metrics"
)

// Deliverer pushes a coalesced payload to every current member of a table.
// *pool.Registry satisfies this through a thin adapter in the server wiring.
type Deliverer interface {
	Deliver(tableID string, env domain.Envelope)
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(tableID string, env domain.Envelope)

func (f DelivererFunc) Deliver(tableID string, env domain.Envelope) { f(tableID, env) }

// pendingBroadcast queues not-yet-delivered payloads for one table. Only the
// last enqueued payload is delivered when the timer fires; the rest are
// discarded. At most one flush timer exists per table at a time.
type pendingBroadcast struct {
	payloads []domain.Envelope
	timer    clockwork.Timer
}

// Fanout coalesces rapid per-table updates: a burst of enqueues within the
// delay window collapses into a single delivery of the latest payload. It is
// a sampling broadcast, not a reliable multicast — viewers see the newest
// snapshot, never a backlog.
type Fanout struct {
	clock     clockwork.Clock
	delay     time.Duration
	deliverer Deliverer
	track     func() func()

	mu      sync.Mutex
	pending map[string]*pendingBroadcast
	stopped bool
}

// NewFanout creates a fan-out with the given coalescing delay. track, when
// non-nil, registers each in-flight delivery with the lifecycle manager so
// shutdown drains it; pass pool's Manager.TrackPending.
func NewFanout(clock clockwork.Clock, delay time.Duration, deliverer Deliverer, track func() func()) *Fanout {
	if track == nil {
		track = func() func() { return func() {} }
	}
	return &Fanout{
		clock:     clock,
		delay:     delay,
		deliverer: deliverer,
		track:     track,
		pending:   make(map[string]*pendingBroadcast),
	}
}

// Enqueue appends a payload to the table's queue. The first payload in an
// empty queue arms the flush timer; later enqueues within the window only
// supersede the payload — the timer is never extended.
func (f *Fanout) Enqueue(tableID string, env domain.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return
	}

	pb, ok := f.pending[tableID]
	if !ok {
		pb = &pendingBroadcast{}
		f.pending[tableID] = pb
		metrics.BroadcastPendingTables.Set(float64(len(f.pending)))
	}
	pb.payloads = append(pb.payloads, env)

	if pb.timer == nil {
		id := tableID
		pb.timer = f.clock.AfterFunc(f.delay, func() {
			f.fire(id)
		})
	}
}

// PendingCount reports how many payloads are queued for a table.
func (f *Fanout) PendingCount(tableID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pb, ok := f.pending[tableID]; ok {
		return len(pb.payloads)
	}
	return 0
}

// Stop cancels every scheduled flush and discards queued payloads. No flush
// fires after Stop returns.
func (f *Fanout) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped = true
	for tableID, pb := range f.pending {
		if pb.timer != nil {
			pb.timer.Stop()
		}
		delete(f.pending, tableID)
	}
	metrics.BroadcastPendingTables.Set(0)
}

func (f *Fanout) fire(tableID string) {
	f.mu.Lock()
	pb, ok := f.pending[tableID]
	if !ok || f.stopped {
		f.mu.Unlock()
		return
	}
	delete(f.pending, tableID)
	metrics.BroadcastPendingTables.Set(float64(len(f.pending)))

	last := pb.payloads[len(pb.payloads)-1]
	discarded := len(pb.payloads) - 1
	f.mu.Unlock()

	if discarded > 0 {
		metrics.BroadcastsCoalescedTotal.Add(float64(discarded))
	}
	metrics.BroadcastsDeliveredTotal.Inc()

	done := f.track()
	defer done()
	f.deliverer.Deliver(tableID, last)

	slog.Debug("Broadcast flushed",
		"table_id", tableID,
		"coalesced", discarded,
	)
}
