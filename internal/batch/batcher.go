// Package batch groups small outgoing messages per connection so a burst of
// tiny frames goes out as one envelope. Batching is opt-in per connection;
// the default send path bypasses it entirely.
package batch

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/metrics"
)

// SendFunc delivers one serialized envelope downstream (negotiator, writer).
// Implementations must not block; the pool's send path is buffered.
type SendFunc func(data []byte) error

// Batcher accumulates messages per connection and flushes them when the
// batch window elapses or the count/size limit is crossed. Messages within a
// batch keep submission order; batches flush in window-expiry order.
type Batcher struct {
	clock       clockwork.Clock
	window      time.Duration
	maxMessages int
	maxBytes    int

	mu     sync.Mutex
	queues map[string]*queue
	closed bool
}

type queue struct {
	msgs  []json.RawMessage
	bytes int
	timer clockwork.Timer
	send  SendFunc
}

func NewBatcher(clock clockwork.Clock, window time.Duration, maxMessages, maxBytes int) *Batcher {
	return &Batcher{
		clock:       clock,
		window:      window,
		maxMessages: maxMessages,
		maxBytes:    maxBytes,
		queues:      make(map[string]*queue),
	}
}

// Enqueue appends a serialized envelope to the connection's batch. The first
// unflushed message arms the window timer; crossing the count or size limit
// flushes immediately.
func (b *Batcher) Enqueue(connID string, send SendFunc, msg json.RawMessage) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.ErrPoolClosed
	}

	q, ok := b.queues[connID]
	if !ok {
		q = &queue{send: send}
		b.queues[connID] = q
	}
	q.msgs = append(q.msgs, msg)
	q.bytes += len(msg)

	if len(q.msgs) == 1 {
		id := connID
		q.timer = b.clock.AfterFunc(b.window, func() {
			b.flush(id, "window")
		})
	}

	var pending *flushJob
	if len(q.msgs) >= b.maxMessages {
		pending = b.detachLocked(connID, q, "count")
	} else if q.bytes >= b.maxBytes {
		pending = b.detachLocked(connID, q, "size")
	}
	b.mu.Unlock()

	pending.deliver()
	return nil
}

// FlushConn flushes any pending batch for a connection. Called on graceful
// close so nothing queued is silently dropped.
func (b *Batcher) FlushConn(connID string) {
	b.flush(connID, "close")
}

// FlushAll flushes every pending batch and stops accepting new messages.
// Part of the shutdown drain.
func (b *Batcher) FlushAll() {
	b.mu.Lock()
	b.closed = true
	jobs := make([]*flushJob, 0, len(b.queues))
	for id, q := range b.queues {
		jobs = append(jobs, b.detachLocked(id, q, "close"))
	}
	b.mu.Unlock()

	for _, job := range jobs {
		job.deliver()
	}
}

// PendingCount reports how many messages are queued for a connection.
func (b *Batcher) PendingCount(connID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[connID]; ok {
		return len(q.msgs)
	}
	return 0
}

func (b *Batcher) flush(connID, trigger string) {
	b.mu.Lock()
	q, ok := b.queues[connID]
	if !ok {
		b.mu.Unlock()
		return
	}
	job := b.detachLocked(connID, q, trigger)
	b.mu.Unlock()

	job.deliver()
}

type flushJob struct {
	send    SendFunc
	data    []byte
	trigger string
	size    int
}

func (j *flushJob) deliver() {
	if j == nil {
		return
	}
	metrics.BatchFlushesTotal.WithLabelValues(j.trigger).Inc()
	metrics.BatchSize.Observe(float64(j.size))
	_ = j.send(j.data)
}

// detachLocked removes the queue from the map and serializes it as a single
// batch envelope. The actual send happens after the lock is released.
func (b *Batcher) detachLocked(connID string, q *queue, trigger string) *flushJob {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	delete(b.queues, connID)
	if len(q.msgs) == 0 {
		return nil
	}

	payload, err := json.Marshal(domain.BatchPayload{Messages: q.msgs})
	if err != nil {
		return nil
	}
	env := domain.Envelope{
		Type:      domain.TypeBatch,
		Payload:   payload,
		Timestamp: b.clock.Now().UnixMilli(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil
	}

	return &flushJob{send: q.send, data: data, trigger: trigger, size: len(q.msgs)}
}
