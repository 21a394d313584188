package pool

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/batch"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/compression"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/metrics"
)

// LoadTier is a coarse traffic-volume bucket, recomputed lazily on activity.
type LoadTier int

const (
	TierLow LoadTier = iota
	TierMedium
	TierHigh
)

func (t LoadTier) String() string {
	switch t {
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	}
	return "low"
}

func (t LoadTier) weight() float64 {
	switch t {
	case TierMedium:
		return 50
	case TierHigh:
		return 100
	}
	return 0
}

// A connection flips unhealthy once its error count reaches this threshold.
// Fixed policy, not configurable, so failure semantics stay predictable.
const healthErrorThreshold = 5

// Tier boundaries on cumulative sent+received messages.
const (
	tierMediumFloor = 10
	tierHighFloor   = 50
)

// Callbacks is the fixed set of per-connection hooks registered at admission
// and stored alongside the Connection record.
type Callbacks struct {
	OnMessage func(env domain.Envelope)
	OnError   func(err error)
	OnClose   func(reason string)
}

// SendOptions tune a single send.
type SendOptions struct {
	// NoCompress skips compression regardless of mode, for latency-critical
	// small messages such as a single player action.
	NoCompress bool
	// Batch routes the message through the batcher instead of dispatching
	// immediately.
	Batch bool
}

// Connection is one live session bound to a client and a table. It is
// exclusively owned by the Registry; health and load fields are mutated only
// through the Record methods.
type Connection struct {
	id        uuid.UUID
	clientID  string
	tableID   string
	transport domain.Transport
	mode      compression.Mode
	callbacks Callbacks
	clock     clockwork.Clock
	createdAt time.Time

	negotiator *compression.Negotiator
	batcher    *batch.Batcher
	writer     *connWriter
	closeOnce  sync.Once

	mu           sync.Mutex
	lastActivity time.Time
	lastChecked  time.Time
	latency      time.Duration
	sent         int64
	received     int64
	errorCount   int64
	tier         LoadTier
}

func (c *Connection) ID() uuid.UUID      { return c.id }
func (c *Connection) ClientID() string   { return c.clientID }
func (c *Connection) TableID() string    { return c.tableID }
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// Mode is the compression mode fixed at admission.
func (c *Connection) Mode() compression.Mode { return c.mode }

// Transport exposes the underlying socket abstraction.
func (c *Connection) Transport() domain.Transport { return c.transport }

func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// RecordReceive notes an inbound message: activity refreshed, received
// counter bumped, tier recomputed.
func (c *Connection) RecordReceive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received++
	c.lastActivity = c.clock.Now()
	c.recomputeTierLocked()
}

// RecordSend notes a delivered outbound message.
func (c *Connection) RecordSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent++
	c.lastActivity = c.clock.Now()
	c.recomputeTierLocked()
}

// RecordError notes a transport-level error and invokes the error callback.
func (c *Connection) RecordError(err error) {
	c.mu.Lock()
	c.errorCount++
	c.lastChecked = c.clock.Now()
	cb := c.callbacks.OnError
	c.mu.Unlock()

	if cb != nil && err != nil {
		cb(err)
	}
}

// RecordLatency stores an optional latency sample from a keepalive probe.
func (c *Connection) RecordLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latency = d
	c.lastChecked = c.clock.Now()
}

// Healthy reports whether the connection is below the error threshold.
func (c *Connection) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorCount < healthErrorThreshold
}

func (c *Connection) Tier() LoadTier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier
}

// LoadScore is the selection heuristic: tier weight, plus 10 per error,
// plus 0.1 per message in either direction. Lower wins.
func (c *Connection) LoadScore() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier.weight() + float64(c.errorCount)*10 + float64(c.sent+c.received)*0.1
}

func (c *Connection) recomputeTierLocked() {
	total := c.sent + c.received
	switch {
	case total < tierMediumFloor:
		c.tier = TierLow
	case total < tierHighFloor:
		c.tier = TierMedium
	default:
		c.tier = TierHigh
	}
}

// Counters is a point-in-time snapshot of the connection's counters.
type Counters struct {
	Sent       int64
	Received   int64
	Errors     int64
	Tier       LoadTier
	Latency    time.Duration
	LastActive time.Time
}

func (c *Connection) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Counters{
		Sent:       c.sent,
		Received:   c.received,
		Errors:     c.errorCount,
		Tier:       c.tier,
		Latency:    c.latency,
		LastActive: c.lastActivity,
	}
}

// Send serializes the envelope and dispatches it, either immediately or via
// the batcher. A full writer buffer counts as a send failure: the error
// counter is bumped and ErrSendFailure returned, but the connection stays
// registered.
func (c *Connection) Send(env domain.Envelope, opts SendOptions) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if opts.Batch && c.batcher != nil {
		return c.batcher.Enqueue(c.id.String(), func(batched []byte) error {
			return c.deliverFrame(domain.TypeBatch, batched, false)
		}, data)
	}

	return c.deliverFrame(env.Type, data, opts.NoCompress)
}

func (c *Connection) deliverFrame(msgType string, data []byte, noCompress bool) error {
	frame, binary := c.negotiator.Encode(c.mode, msgType, data, noCompress)
	if !c.writer.enqueue(outFrame{data: frame, binary: binary}) {
		metrics.PoolSendFailuresTotal.Inc()
		c.RecordError(fmt.Errorf("%w: writer unavailable", domain.ErrSendFailure))
		return domain.ErrSendFailure
	}
	c.RecordSend()
	return nil
}

// HandleInbound runs one received frame through decompression and, on
// success, the message callback. A decompression failure drops the frame
// without advancing the message-received path.
func (c *Connection) HandleInbound(data []byte, binary bool) error {
	raw, err := c.negotiator.Decode(data, binary)
	if err != nil {
		c.RecordError(err)
		return err
	}

	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.RecordError(fmt.Errorf("malformed envelope: %w", err))
		return err
	}

	c.RecordReceive()
	if c.callbacks.OnMessage != nil {
		c.callbacks.OnMessage(env)
	}
	return nil
}

// close flushes any pending batch, sends a close frame, and fires the close
// callback. Idempotent through the writer's stop-once.
func (c *Connection) close(code int, reason string) {
	c.closeOnce.Do(func() {
		if c.batcher != nil {
			c.batcher.FlushConn(c.id.String())
		}
		c.writer.stopGraceful(code, reason)
		if c.callbacks.OnClose != nil {
			c.callbacks.OnClose(reason)
		}
	})
}
