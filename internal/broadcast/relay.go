package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/metrics"
)

const relayChannel = "tables:broadcast"

// relayMessage is the cross-instance wire format. Instance filters out the
// publisher's own messages on the subscribe side.
type relayMessage struct {
	Instance string          `json:"instance"`
	TableID  string          `json:"table"`
	Envelope domain.Envelope `json:"envelope"`
}

// Relay mirrors table broadcasts across instances through Redis pub/sub.
// Every instance publishes its table updates and enqueues foreign-instance
// updates into its local fan-out, so viewers connected anywhere see the
// same coalesced stream. A Redis outage degrades to single-instance
// delivery; local fan-out never blocks on the relay.
type Relay struct {
	rdb        *redis.Client
	fanout     *Fanout
	instanceID string
	breaker    circuitbreaker.CircuitBreaker[any]
}

func NewRelay(rdb *redis.Client, fanout *Fanout) *Relay {
	breaker := circuitbreaker.Builder[any]().
		WithFailureRateThreshold(60, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Relay circuit breaker state changed",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
		}).
		Build()

	return &Relay{
		rdb:        rdb,
		fanout:     fanout,
		instanceID: uuid.NewString(),
		breaker:    breaker,
	}
}

// InstanceID identifies this process on the relay channel.
func (r *Relay) InstanceID() string { return r.instanceID }

// Publish announces a table broadcast to the other instances. Failures trip
// the circuit breaker instead of propagating to the broadcast caller.
func (r *Relay) Publish(ctx context.Context, tableID string, env domain.Envelope) error {
	msg := relayMessage{Instance: r.instanceID, TableID: tableID, Envelope: env}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal relay message: %w", err)
	}

	err = failsafe.Run(func() error {
		return r.rdb.Publish(ctx, relayChannel, data).Err()
	}, r.breaker)
	if err != nil {
		metrics.RelayMessagesTotal.WithLabelValues("out", "error").Inc()
		return fmt.Errorf("publish relay message: %w", err)
	}

	metrics.RelayMessagesTotal.WithLabelValues("out", "ok").Inc()
	return nil
}

// Start subscribes to the relay channel and feeds foreign-instance messages
// into the local fan-out. Blocks until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, relayChannel)
	defer func() {
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			r.handleMessage(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Relay) handleMessage(payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		metrics.RelayMessagesTotal.WithLabelValues("in", "error").Inc()
		slog.Warn("Malformed relay message", "error", err)
		return
	}

	// Our own publishes come back on the channel; the local fan-out already
	// has them.
	if msg.Instance == r.instanceID {
		return
	}

	metrics.RelayMessagesTotal.WithLabelValues("in", "ok").Inc()
	r.fanout.Enqueue(msg.TableID, msg.Envelope)
}
