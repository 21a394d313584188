package pool

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/batch"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/compression"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
)

func TestConnection_ReleaseFlushesPendingBatchToTransport(t *testing.T) {
	clock := clockwork.NewRealClock()
	reg := NewRegistry(Options{
		TableCapacity:  10,
		MaxConnections: 100,
		Clock:          clock,
		Negotiator:     compression.NewNegotiator(true, 256),
		// A window this long never fires on its own; only the close-time
		// flush can deliver the batch.
		Batcher: batch.NewBatcher(clock, time.Hour, 32, 16384),
	})
	t.Cleanup(func() { reg.CloseAll(domain.CloseNormal, "test done") })

	// A slow socket keeps the writer goroutine mid-write while the close
	// flush and the stop signal race in.
	transport := newFakeTransport()
	transport.writeDelay = 20 * time.Millisecond

	conn, err := reg.Admit(transport, "alice", "table-1", Callbacks{})
	require.NoError(t, err)

	immediate := domain.NewEnvelope(domain.TypeWalletUpdate, json.RawMessage(`{"balance":100}`), clock.Now())
	require.NoError(t, conn.Send(immediate, SendOptions{}))

	queued := domain.NewEnvelope(domain.TypeTableUpdated, json.RawMessage(`{"seq":1}`), clock.Now())
	require.NoError(t, conn.Send(queued, SendOptions{Batch: true}))

	reg.Release(conn, "client disconnected")

	// Release waits for the writer to exit, so both frames are on the
	// transport by now: the immediate send and the flushed batch.
	frames := transport.sentFrames()
	require.Len(t, frames, 2)

	var env domain.Envelope
	require.NoError(t, json.Unmarshal(frames[1].data, &env))
	require.Equal(t, domain.TypeBatch, env.Type)

	var payload domain.BatchPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Len(t, payload.Messages, 1)

	var batched domain.Envelope
	require.NoError(t, json.Unmarshal(payload.Messages[0], &batched))
	assert.Equal(t, domain.TypeTableUpdated, batched.Type)
	assert.JSONEq(t, `{"seq":1}`, string(batched.Payload))
}

func TestConnection_SendAfterWriteErrorReportsFailure(t *testing.T) {
	reg, _ := testRegistry(t, 10, 100)

	transport := newFakeTransport()
	transport.writeErr = errors.New("broken pipe")

	conn, err := reg.Admit(transport, "alice", "table-1", Callbacks{})
	require.NoError(t, err)

	// The first send enqueues fine; the writer then hits the broken socket.
	env := domain.NewEnvelope(domain.TypeWalletUpdate, json.RawMessage(`{"balance":100}`), time.Now())
	require.NoError(t, conn.Send(env, SendOptions{}))

	require.Eventually(t, func() bool {
		return conn.Counters().Errors >= 1
	}, time.Second, time.Millisecond)

	// Every send after the writer died is an explicit failure, not a
	// silently dropped frame with a bumped sent counter.
	for i := 0; i < 10; i++ {
		err := conn.Send(env, SendOptions{})
		assert.ErrorIs(t, err, domain.ErrSendFailure)
	}

	counters := conn.Counters()
	assert.Equal(t, int64(1), counters.Sent)
	assert.Equal(t, int64(11), counters.Errors)
	assert.Empty(t, transport.sentFrames())
}
