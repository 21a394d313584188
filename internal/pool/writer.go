package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/metrics"
)

const (
	pingInterval      = 30 * time.Second
	messageBufferSize = 64
)

type outFrame struct {
	data   []byte
	binary bool
}

// connWriter serializes all writes to one transport through a single
// goroutine, so senders never block on the socket and never race each other.
type connWriter struct {
	transport domain.Transport
	clock     clockwork.Clock
	sendCh    chan outFrame
	doneCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	dead      atomic.Bool
	onError   func(err error)
}

func newConnWriter(transport domain.Transport, clock clockwork.Clock, onError func(error)) *connWriter {
	cw := &connWriter{
		transport: transport,
		clock:     clock,
		sendCh:    make(chan outFrame, messageBufferSize),
		doneCh:    make(chan struct{}),
		onError:   onError,
	}
	cw.wg.Add(1)
	go cw.run()
	return cw
}

// enqueue hands a frame to the writer goroutine without blocking.
// Returns false when the writer is gone or the buffer is full.
func (cw *connWriter) enqueue(f outFrame) bool {
	if cw.dead.Load() {
		return false
	}
	select {
	case cw.sendCh <- f:
		return true
	default:
		return false
	}
}

func (cw *connWriter) run() {
	defer cw.wg.Done()
	defer cw.dead.Store(true)

	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-cw.sendCh:
			if err := cw.writeFrame(frame); err != nil {
				// Mark dead before reporting so a caller reacting to the
				// error never enqueues into a channel nobody reads.
				cw.dead.Store(true)
				if cw.onError != nil {
					cw.onError(err)
				}
				return
			}
		case <-ticker.Chan():
			if err := cw.transport.Ping(); err != nil {
				cw.dead.Store(true)
				return
			}
		case <-cw.doneCh:
			// Frames enqueued before the stop, a close-time batch flush
			// included, still go out before the close frame.
			cw.drainPending()
			return
		}
	}
}

func (cw *connWriter) writeFrame(frame outFrame) error {
	start := cw.clock.Now()
	var err error
	if frame.binary {
		err = cw.transport.WriteBinary(frame.data)
	} else {
		err = cw.transport.WriteText(frame.data)
	}
	if err != nil {
		return err
	}
	metrics.PoolMessageSendDuration.Observe(cw.clock.Since(start).Seconds())
	return nil
}

func (cw *connWriter) drainPending() {
	for {
		select {
		case frame := <-cw.sendCh:
			if err := cw.writeFrame(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// stop tears down the writer without a close frame; used when the peer is
// already gone.
func (cw *connWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneCh)
		cw.wg.Wait()
		_ = cw.transport.Close(domain.CloseGoingAway, "")
	})
}

// stopGraceful waits for the run goroutine to exit, then writes a close
// frame with the given code and reason before closing the socket.
func (cw *connWriter) stopGraceful(code int, reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneCh)
		cw.wg.Wait()
		_ = cw.transport.Close(code, reason)
	})
}
