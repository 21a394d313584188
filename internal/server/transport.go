package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
)

const writeDeadline = 5 * time.Second

// wsTransport adapts a gorilla connection to domain.Transport. Lifecycle
// state is tracked explicitly instead of poking at ready-state numbers.
type wsTransport struct {
	conn   *websocket.Conn
	clock  clockwork.Clock
	native bool

	writeMu sync.Mutex
	state   atomic.Int32

	pingMu     sync.Mutex
	lastPingAt time.Time
	onPong     func(latency time.Duration)
}

var _ domain.Transport = (*wsTransport)(nil)

// newWSTransport wraps an upgraded connection. native reports whether
// permessage-deflate was negotiated during the handshake, in which case the
// session layer leaves compression to the transport.
func newWSTransport(conn *websocket.Conn, clock clockwork.Clock, native bool) *wsTransport {
	t := &wsTransport{conn: conn, clock: clock, native: native}
	t.state.Store(int32(domain.StateOpen))

	conn.SetPongHandler(func(string) error {
		t.pingMu.Lock()
		lastPing := t.lastPingAt
		cb := t.onPong
		t.pingMu.Unlock()

		if cb != nil && !lastPing.IsZero() {
			cb(t.clock.Since(lastPing))
		}
		return nil
	})
	return t
}

// setPongCallback registers a latency-sample observer for keepalive pongs.
func (t *wsTransport) setPongCallback(cb func(latency time.Duration)) {
	t.pingMu.Lock()
	t.onPong = cb
	t.pingMu.Unlock()
}

func (t *wsTransport) WriteText(data []byte) error {
	return t.write(websocket.TextMessage, data)
}

func (t *wsTransport) WriteBinary(data []byte) error {
	return t.write(websocket.BinaryMessage, data)
}

func (t *wsTransport) Ping() error {
	t.pingMu.Lock()
	t.lastPingAt = t.clock.Now()
	t.pingMu.Unlock()
	return t.write(websocket.PingMessage, nil)
}

func (t *wsTransport) write(messageType int, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if domain.ConnState(t.state.Load()) != domain.StateOpen {
		return domain.ErrSendFailure
	}
	_ = t.conn.SetWriteDeadline(t.clock.Now().Add(writeDeadline))
	if err := t.conn.WriteMessage(messageType, data); err != nil {
		t.state.Store(int32(domain.StateClosed))
		return err
	}
	return nil
}

func (t *wsTransport) Close(code int, reason string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if domain.ConnState(t.state.Load()) == domain.StateClosed {
		return nil
	}
	t.state.Store(int32(domain.StateClosing))

	closeMsg := websocket.FormatCloseMessage(code, reason)
	_ = t.conn.SetWriteDeadline(t.clock.Now().Add(writeDeadline))
	_ = t.conn.WriteMessage(websocket.CloseMessage, closeMsg)

	err := t.conn.Close()
	t.state.Store(int32(domain.StateClosed))
	return err
}

func (t *wsTransport) State() domain.ConnState {
	return domain.ConnState(t.state.Load())
}

func (t *wsTransport) SupportsNativeCompression() bool { return t.native }

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
