package domain

// ConnState is the lifecycle state of a transport, checked through State()
// instead of numeric ready-state constants.
type ConnState int

const (
	StateOpen ConnState = iota
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Close codes mirror the WebSocket status codes the transport speaks.
const (
	CloseNormal       = 1000
	CloseGoingAway    = 1001
	ClosePolicyReason = 1008
)

// Transport is one bidirectional socket. Exactly one Connection record owns
// a Transport at a time; the pool never shares it.
type Transport interface {
	// WriteText sends an uncompressed JSON frame.
	WriteText(data []byte) error
	// WriteBinary sends a binary frame (marker byte plus deflated envelope).
	WriteBinary(data []byte) error
	// Ping sends a transport-level keepalive probe.
	Ping() error
	// Close sends a close frame with the given code and reason, then tears
	// down the socket. Safe to call more than once.
	Close(code int, reason string) error
	// State reports the current lifecycle state.
	State() ConnState
	// SupportsNativeCompression reports whether the transport negotiated
	// payload compression itself (permessage-deflate), in which case the
	// session layer sends raw frames and lets the transport compress.
	SupportsNativeCompression() bool
	// RemoteAddr identifies the peer for logging.
	RemoteAddr() string
}
