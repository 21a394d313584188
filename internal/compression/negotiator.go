package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/metrics"
)

// Mode is a connection's compression strategy, decided once at admission.
type Mode int

const (
	// ModeNone sends every frame raw; used when compression is disabled.
	ModeNone Mode = iota
	// ModeNative relies on the transport's negotiated payload compression;
	// the session layer sends raw frames and the transport compresses them.
	ModeNative
	// ModeManual deflates payloads above the threshold and prefixes the
	// compressed-frame marker byte.
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeNative:
		return "native"
	case ModeManual:
		return "manual"
	}
	return "none"
}

// Marker is the first byte of every manually compressed binary frame.
const Marker byte = 0x01

// Negotiator decides per connection whether to compress, applies the manual
// deflate transform on send, and reverses it on receipt.
type Negotiator struct {
	enabled   bool
	threshold int
	stats     *Stats
	writers   sync.Pool
}

// NewNegotiator creates a negotiator. Messages at or below threshold bytes
// are always sent raw.
func NewNegotiator(enabled bool, threshold int) *Negotiator {
	return &Negotiator{
		enabled:   enabled,
		threshold: threshold,
		stats:     NewStats(),
		writers: sync.Pool{
			New: func() any {
				w, _ := flate.NewWriter(io.Discard, flate.BestSpeed)
				return w
			},
		},
	}
}

// Threshold returns the configured minimum payload size for compression.
func (n *Negotiator) Threshold() int { return n.threshold }

// Stats returns the negotiator's observation counters.
func (n *Negotiator) Stats() *Stats { return n.stats }

// ModeFor picks the compression mode for a freshly admitted transport.
// The mode is fixed for the connection's lifetime.
func (n *Negotiator) ModeFor(t domain.Transport) Mode {
	if !n.enabled {
		return ModeNone
	}
	if t.SupportsNativeCompression() {
		return ModeNative
	}
	return ModeManual
}

// Encode prepares a serialized envelope for the wire. It returns the frame
// bytes and whether they must be sent as a binary frame. noCompress forces a
// raw send regardless of mode, for latency-critical messages.
func (n *Negotiator) Encode(mode Mode, msgType string, data []byte, noCompress bool) ([]byte, bool) {
	n.stats.observe(msgType, len(data))

	switch {
	case mode == ModeNative:
		metrics.CompressionMessagesTotal.WithLabelValues("native").Inc()
		return data, false
	case mode != ModeManual:
		metrics.CompressionMessagesTotal.WithLabelValues("raw").Inc()
		return data, false
	case noCompress:
		metrics.CompressionMessagesTotal.WithLabelValues("raw_flagged").Inc()
		return data, false
	case len(data) <= n.threshold:
		metrics.CompressionMessagesTotal.WithLabelValues("raw_small").Inc()
		return data, false
	}

	var buf bytes.Buffer
	buf.Grow(len(data) / 2)
	buf.WriteByte(Marker)

	w := n.writers.Get().(*flate.Writer)
	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		n.writers.Put(w)
		metrics.CompressionMessagesTotal.WithLabelValues("raw").Inc()
		return data, false
	}
	if err := w.Close(); err != nil {
		n.writers.Put(w)
		metrics.CompressionMessagesTotal.WithLabelValues("raw").Inc()
		return data, false
	}
	n.writers.Put(w)

	// Incompressible payloads go out raw rather than inflated.
	if buf.Len() >= len(data) {
		metrics.CompressionMessagesTotal.WithLabelValues("raw_incompressible").Inc()
		return data, false
	}

	saved := len(data) - buf.Len()
	n.stats.recordCompressed(msgType, len(data), buf.Len())
	metrics.CompressionMessagesTotal.WithLabelValues("compressed").Inc()
	metrics.CompressionBytesSavedTotal.Add(float64(saved))
	return buf.Bytes(), true
}

// Decode reverses the manual transform on an inbound frame. Frames without
// the marker pass through untouched. A marked frame that fails to inflate
// returns ErrDecompression; the caller drops it without advancing the
// message-received path.
func (n *Negotiator) Decode(data []byte, binary bool) ([]byte, error) {
	if !binary || len(data) == 0 || data[0] != Marker {
		return data, nil
	}

	r := flate.NewReader(bytes.NewReader(data[1:]))
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		metrics.DecompressionErrorsTotal.Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrDecompression, err)
	}
	return out, nil
}
