package compression

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
)

type staticTransport struct{ native bool }

func (t staticTransport) WriteText([]byte) error        { return nil }
func (t staticTransport) WriteBinary([]byte) error      { return nil }
func (t staticTransport) Ping() error                   { return nil }
func (t staticTransport) Close(int, string) error       { return nil }
func (t staticTransport) State() domain.ConnState       { return domain.StateOpen }
func (t staticTransport) SupportsNativeCompression() bool { return t.native }
func (t staticTransport) RemoteAddr() string            { return "test" }

// compressible returns a payload that deflate shrinks comfortably.
func compressible(size int) []byte {
	return []byte(strings.Repeat(`{"type":"table_updated","seat":3}`, size/33+1))[:size]
}

func TestNegotiator_ModeSelection(t *testing.T) {
	enabled := NewNegotiator(true, 256)
	assert.Equal(t, ModeNative, enabled.ModeFor(staticTransport{native: true}))
	assert.Equal(t, ModeManual, enabled.ModeFor(staticTransport{native: false}))

	disabled := NewNegotiator(false, 256)
	assert.Equal(t, ModeNone, disabled.ModeFor(staticTransport{native: true}))
	assert.Equal(t, ModeNone, disabled.ModeFor(staticTransport{native: false}))
}

func TestNegotiator_SmallPayloadStaysRaw(t *testing.T) {
	n := NewNegotiator(true, 256)
	data := compressible(256)

	frame, binary := n.Encode(ModeManual, "table_updated", data, false)
	assert.False(t, binary)
	assert.Equal(t, data, frame)
}

func TestNegotiator_LargePayloadCompressed(t *testing.T) {
	n := NewNegotiator(true, 256)
	data := compressible(2048)

	frame, binary := n.Encode(ModeManual, "table_updated", data, false)
	require.True(t, binary)
	assert.Equal(t, Marker, frame[0])
	assert.Less(t, len(frame), len(data))
}

func TestNegotiator_NoCompressFlagWins(t *testing.T) {
	n := NewNegotiator(true, 256)
	data := compressible(2048)

	frame, binary := n.Encode(ModeManual, "player_action", data, true)
	assert.False(t, binary)
	assert.Equal(t, data, frame)
}

func TestNegotiator_NativeModeNeverTransforms(t *testing.T) {
	n := NewNegotiator(true, 256)
	data := compressible(4096)

	frame, binary := n.Encode(ModeNative, "table_updated", data, false)
	assert.False(t, binary)
	assert.Equal(t, data, frame)
}

func TestNegotiator_EncodeDecodeRoundTrip(t *testing.T) {
	n := NewNegotiator(true, 256)
	data := compressible(4096)

	frame, binary := n.Encode(ModeManual, "table_updated", data, false)
	require.True(t, binary)

	out, err := n.Decode(frame, true)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestNegotiator_DecodePassesThroughUnmarkedFrames(t *testing.T) {
	n := NewNegotiator(true, 256)

	text := []byte(`{"type":"player_action"}`)
	out, err := n.Decode(text, false)
	require.NoError(t, err)
	assert.Equal(t, text, out)

	// A binary frame without the marker is also left alone.
	unmarked := []byte{0x42, 0x43, 0x44}
	out, err = n.Decode(unmarked, true)
	require.NoError(t, err)
	assert.Equal(t, unmarked, out)
}

func TestNegotiator_DecodeCorruptFrame(t *testing.T) {
	n := NewNegotiator(true, 256)

	_, err := n.Decode([]byte{Marker, 0xff, 0xfe, 0xfd, 0xfc}, true)
	assert.ErrorIs(t, err, domain.ErrDecompression)
}

func TestNegotiator_IncompressiblePayloadStaysRaw(t *testing.T) {
	n := NewNegotiator(true, 16)

	// Already-deflated bytes do not shrink again.
	inner, binary := n.Encode(ModeManual, "blob", compressible(2048), false)
	require.True(t, binary)

	frame, binary := n.Encode(ModeManual, "blob", inner, false)
	assert.False(t, binary)
	assert.Equal(t, inner, frame)
}

func TestStats_TracksPerTypeOutcomes(t *testing.T) {
	n := NewNegotiator(true, 256)

	n.Encode(ModeManual, "table_updated", compressible(2048), false)
	n.Encode(ModeManual, "table_updated", compressible(100), false)
	n.Encode(ModeManual, "player_action", compressible(50), false)

	byType := n.Stats().ByType()
	require.Contains(t, byType, "table_updated")
	require.Contains(t, byType, "player_action")

	tu := byType["table_updated"]
	assert.Equal(t, int64(2), tu.Seen)
	assert.Equal(t, int64(1), tu.Compressed)
	assert.Positive(t, tu.BytesSaved)

	pa := byType["player_action"]
	assert.Equal(t, int64(1), pa.Seen)
	assert.Equal(t, int64(0), pa.Compressed)

	total := n.Stats().Snapshot()
	assert.Equal(t, int64(3), total.Seen)
	assert.Equal(t, int64(1), total.Compressed)
}

func TestStats_RecommendLowersThresholdForEffectiveTypes(t *testing.T) {
	n := NewNegotiator(true, 256)

	// Repetitive 600-byte payloads compress well below the 10% bar.
	for i := 0; i < 10; i++ {
		n.Encode(ModeManual, "table_updated", compressible(600), false)
	}

	rec := n.Stats().Recommend(1024)
	assert.Equal(t, 600, rec.SuggestedThreshold)
	assert.Empty(t, rec.SkipTypes)
}

func TestStats_RecommendWithoutObservations(t *testing.T) {
	rec := NewStats().Recommend(256)
	assert.Equal(t, 256, rec.SuggestedThreshold)
	assert.Empty(t, rec.SkipTypes)
}

func TestNegotiator_CompressedFramesAreDistinctPerCall(t *testing.T) {
	n := NewNegotiator(true, 256)
	data := compressible(2048)

	a, _ := n.Encode(ModeManual, "table_updated", data, false)
	b, _ := n.Encode(ModeManual, "table_updated", data, false)

	// The pooled flate writer must reset cleanly between calls.
	assert.True(t, bytes.Equal(a, b))
	out, err := n.Decode(b, true)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}
