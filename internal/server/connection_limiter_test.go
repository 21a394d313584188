package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPConnectionLimiter(t *testing.T) {
	l := NewIPConnectionLimiter(2)

	assert.True(t, l.Acquire("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.1"))
	assert.False(t, l.Acquire("10.0.0.1"))

	// Other IPs are unaffected.
	assert.True(t, l.Acquire("10.0.0.2"))

	l.Release("10.0.0.1")
	assert.Equal(t, 1, l.Count("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.1"))
}

func TestIPConnectionLimiter_ReleaseNeverGoesNegative(t *testing.T) {
	l := NewIPConnectionLimiter(2)

	l.Release("10.0.0.1")
	assert.Equal(t, 0, l.Count("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.1"))
}

func TestConnectionRateLimiter(t *testing.T) {
	l := NewConnectionRateLimiter(1, 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// Fresh bucket per source.
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestHandshakeLimits_ReportsReason(t *testing.T) {
	l := NewHandshakeLimits(1, 1000, 1000)

	ok, _ := l.Acquire("10.0.0.1")
	assert.True(t, ok)

	ok, reason := l.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	rated := NewHandshakeLimits(100, 1, 1)
	ok, _ = rated.Acquire("10.0.0.2")
	assert.True(t, ok)
	ok, reason = rated.Acquire("10.0.0.2")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
}
