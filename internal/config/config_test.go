package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_URL", "http://auth.local/verify")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 50, cfg.TableCapacity)
	assert.Equal(t, 2000, cfg.MaxConnections)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.BroadcastDelay)
	assert.Equal(t, 256, cfg.CompressionThreshold)
	assert.True(t, cfg.CompressionEnabled)
	assert.Equal(t, 50*time.Millisecond, cfg.BatchWindow)
	assert.Equal(t, 32, cfg.BatchMaxMessages)
	assert.Equal(t, 16384, cfg.BatchMaxBytes)
	assert.Equal(t, 10.0, cfg.HandshakeRate)
	assert.Equal(t, 20, cfg.HandshakeBurst)
	assert.Equal(t, 20, cfg.MaxPerIP)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_URL", "http://auth.local/verify")
	t.Setenv("TABLE_CAPACITY", "9")
	t.Setenv("MAX_CONNECTIONS", "100")
	t.Setenv("IDLE_TIMEOUT", "90s")
	t.Setenv("BROADCAST_DELAY", "250ms")
	t.Setenv("ENABLE_COMPRESSION", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.TableCapacity)
	assert.Equal(t, 100, cfg.MaxConnections)
	assert.Equal(t, 90*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.BroadcastDelay)
	assert.False(t, cfg.CompressionEnabled)
}

func TestLoad_RequiresAuthURL(t *testing.T) {
	t.Setenv("AUTH_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_URL")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("AUTH_URL", "http://auth.local/verify")

	t.Run("non-integer capacity", func(t *testing.T) {
		t.Setenv("TABLE_CAPACITY", "lots")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed duration", func(t *testing.T) {
		t.Setenv("IDLE_TIMEOUT", "five minutes")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("table capacity above global cap", func(t *testing.T) {
		t.Setenv("TABLE_CAPACITY", "300")
		t.Setenv("MAX_CONNECTIONS", "200")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("zero capacity", func(t *testing.T) {
		t.Setenv("TABLE_CAPACITY", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}
