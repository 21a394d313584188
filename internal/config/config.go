package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	AuthURL  string
	RedisURL string

	TableCapacity  int
	MaxConnections int
	IdleTimeout    time.Duration
	BroadcastDelay time.Duration

	CompressionEnabled   bool
	CompressionThreshold int

	BatchWindow      time.Duration
	BatchMaxMessages int
	BatchMaxBytes    int

	HandshakeRate  float64
	HandshakeBurst int
	MaxPerIP       int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		AuthURL:   getEnv("AUTH_URL", ""),
		RedisURL:  getEnv("REDIS_URL", ""),
	}

	if cfg.AuthURL == "" {
		return nil, fmt.Errorf("AUTH_URL is required")
	}

	var err error
	if cfg.TableCapacity, err = getEnvInt("TABLE_CAPACITY", 50); err != nil {
		return nil, err
	}
	if cfg.MaxConnections, err = getEnvInt("MAX_CONNECTIONS", 2000); err != nil {
		return nil, err
	}
	if cfg.IdleTimeout, err = getEnvDuration("IDLE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.BroadcastDelay, err = getEnvDuration("BROADCAST_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.CompressionThreshold, err = getEnvInt("COMPRESSION_THRESHOLD_BYTES", 256); err != nil {
		return nil, err
	}
	if cfg.BatchWindow, err = getEnvDuration("BATCH_WINDOW", 50*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.BatchMaxMessages, err = getEnvInt("BATCH_MAX_MESSAGES", 32); err != nil {
		return nil, err
	}
	if cfg.BatchMaxBytes, err = getEnvInt("BATCH_MAX_BYTES", 16384); err != nil {
		return nil, err
	}
	if cfg.HandshakeBurst, err = getEnvInt("HANDSHAKE_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.MaxPerIP, err = getEnvInt("MAX_CONNECTIONS_PER_IP", 20); err != nil {
		return nil, err
	}

	rateStr := getEnv("HANDSHAKE_RATE", "10")
	cfg.HandshakeRate, err = strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return nil, fmt.Errorf("HANDSHAKE_RATE must be a number: %w", err)
	}

	cfg.CompressionEnabled = getEnv("ENABLE_COMPRESSION", "true") == "true"

	if cfg.TableCapacity <= 0 {
		return nil, fmt.Errorf("TABLE_CAPACITY must be positive")
	}
	if cfg.MaxConnections <= 0 {
		return nil, fmt.Errorf("MAX_CONNECTIONS must be positive")
	}
	if cfg.TableCapacity > cfg.MaxConnections {
		return nil, fmt.Errorf("TABLE_CAPACITY (%d) cannot exceed MAX_CONNECTIONS (%d)", cfg.TableCapacity, cfg.MaxConnections)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 500ms or 5m: %w", key, err)
	}
	return d, nil
}
