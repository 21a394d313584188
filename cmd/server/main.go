package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/auth"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/batch"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/broadcast"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/compression"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/config"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/platform/logging"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/pool"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/server"
)

const (
	shutdownTimeout = 15 * time.Second
	drainTimeout    = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Starting session server", "env", cfg.AppEnv, "port", cfg.Port)

	clock := clockwork.NewRealClock()

	negotiator := compression.NewNegotiator(cfg.CompressionEnabled, cfg.CompressionThreshold)
	batcher := batch.NewBatcher(clock, cfg.BatchWindow, cfg.BatchMaxMessages, cfg.BatchMaxBytes)

	registry := pool.NewRegistry(pool.Options{
		TableCapacity:  cfg.TableCapacity,
		MaxConnections: cfg.MaxConnections,
		Clock:          clock,
		Negotiator:     negotiator,
		Batcher:        batcher,
	})

	reaper := pool.NewIdleReaper(registry, clock, cfg.IdleTimeout)
	reaper.Start()

	manager := pool.NewManager(registry, reaper, clock, drainTimeout)
	manager.AddFlusher(batcher)

	fanout := broadcast.NewFanout(clock, cfg.BroadcastDelay, broadcast.DelivererFunc(
		func(tableID string, env domain.Envelope) {
			registry.BroadcastToTable(tableID, env, pool.SendOptions{})
		},
	), manager.TrackPending)
	manager.AddStopper(fanout)

	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()

	var relay *broadcast.Relay
	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to parse REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = goredis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		cancel()

		relay = broadcast.NewRelay(redisClient, fanout)
		go relay.Start(relayCtx)
		slog.Info("Cross-instance relay enabled", "instance_id", relay.InstanceID())
	}

	authClient := auth.NewClient(cfg.AuthURL)
	srv := server.NewServer(cfg, registry, manager, fanout, relay, negotiator, authClient, clock)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting upgrades first, then drain the pool.
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	if err := manager.Shutdown(ctx); err != nil {
		slog.Warn("Pool drain incomplete", "error", err)
	}

	cancelRelay()
	if redisClient != nil {
		_ = redisClient.Close()
	}

	slog.Info("Shutdown complete")
}
