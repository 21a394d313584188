package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pool Metrics
var (
	// PoolActiveConnections tracks currently registered connections
	PoolActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pool_active_connections",
			Help: "Number of currently registered connections",
		},
	)

	// PoolConnectionsTotal tracks total connections admitted
	PoolConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_connections_total",
			Help: "Total connections admitted to the pool",
		},
	)

	// PoolReplacementsTotal tracks connections replaced by a newer one for the same client
	PoolReplacementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_replacements_total",
			Help: "Connections closed because the same client reconnected",
		},
	)

	// PoolIdleEvictionsTotal tracks connections evicted by the idle reaper
	PoolIdleEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_idle_evictions_total",
			Help: "Connections evicted after exceeding the idle timeout",
		},
	)

	// PoolCapacityRejectionsTotal tracks admissions rejected at capacity, by scope
	PoolCapacityRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pool_capacity_rejections_total",
			Help: "Admissions rejected because a capacity limit was hit",
		},
		[]string{"scope"},
	)

	// PoolSendFailuresTotal tracks per-message delivery failures
	PoolSendFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_send_failures_total",
			Help: "Messages that could not be delivered to their connection",
		},
	)

	// PoolMessageSendDuration tracks transport write latency in seconds
	PoolMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pool_message_send_duration_seconds",
			Help:    "Transport write duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)
)

// Broadcast Metrics
var (
	// BroadcastsDeliveredTotal tracks coalesced broadcast flushes delivered
	BroadcastsDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcasts_delivered_total",
			Help: "Delayed broadcast flushes delivered to table members",
		},
	)

	// BroadcastsCoalescedTotal tracks payloads discarded by last-value-wins coalescing
	BroadcastsCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcasts_coalesced_total",
			Help: "Broadcast payloads superseded before their flush timer fired",
		},
	)

	// BroadcastPendingTables tracks tables with a scheduled flush timer
	BroadcastPendingTables = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_pending_tables",
			Help: "Tables currently holding a scheduled broadcast flush",
		},
	)

	// RelayMessagesTotal tracks cross-instance relay traffic by direction and status
	RelayMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Cross-instance relay messages by direction and status",
		},
		[]string{"direction", "status"},
	)
)

// Compression Metrics
var (
	// CompressionMessagesTotal tracks outgoing messages by compression outcome
	CompressionMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compression_messages_total",
			Help: "Outgoing messages by compression outcome",
		},
		[]string{"outcome"},
	)

	// CompressionBytesSavedTotal tracks bytes saved by manual compression
	CompressionBytesSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "compression_bytes_saved_total",
			Help: "Bytes saved by manual deflate compression",
		},
	)

	// DecompressionErrorsTotal tracks malformed compressed frames dropped on receipt
	DecompressionErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "decompression_errors_total",
			Help: "Inbound frames dropped because inflation failed",
		},
	)
)

// Batching Metrics
var (
	// BatchFlushesTotal tracks batch flushes by trigger (window, count, size, close)
	BatchFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_flushes_total",
			Help: "Batch flushes by trigger",
		},
		[]string{"trigger"},
	)

	// BatchSize tracks messages per flushed batch
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batch_size_messages",
			Help:    "Messages per flushed batch",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		},
	)
)

// Handshake Metrics
var (
	// HandshakeRejectionsTotal tracks rejected upgrade attempts by reason
	HandshakeRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_rejections_total",
			Help: "Rejected WebSocket upgrade attempts by reason",
		},
		[]string{"reason"},
	)
)
