package actioncable

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionState tracks whether the Connection currently considers
	// itself open (1) or disconnected (0).
	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "actioncable_connection_state",
		Help: "1 if the connection is open, 0 if disconnected",
	})

	// ReconnectAttemptsTotal counts every stale poll tick that bumps the
	// monitor's reconnect-attempt counter, including ticks whose reopen is
	// skipped because the socket is already known to be down. Reopens
	// triggered by a visibility transition are not counted.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actioncable_reconnect_attempts_total",
		Help: "Total number of reconnect attempts triggered by the monitor",
	})

	// DialFailuresTotal counts failed dial attempts (including ones
	// absorbed by the retry helper around connect).
	DialFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actioncable_dial_failures_total",
		Help: "Total number of failed WebSocket dial attempts",
	})

	// FramesReceivedTotal counts inbound frames by type.
	FramesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actioncable_frames_received_total",
			Help: "Total number of inbound frames received, by type",
		},
		[]string{"type"},
	)

	// DispatchLatencySeconds tracks how long a single inbound frame takes
	// to dispatch to the Subscriptions registry.
	DispatchLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "actioncable_dispatch_latency_seconds",
		Help:    "Latency of dispatching one inbound frame to subscriptions",
		Buckets: prometheus.DefBuckets,
	})

	// SubscriptionCount tracks the number of tracked Subscription entries
	// (including duplicates sharing an identifier).
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "actioncable_subscription_count",
		Help: "Number of tracked subscriptions",
	})

	// RejectedSubscriptionsTotal counts reject_subscription frames handled.
	RejectedSubscriptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actioncable_rejected_subscriptions_total",
		Help: "Total number of subscriptions rejected by the server",
	})

	// PoolActiveConsumers tracks how many Consumers a Pool currently owns.
	PoolActiveConsumers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "actioncable_pool_active_consumers",
		Help: "Number of consumers held open by a Pool",
	})

	// PoolShardDistribution tracks how many subscriptions land on each
	// shard, to catch a skewed hash distribution.
	PoolShardDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "actioncable_pool_shard_distribution",
		Help:    "Distribution of subscriptions across pool shards",
		Buckets: prometheus.LinearBuckets(0, 50, 10),
	})
)
