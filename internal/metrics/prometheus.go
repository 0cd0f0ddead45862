package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VerificationsTotal counts resolved verifications by final outcome.
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verigate_verifications_total",
			Help: "Total number of resolved verifications",
		},
		[]string{"outcome"},
	)

	// CoalescedRequestsTotal counts requests through the coalescer by role.
	CoalescedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verigate_coalesced_requests_total",
			Help: "Total number of coalesced requests by role",
		},
		[]string{"role"},
	)

	// WebhookReplaysTotal counts webhook deliveries answered from cache.
	WebhookReplaysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verigate_webhook_replays_total",
			Help: "Total number of webhook deliveries replayed from the idempotency cache",
		},
	)

	// RedundantCallbacksTotal counts callbacks for already-terminal records.
	RedundantCallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verigate_redundant_callbacks_total",
			Help: "Total number of callbacks received after the record was already terminal",
		},
	)

	// WaitersActive tracks the number of currently parked long-poll waiters.
	WaitersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verigate_waiters_active",
			Help: "Number of currently registered long-poll waiters",
		},
	)

	// LongPollWaitSeconds tracks how long waiters were parked before resolving.
	LongPollWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "verigate_longpoll_wait_seconds",
			Help:    "Time long-poll waiters spent parked before resolution",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
	)
)
