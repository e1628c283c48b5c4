package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssignmentTransitions counts lifecycle transitions by target status
	// (pending|approved|rejected|in_progress|completed|cancelled).
	AssignmentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neighborlink_assignment_transitions_total",
			Help: "Total number of assignment lifecycle transitions",
		},
		[]string{"status"},
	)

	// NotificationsDispatched counts persisted notifications by type and
	// whether a live push was delivered (pushed|queued).
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neighborlink_notifications_dispatched_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"type", "delivery"},
	)

	// ChatMessages counts chat messages accepted by message type (text|image|file).
	ChatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neighborlink_chat_messages_total",
			Help: "Total number of chat messages sent",
		},
		[]string{"type"},
	)

	// ConnectedClients tracks live WebSocket connections registered with the hub.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neighborlink_connected_clients",
			Help: "Number of connected realtime clients",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neighborlink_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
