package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total messages persisted",
		},
		[]string{"kind"}, // "text", "image" or "file"
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_deleted_total",
			Help: "Total messages deleted by their sender",
		},
	)

	AttachmentsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_attachments_stored_total",
			Help: "Total attachments written to storage",
		},
		[]string{"mode"}, // "local" or "remote"
	)

	AttachmentCleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_attachment_cleanup_failures_total",
			Help: "Local attachment removals that failed and were ignored",
		},
	)

	ContactsHidden = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_contacts_hidden_total",
			Help: "Total hide-contact requests",
		},
	)

	// Realtime metrics
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_deliveries_total",
			Help: "Realtime event deliveries by outcome",
		},
		[]string{"event", "outcome"}, // outcome: "delivered", "offline" or "dropped"
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Users with a live realtime connection",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
