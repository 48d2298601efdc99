package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "captionflow_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Version Metrics
	VersionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionflow_versions_created_total",
			Help: "Total number of subtitle versions created",
		},
		[]string{"origin"},
	)

	VersionConflictRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "captionflow_version_conflict_retries_total",
			Help: "Total number of version number conflicts retried",
		},
	)

	VersionPayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "captionflow_version_payload_bytes",
			Help:    "Size of serialized subtitle payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10), // 256B to ~64MB
		},
	)

	// Language Metrics
	LanguagesNukedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "captionflow_languages_nuked_total",
			Help: "Total number of languages soft-deleted",
		},
	)

	LanguagesForkedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "captionflow_languages_forked_total",
			Help: "Total number of translations marked as forked",
		},
	)

	// Signal Metrics
	SignalsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionflow_signals_emitted_total",
			Help: "Total number of signals emitted",
		},
		[]string{"signal"},
	)

	// Action Metrics
	ActionsPerformedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionflow_actions_performed_total",
			Help: "Total number of workflow actions performed",
		},
		[]string{"action", "status"},
	)

	// Tip Cache Metrics
	TipCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionflow_tip_cache_hits_total",
			Help: "Total number of tip cache hits",
		},
		[]string{"tip_type"},
	)

	TipCacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionflow_tip_cache_misses_total",
			Help: "Total number of tip cache misses",
		},
		[]string{"tip_type"},
	)

	// Archive Metrics
	ArchiveOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionflow_archive_operations_total",
			Help: "Total number of archive storage operations",
		},
		[]string{"operation", "status"},
	)

	ArchiveOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "captionflow_archive_operation_duration_seconds",
			Help:    "Archive operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"operation"},
	)

	ArchiveBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionflow_archive_bytes_transferred_total",
			Help: "Total bytes transferred to/from archive storage",
		},
		[]string{"operation"},
	)

	// Webhook Metrics
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionflow_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"event", "status"},
	)

	// Database Metrics
	DatabaseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "captionflow_database_connections_active",
			Help: "Number of active database connections",
		},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordVersionCreated records a new subtitle version
func RecordVersionCreated(origin string, payloadBytes int) {
	VersionsCreatedTotal.WithLabelValues(origin).Inc()
	VersionPayloadBytes.Observe(float64(payloadBytes))
}

// RecordActionPerformed records a workflow action outcome
func RecordActionPerformed(action, status string) {
	ActionsPerformedTotal.WithLabelValues(action, status).Inc()
}

// RecordTipCacheAccess records a tip cache hit or miss
func RecordTipCacheAccess(tipType string, hit bool) {
	if hit {
		TipCacheHitsTotal.WithLabelValues(tipType).Inc()
	} else {
		TipCacheMissesTotal.WithLabelValues(tipType).Inc()
	}
}

// RecordArchiveOperation records metrics for an archive storage operation
func RecordArchiveOperation(operation, status string, duration float64, bytes int64) {
	ArchiveOperationsTotal.WithLabelValues(operation, status).Inc()
	ArchiveOperationDuration.WithLabelValues(operation).Observe(duration)
	if bytes > 0 {
		ArchiveBytesTransferred.WithLabelValues(operation).Add(float64(bytes))
	}
}

// RecordWebhookDelivery records a webhook delivery attempt
func RecordWebhookDelivery(event, status string) {
	WebhookDeliveriesTotal.WithLabelValues(event, status).Inc()
}
