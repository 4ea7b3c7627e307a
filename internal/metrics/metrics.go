package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillpoint_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tillpoint_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	GateChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillpoint_gate_checks_total",
			Help: "Total number of subscription gate checks",
		},
		[]string{"outcome"},
	)

	AutoBlocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tillpoint_auto_blocks_total",
			Help: "Total number of stores auto-blocked by the gate",
		},
	)

	RenewalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tillpoint_subscription_renewals_total",
			Help: "Total number of subscription renewals applied",
		},
	)

	SalesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillpoint_sales_total",
			Help: "Total number of sales recorded",
		},
		[]string{"source"},
	)

	SyncEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillpoint_sync_entries_total",
			Help: "Total number of offline sale entries processed",
		},
		[]string{"result"},
	)

	InventoryAdjustmentFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tillpoint_inventory_adjustment_failures_total",
			Help: "Total number of failed stock decrements",
		},
	)

	NotifyQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tillpoint_notify_queue_length",
			Help: "Current length of the notification queue",
		},
	)

	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillpoint_notifications_sent_total",
			Help: "Total number of notifications sent",
		},
		[]string{"type", "status"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordGateCheck(outcome string) {
	GateChecksTotal.WithLabelValues(outcome).Inc()
}

func RecordAutoBlock() {
	AutoBlocksTotal.Inc()
}

func RecordRenewal() {
	RenewalsTotal.Inc()
}

func RecordSale(source string) {
	SalesTotal.WithLabelValues(source).Inc()
}

func RecordSyncEntry(result string) {
	SyncEntriesTotal.WithLabelValues(result).Inc()
}

func RecordInventoryAdjustmentFailure() {
	InventoryAdjustmentFailuresTotal.Inc()
}

func RecordNotification(notifType, status string) {
	NotificationsSentTotal.WithLabelValues(notifType, status).Inc()
}
