// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Tracker metrics
	TrackedEntities  *prometheus.GaugeVec
	Subscriptions    *prometheus.GaugeVec
	SubscribeResults *prometheus.CounterVec
	Evictions        *prometheus.CounterVec
	UpdatesBroadcast *prometheus.CounterVec
	ComputeErrors    *prometheus.CounterVec
	RefreshErrors    *prometheus.CounterVec

	// Router metrics
	EventsReceived         prometheus.Counter
	EventsMatched          *prometheus.CounterVec
	EventProcessingLatency prometheus.Histogram
	LastEventBlockHeight   prometheus.Gauge

	// Fan-out metrics
	Deliveries    *prometheus.CounterVec
	WSConnections prometheus.Gauge
	WSCommands    *prometheus.CounterVec

	// Upstream metrics
	UpstreamFetchLatency *prometheus.HistogramVec
	UpstreamRetries      *prometheus.CounterVec
	UpstreamConnected    prometheus.Gauge
	RelayReconnects      prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "sei_tracker"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Tracker metrics
		TrackedEntities: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "tracked_entities",
			Help:      "Current number of tracked entities by kind",
		}, []string{"kind"}),
		Subscriptions: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "subscriptions",
			Help:      "Current number of subscriber registrations by kind",
		}, []string{"kind"}),
		SubscribeResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "subscribe_total",
			Help:      "Total number of subscribe calls by kind and result",
		}, []string{"kind", "result"}),
		Evictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "evictions_total",
			Help:      "Total number of entities evicted after losing their last subscriber",
		}, []string{"kind"}),
		UpdatesBroadcast: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "updates_broadcast_total",
			Help:      "Total number of update cycles broadcast by kind",
		}, []string{"kind"}),
		ComputeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "compute_errors_total",
			Help:      "Total number of metric computations that failed by kind",
		}, []string{"kind"}),
		RefreshErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "refresh_errors_total",
			Help:      "Total number of live snapshot refreshes that failed by kind",
		}, []string{"kind"}),

		// Router metrics
		EventsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "events_received_total",
			Help:      "Total number of upstream events received",
		}),
		EventsMatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "events_matched_total",
			Help:      "Total number of tracked entities touched by upstream events by kind",
		}, []string{"kind"}),
		EventProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "event_processing_seconds",
			Help:      "Time to dispatch one upstream event to all kinds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		LastEventBlockHeight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "last_event_block_height",
			Help:      "Block height of the most recent upstream event",
		}),

		// Fan-out metrics
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "deliveries_total",
			Help:      "Total number of outbound messages by event and result",
		}, []string{"event", "result"}),
		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Current number of subscriber connections",
		}),
		WSCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "commands_total",
			Help:      "Total number of inbound commands by type",
		}, []string{"type"}),

		// Upstream metrics
		UpstreamFetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch latency by kind and operation",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"kind", "operation"}),
		UpstreamRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Total number of upstream fetch retries by kind",
		}, []string{"kind"}),
		UpstreamConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "connected",
			Help:      "1 when the upstream feed is connected",
		}),
		RelayReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "relay_reconnects_total",
			Help:      "Total number of relay stream reconnect attempts",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Database query duration by database and operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// Handler returns the HTTP handler for Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetTracked updates the entity and subscription gauges for a kind.
func SetTracked(kind string, entities, subscriptions int) {
	DefaultMetrics.TrackedEntities.WithLabelValues(kind).Set(float64(entities))
	DefaultMetrics.Subscriptions.WithLabelValues(kind).Set(float64(subscriptions))
}

// RecordSubscribe records the outcome of a subscribe call.
func RecordSubscribe(kind, result string) {
	DefaultMetrics.SubscribeResults.WithLabelValues(kind, result).Inc()
}

// RecordEviction records an entity eviction.
func RecordEviction(kind string) {
	DefaultMetrics.Evictions.WithLabelValues(kind).Inc()
}

// RecordBroadcast records one broadcast update cycle.
func RecordBroadcast(kind string) {
	DefaultMetrics.UpdatesBroadcast.WithLabelValues(kind).Inc()
}

// RecordComputeError records a failed metric computation.
func RecordComputeError(kind string) {
	DefaultMetrics.ComputeErrors.WithLabelValues(kind).Inc()
}

// RecordRefreshError records a failed live refresh.
func RecordRefreshError(kind string) {
	DefaultMetrics.RefreshErrors.WithLabelValues(kind).Inc()
}

// RecordEvent records one processed upstream event.
func RecordEvent(blockHeight int64, seconds float64) {
	DefaultMetrics.EventsReceived.Inc()
	DefaultMetrics.EventProcessingLatency.Observe(seconds)
	if blockHeight > 0 {
		DefaultMetrics.LastEventBlockHeight.Set(float64(blockHeight))
	}
}

// RecordMatches records tracked entities touched by an event.
func RecordMatches(kind string, n int) {
	if n > 0 {
		DefaultMetrics.EventsMatched.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordDelivery records an outbound message outcome.
func RecordDelivery(event string, err error) {
	result := "ok"
	if err != nil {
		result = "dropped"
	}
	DefaultMetrics.Deliveries.WithLabelValues(event, result).Inc()
}

// SetConnections updates the subscriber connection gauge.
func SetConnections(n int) {
	DefaultMetrics.WSConnections.Set(float64(n))
}

// RecordCommand records an inbound command.
func RecordCommand(kind string) {
	DefaultMetrics.WSCommands.WithLabelValues(kind).Inc()
}

// RecordUpstreamFetch records upstream fetch latency.
func RecordUpstreamFetch(kind, operation string, seconds float64) {
	DefaultMetrics.UpstreamFetchLatency.WithLabelValues(kind, operation).Observe(seconds)
}

// RecordUpstreamRetry records an upstream retry.
func RecordUpstreamRetry(kind string) {
	DefaultMetrics.UpstreamRetries.WithLabelValues(kind).Inc()
}

// SetUpstreamConnected updates the upstream connection gauge.
func SetUpstreamConnected(connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	DefaultMetrics.UpstreamConnected.Set(v)
}

// RecordRelayReconnect records a relay reconnect attempt.
func RecordRelayReconnect() {
	DefaultMetrics.RelayReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
