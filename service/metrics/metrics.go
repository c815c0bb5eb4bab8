package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics;
// a nil *Metrics is valid and records nothing.
type Metrics struct {
	// Provider request metrics
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	providerRateLimitHits   *prometheus.CounterVec
	providerPagesPerFetch   *prometheus.HistogramVec

	// Normalization metrics
	recordsNormalizedTotal *prometheus.CounterVec
	recordsDroppedTotal    *prometheus.CounterVec

	// Facade metrics
	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	// Workflow metrics
	syncWorkflowDuration        *prometheus.HistogramVec
	syncWorkflowExecutionsTotal *prometheus.CounterVec

	// Database metrics
	dbQueryDuration          *prometheus.HistogramVec
	dbOperationsTotal        *prometheus.CounterVec
	transactionsWrittenTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		providerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_requests_total",
				Help: "Total number of upstream provider requests by provider, network and status",
			},
			[]string{"provider", "network", "status"},
		),
		providerRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_request_duration_seconds",
				Help:    "Duration of upstream provider requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"provider", "network"},
		),
		providerRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_rate_limit_hits_total",
				Help: "Total number of 429 responses from upstream providers",
			},
			[]string{"provider", "network"},
		),
		providerPagesPerFetch: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_pages_per_fetch",
				Help:    "Number of pages requested per transaction history fetch",
				Buckets: []float64{1, 2, 3, 5, 10, 20},
			},
			[]string{"provider"},
		),

		recordsNormalizedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_normalized_total",
				Help: "Total number of provider records converted to canonical transactions",
			},
			[]string{"provider", "tx_type"},
		),
		recordsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_dropped_total",
				Help: "Total number of provider records dropped during normalization",
			},
			[]string{"provider", "reason"},
		),

		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facade_fetches_total",
				Help: "Total number of facade calls by currency, operation and outcome",
			},
			[]string{"currency", "operation", "outcome"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "facade_fetch_duration_seconds",
				Help:    "Duration of facade calls in seconds, including pagination",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"currency", "operation"},
		),

		syncWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_activity_duration_seconds",
				Help:    "Duration of sync workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "currency"},
		),
		syncWorkflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_activity_executions_total",
				Help: "Total number of sync workflow activity executions",
			},
			[]string{"activity", "status"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),
		transactionsWrittenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_written_total",
				Help: "Total number of canonical transactions written to the database",
			},
			[]string{"currency"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"stream", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"stream"},
		),
	}
}

// Provider request helpers

// RecordProviderRequest records one upstream request. statusCode is 0 for
// transport failures and timeouts.
func (m *Metrics) RecordProviderRequest(provider, network string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	if statusCode == 0 {
		status = "error"
	}
	m.providerRequestsTotal.WithLabelValues(provider, network, status).Inc()
	m.providerRequestDuration.WithLabelValues(provider, network).Observe(duration)
	if statusCode == 429 {
		m.providerRateLimitHits.WithLabelValues(provider, network).Inc()
	}
}

// RecordPages records how many pages a history fetch walked.
func (m *Metrics) RecordPages(provider string, pages int) {
	if m == nil {
		return
	}
	m.providerPagesPerFetch.WithLabelValues(provider).Observe(float64(pages))
}

// Normalization helpers

// RecordNormalized records canonical transactions emitted for a direction.
func (m *Metrics) RecordNormalized(provider, txType string, count int) {
	if m == nil {
		return
	}
	m.recordsNormalizedTotal.WithLabelValues(provider, txType).Add(float64(count))
}

// RecordDropped records provider records dropped for reason
// ("filtered", "unparseable", "duplicate").
func (m *Metrics) RecordDropped(provider, reason string, count int) {
	if m == nil {
		return
	}
	if count == 0 {
		return
	}
	m.recordsDroppedTotal.WithLabelValues(provider, reason).Add(float64(count))
}

// Facade helpers

// RecordFetch records a facade call outcome ("ok", "empty", "provider_error",
// "config_error", "unsupported").
func (m *Metrics) RecordFetch(currency, operation, outcome string, duration float64) {
	if m == nil {
		return
	}
	m.fetchesTotal.WithLabelValues(currency, operation, outcome).Inc()
	m.fetchDuration.WithLabelValues(currency, operation).Observe(duration)
}

// Workflow helpers

// RecordActivity records a sync activity execution.
func (m *Metrics) RecordActivity(activity, currency string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.syncWorkflowDuration.WithLabelValues(activity, currency).Observe(duration)
	m.syncWorkflowExecutionsTotal.WithLabelValues(activity, status).Inc()
}

// Database helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordTransactionsWritten records transactions newly written to the database.
func (m *Metrics) RecordTransactionsWritten(currency string, count int) {
	if m == nil {
		return
	}
	m.transactionsWrittenTotal.WithLabelValues(currency).Add(float64(count))
}

// HTTP helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(stream, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(stream, status).Inc()
	m.natsPublishDuration.WithLabelValues(stream).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code == 429:
		return "429"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
