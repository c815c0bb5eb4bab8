package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordProviderRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordProviderRequest("tzkt", "mainnet", 200, 0.1)
	m.RecordProviderRequest("tzkt", "mainnet", 429, 0.1)
	m.RecordProviderRequest("tzkt", "mainnet", 0, 0.1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequestsTotal.WithLabelValues("tzkt", "mainnet", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequestsTotal.WithLabelValues("tzkt", "mainnet", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequestsTotal.WithLabelValues("tzkt", "mainnet", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRateLimitHits.WithLabelValues("tzkt", "mainnet")))
}

func TestNilMetricsRecordsNothing(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordProviderRequest("tzkt", "mainnet", 200, 0.1)
		m.RecordPages("tzkt", 2)
		m.RecordNormalized("tzkt", "inbound-transaction", 1)
		m.RecordDropped("tzkt", "filtered", 1)
		m.RecordFetch("XTZ", "transactions", "success", 0.1)
		m.RecordActivity("FetchTransactions", "XTZ", 0.1, nil)
		m.RecordDBQuery("insert", "transactions", 0.1, nil)
		m.RecordTransactionsWritten("XTZ", 1)
		m.RecordHTTPRequest("get_transactions", "GET", 200, 0.1)
		m.RecordNATSPublish("TRANSACTIONS", "success", 0.1)
	})
}

func TestRecordDropped_IgnoresZero(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDropped("xrpl", "filtered", 0)
	m.RecordDropped("xrpl", "unparseable", 2)

	assert.Equal(t, 1, testutil.CollectAndCount(m.recordsDroppedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.recordsDroppedTotal.WithLabelValues("xrpl", "unparseable")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	handler := HTTPMetricsMiddleware(m, "/test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/test", "GET", "4xx")))
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	handler := HTTPMetricsMiddleware(nil, "/test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))
	})
}
