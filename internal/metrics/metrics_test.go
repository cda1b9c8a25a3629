package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	m := New()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/", "/", "/missing"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("200", http.MethodGet)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("404", http.MethodGet)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inflight))
}

func TestObserveOperation(t *testing.T) {
	m := New()
	m.ObserveOperation("upload", OutcomeSuccess, 10*time.Millisecond)
	m.ObserveOperation("upload", OutcomeFailed, time.Millisecond)
	m.ObserveOperation("upload", OutcomeSuccess, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.operations.WithLabelValues("upload", OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("upload", OutcomeFailed)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.operationLatency))
}

func TestTransferredBytes(t *testing.T) {
	m := New()
	m.AddUploadedBytes(100)
	m.AddUploadedBytes(0)
	m.AddDownloadedBytes(42)

	assert.Equal(t, float64(100), testutil.ToFloat64(m.transferredBytes.WithLabelValues("upload")))
	assert.Equal(t, float64(42), testutil.ToFloat64(m.transferredBytes.WithLabelValues("download")))
}

func TestSetCredentialsValid(t *testing.T) {
	m := New()
	m.SetCredentialsValid(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.credentialsValid))

	m.SetCredentialsValid(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.credentialsValid))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.credentialsProbes.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.credentialsProbes.WithLabelValues("error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("list", OutcomeSuccess, time.Second)
	m.AddUploadedBytes(1)
	m.AddDownloadedBytes(1)
	m.SetCredentialsValid(true)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveOperation("delete", OutcomeUnauthorized, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `gdrive_storage_relay_operations_total{operation="delete",outcome="unauthorized"} 1`))
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP gdrive_storage_relay_operations_total Total number of relay operations by outcome.
# TYPE gdrive_storage_relay_operations_total counter
gdrive_storage_relay_operations_total{operation="delete",outcome="unauthorized"} 1
`), "gdrive_storage_relay_operations_total"))
}
