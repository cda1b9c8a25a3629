package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gdrive_storage"

// Outcome labels for relay operations
const (
	OutcomeSuccess      = "success"
	OutcomeFailed       = "failed"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
)

// Metrics provides a self-contained Prometheus registry with HTTP and relay collectors.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	reg      *prometheus.Registry
	inflight prometheus.Gauge
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	operations        *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	transferredBytes  *prometheus.CounterVec
	credentialsValid  prometheus.Gauge
	credentialsProbes *prometheus.CounterVec
}

// New creates a Metrics instance with a fresh registry and registers collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of inflight HTTP requests.",
	})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests processed, partitioned by status code and method.",
	}, []string{"code", "method"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Histogram of latencies for HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"code", "method"})

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "operations_total",
		Help:      "Total number of relay operations by outcome.",
	}, []string{"operation", "outcome"})
	operationLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "operation_duration_seconds",
		Help:      "Histogram of relay operation durations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	transferredBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "bytes_total",
		Help:      "Total bytes moved to or from the provider.",
	}, []string{"direction"}) // direction = "upload" | "download"
	credentialsValid := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "credentials_valid",
		Help:      "1 when the last credential probe succeeded, 0 otherwise.",
	})
	credentialsProbes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "credential_probes_total",
		Help:      "Total number of credential probes by result.",
	}, []string{"result"}) // result = "ok" | "error"

	_ = reg.Register(inflight)
	_ = reg.Register(requests)
	_ = reg.Register(latency)
	_ = reg.Register(operations)
	_ = reg.Register(operationLatency)
	_ = reg.Register(transferredBytes)
	_ = reg.Register(credentialsValid)
	_ = reg.Register(credentialsProbes)

	return &Metrics{
		reg:               reg,
		inflight:          inflight,
		requests:          requests,
		latency:           latency,
		operations:        operations,
		operationLatency:  operationLatency,
		transferredBytes:  transferredBytes,
		credentialsValid:  credentialsValid,
		credentialsProbes: credentialsProbes,
	}
}

// Handler returns an http.Handler that serves Prometheus metrics using the internal registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// statusRecorder captures the HTTP status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware wraps an http.Handler to collect basic HTTP metrics:
// - inflight gauge
// - requests_total counter (labels: method, code)
// - request_duration_seconds histogram (labels: method, code)
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		method := r.Method
		code := strconv.Itoa(rec.status)
		elapsed := time.Since(start).Seconds()

		m.requests.WithLabelValues(code, method).Inc()
		m.latency.WithLabelValues(code, method).Observe(elapsed)
	})
}

// ObserveOperation records one relay operation and its duration.
func (m *Metrics) ObserveOperation(operation, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.operationLatency.WithLabelValues(operation).Observe(dur.Seconds())
}

// AddUploadedBytes counts bytes sent to the provider.
func (m *Metrics) AddUploadedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.transferredBytes.WithLabelValues("upload").Add(float64(n))
}

// AddDownloadedBytes counts bytes fetched from the provider.
func (m *Metrics) AddDownloadedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.transferredBytes.WithLabelValues("download").Add(float64(n))
}

// SetCredentialsValid records the result of a credential probe.
func (m *Metrics) SetCredentialsValid(valid bool) {
	if m == nil {
		return
	}
	if valid {
		m.credentialsValid.Set(1)
		m.credentialsProbes.WithLabelValues("ok").Inc()
		return
	}
	m.credentialsValid.Set(0)
	m.credentialsProbes.WithLabelValues("error").Inc()
}

// Registry returns the underlying Prometheus registry for advanced usage.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
