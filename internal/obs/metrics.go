package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	accessChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_checks_total",
			Help: "Document access checks, labelled by outcome.",
		},
		[]string{"outcome"},
	)

	accessDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_denials_total",
			Help: "Denied access checks by denial reason.",
		},
		[]string{"reason"},
	)

	repairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_repairs_total",
			Help: "Reconciliation repair actions by kind and result.",
		},
		[]string{"kind", "result"},
	)

	chainCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_rpc_calls_total",
			Help: "TRON RPC calls by method and result.",
		},
		[]string{"method", "result"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		accessChecksTotal, accessDenialsTotal, repairsTotal, chainCallsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAccessCheck records the outcome of one access check.
func ObserveAccessCheck(granted bool, denialReason string) {
	outcome := "granted"
	if !granted {
		outcome = "denied"
		if denialReason != "" {
			accessDenialsTotal.WithLabelValues(denialReason).Inc()
		}
	}
	accessChecksTotal.WithLabelValues(outcome).Inc()
}

// ObserveRepair records one reconciliation repair action.
func ObserveRepair(kind, result string) {
	repairsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveChainCall records one chain RPC call.
func ObserveChainCall(method, result string) {
	chainCallsTotal.WithLabelValues(method, result).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code written downstream.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
