package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type httpMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	rpcCallsTotal    *prometheus.CounterVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	promautoFactory := promauto.With(reg)
	return &httpMetrics{
		requestsTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pow_api_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: promautoFactory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pow_api_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		requestsInFlight: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pow_api_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		rpcCallsTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pow_api_rpc_calls_total",
				Help: "Total number of JSON-RPC calls by method and outcome",
			},
			[]string{"method", "status"},
		),
	}
}

// middleware records HTTP metrics.
func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}
		status := strconv.Itoa(ww.Status())
		m.requestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *httpMetrics) rpcCall(method string, resp *Response) {
	status := "success"
	if resp.Error != nil {
		status = "error"
	}
	m.rpcCallsTotal.WithLabelValues(method, status).Inc()
}
