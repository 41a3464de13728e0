// Package metrics exposes Prometheus counters for the token endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	TokenTypeAccess = "access_token"
	TokenTypeID     = "id_token"
)

// Collector holds the server's metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	tokenExchangesTotal *prometheus.CounterVec
	tokensIssuedTotal   *prometheus.CounterVec
	expiredCodesPurged  prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth2_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oauth2_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		tokenExchangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth2_token_exchanges_total",
				Help: "Total number of authorization_code exchanges by outcome",
			},
			[]string{"status", "error_code"},
		),

		tokensIssuedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth2_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{"token_type"},
		),

		expiredCodesPurged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "oauth2_expired_code_purges_total",
				Help: "Total number of expired authorization code purges",
			},
		),
	}
}

// Registry returns the registry the collector's metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	c.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordExchange records the outcome of a token exchange. errorCode is empty on success.
func (c *Collector) RecordExchange(errorCode string) {
	if errorCode == "" {
		c.tokenExchangesTotal.WithLabelValues(StatusSuccess, "none").Inc()
		return
	}
	c.tokenExchangesTotal.WithLabelValues(StatusError, errorCode).Inc()
}

func (c *Collector) RecordTokenIssued(tokenType string) {
	c.tokensIssuedTotal.WithLabelValues(tokenType).Inc()
}

func (c *Collector) RecordExpiredCodePurge() {
	c.expiredCodesPurged.Inc()
}

// Middleware records request counts and durations per endpoint.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		c.RecordHTTPRequest(r.Method, endpointFromPath(r.URL.Path), rw.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// endpointFromPath keeps label cardinality bounded.
func endpointFromPath(path string) string {
	switch path {
	case "/oauth2/token":
		return "token"
	case "/.well-known/openid-configuration":
		return "discovery"
	case "/.well-known/jwks.json":
		return "jwks"
	case "/healthz":
		return "health"
	case "/metrics":
		return "metrics"
	default:
		return "other"
	}
}
