// Package metrics registers the gateway's Prometheus collectors and
// exposes a gin.Handler for GET /metrics. Grounded on the teacher's own
// Prometheus wiring (main.go: `server.GET("/metrics",
// middleware.AdminAuth(), gin.WrapH(promhttp.Handler()))`, gated behind
// admin auth rather than exposed openly), carried over verbatim as this
// package's own Handler contract — the admin-auth gating itself lives in
// internal/httpapi's router setup, alongside the rest of its route table.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestsTotal counts every request the gateway answers, labeled by
// client dialect ("anthropic"/"openai"), resolved upstream model, and
// outcome ("success"/"error").
var RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "converse_gateway",
	Name:      "requests_total",
	Help:      "Total translated requests handled, by dialect, model and outcome.",
}, []string{"dialect", "model", "outcome"})

// RequestDuration observes end-to-end request latency in seconds, labeled
// the same way as RequestsTotal.
var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "converse_gateway",
	Name:      "request_duration_seconds",
	Help:      "End-to-end request latency in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"dialect", "model"})

// TokensTotal counts tokens billed, labeled by model and token class
// ("input"/"output"/"cache_read"/"cache_write").
var TokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "converse_gateway",
	Name:      "tokens_total",
	Help:      "Tokens billed, by model and token class.",
}, []string{"model", "class"})

// UpstreamErrorsTotal counts classified Bedrock Converse failures, labeled
// by the apierr.Kind they were classified into.
var UpstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "converse_gateway",
	Name:      "upstream_errors_total",
	Help:      "Upstream Converse/ConverseStream failures, by classified error kind.",
}, []string{"kind"})

// RateLimitRejectionsTotal counts requests rejected by the per-key token
// bucket limiter.
var RateLimitRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "converse_gateway",
	Name:      "rate_limit_rejections_total",
	Help:      "Requests rejected by the per-key rate limiter.",
})

// KeyDeactivationsTotal counts keys auto-deactivated on budget overrun.
var KeyDeactivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "converse_gateway",
	Name:      "key_deactivations_total",
	Help:      "API keys deactivated by a budget overrun.",
})

// Handler returns the standard promhttp exposition handler for the
// default registry every promauto metric above registers into.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one completed request's outcome and latency.
func ObserveRequest(dialect, model, outcome string, d time.Duration) {
	RequestsTotal.WithLabelValues(dialect, model, outcome).Inc()
	RequestDuration.WithLabelValues(dialect, model).Observe(d.Seconds())
}

// ObserveTokens records one request's billed token usage.
func ObserveTokens(model string, input, output, cacheRead, cacheWrite int) {
	if input > 0 {
		TokensTotal.WithLabelValues(model, "input").Add(float64(input))
	}
	if output > 0 {
		TokensTotal.WithLabelValues(model, "output").Add(float64(output))
	}
	if cacheRead > 0 {
		TokensTotal.WithLabelValues(model, "cache_read").Add(float64(cacheRead))
	}
	if cacheWrite > 0 {
		TokensTotal.WithLabelValues(model, "cache_write").Add(float64(cacheWrite))
	}
}
