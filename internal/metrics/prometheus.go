package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "foodplanner"

// Collector holds the Prometheus metrics exposed on /metrics. Each Collector
// has its own registry.
type Collector struct {
	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokens          *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

// NewCollector creates the HTTP, AI token and runtime metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_tokens_total",
				Help:      "Tokens consumed by model calls",
			},
			[]string{"agent", "model", "kind"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"limiter"},
		),
	}

	c.registry.MustRegister(
		c.requestCount,
		c.requestDuration,
		c.tokens,
		c.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveRequest records one finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	c.requestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveTokens adds the tokens of one model call.
func (c *Collector) ObserveTokens(agent, model string, prompt, completion int) {
	c.tokens.WithLabelValues(agent, model, "prompt").Add(float64(prompt))
	c.tokens.WithLabelValues(agent, model, "completion").Add(float64(completion))
}

// ObserveRateLimited counts a request rejected by the named limiter.
func (c *Collector) ObserveRateLimited(limiter string) {
	c.rateLimited.WithLabelValues(limiter).Inc()
}
