// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerBytesTotal             *prometheus.CounterVec
	crawlerFrontierDecisionsTotal *prometheus.CounterVec
	crawlerProductsTotal          *prometheus.CounterVec
	crawlerRetriesTotal           prometheus.Counter
	crawlerRetriesExhaustedTotal  prometheus.Counter
	crawlerCycleRestartsTotal     prometheus.Counter
	crawlerQueueIdle              *prometheus.GaugeVec
	crawlerRateLimitDelaysSeconds prometheus.Histogram
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerFrontierDecisionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_frontier_decisions_total",
				Help: "Frontier admission decisions, labeled by reason.",
			},
			[]string{"reason"},
		)

		crawlerProductsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_products_total",
				Help: "Product parse outcomes, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_retries_total",
				Help: "Total number of retried attempts.",
			},
		)

		crawlerRetriesExhaustedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_retries_exhausted_total",
				Help: "Total number of operations abandoned after the last attempt.",
			},
		)

		crawlerCycleRestartsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_cycle_restarts_total",
				Help: "Total number of crawl cycles started by the scheduler.",
			},
		)

		crawlerQueueIdle = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crawler_queue_idle",
				Help: "1 when the named queue is idle, 0 otherwise.",
			},
			[]string{"queue"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveFetch records a page fetch.
func ObserveFetch(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveFrontierDecision counts a frontier admission decision.
func ObserveFrontierDecision(reason string) {
	Init()
	crawlerFrontierDecisionsTotal.WithLabelValues(reason).Inc()
}

// ObserveProduct counts a product parse outcome.
func ObserveProduct(outcome string) {
	Init()
	crawlerProductsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetry counts a failed attempt that will be retried.
func ObserveRetry() {
	Init()
	crawlerRetriesTotal.Inc()
}

// ObserveRetryExhausted counts an operation abandoned after its last attempt.
func ObserveRetryExhausted() {
	Init()
	crawlerRetriesExhaustedTotal.Inc()
}

// ObserveCycleRestart counts a crawl cycle restart.
func ObserveCycleRestart() {
	Init()
	crawlerCycleRestartsTotal.Inc()
}

// SetQueueIdle records the idle flag of a queue.
func SetQueueIdle(queue string, idle bool) {
	Init()
	v := 0.0
	if idle {
		v = 1
	}
	crawlerQueueIdle.WithLabelValues(queue).Set(v)
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
