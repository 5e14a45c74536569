// Package metrics exposes Prometheus collectors for the liveness service.
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
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	probeChecksTotal            *prometheus.CounterVec
	probeDurationSeconds        *prometheus.HistogramVec
	rateLimitDelaysSeconds      *prometheus.HistogramVec
	scheduledTriggersTotal      *prometheus.CounterVec
	notificationDeliveriesTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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

		probeChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liveness_probe_checks_total",
				Help: "Total channel probes, labeled by status and failure reason.",
			},
			[]string{"status", "reason"},
		)

		probeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liveness_probe_duration_seconds",
				Help:    "Histogram of channel probe durations, labeled by status.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
			},
			[]string{"status"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liveness_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		scheduledTriggersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liveness_scheduled_triggers_total",
				Help: "Scheduled run triggers, labeled by result.",
			},
			[]string{"result"},
		)

		notificationDeliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liveness_notification_deliveries_total",
				Help: "Report deliveries, labeled by notifier and result.",
			},
			[]string{"notifier", "result"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
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
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveProbe records a finished channel probe. reason is empty for online
// probes and must come from a bounded set otherwise.
func ObserveProbe(status, reason string, duration time.Duration) {
	Init()
	probeChecksTotal.WithLabelValues(status, reason).Inc()
	probeDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveScheduledTrigger counts a scheduler firing by result
// (started, skipped, failed).
func ObserveScheduledTrigger(result string) {
	Init()
	scheduledTriggersTotal.WithLabelValues(result).Inc()
}

// ObserveNotification counts a report delivery attempt.
func ObserveNotification(notifier string, err error) {
	Init()
	result := "success"
	if err != nil {
		result = "error"
	}
	notificationDeliveriesTotal.WithLabelValues(notifier, result).Inc()
}
