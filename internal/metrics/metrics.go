// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustream_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edustream_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// LoginAttemptsTotal counts both login steps; step is "password" or
	// "otp".
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustream_login_attempts_total",
			Help: "Total number of login attempts by step and result.",
		},
		[]string{"step", "result"},
	)

	EnrollmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustream_enrollments_total",
			Help: "Total number of enrollments created, by purchase path.",
		},
		[]string{"path"},
	)

	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustream_gateway_requests_total",
			Help: "Total number of payment gateway calls.",
		},
		[]string{"operation", "result"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustream_webhook_events_total",
			Help: "Total number of payment gateway webhook events received.",
		},
		[]string{"event_type"},
	)

	AccessDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustream_access_denied_total",
			Help: "Total number of content requests refused by the access gate.",
		},
		[]string{"reason"},
	)

	NotificationJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustream_notification_jobs_total",
			Help: "Total number of notification jobs processed.",
		},
		[]string{"topic", "result"},
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edustream_rate_limited_requests_total",
			Help: "Total number of requests rejected by the per-IP rate limiter.",
		},
	)

	PanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edustream_http_panics_total",
			Help: "Total number of handler panics recovered.",
		},
	)
)

// MustRegister registers every collector with the default registry. Call
// it once from main.
func MustRegister() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		LoginAttemptsTotal,
		EnrollmentsTotal,
		GatewayRequestsTotal,
		WebhookEventsTotal,
		AccessDeniedTotal,
		NotificationJobs,
		RateLimitedTotal,
		PanicsTotal,
	)
}
