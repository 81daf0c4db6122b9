// Package metrics holds the Prometheus collectors exported by the portal.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	// Backend (ITP REST API) calls
	BackendRequests *prometheus.CounterVec   // by endpoint, method, status
	BackendDuration *prometheus.HistogramVec // by endpoint, method
	TokenRefreshes  *prometheus.CounterVec   // staff refresh outcomes: success, failure, shared
	CustomerLogouts *prometheus.CounterVec   // forced customer logouts by reason

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Security metrics
	RateLimitHits *prometheus.CounterVec // by scope (global, otp)

	// Session store
	SessionsPurged prometheus.Counter
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		BackendRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itp_backend_requests_total",
				Help: "Total number of ITP backend calls by endpoint, method and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),

		BackendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "itp_backend_request_duration_seconds",
				Help:    "ITP backend call latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),

		TokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itp_token_refreshes_total",
				Help: "Staff token refresh attempts by outcome",
			},
			[]string{"outcome"},
		),

		CustomerLogouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itp_customer_logouts_total",
				Help: "Customer portal logouts by reason (user, expired, unauthorized)",
			},
			[]string{"reason"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),

		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "security_rate_limit_hits_total",
				Help: "Total number of rate limit violations by scope",
			},
			[]string{"scope"},
		),

		SessionsPurged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "itp_session_values_purged_total",
				Help: "Stale session values removed by the janitor",
			},
		),
	}
}

// ObserveBackend records one backend call.
func (m *Metrics) ObserveBackend(endpoint, method, status string, d time.Duration) {
	m.BackendRequests.WithLabelValues(endpoint, method, status).Inc()
	m.BackendDuration.WithLabelValues(endpoint, method).Observe(d.Seconds())
}

// RecordTokenRefresh counts a refresh outcome.
func (m *Metrics) RecordTokenRefresh(outcome string) {
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordCustomerLogout counts a customer logout.
func (m *Metrics) RecordCustomerLogout(reason string) {
	m.CustomerLogouts.WithLabelValues(reason).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordRateLimitHit counts a rejected request.
func (m *Metrics) RecordRateLimitHit(scope string) {
	m.RateLimitHits.WithLabelValues(scope).Inc()
}
