package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/crowdwatch-api/internal/models"
)

// Login outcomes recorded by the auth service.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeInactive           = "inactive"
	OutcomeError              = "error"
)

// MetricsService encapsulates Prometheus instrumentation. Every method is
// safe to call on a nil receiver so tests and tools can skip metrics.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	logins          *prometheus.CounterVec
	lockouts        *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	signups         prometheus.Counter
	rateLimited     prometheus.Counter
	sweptTokens     prometheus.Counter
	sweepFailures   prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Login attempts by account kind and outcome",
	}, []string{"kind", "outcome"})

	lockouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_account_lockouts_total",
		Help: "Accounts locked after repeated failed logins",
	}, []string{"kind"})

	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_refreshes_total",
		Help: "Refresh token exchanges by outcome",
	}, []string{"outcome"})

	signups := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_signups_total",
		Help: "Accounts created through signup",
	})

	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_login_rate_limited_total",
		Help: "Login requests rejected by the per-IP limiter",
	})

	sweptTokens := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_tokens_swept_total",
		Help: "Expired refresh tokens removed by the sweeper",
	})

	sweepFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_token_sweep_failures_total",
		Help: "Sweeper runs that failed",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, logins, lockouts, refreshes, signups, rateLimited, sweptTokens, sweepFailures, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		logins:          logins,
		lockouts:        lockouts,
		refreshes:       refreshes,
		signups:         signups,
		rateLimited:     rateLimited,
		sweptTokens:     sweptTokens,
		sweepFailures:   sweepFailures,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordLogin counts a login attempt.
func (m *MetricsService) RecordLogin(kind models.AccountKind, outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(string(kind), outcome).Inc()
}

// RecordLockout counts an account transitioning to locked.
func (m *MetricsService) RecordLockout(kind models.AccountKind) {
	if m == nil {
		return
	}
	m.lockouts.WithLabelValues(string(kind)).Inc()
}

// RecordRefresh counts a refresh exchange.
func (m *MetricsService) RecordRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// RecordSignup counts a created account.
func (m *MetricsService) RecordSignup() {
	if m == nil {
		return
	}
	m.signups.Inc()
}

// RecordRateLimited counts a throttled login request.
func (m *MetricsService) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// RecordSweep counts removed tokens or a failed run.
func (m *MetricsService) RecordSweep(removed int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sweepFailures.Inc()
		return
	}
	m.sweptTokens.Add(float64(removed))
}
