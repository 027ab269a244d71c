// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "backoffice"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPStatusClass = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_by_class_total",
			Help:      "HTTP responses grouped by status class (2xx, 4xx, 5xx)",
		},
		[]string{"class"},
	)

	// OnboardingEvents counts sign-up and invite transitions by event name
	// (code_requested, code_verified, tenant_created, invite_created,
	// invite_accepted, login, password_reset).
	OnboardingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "onboarding_events_total",
			Help:      "Onboarding state transitions",
		},
		[]string{"event"},
	)

	// AuthzDenials counts requests refused by a gate.
	AuthzDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_denials_total",
			Help:      "Requests denied by role, feature or platform gates",
		},
		[]string{"gate"},
	)
)

var registerOnce sync.Once

// Register adds every collector to reg (prometheus.DefaultRegisterer when
// nil).  Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(HTTPRequestsTotal, HTTPRequestDuration, HTTPStatusClass, OnboardingEvents, AuthzDenials)
	})
}

// Onboarding increments the onboarding counter for event.
func Onboarding(event string) { OnboardingEvents.WithLabelValues(event).Inc() }

// Denied increments the denial counter for gate ("role", "feature", "platform", "team").
func Denied(gate string) { AuthzDenials.WithLabelValues(gate).Inc() }

// Middleware records request count, latency and status class.  The route
// template (c.Path) is used as the path label to keep cardinality bounded.
func Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		status := c.Response().Status
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request().Method
		HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		HTTPStatusClass.WithLabelValues(strconv.Itoa(status/100) + "xx").Inc()
		return nil
	}
}
