// Package metrics exposes prometheus counters fed by auth activity events
// and HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/fenixedu/fenix-auth"
)

type Metrics struct {
	registry *prometheus.Registry

	Events         *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	GateRejections *prometheus.CounterVec
	Requests       *prometheus.CounterVec
	Latency        *prometheus.HistogramVec
}

var _ auth.ActivitySink = (*Metrics)(nil)

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fenix_auth_events_total",
			Help: "Activity events by type",
		}, []string{"type"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fenix_auth_status_transitions_total",
			Help: "Account status transitions",
		}, []string{"from", "to"}),
		GateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fenix_auth_gate_rejections_total",
			Help: "Requests rejected by the access gate",
		}, []string{"reason"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fenix_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fenix_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.Events,
		m.Transitions,
		m.GateRejections,
		m.Requests,
		m.Latency,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Record implements auth.ActivitySink.
func (m *Metrics) Record(_ context.Context, event auth.ActivityEvent) error {
	m.Events.WithLabelValues(string(event.EventType)).Inc()

	switch event.EventType {
	case auth.ActivityEventUserStatusChanged:
		m.Transitions.WithLabelValues(string(event.FromStatus), string(event.ToStatus)).Inc()
	case auth.ActivityEventGateRejected:
		reason, _ := event.Metadata["reason"].(string)
		if reason == "" {
			reason = "unknown"
		}
		m.GateRejections.WithLabelValues(reason).Inc()
	}
	return nil
}

// Middleware counts requests by matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		// Errors are rendered here so the recorded status is the final one.
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		route := c.Route().Path
		status := strconv.Itoa(c.Response().StatusCode())
		m.Requests.WithLabelValues(c.Method(), route, status).Inc()
		m.Latency.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return nil
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
