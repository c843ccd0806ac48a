// Package metrics exposes Prometheus instruments for access decisions, the
// audit ledger, registry reloads and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medcard"

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	accessDecisions     *prometheus.CounterVec
	ledgerWriteFailures prometheus.Counter
	registryReloads     *prometheus.CounterVec
	registryRecords     *prometheus.GaugeVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		accessDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_decisions_total",
				Help:      "Access attempts by decision, denial reason and validation status",
			},
			[]string{"decision", "reason", "validation_status"},
		),
		ledgerWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_write_failures_total",
				Help:      "Access attempts that failed because the audit entry could not be written",
			},
		),
		registryReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_reloads_total",
				Help:      "Registry loads by result",
			},
			[]string{"result"},
		),
		registryRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_records",
				Help:      "Records in the current registry snapshot",
			},
			[]string{"registry"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	m.registry.MustRegister(
		m.accessDecisions,
		m.ledgerWriteFailures,
		m.registryReloads,
		m.registryRecords,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveDecision counts one access attempt. reason is empty for grants.
func (m *Metrics) ObserveDecision(decision, reason, validationStatus string) {
	m.accessDecisions.WithLabelValues(decision, reason, validationStatus).Inc()
}

func (m *Metrics) AuditWriteFailed() {
	m.ledgerWriteFailures.Inc()
}

// ObserveRegistryLoad records a registry (re)load and the resulting sizes.
func (m *Metrics) ObserveRegistryLoad(degraded bool, authorized, blacklisted int) {
	result := "ok"
	if degraded {
		result = "degraded"
	}
	m.registryReloads.WithLabelValues(result).Inc()
	m.registryRecords.WithLabelValues("authorized").Set(float64(authorized))
	m.registryRecords.WithLabelValues("blacklisted").Set(float64(blacklisted))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by route pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
