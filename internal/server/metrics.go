package server

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

type metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	liveSessions    prometheus.Gauge
	conversions     *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ago_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ago_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		liveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ago_live_sessions_active",
				Help: "Number of live elapsed-time streams",
			},
		),
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ago_conversions_total",
				Help: "Gregorian to Jalali conversions served",
			},
			[]string{"endpoint"},
		),
	}

	// Register default metrics
	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.liveSessions, m.conversions)

	return m
}

func (m *metrics) activeSessions() float64 {
	var out dto.Metric
	if err := m.liveSessions.Write(&out); err != nil {
		return 0
	}
	return out.GetGauge().GetValue()
}

// setupMetrics installs the request metrics middleware and the /metrics endpoint
func (s *Server) setupMetrics() {
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status

			s.metrics.requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			s.metrics.requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	})

	metricsHandler := promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}
