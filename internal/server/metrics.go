package server

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsSubsystem = "devserver"

	reasonRequest     = "request"
	reasonParse       = "parse"
	reasonIO          = "io"
	reasonRateLimited = "rate_limited"
)

// metrics holds a per-server registry so several servers can live in one process.
type metrics struct {
	registry *prometheus.Registry
	saved    prometheus.Counter
	failures *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		saved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "games_saved_total",
			Help: "Total number of game records appended to the games file.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "games_save_failures_total",
			Help: "Total number of failed save requests by reason.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(m.saved, m.failures)
	return m
}

func (m *metrics) middleware(metricsPath string) echo.MiddlewareFunc {
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metricsSubsystem,
		Registerer: m.registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == metricsPath
		},
	})
}

func (m *metrics) handler() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: m.registry})
}
