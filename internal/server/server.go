package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/steadiczech/games-devkit/internal/catalog"
	"github.com/steadiczech/games-devkit/internal/logger"
	"github.com/steadiczech/games-devkit/pkg/publishers"
)

const (
	allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	allowHeaders = "Content-Type"
)

// Notifier receives change events after a successful write.
type Notifier interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Describer supplies a description for a game title when none was given.
type Describer interface {
	Describe(title string) (string, error)
}

// Options configure the dev server routes and optional behaviours.
type Options struct {
	RootDir    string
	ListPath   string
	AppendPath string
	Links      catalog.Links

	APIEnabled    bool
	CoverFallback bool

	MetricsEnabled bool
	MetricsPath    string

	AppendRatePerSecond float64
	AppendBurst         int

	// Source names the emitter in published events.
	Source string
}

// Server is the local dev server: static files, the raw games list and the append endpoint.
type Server struct {
	echo      *echo.Echo
	store     *catalog.Store
	opts      Options
	notifier  Notifier
	describer Describer
	metrics   *metrics
	log       logger.Logger
}

type requestValidator struct {
	validator *validator.Validate
}

func (rv *requestValidator) Validate(i interface{}) error {
	return rv.validator.Struct(i)
}

// New builds the echo instance and registers every route. notifier and describer may be nil.
func New(store *catalog.Store, opts Options, notifier Notifier, describer Describer, log logger.Logger) *Server {
	if opts.ListPath == "" {
		opts.ListPath = "/games.json"
	}
	if opts.AppendPath == "" {
		opts.AppendPath = "/save-game.php"
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.RootDir == "" {
		opts.RootDir = "."
	}
	if opts.Source == "" {
		opts.Source = "devserver"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validator: validator.New()}

	s := &Server{
		echo:      e,
		store:     store,
		opts:      opts,
		notifier:  notifier,
		describer: describer,
		metrics:   newMetrics(),
		log:       logger.Ensure(log),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := map[string]any{
				"method":     values.Method,
				"uri":        values.URI,
				"status":     values.Status,
				"latency_ms": float64(values.Latency.Nanoseconds()) / 1e6,
				"remote_ip":  values.RemoteIP,
			}
			if values.Error != nil {
				fields["error"] = values.Error.Error()
				s.log.WarnObj("http request failed", "request", fields)
				return nil
			}
			s.log.DebugObj("http request", "request", fields)
			return nil
		},
	}))

	s.echo.Use(corsHeaders)

	if s.opts.MetricsEnabled {
		s.echo.Use(s.metrics.middleware(s.opts.MetricsPath))
	}
}

// corsHeaders allows any origin on every response and answers preflight requests.
func corsHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set(echo.HeaderAccessControlAllowOrigin, "*")
		h.Set(echo.HeaderAccessControlAllowMethods, allowMethods)
		h.Set(echo.HeaderAccessControlAllowHeaders, allowHeaders)
		if c.Request().Method == http.MethodOptions {
			return c.NoContent(http.StatusNoContent)
		}
		return next(c)
	}
}

func (s *Server) setupRoutes() {
	s.echo.GET(s.opts.ListPath, s.handleList)
	s.echo.POST(s.opts.AppendPath, s.handleAppend, s.appendLimiter()...)

	if s.opts.APIEnabled {
		api := s.echo.Group("/api/games")
		api.GET("", s.handleAPIList)
		api.POST("", s.handleAPICreate)
		api.PUT("/:title", s.handleAPIUpdate)
		api.DELETE("/:title", s.handleAPIDelete)
	}

	if s.opts.MetricsEnabled {
		s.echo.GET(s.opts.MetricsPath, s.metrics.handler())
	}

	s.echo.Static("/", s.opts.RootDir)
	s.echo.POST("/*", func(c echo.Context) error {
		return echo.ErrNotFound
	})
}

// appendLimiter returns the rate limiting middleware for the append route, if enabled.
func (s *Server) appendLimiter() []echo.MiddlewareFunc {
	perSecond := s.opts.AppendRatePerSecond
	if perSecond <= 0 {
		return nil
	}
	burst := s.opts.AppendBurst
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(perSecond)))
	}

	deny := func(c echo.Context, _ string, _ error) error {
		s.metrics.failures.WithLabelValues(reasonRateLimited).Inc()
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	}
	return []echo.MiddlewareFunc{middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(perSecond), Burst: burst, ExpiresIn: 3 * time.Minute},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return deny(c, "", err)
		},
		DenyHandler: deny,
	})}
}

// Run serves on addr until ctx is cancelled, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer ln.Close()
	s.echo.Listener = ln

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	s.log.InfoObj("dev server listening", "server", map[string]any{
		"address":    ln.Addr().String(),
		"root":       s.opts.RootDir,
		"games_file": s.store.Path(),
		"list_url":   s.opts.Links.BaseURL + s.opts.ListPath,
		"append_url": s.opts.Links.BaseURL + s.opts.AppendPath,
		"api":        s.opts.APIEnabled,
		"metrics":    s.metricsURL(),
	})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("start server: %w", err)
	case <-ctx.Done():
	}

	s.log.InfoObj("dev server shutting down", "reason", ctx.Err().Error())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

func (s *Server) metricsURL() string {
	if !s.opts.MetricsEnabled {
		return ""
	}
	return strings.TrimRight(s.opts.Links.BaseURL, "/") + s.opts.MetricsPath
}
