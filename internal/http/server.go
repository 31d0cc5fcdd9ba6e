// Package http provides the status server for diceroll.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/diceroll/internal/dice"
	"github.com/fyrsmithlabs/diceroll/internal/logging"
	"github.com/fyrsmithlabs/diceroll/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HealthSource reports telemetry pipeline health.
type HealthSource interface {
	Health() telemetry.HealthStatus
}

// RollSource reports emission loop progress.
type RollSource interface {
	Last() (dice.Roll, bool)
	Rolls() uint64
}

// Server exposes health and metrics for the running emitter.
type Server struct {
	echo    *echo.Echo
	logger  *logging.Logger
	config  *Config
	health  HealthSource
	rolls   RollSource
	metrics http.Handler
	version string
	meter   metric.Meter
}

// Option configures a Server.
type Option func(*Server)

// WithHealth sets the telemetry health source.
func WithHealth(h HealthSource) Option {
	return func(s *Server) { s.health = h }
}

// WithRolls sets the emission loop source.
func WithRolls(r RollSource) Option {
	return func(s *Server) { s.rolls = r }
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithVersion reports v in health responses.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMeter records request metrics on meter.
func WithMeter(m metric.Meter) Option {
	return func(s *Server) { s.meter = m }
}

// NewServer creates a new status server.
func NewServer(logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	s := &Server{
		logger: logger,
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))
	}
	if s.meter != nil {
		e.Use(NewHTTPMetrics(s.meter, logger).MetricsMiddleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Debug(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s.echo = e
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}
}

// handleHealth reports pipeline and loop state.
// An unhealthy pipeline answers 503; degraded still answers 200.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:  StatusOK,
		Version: s.version,
	}

	if s.health != nil {
		h := s.health.Health()
		resp.Telemetry = &h
		switch {
		case !h.Healthy:
			resp.Status = StatusUnhealthy
		case h.Degraded:
			resp.Status = StatusDegraded
		}
	}

	if s.rolls != nil {
		resp.Rolls = s.rolls.Rolls()
		if last, ok := s.rolls.Last(); ok {
			resp.LastRoll = &last
		}
	}

	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Start starts the HTTP server and blocks until it stops.
// It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := s.Addr()
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// ListenerAddr returns the bound address once the server is listening, or nil.
func (s *Server) ListenerAddr() net.Addr {
	return s.echo.ListenerAddr()
}
