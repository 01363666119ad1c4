// Package server exposes the elapsed-time calculator over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/username/ago/internal/config"
	"github.com/username/ago/internal/elapsed"
	"github.com/username/ago/internal/progress"
	"github.com/username/ago/pkg/jalali"
)

// Defaults fill in query parameters a request leaves out
type Defaults struct {
	Start  time.Time
	End    time.Time // Zero when no range end is configured
	Format elapsed.DisplayFormat
}

// Server represents the HTTP server
type Server struct {
	echo     *echo.Echo
	config   config.ServerConfig
	calc     *elapsed.Calculator
	defaults Defaults
	logger   *zap.Logger
	metrics  *metrics
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance
func New(calc *elapsed.Calculator, cfg config.ServerConfig, defaults Defaults, logger *zap.Logger) *Server {
	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.GetReadTimeout()
	e.Server.WriteTimeout = cfg.GetWriteTimeout()

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(logger)

	if defaults.Format == "" {
		defaults.Format = elapsed.FormatYears
	}

	s := &Server{
		echo:     e,
		config:   cfg,
		calc:     calc,
		defaults: defaults,
		logger:   logger,
		metrics:  newMetrics(),
	}

	s.setupMiddleware()

	// Setup metrics
	if cfg.MetricsEnabled {
		s.setupMetrics()
	}

	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", values.Method),
				zap.String("uri", values.URI),
				zap.Int("status", values.Status),
				zap.Float64("latency_ms", float64(values.Latency.Nanoseconds())/1000000),
				zap.String("remote_ip", values.RemoteIP),
				zap.String("request_id", values.RequestID),
			}

			if values.Error != nil {
				fields = append(fields, zap.Error(values.Error))
				s.logger.Error("HTTP request failed", fields...)
			} else {
				s.logger.Info("HTTP request", fields...)
			}

			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.config.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		MaxAge:       300,
	}))

	// Rate limiting middleware
	burst := int(s.config.RateLimit)
	if burst < 1 {
		burst = 1
	}
	s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.config.RateLimit),
				Burst:     burst,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Unable to identify client")
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
		},
	}))

	// Request ID middleware
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return uuid.New().String()
		},
	}))
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.GET("/convert", s.convert)
	api.GET("/difference", s.difference)
	api.GET("/since", s.since)
	api.GET("/since/stream", s.sinceStream)
	api.GET("/progress", s.rangeProgress)
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Info("Starting server", zap.String("address", address))
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"time":          s.calc.Now().UTC().Format(time.RFC3339),
		"live_sessions": s.metrics.activeSessions(),
	})
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			code = he.Code
			msg = he.Message
		case errors.Is(err, jalali.ErrInvalidDate),
			errors.Is(err, jalali.ErrInvalidRange),
			errors.Is(err, progress.ErrEmptyRange):
			code = http.StatusBadRequest
			msg = err.Error()
		default:
			msg = err.Error()
		}

		fields := []zap.Field{
			zap.Error(err),
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", code),
			zap.String("ip", c.RealIP()),
		}
		if code >= 500 {
			logger.Error("HTTP error", fields...)
		} else if code >= 400 {
			logger.Warn("HTTP client error", fields...)
		}

		// Send error response
		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead {
				err = c.NoContent(code)
			} else {
				response := map[string]interface{}{
					"error": msg,
					"code":  code,
				}

				// Add request ID for debugging
				if reqID := c.Response().Header().Get(echo.HeaderXRequestID); reqID != "" {
					response["request_id"] = reqID
				}

				err = c.JSON(code, response)
			}
			if err != nil {
				logger.Error("Failed to send error response", zap.Error(err))
			}
		}
	}
}
