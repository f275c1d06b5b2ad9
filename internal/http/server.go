// Package http provides the HTTP API for supportd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/embeddings"
	"github.com/fyrsmithlabs/supportd/internal/engine"
	"github.com/fyrsmithlabs/supportd/internal/feedback"
	"github.com/fyrsmithlabs/supportd/internal/search"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// Service is the engine surface the HTTP API exposes.
type Service interface {
	Query(ctx context.Context, req engine.QueryRequest) (*engine.QueryResponse, error)
	Feedback(ctx context.Context, req engine.FeedbackRequest) (*feedback.Receipt, error)
	Stats(ctx context.Context) *engine.StatsReport
	Health(ctx context.Context) *engine.HealthReport
	SeedReference(ctx context.Context, docs []engine.SeedDocument) (*engine.SeedReport, error)
}

var _ Service = (*engine.Engine)(nil)

// Config holds HTTP server configuration.
type Config struct {
	// Host is the bind address; empty binds all interfaces.
	Host string

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8085
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
}

// FromAppConfig builds a server Config from the application config.
func FromAppConfig(appCfg *config.Config) Config {
	return Config{
		Port:         appCfg.Server.Port,
		ReadTimeout:  appCfg.Server.ReadTimeout.Duration(),
		WriteTimeout: appCfg.Server.WriteTimeout.Duration(),
	}
}

// Server exposes the engine over HTTP.
type Server struct {
	echo    *echo.Echo
	service Service
	logger  *zap.Logger
	config  Config
}

// NewServer creates the HTTP server around the engine.
func NewServer(service Service, cfg Config, logger *zap.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("engine service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewHTTPMetrics(logger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.MetricsMiddleware())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
	}
	s.registerRoutes()

	return s, nil
}

// requestLogger logs one line per request with the request ID attached.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/query", s.handleQuery)
	v1.POST("/feedback", s.handleFeedback)
	v1.GET("/stats", s.handleStats)
	v1.POST("/reference", s.handleSeedReference)
}

// handleHealth reports component availability. Both corpora reachable
// yields 200, anything less yields 503 with the same body so probes and
// humans read the same report.
func (s *Server) handleHealth(c echo.Context) error {
	report := s.service.Health(c.Request().Context())

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}

// handleQuery answers one customer question.
func (s *Server) handleQuery(c echo.Context) error {
	var req engine.QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := s.service.Query(c.Request().Context(), req)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleFeedback runs one feedback submission through the learning loop.
func (s *Server) handleFeedback(c echo.Context) error {
	var req engine.FeedbackRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid feedback request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	receipt, err := s.service.Feedback(c.Request().Context(), req)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, receipt)
}

// handleStats serves the system snapshot.
func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Stats(c.Request().Context()))
}

// SeedRequest is the request body for POST /api/v1/reference.
type SeedRequest struct {
	Documents []engine.SeedDocument `json:"documents"`
}

// handleSeedReference loads curated documents into the reference corpus.
func (s *Server) handleSeedReference(c echo.Context) error {
	var req SeedRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid seed request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	report, err := s.service.SeedReference(c.Request().Context(), req.Documents)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// mapError translates engine errors onto HTTP statuses. Client mistakes
// carry the underlying message; upstream failures keep a stable summary
// so internals stay out of responses.
func (s *Server) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, feedback.ErrInvalidEvent),
		errors.Is(err, engine.ErrInvalidSeed):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, embeddings.ErrEmbeddingUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "embedding provider unavailable, retry later")
	case errors.Is(err, feedback.ErrLogWrite):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "feedback log unavailable, retry with the same feedback_id")
	case errors.Is(err, vectorstore.ErrConnectionFailed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "vector store unavailable, retry later")
	default:
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.WriteTimeout

	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router so the caller can mount extra
// handlers such as the Prometheus endpoint.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
