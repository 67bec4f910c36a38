// Package site is the browser-facing surface: it lists experiments, runs the
// authoring workflow, shows questionnaires and accepts responses. All data
// goes through a Backend, normally the REST client.
package site

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/experimentd/internal/draft"
	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	apihttp "github.com/fyrsmithlabs/experimentd/internal/http"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

// Routes and form parameters.
const (
	routeAddExperiment     = "/AddExperiment"
	routeToggleExperiments = "/ToggleExperiments"
	routeSubmitResponses   = "/SubmitResponses"

	paramMode           = "operationMode"
	paramCategory       = "questionCategory"
	paramType           = "typeOfQuestion"
	paramAnswerIndex    = "answerIndex"
	paramAnswerCategory = "answerCategory"
)

// Backend is the experiments service as the site uses it.
type Backend interface {
	GetExperiments(ctx context.Context) ([]*experiment.Experiment, error)
	AddExperiment(ctx context.Context, e *experiment.Experiment) error
	UpdateExperiment(ctx context.Context, e *experiment.Experiment) error
	SubmitResponse(ctx context.Context, e *experiment.Experiment) error
}

// healthChecker is implemented by backends that can report reachability.
type healthChecker interface {
	Health(ctx context.Context) error
}

// Config holds web server configuration.
type Config struct {
	Host         string
	Port         int
	TemplateName string
}

// Server serves the site.
type Server struct {
	echo     *echo.Echo
	backend  Backend
	workflow *draft.Workflow
	logger   *logging.Logger
	config   *Config
}

// NewServer wires the site over backend.
func NewServer(backend Backend, logger *logging.Logger, cfg *Config) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8080}
	}
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}

	logger = logger.Named("site")
	e := apihttp.NewEcho(logger, apihttp.NewHTTPMetrics(logger))
	e.Renderer = r

	s := &Server{
		echo:     e,
		backend:  backend,
		workflow: draft.New(backend, cfg.TemplateName, logger),
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", apihttp.MetricsHandler(apihttp.NewRegistry(nil)))

	s.echo.GET("/", s.handleList)
	s.echo.GET(routeAddExperiment, s.handleAddExperiment)
	s.echo.POST(routeAddExperiment, s.handleAddExperiment)
	s.echo.POST(routeToggleExperiments, s.handleToggle)
	s.echo.POST(routeSubmitResponses, s.handleSubmit)
	s.echo.GET("/:name", s.handleQuestionnaire)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	hc, ok := s.backend.(healthChecker)
	if !ok {
		return c.JSON(http.StatusOK, apihttp.HealthResponse{Status: "ok"})
	}
	if err := hc.Health(c.Request().Context()); err != nil {
		s.logger.Warn(c.Request().Context(), "backend unhealthy", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, apihttp.HealthResponse{Status: "backend unavailable"})
	}
	return c.JSON(http.StatusOK, apihttp.HealthResponse{Status: "ok"})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting web server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down web server")
	return s.echo.Shutdown(ctx)
}
