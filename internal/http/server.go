// Package http serves the experiments REST API consumed by the web surface
// and the operator CLI, and holds the middleware both servers share.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/experimentd/internal/events"
	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
	"github.com/fyrsmithlabs/experimentd/internal/store"
)

// BasePath prefixes every API route.
const BasePath = "/api/experiments"

const maxBodySize = "1M"

// Config holds API server configuration.
type Config struct {
	Host string
	Port int
	// SubmitRate limits POST /submit per second; zero disables the limit.
	SubmitRate  float64
	SubmitBurst int
}

// Server exposes a store.Store over HTTP.
type Server struct {
	echo      *echo.Echo
	store     store.Store
	publisher events.Publisher
	logger    *logging.Logger
	config    *Config
}

// NewServer creates the API server. A nil publisher disables change events.
func NewServer(st store.Store, publisher events.Publisher, logger *logging.Logger, cfg *Config) (*Server, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9090}
	}

	logger = logger.Named("api")
	s := &Server{
		echo:      NewEcho(logger, NewHTTPMetrics(logger)),
		store:     st,
		publisher: publisher,
		logger:    logger,
		config:    cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", MetricsHandler(NewRegistry(s.store)))

	api := s.echo.Group(BasePath, middleware.BodyLimit(maxBodySize))
	api.GET("/all", s.handleAll)
	api.GET("/responses", s.handleResponses)
	api.POST("/add", s.handleAdd)
	api.POST("/update", s.handleUpdate)
	api.POST("/submit", s.handleSubmit, RateLimit(s.config.SubmitRate, s.config.SubmitBurst))
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleAll(c echo.Context) error {
	list, err := s.store.GetExperiments(c.Request().Context())
	if err != nil {
		return s.storageFailure(c, err)
	}
	return writeList(c, list)
}

func (s *Server) handleResponses(c echo.Context) error {
	list, err := s.store.GetResponses(c.Request().Context())
	if err != nil {
		return s.storageFailure(c, err)
	}
	return writeList(c, list)
}

func (s *Server) handleAdd(c echo.Context) error {
	return s.mutate(c, events.DefinitionAdded, s.store.AddExperiment)
}

func (s *Server) handleUpdate(c echo.Context) error {
	return s.mutate(c, events.DefinitionUpdated, s.store.UpdateExperiment)
}

func (s *Server) handleSubmit(c echo.Context) error {
	return s.mutate(c, events.ResponseSubmitted, s.store.SubmitResponse)
}

// mutate decodes the body, applies op and announces the change.
func (s *Server) mutate(c echo.Context, kind events.Kind, op func(context.Context, *experiment.Experiment) error) error {
	e, err := readExperiment(c)
	if err != nil {
		s.logger.Warn(c.Request().Context(), "invalid experiment body", zap.Error(err))
		return err
	}

	ctx := logging.WithExperiment(c.Request().Context(), e.Name)
	if err := op(ctx, e); err != nil {
		return s.storageFailure(c, err)
	}
	if err := s.publisher.Publish(ctx, kind, e.Name); err != nil {
		s.logger.Warn(ctx, "change event not published",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	return c.NoContent(http.StatusNoContent)
}

func readExperiment(c echo.Context) (*experiment.Experiment, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "could not read request body").SetInternal(err)
	}
	if len(body) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "request body is required")
	}
	var e experiment.Experiment
	if err := e.UnmarshalJSON(body); err != nil {
		var unknown *experiment.UnknownQuestionTypeError
		if errors.As(err, &unknown) {
			return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid experiment: %v", err)).SetInternal(err)
	}
	return &e, nil
}

func writeList(c echo.Context, list []*experiment.Experiment) error {
	data, err := experiment.MarshalList(list)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not encode experiments").SetInternal(err)
	}
	return c.JSONBlob(http.StatusOK, data)
}

// storageFailure hides the cause from the client; the store has already
// logged it.
func (s *Server) storageFailure(c echo.Context, err error) error {
	var serr *store.StorageError
	if errors.As(err, &serr) {
		return echo.NewHTTPError(http.StatusInternalServerError,
			fmt.Sprintf("storage failure during %s of %s", serr.Op, serr.Resource)).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "storage failure").SetInternal(err)
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting api server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down api server")
	return s.echo.Shutdown(ctx)
}
