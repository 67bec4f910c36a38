package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

// NewEcho returns an echo instance carrying the middleware shared by the API
// and web servers. The logger commits handler errors, so metrics placed
// outside it observe the final status; recovery sits inside so panics are
// logged as 500s.
func NewEcho(logger *logging.Logger, metrics *HTTPMetrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(RequestID())
	if metrics != nil {
		e.Use(metrics.MetricsMiddleware())
	}
	e.Use(RequestLogger(logger))
	e.Use(middleware.Recover())
	return e
}

// RequestID honors a well-formed X-Request-ID header, generates one
// otherwise, and stores it in the request context for logging and for
// propagation to upstream calls.
func RequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			if !logging.ValidRequestID(id) {
				id = uuid.NewString()
				c.Response().Header().Set(echo.HeaderXRequestID, id)
			}
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	})
}

// RequestLogger logs one line per request.
func RequestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			logger.Info(req.Context(), "http request", fields...)
			return nil
		}
	}
}

// RateLimit rejects requests beyond limit per second (with burst) with 429.
// A non-positive limit disables the check.
func RateLimit(limit float64, burst int) echo.MiddlewareFunc {
	if limit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many submissions, retry later")
			}
			return next(c)
		}
	}
}
