package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

func TestRequestID(t *testing.T) {
	tl := logging.NewTestLogger()
	e := NewEcho(tl.Logger, nil)
	var seen string
	e.GET("/x", func(c echo.Context) error {
		seen = logging.RequestIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		id := rec.Header().Get(echo.HeaderXRequestID)
		require.NotEmpty(t, id)
		assert.Equal(t, id, seen)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(echo.HeaderXRequestID, "req_abc-123")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, "req_abc-123", rec.Header().Get(echo.HeaderXRequestID))
		assert.Equal(t, "req_abc-123", seen)
	})

	t.Run("malformed header replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(echo.HeaderXRequestID, "not valid!")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		id := rec.Header().Get(echo.HeaderXRequestID)
		assert.NotEqual(t, "not valid!", id)
		assert.True(t, logging.ValidRequestID(id))
		assert.Equal(t, id, seen)
	})

	tl.AssertField(t, "http request", "request.id", "req_abc-123")
}

func TestRequestLogger_RecordsErrorStatus(t *testing.T) {
	tl := logging.NewTestLogger()
	e := NewEcho(tl.Logger, nil)
	e.GET("/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})
	e.GET("/panic", func(c echo.Context) error {
		panic("test panic")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	tl.AssertField(t, "http request", "status", int64(http.StatusNotFound))

	rec = httptest.NewRecorder()
	assert.NotPanics(t, func() {
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	tl.AssertLogged(t, zapcore.InfoLevel, "http request")
}

func TestRateLimit_Disabled(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RateLimit(0, 0))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
