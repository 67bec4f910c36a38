package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/experimentd/internal/events"
	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
	"github.com/fyrsmithlabs/experimentd/internal/store"
)

const checkoutJSON = `{
  "name": "Checkout Flow",
  "description": "one page checkout",
  "disabled": false,
  "standard_questions": [
    {"prompt": "Your name?", "answer": "", "type": 1},
    {"prompt": "Pick one", "answer": "", "type": 3, "possible_answers": ["red", "blue"]}
  ],
  "custom_questions": [
    {"prompt": "Anything else?", "answer": "", "type": 2}
  ]
}`

type published struct {
	Kind events.Kind
	Name string
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, kind events.Kind, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{kind, name})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) events() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.sent...)
}

// failingStore fails every operation the way the file store reports faults.
type failingStore struct{}

func (failingStore) fail(op string) error {
	return &store.StorageError{Op: op, Resource: store.Definitions, Path: "Data/fileData.json", Err: errors.New("disk on fire")}
}

func (f failingStore) GetExperiments(context.Context) ([]*experiment.Experiment, error) {
	return nil, f.fail("read")
}

func (f failingStore) GetResponses(context.Context) ([]*experiment.Experiment, error) {
	return nil, f.fail("read")
}

func (f failingStore) AddExperiment(context.Context, *experiment.Experiment) error {
	return f.fail("write")
}

func (f failingStore) UpdateExperiment(context.Context, *experiment.Experiment) error {
	return f.fail("write")
}

func (f failingStore) SubmitResponse(context.Context, *experiment.Experiment) error {
	return f.fail("write")
}

type testServer struct {
	*Server
	store  *store.FileStore
	pub    *recordingPublisher
	logger *logging.TestLogger
}

func setupTestServer(t *testing.T, cfg *Config) *testServer {
	t.Helper()
	scfg := store.NewDefaultConfig()
	scfg.DataDir = filepath.Join(t.TempDir(), "Data")
	st, err := store.NewFileStore(scfg, nil)
	require.NoError(t, err)

	tl := logging.NewTestLogger()
	pub := &recordingPublisher{}
	srv, err := NewServer(st, pub, tl.Logger, cfg)
	require.NoError(t, err)
	return &testServer{Server: srv, store: st, pub: pub, logger: tl}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	st, err := store.NewFileStore(&store.Config{DataDir: t.TempDir(), DefinitionsFile: "a.json", ResponsesFile: "b.json"}, nil)
	require.NoError(t, err)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		srv, err := NewServer(st, nil, logging.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", srv.config.Host)
		assert.Equal(t, 9090, srv.config.Port)
		assert.IsType(t, events.Nop{}, srv.publisher)
	})

	t.Run("requires logger", func(t *testing.T) {
		_, err := NewServer(st, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("requires store", func(t *testing.T) {
		_, err := NewServer(nil, nil, logging.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	srv := setupTestServer(t, nil)
	rec := do(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleAll_Empty(t *testing.T) {
	srv := setupTestServer(t, nil)
	for _, path := range []string{"/all", "/responses"} {
		rec := do(t, srv.Handler(), http.MethodGet, BasePath+path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `[]`, rec.Body.String(), path)
	}
}

func TestAddThenList(t *testing.T) {
	srv := setupTestServer(t, nil)

	rec := do(t, srv.Handler(), http.MethodPost, BasePath+"/add", checkoutJSON)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, srv.Handler(), http.MethodGet, BasePath+"/all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "["+checkoutJSON+"]", rec.Body.String())

	assert.Equal(t, []published{{events.DefinitionAdded, "Checkout Flow"}}, srv.pub.events())
	srv.logger.AssertLogged(t, zapcore.InfoLevel, "http request")
}

func TestUpdate(t *testing.T) {
	srv := setupTestServer(t, nil)
	require.Equal(t, http.StatusNoContent, do(t, srv.Handler(), http.MethodPost, BasePath+"/add", checkoutJSON).Code)

	disabled := strings.Replace(checkoutJSON, `"disabled": false`, `"disabled": true`, 1)
	rec := do(t, srv.Handler(), http.MethodPost, BasePath+"/update", disabled)
	require.Equal(t, http.StatusNoContent, rec.Code)

	list, err := srv.store.GetExperiments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Disabled)
	assert.Equal(t, events.DefinitionUpdated, srv.pub.events()[1].Kind)
}

func TestSubmit(t *testing.T) {
	srv := setupTestServer(t, nil)
	answered := strings.Replace(checkoutJSON, `"prompt": "Your name?", "answer": ""`, `"prompt": "Your name?", "answer": "Ada"`, 1)

	rec := do(t, srv.Handler(), http.MethodPost, BasePath+"/submit", answered)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv.Handler(), http.MethodGet, BasePath+"/responses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"answer": "Ada"`)

	defs, err := srv.store.GetExperiments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, defs)
	assert.Equal(t, []published{{events.ResponseSubmitted, "Checkout Flow"}}, srv.pub.events())
}

func TestMutate_BadBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "empty", body: "", message: "request body is required"},
		{name: "malformed", body: `{"name":`, message: "invalid experiment"},
		{
			name:    "unknown question type",
			body:    `{"name":"X","standard_questions":[{"prompt":"p","answer":"","type":7}],"custom_questions":[]}`,
			message: "unknown question type",
		},
		{
			name:    "shape mismatch",
			body:    `{"name":"X","standard_questions":[{"prompt":"p","answer":"","type":1,"possible_answers":["a"]}],"custom_questions":[]}`,
			message: "invalid experiment",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := setupTestServer(t, nil)
			rec := do(t, srv.Handler(), http.MethodPost, BasePath+"/add", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Empty(t, srv.pub.events())

			list, err := srv.store.GetExperiments(context.Background())
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestStorageFailure(t *testing.T) {
	srv, err := NewServer(failingStore{}, nil, logging.NewNop(), nil)
	require.NoError(t, err)

	rec := do(t, srv.Handler(), http.MethodGet, BasePath+"/all", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "storage failure during read of definitions")
	assert.NotContains(t, rec.Body.String(), "disk on fire")

	rec = do(t, srv.Handler(), http.MethodPost, BasePath+"/add", checkoutJSON)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	srv := setupTestServer(t, nil)
	srv.pub.err = errors.New("nats down")

	rec := do(t, srv.Handler(), http.MethodPost, BasePath+"/add", checkoutJSON)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	srv.logger.AssertLogged(t, zapcore.WarnLevel, "change event not published")
}

func TestSubmitRateLimit(t *testing.T) {
	srv := setupTestServer(t, &Config{Host: "localhost", SubmitRate: 0.001, SubmitBurst: 1})

	assert.Equal(t, http.StatusNoContent, do(t, srv.Handler(), http.MethodPost, BasePath+"/submit", checkoutJSON).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, srv.Handler(), http.MethodPost, BasePath+"/submit", checkoutJSON).Code)
	// Other routes are not limited.
	assert.Equal(t, http.StatusNoContent, do(t, srv.Handler(), http.MethodPost, BasePath+"/add", checkoutJSON).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupTestServer(t, nil)
	require.Equal(t, http.StatusNoContent, do(t, srv.Handler(), http.MethodPost, BasePath+"/add", checkoutJSON).Code)

	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `experimentd_collection_records{collection="definitions"} 1`)
	assert.Contains(t, body, `experimentd_collection_records{collection="responses"} 0`)
	assert.Contains(t, body, `experimentd_experiments_enabled 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsEndpoint_StoreDown(t *testing.T) {
	srv, err := NewServer(failingStore{}, nil, logging.NewNop(), nil)
	require.NoError(t, err)

	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `experimentd_collection_up{collection="definitions"} 0`)
}

func TestServerLifecycle(t *testing.T) {
	srv := setupTestServer(t, &Config{Host: "127.0.0.1", Port: 0})

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start() }()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
