package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/api/experiments"}, nil)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/api/experiments"} {
		_, err := New(Config{BaseURL: raw}, nil)
		assert.Error(t, err, raw)
	}
}

func TestClient_GetExperiments(t *testing.T) {
	doc, err := experiment.MarshalList([]*experiment.Experiment{{
		Name:              "Alpha",
		StandardQuestions: []experiment.Question{experiment.NewSelectOption("Pick", "", "a", "b")},
		CustomQuestions:   []experiment.Question{},
	}})
	require.NoError(t, err)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/experiments/all", r.URL.Path)
		assert.Equal(t, "req-42", r.Header.Get(RequestIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))

	ctx := logging.WithRequestID(context.Background(), "req-42")
	list, err := c.GetExperiments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	so := list[0].StandardQuestions[0].(*experiment.SelectOption)
	assert.Equal(t, []string{"a", "b"}, so.PossibleAnswers)
}

func TestClient_GetResponsesEmptyBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/experiments/responses", r.URL.Path)
	}))

	list, err := c.GetResponses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestClient_Send(t *testing.T) {
	for op, call := range map[string]func(*Client, context.Context, *experiment.Experiment) error{
		"add":    (*Client).AddExperiment,
		"update": (*Client).UpdateExperiment,
		"submit": (*Client).SubmitResponse,
	} {
		t.Run(op, func(t *testing.T) {
			var got *experiment.Experiment
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/experiments/"+op, r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				got = &experiment.Experiment{}
				require.NoError(t, got.UnmarshalJSON(body))
				w.WriteHeader(http.StatusNoContent)
			}))

			e := &experiment.Experiment{
				Name:              "Alpha",
				StandardQuestions: []experiment.Question{experiment.NewSingleLine("Q", "A")},
				CustomQuestions:   []experiment.Question{},
			}
			require.NoError(t, call(c, context.Background(), e))
			require.NotNil(t, got)
			assert.Equal(t, "Alpha", got.Name)
			assert.Equal(t, "A", got.StandardQuestions[0].Base().Answer)
		})
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"storage error"}`, http.StatusInternalServerError)
	}))

	err := c.AddExperiment(context.Background(), &experiment.Experiment{Name: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))

	var uce *UpstreamCallError
	require.ErrorAs(t, err, &uce)
	assert.Equal(t, "add", uce.Op)
	assert.Equal(t, http.StatusInternalServerError, uce.StatusCode)
	assert.Contains(t, uce.Body, "storage error")
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api/experiments"
	srv.Close()

	c, err := New(Config{BaseURL: base, Timeout: time.Second}, nil)
	require.NoError(t, err)

	_, err = c.GetExperiments(context.Background())
	var uce *UpstreamCallError
	require.ErrorAs(t, err, &uce)
	assert.Zero(t, uce.StatusCode)
	assert.NotNil(t, uce.Err)
}

func TestClient_MalformedBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"x","standard_questions":[{"type":8}]}]`))
	}))

	_, err := c.GetExperiments(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, experiment.ErrUnknownQuestionType)
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))

	assert.NoError(t, c.Health(context.Background()))
}

func TestClient_RateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Rate: 0.001, Burst: 1}, nil)
	require.NoError(t, err)

	_, err = c.GetExperiments(context.Background())
	require.NoError(t, err)

	// The bucket is empty; the next call cannot be admitted before the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.GetExperiments(ctx)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}
