// Package client calls the experiments REST API.
//
// Client implements the same operations as the file store, so the web
// surface and the CLI can run against a remote API server. Calls are rate
// limited on the client side and are never retried: any transport failure
// or non-2xx status is returned as an *UpstreamCallError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4096

	// RequestIDHeader carries the caller's request id to the API server.
	RequestIDHeader = "X-Request-ID"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API collection root, e.g. http://localhost:9090/api/experiments.
	BaseURL string
	Timeout time.Duration

	// Rate is the request budget per second. Zero disables limiting.
	Rate  float64
	Burst int
}

// Client is a REST client for the experiments API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.Logger
}

// New returns a client for cfg.BaseURL.
func New(cfg Config, logger *logging.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger.Named("client"),
	}, nil
}

// GetExperiments lists stored definitions.
func (c *Client) GetExperiments(ctx context.Context) ([]*experiment.Experiment, error) {
	return c.list(ctx, "all")
}

// GetResponses lists submitted responses.
func (c *Client) GetResponses(ctx context.Context) ([]*experiment.Experiment, error) {
	return c.list(ctx, "responses")
}

// AddExperiment appends a definition.
func (c *Client) AddExperiment(ctx context.Context, e *experiment.Experiment) error {
	return c.send(ctx, "add", e)
}

// UpdateExperiment replaces the definition with the same name.
func (c *Client) UpdateExperiment(ctx context.Context, e *experiment.Experiment) error {
	return c.send(ctx, "update", e)
}

// SubmitResponse appends a response.
func (c *Client) SubmitResponse(ctx context.Context, e *experiment.Experiment) error {
	return c.send(ctx, "submit", e)
}

// Health checks the API server's health endpoint, which sits next to the
// collection root.
func (c *Client) Health(ctx context.Context) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return &UpstreamCallError{Op: "health", Err: err}
	}
	u.Path = "/health"
	_, err = c.do(ctx, "health", http.MethodGet, u.String(), nil)
	return err
}

func (c *Client) list(ctx context.Context, op string) ([]*experiment.Experiment, error) {
	body, err := c.do(ctx, op, http.MethodGet, c.baseURL+"/"+op, nil)
	if err != nil {
		return nil, err
	}
	list, err := experiment.UnmarshalList(body)
	if err != nil {
		return nil, &UpstreamCallError{Op: op, StatusCode: http.StatusOK, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return list, nil
}

func (c *Client) send(ctx context.Context, op string, e *experiment.Experiment) error {
	if e == nil {
		return errors.New("experiment is required")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding experiment: %w", err)
	}
	_, err = c.do(ctx, op, http.MethodPost, c.baseURL+"/"+op, payload)
	return err
}

func (c *Client) do(ctx context.Context, op, method, target string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &UpstreamCallError{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &UpstreamCallError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn(ctx, "api call failed", zap.String("op", op), zap.Error(err))
		return nil, &UpstreamCallError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamCallError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	c.logger.Debug(ctx, "api call",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		c.logger.Warn(ctx, "api call returned error status", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return nil, &UpstreamCallError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
