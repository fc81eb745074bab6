package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/angelmondragon/quoteflow/pkg/config"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/metrics"
)

const maxResponseBytes = 4 << 20

// Client is the single HTTP boundary to the remote insurance API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *logger.Logger
	metrics *metrics.FlowMetrics
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient swaps the underlying transport client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithMetrics records call durations on m.
func WithMetrics(m *metrics.FlowMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New builds a backend client from configuration.
func New(cfg config.BackendConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("backend logger is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get issues a GET against path.
func (c *Client) Get(ctx context.Context, session Session, endpoint, path string) (*Envelope, error) {
	return c.Do(ctx, session, endpoint, http.MethodGet, path, nil)
}

// Post issues a JSON POST against path.
func (c *Client) Post(ctx context.Context, session Session, endpoint, path string, body any) (*Envelope, error) {
	return c.Do(ctx, session, endpoint, http.MethodPost, path, body)
}

// Do performs one request and normalizes the response. endpoint is a short
// label used for logs and metrics. Non-2xx statuses (including a status carried
// in a tuple body) return both the envelope and a typed error.
func (c *Client) Do(ctx context.Context, session Session, endpoint, method, path string, body any) (*Envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRateLimit, err, "backend rate limit wait aborted")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode backend request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	session.apply(req)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveBackend(endpoint, "transport_error", time.Since(started))
		c.logger.Error(c.logger.WithField(ctx, "endpoint", endpoint), "backend request failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("backend %s unavailable", endpoint))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.ObserveBackend(endpoint, "read_error", time.Since(started))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read backend %s response", endpoint))
	}

	env, err := Normalize(raw, resp.StatusCode)
	if err != nil {
		c.metrics.ObserveBackend(endpoint, strconv.Itoa(resp.StatusCode), time.Since(started))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("backend %s returned malformed body", endpoint))
	}
	c.metrics.ObserveBackend(endpoint, strconv.Itoa(env.Status), time.Since(started))

	if env.Status >= 300 {
		logCtx := c.logger.WithFields(ctx, map[string]any{"endpoint": endpoint, "status": env.Status})
		c.logger.Warn(logCtx, "backend returned non-success status")
		return env, statusError(endpoint, env)
	}
	return env, nil
}

// StatusError describes a non-2xx backend answer.
type StatusError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %s returned status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("backend %s returned status %d: %s", e.Endpoint, e.Status, e.Message)
}

func statusError(endpoint string, env *Envelope) error {
	cause := &StatusError{Endpoint: endpoint, Status: env.Status, Message: env.FailureMessage()}
	typed := pkgerrors.Wrap(codeForStatus(env.Status), cause, cause.Error())
	if msg := env.FailureMessage(); msg != "" {
		typed = typed.WithDetails(map[string]any{"backend_error": msg})
	}
	return typed
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

// Ping checks that the backend answers at all. Any status below 500 counts as up.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("backend answered %d", resp.StatusCode)
	}
	return nil
}
