package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	previewhttp "github.com/GriffinCanCode/AgentOS/preview/internal/http"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/sandbox"
	"github.com/GriffinCanCode/AgentOS/preview/internal/resilience"
)

const userAgent = "previewctl/" + previewhttp.Version

// ErrUnavailable is returned while the breaker refuses calls.
var ErrUnavailable = errors.New("preview server unavailable: circuit breaker open")

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	MinWait time.Duration
	MaxWait time.Duration
	// RPS caps outgoing requests per second. Zero means unlimited.
	RPS float64
}

// DefaultOptions returns options for a server on localhost
func DefaultOptions() Options {
	return Options{
		BaseURL: "http://localhost:8000",
		Timeout: 10 * time.Second,
		Retries: 3,
		MinWait: 200 * time.Millisecond,
		MaxWait: 5 * time.Second,
	}
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("preview server returned %d", e.Code)
	}
	return fmt.Sprintf("preview server returned %d: %s", e.Code, e.Message)
}

// Temporary reports whether the status points at the server rather than the request
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Client talks to a preview server's HTTP API.
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a client for the server at opts.BaseURL.
func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MinWait <= 0 {
		opts.MinWait = defaults.MinWait
	}
	if opts.MaxWait < opts.MinWait {
		opts.MaxWait = opts.MinWait
	}

	r := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.MinWait).
		SetRetryMaxWaitTime(opts.MaxWait).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	r.AddRetryCondition(func(resp *resty.Response, err error) bool {
		if resp == nil || resp.RawResponse == nil {
			return err != nil
		}
		retry, _ := retryablehttp.DefaultRetryPolicy(resp.Request.Context(), resp.RawResponse, err)
		return retry
	})
	r.SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
		var raw *http.Response
		attempt := 1
		if resp != nil {
			raw = resp.RawResponse
			if resp.Request != nil {
				attempt = resp.Request.Attempt
			}
		}
		return retryablehttp.DefaultBackoff(opts.MinWait, opts.MaxWait, attempt, raw), nil
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), max(1, int(opts.RPS)))
	}

	breaker := resilience.New("preview-server", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsFailure: isServerFailure,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Client{resty: r, breaker: breaker, limiter: limiter, logger: logger}
}

// BaseURL returns the server address
func (c *Client) BaseURL() string {
	return c.resty.BaseURL
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Preview runs the server's pipeline once over code.
func (c *Client) Preview(ctx context.Context, code string) (*previewhttp.PreviewResponse, error) {
	var out previewhttp.PreviewResponse
	err := c.call(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(previewhttp.SourceRequest{Code: code}).SetResult(&out).Post("/api/preview")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Transpile compiles code on the server without evaluating it.
func (c *Client) Transpile(ctx context.Context, code string) (*previewhttp.TranspileResponse, error) {
	var out previewhttp.TranspileResponse
	err := c.call(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(previewhttp.SourceRequest{Code: code}).SetResult(&out).Post("/api/transpile")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Modules lists the modules the server lets preview code import.
func (c *Client) Modules(ctx context.Context) ([]sandbox.ModuleSpec, error) {
	var out struct {
		Modules []sandbox.ModuleSpec `json:"modules"`
	}
	err := c.call(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetResult(&out).Get("/api/modules")
	})
	if err != nil {
		return nil, err
	}
	return out.Modules, nil
}

// Health fetches the server's health report.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	err := c.call(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetResult(&out).Get("/health")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// call sends one request through the limiter and the breaker.
func (c *Client) call(ctx context.Context, send func(req *resty.Request) (*resty.Response, error)) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit")
	}

	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var apiErr struct {
			Error string `json:"error"`
		}
		resp, err := send(c.resty.R().SetContext(ctx).SetError(&apiErr))
		if err != nil {
			return errors.Wrapf(err, "request to %s", c.resty.BaseURL)
		}
		if resp.IsError() {
			return &StatusError{Code: resp.StatusCode(), Message: apiErr.Error}
		}
		return nil
	})

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return ErrUnavailable
	case err != nil:
		c.logger.Debug("Preview server call failed", zap.Error(err))
	}
	return err
}

// isServerFailure counts transport errors and 5xx against the server.
func isServerFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}
	return true
}
