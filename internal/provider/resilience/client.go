package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a request.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrBodyNotReplayable is returned when a request with a body has to be
	// retried but cannot be rewound.
	ErrBodyNotReplayable = errors.New("request body cannot be replayed")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the upstream provider; it names the circuit breaker
	// and the registry entry.
	Name string

	// Timeout bounds a single HTTP attempt including reading the body.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first one.
	// Zero disables retries.
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker overrides DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Logger receives circuit breaker transitions.
	Logger zerolog.Logger

	// Registry, when set, receives the client on construction and the
	// outcome of every call.
	Registry *Registry

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
}

// DefaultClientConfig returns the configuration used for upstream providers.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cb,
	}
}

// Client is an HTTP client guarded by a circuit breaker that retries
// network errors and 5xx responses with exponential backoff.
// It satisfies the Do(*http.Request) contract expected by SDK clients.
type Client struct {
	name           string
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	registry       *Registry
	config         ClientConfig
}

// NewClient creates a resilient client and registers it with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	c := &Client{
		name:           cfg.Name,
		httpClient:     &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		circuitBreaker: NewCircuitBreaker[*http.Response](cbConfig, cfg.Logger), //nolint:bodyclose // type param, not response
		registry:       cfg.Registry,
		config:         cfg,
	}

	if c.registry != nil {
		c.registry.Register(cfg.Name, c)
	}

	return c
}

// Name returns the provider name the client was created for.
func (c *Client) Name() string {
	return c.name
}

// Do executes req with circuit breaker protection and retries.
// A 5xx response that survives every retry is returned without error so the
// caller can inspect it; the caller must close the body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.do(req.Context(), req)

	switch {
	case err != nil:
		c.registry.RecordFailure(c.name, err)
	case resp.StatusCode >= http.StatusInternalServerError:
		c.registry.RecordFailure(c.name, &ServerError{StatusCode: resp.StatusCode})
	default:
		c.registry.RecordSuccess(c.name)
	}

	return resp, err
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var (
		lastResp *http.Response
		attempt  int
	)

	operation := func() error {
		attempt++
		if lastResp != nil {
			drain(lastResp)
			lastResp = nil
		}

		attemptReq, err := rewind(ctx, req, attempt)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(attemptReq)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if ctx.Err() != nil {
				if resp != nil {
					drain(resp)
				}
				return backoff.Permanent(err)
			}
			lastResp = resp
			return err
		}

		lastResp = resp
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	return lastResp, nil
}

// rewind returns the request to send for the given attempt. Requests with a
// body get a fresh body from GetBody on every attempt after the first.
func rewind(ctx context.Context, req *http.Request, attempt int) (*http.Request, error) {
	clone := req.Clone(ctx)
	if attempt == 1 || req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), ErrBodyNotReplayable)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best effort
	_ = resp.Body.Close()
}

// ServerError represents an HTTP 5xx response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
