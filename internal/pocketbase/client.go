package pocketbase

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

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnavailable is returned while the circuit breaker refuses requests.
var ErrUnavailable = errors.New("pocketbase unavailable")

// Observer receives the outcome of every request, e.g. for metrics.
type Observer func(method, route string, status int, elapsed time.Duration)

// Client talks to the PocketBase REST API. A Client is safe for concurrent
// use; WithAuth derives a client that shares transport and breaker but has
// its own auth store.
type Client struct {
	baseURL  string
	http     *http.Client
	stream   *http.Client
	auth     *AuthStore
	breaker  *gobreaker.CircuitBreaker
	tracer   trace.Tracer
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport for regular requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the timeout for regular (non-streaming) requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// WithAuthStore uses store instead of a fresh one.
func WithAuthStore(store *AuthStore) Option {
	return func(c *Client) { c.auth = store }
}

// WithObserver registers a per-request callback.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// BreakerSettings configures the optional circuit breaker.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
	OnChange    func(from, to string)
}

// WithBreaker guards requests with a circuit breaker that opens after
// MaxFailures consecutive transport errors or 5xx answers.
func WithBreaker(s BreakerSettings) Option {
	return func(c *Client) {
		if s.MaxFailures == 0 {
			s.MaxFailures = 5
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "pocketbase",
			Timeout: s.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= s.MaxFailures
			},
			IsSuccessful: func(err error) bool {
				var re *ResponseError
				return err == nil || (errors.As(err, &re) && re.Status < 500)
			},
			OnStateChange: func(_ string, from, to gobreaker.State) {
				if s.OnChange != nil {
					s.OnChange(from.String(), to.String())
				}
			},
		})
	}
}

// New creates a client for the PocketBase instance at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		stream:  &http.Client{},
		tracer:  otel.Tracer("quiz-portal/pocketbase"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.auth == nil {
		c.auth = NewAuthStore()
	}
	return c
}

// BaseURL returns the instance URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// AuthStore returns the store whose token authorizes requests.
func (c *Client) AuthStore() *AuthStore { return c.auth }

// WithAuth returns a copy of c that authenticates with store.
func (c *Client) WithAuth(store *AuthStore) *Client {
	clone := *c
	clone.auth = store
	return &clone
}

// BreakerState reports the breaker state, "disabled" without one.
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Health probes HEAD /api/health.
func (c *Client) Health(ctx context.Context) error {
	return c.send(ctx, http.MethodHead, "/api/health", nil, nil, nil)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any) error {
	route := routeOf(path)
	ctx, span := c.tracer.Start(ctx, "pocketbase "+method+" "+route, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("pocketbase.route", route),
	))
	defer span.End()

	exec := func() (interface{}, error) {
		return nil, c.do(ctx, method, path, query, body, out)
	}
	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(exec)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	} else {
		_, err = exec()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, path, 0, time.Since(started))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.observe(method, path, resp.StatusCode, time.Since(started))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		return newResponseError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.auth.Token(); token != "" {
		req.Header.Set("Authorization", token)
	}
	return req, nil
}

func (c *Client) observe(method, path string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(method, routeOf(path), status, elapsed)
	}
}

// routeOf strips record ids so metric labels stay bounded.
func routeOf(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 5 && parts[1] == "collections" && parts[3] == "records" {
		return "/" + strings.Join(parts[:4], "/") + "/:id"
	}
	return path
}
