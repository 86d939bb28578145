// Package httpretry issues authenticated JSON HTTP calls with bounded,
// linearly increasing retry.
//
// Only transient failures are retried: connection failures, timeouts,
// DNS failures, HTTP 5xx and HTTP 429. Any other non-2xx response fails
// on the first attempt and carries the response body verbatim in an
// [*HTTPError].
package httpretry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/telemetry"
)

// maxBodyBytes caps how much of a response body is read into memory.
const maxBodyBytes = 16 << 20

// RequestIDHeader carries a per-call ID, identical across retries of the
// same call so the backend can deduplicate.
const RequestIDHeader = "X-Request-ID"

// Config tunes a [Client].
type Config struct {
	// MaxAttempts is the total number of network attempts (initial + retries).
	MaxAttempts int
	// BaseDelay is the linear backoff unit: the wait after attempt n is n*BaseDelay.
	BaseDelay time.Duration
	// ConnectTimeout bounds dialing a connection.
	ConnectTimeout time.Duration
	// RequestTimeout bounds one attempt, including reading the body.
	RequestTimeout time.Duration
	// UserAgent is sent on every request when non-empty.
	UserAgent string
}

// ConfigFromSettings maps the [backend] settings onto a Config.
func ConfigFromSettings(b config.BackendConfig) Config {
	return Config{
		MaxAttempts:    b.Attempts(),
		BaseDelay:      b.BaseDelayDuration(),
		ConnectTimeout: b.ConnectTimeoutDuration(),
		RequestTimeout: b.RequestTimeoutDuration(),
	}
}

// Client executes HTTP calls under the retry policy. It holds no
// per-call state and is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client. Zero fields in cfg fall back to the config
// package defaults.
func New(cfg Config) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = config.DefaultMaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = config.DefaultBaseDelay
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = config.DefaultConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = config.DefaultRequestTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext
	return &Client{
		cfg:  cfg,
		http: &http.Client{Transport: transport},
	}
}

// MaxAttempts returns the attempt bound.
func (c *Client) MaxAttempts() int { return c.cfg.MaxAttempts }

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Body       []byte
	// Attempts is how many network attempts the call took.
	Attempts int
}

// HTTPError is a non-2xx reply. Body is the response body verbatim.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the status is transient (5xx or 429).
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RetriesExhaustedError is returned when every attempt failed with a
// retryable error. Err is the last attempt's error.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient failure the policy
// retries: HTTP 5xx or 429, connection failures, timeouts and DNS failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Retryable()
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

// linearBackOff waits attempt*base after each failed attempt.
type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.base
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Execute performs method against url with an optional JSON body and
// optional bearer token. It returns the 2xx response, an [*HTTPError]
// for a fatal status, or a [*RetriesExhaustedError] once the attempt
// bound is reached. Cancelling ctx aborts the call and any pending wait.
func (c *Client) Execute(ctx context.Context, method, url string, body []byte, token string) (*Response, error) {
	requestID := uuid.NewString()
	attempts := 0

	op := func() (*Response, error) {
		attempts++
		start := time.Now()
		resp, err := c.attempt(ctx, method, url, body, token, requestID)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		} else {
			var he *HTTPError
			if errors.As(err, &he) {
				status = he.StatusCode
			}
		}
		ms := float64(time.Since(start).Microseconds()) / 1000
		telemetry.RecordHTTPAttempt(ctx, method, url, attempts, status, ms, err)
		if err == nil {
			resp.Attempts = attempts
			return resp, nil
		}
		if ctx.Err() != nil || !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&linearBackOff{base: c.cfg.BaseDelay}),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return resp, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return nil, perm.Err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	if IsRetryable(err) {
		return nil, &RetriesExhaustedError{Attempts: attempts, Err: err}
	}
	return nil, err
}

// attempt performs one network round-trip under RequestTimeout.
func (c *Client) attempt(ctx context.Context, method, url string, body []byte, token, requestID string) (*Response, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(actx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
