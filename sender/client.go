package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/prilive-com/stickerbox/internal/httpclient"
	"github.com/prilive-com/stickerbox/internal/resilience"
	"github.com/prilive-com/stickerbox/internal/scrub"
	"github.com/prilive-com/stickerbox/internal/validate"
	"github.com/prilive-com/stickerbox/tg"
)

const (
	maxResponseSize = 10 << 20 // 10MB
)

// Sleeper abstracts time-based waiting for testing.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// CircuitBreakerSettings configures the circuit breaker behavior.
type CircuitBreakerSettings struct {
	// MaxRequests is the maximum number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	// If 0, internal counts never reset in closed state.
	Interval time.Duration

	// Timeout is the duration of the open state before transitioning to half-open.
	Timeout time.Duration

	// ReadyToTrip determines if breaker should trip based on failure counts.
	// If nil, uses default (50% failure rate after 3 requests).
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// realSleeper uses actual time.
type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client is the sticker API transport. It is safe for concurrent use.
type Client struct {
	config      Config
	httpClient  *http.Client
	ownsHTTP    bool
	logger      *slog.Logger
	limiter     *resilience.RateLimiter
	breaker     *gobreaker.CircuitBreaker[*apiResponse]
	breakerOpts *CircuitBreakerSettings
	sleeper     Sleeper
	requestID   func() string
}

type apiResponse struct {
	OK          bool                   `json:"ok"`
	Result      json.RawMessage        `json:"result,omitempty"`
	ErrorCode   int                    `json:"error_code,omitempty"`
	Description string                 `json:"description,omitempty"`
	Parameters  *tg.ResponseParameters `json:"parameters,omitempty"`
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets the global rate limit shared by all methods.
func WithRateLimit(globalRPS float64, burst int) Option {
	return func(c *Client) {
		c.config.GlobalRPS = globalRPS
		c.config.GlobalBurst = burst
	}
}

// WithMethodRateLimit sets the per-method rate limit.
func WithMethodRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.config.MethodRPS = rps
		c.config.MethodBurst = burst
	}
}

// WithRetries sets the maximum number of retries after the first attempt.
func WithRetries(max int) Option {
	return func(c *Client) {
		c.config.MaxRetries = max
	}
}

// WithBaseURL sets the API base URL (useful for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.config.BaseURL = url
	}
}

// WithSleeper sets a custom sleeper for retry timing (useful for testing).
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleeper = s
	}
}

// WithCircuitBreakerSettings configures the circuit breaker.
func WithCircuitBreakerSettings(settings CircuitBreakerSettings) Option {
	return func(c *Client) {
		c.breakerOpts = &settings
	}
}

// WithRequestIDFunc replaces the request id generator (uuid v4 by default).
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		c.requestID = fn
	}
}

// New creates a new Client with the given session token and options.
func New(token string, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Token = tg.SecretToken(token)
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig creates a Client from a Config.
func NewFromConfig(cfg Config, opts ...Option) (*Client, error) {
	if err := validate.Token(cfg.Token.Value()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c := &Client{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.httpClient == nil {
		c.httpClient = httpclient.New(httpclient.Config{
			RequestTimeout:      c.config.RequestTimeout,
			ConnectTimeout:      10 * time.Second,
			TLSTimeout:          10 * time.Second,
			IdleTimeout:         c.config.IdleTimeout,
			KeepAlive:           c.config.KeepAlive,
			MaxIdleConns:        c.config.MaxIdleConns,
			MaxIdleConnsPerHost: c.config.MaxIdleConns,
			MaxConnsPerHost:     c.config.MaxIdleConns * 2,
		})
		c.ownsHTTP = true
	}

	if c.sleeper == nil {
		c.sleeper = realSleeper{}
	}

	if c.requestID == nil {
		c.requestID = uuid.NewString
	}

	c.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
		GlobalRPS:   c.config.GlobalRPS,
		GlobalBurst: c.config.GlobalBurst,
		KeyRPS:      c.config.MethodRPS,
		KeyBurst:    c.config.MethodBurst,
	})

	breakerCfg := resilience.DefaultBreakerConfig("stickerbox-sender")
	breakerCfg.MaxRequests = c.config.BreakerMaxRequests
	breakerCfg.Interval = c.config.BreakerInterval
	breakerCfg.Timeout = c.config.BreakerTimeout
	breakerCfg.Threshold = 0
	breakerCfg.IsSuccessful = isBreakerSuccess
	if o := c.breakerOpts; o != nil {
		breakerCfg.MaxRequests = o.MaxRequests
		breakerCfg.Interval = o.Interval
		breakerCfg.Timeout = o.Timeout
		breakerCfg.Trip = o.ReadyToTrip
	}
	breakerCfg.OnStateChange = func(name, from, to string) {
		c.logger.Info("circuit breaker state changed",
			"name", name,
			"from", from,
			"to", to,
		)
	}
	c.breaker = resilience.NewBreaker[*apiResponse](breakerCfg)

	return c, nil
}

// Close releases idle connections held by a client-owned HTTP pool.
// It is safe to call Close concurrently with in-flight requests.
func (c *Client) Close() error {
	if c.ownsHTTP {
		httpclient.CloseIdle(c.httpClient)
	}
	return nil
}

// BreakerState returns the circuit breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func (c *Client) executeRequest(ctx context.Context, method string, payload any) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx, method); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	resp, err := c.breaker.Execute(func() (*apiResponse, error) {
		return c.doRequest(ctx, method, payload)
	})
	if err != nil && resilience.IsBreakerRejection(err) {
		return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return resp, err
}

func (c *Client) doRequest(ctx context.Context, method string, payload any) (*apiResponse, error) {
	url := fmt.Sprintf("%s/session/%s/%s", c.config.BaseURL, c.config.Token.Value(), method)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", scrub.TokenFromError(err, c.config.Token))
	}

	requestID := c.requestID()
	start := time.Now()

	resp, err := httpclient.DoJSON(ctx, c.httpClient, req, requestID)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", scrub.TokenFromError(err, c.config.Token))
	}
	defer resp.Body.Close()

	// Read maxResponseSize+1 to detect overflow without false positive
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("api call",
		"method", method,
		"session", c.config.Token.Hint(),
		"request_id", requestID,
		"status", resp.StatusCode,
		"bytes", len(body),
		"took", time.Since(start),
	)

	if int64(len(body)) > maxResponseSize {
		return nil, ErrResponseTooLarge
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if !apiResp.OK {
		code := apiResp.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		// retry_after from the body, then the header, then FLOOD_WAIT_<n>
		if retryAfter := parseRetryAfter(&apiResp, resp); retryAfter > 0 {
			return nil, tg.NewAPIErrorWithRetry(method, code, apiResp.Description, retryAfter)
		}
		return nil, tg.NewAPIError(method, code, apiResp.Description)
	}

	return &apiResp, nil
}

func withRetry[T any](c *Client, ctx context.Context, fn func() (T, error)) (T, error) {
	return withRetryIf(c, ctx, isRetryable, fn)
}

// withRetryIf is withRetry with a caller-chosen retry predicate.
func withRetryIf[T any](c *Client, ctx context.Context, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Non-retryable errors return immediately (not wrapped in ErrMaxRetries)
		if !retryable(err) {
			return zero, err
		}

		if attempt >= c.config.MaxRetries {
			break
		}

		backoff := calculateBackoff(c.config, attempt, err)
		c.logger.Debug("retrying api call",
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)

		if err := c.sleeper.Sleep(ctx, backoff); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w: %w", ErrMaxRetries, lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	// Circuit breaker errors are not retryable
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *tg.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	return false
}

// isRateLimited reports whether the server rejected the call before acting
// on it, asking the client to wait. Only such failures are safe to repeat
// for calls that change server state.
func isRateLimited(err error) bool {
	return errors.Is(err, tg.ErrTooManyRequests)
}

// calculateBackoff returns the wait before retry attempt+1. A server-provided
// retry_after or FLOOD_WAIT always wins over the computed delay.
func calculateBackoff(cfg Config, attempt int, err error) time.Duration {
	var apiErr *tg.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}

	return resilience.Backoff(resilience.RetryConfig{
		BaseWait:   cfg.RetryBaseWait,
		MaxWait:    cfg.RetryMaxWait,
		Multiplier: cfg.RetryFactor,
		Jitter:     0.2,
	}, attempt, err)
}

// isBreakerSuccess determines if an error should count as a circuit breaker failure.
// Only server errors (5xx) and network errors trip the breaker.
// Client errors (4xx) including 420/429 are NOT breaker failures;
// flood waits are handled via retry_after.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *tg.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 400 && apiErr.Code < 500
	}
	// Context cancellation is not a service failure
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrResponseTooLarge) {
		return true
	}
	return false
}

// parseRetryAfter extracts retry_after from the JSON body (primary), the
// HTTP header (fallback) or a FLOOD_WAIT_<n> description.
func parseRetryAfter(apiResp *apiResponse, httpResp *http.Response) time.Duration {
	if apiResp.Parameters != nil && apiResp.Parameters.RetryAfter > 0 {
		return time.Duration(apiResp.Parameters.RetryAfter) * time.Second
	}

	if httpResp != nil {
		if retryHeader := httpResp.Header.Get("Retry-After"); retryHeader != "" {
			if seconds, err := strconv.Atoi(retryHeader); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return tg.FloodWait(apiResp.Description)
}
