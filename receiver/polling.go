package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prilive-com/stickerbox/internal/httpclient"
	"github.com/prilive-com/stickerbox/internal/resilience"
	"github.com/prilive-com/stickerbox/internal/scrub"
	"github.com/prilive-com/stickerbox/sender"
	"github.com/prilive-com/stickerbox/tg"
	"github.com/sony/gobreaker/v2"
)

// MethodGetUpdates is the long-poll method for sticker set updates.
const MethodGetUpdates = "updates.getStickerUpdates"

const maxPollResponseSize = 50 << 20 // 50MB for updates

// PollingClient polls the server for sticker set updates.
type PollingClient struct {
	token   tg.SecretToken
	baseURL string
	updates chan<- tg.StickerUpdate
	logger  *slog.Logger

	// Configuration
	timeout   int
	limit     int
	maxErrors int

	// Retry configuration
	retryInitialDelay  time.Duration
	retryMaxDelay      time.Duration
	retryBackoffFactor float64

	// HTTP client
	client *http.Client

	// Circuit breaker
	breaker *gobreaker.CircuitBreaker[[]byte]

	// State
	running           atomic.Bool
	offset            atomic.Int64
	consecutiveErrors atomic.Int32
	stopCh            chan struct{}
	done              chan struct{}
	stopped           atomic.Bool
	failed            atomic.Bool
	mu                sync.Mutex // protects stopCh and done recreation
	wg                sync.WaitGroup
}

// PollingOption configures the PollingClient.
type PollingOption func(*PollingClient)

// WithPollingHTTPClient sets a custom HTTP client.
func WithPollingHTTPClient(client *http.Client) PollingOption {
	return func(c *PollingClient) {
		c.client = client
	}
}

// WithPollingCircuitBreaker sets a custom circuit breaker.
func WithPollingCircuitBreaker(breaker *gobreaker.CircuitBreaker[[]byte]) PollingOption {
	return func(c *PollingClient) {
		c.breaker = breaker
	}
}

// WithPollingMaxErrors sets maximum consecutive errors before stopping.
func WithPollingMaxErrors(max int) PollingOption {
	return func(c *PollingClient) {
		c.maxErrors = max
	}
}

// WithPollingRetryConfig sets exponential backoff parameters.
func WithPollingRetryConfig(initial, max time.Duration, factor float64) PollingOption {
	return func(c *PollingClient) {
		if initial > 0 {
			c.retryInitialDelay = initial
		}
		if max > 0 {
			c.retryMaxDelay = max
		}
		if factor > 1.0 {
			c.retryBackoffFactor = factor
		}
	}
}

// NewPollingClient creates a new long polling client.
func NewPollingClient(
	token tg.SecretToken,
	updates chan<- tg.StickerUpdate,
	logger *slog.Logger,
	cfg Config,
	opts ...PollingOption,
) *PollingClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sender.DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &PollingClient{
		token:              token,
		baseURL:            baseURL,
		updates:            updates,
		logger:             logger,
		timeout:            cfg.PollingTimeout,
		limit:              cfg.PollingLimit,
		maxErrors:          cfg.PollingMaxErrors,
		retryInitialDelay:  cfg.RetryInitialDelay,
		retryMaxDelay:      cfg.RetryMaxDelay,
		retryBackoffFactor: cfg.RetryBackoffFactor,
		client:             pollingHTTPClient(cfg.PollingTimeout),
		stopCh:             make(chan struct{}),
		done:               make(chan struct{}),
	}

	breakerCfg := resilience.DefaultBreakerConfig("stickerbox-polling")
	breakerCfg.MaxRequests = cfg.BreakerMaxRequests
	breakerCfg.Interval = cfg.BreakerInterval
	breakerCfg.Timeout = cfg.BreakerTimeout
	breakerCfg.Threshold = 0
	breakerCfg.FailureRatio = 0.6
	breakerCfg.OnStateChange = func(name, from, to string) {
		logger.Info("circuit breaker state changed",
			"name", name,
			"from", from,
			"to", to,
		)
	}
	c.breaker = resilience.NewBreaker[[]byte](breakerCfg)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// pollingHTTPClient allows a long poll to hold the connection for the full
// server timeout plus a margin.
func pollingHTTPClient(timeoutSeconds int) *http.Client {
	cfg := httpclient.DefaultConfig()
	cfg.RequestTimeout = time.Duration(timeoutSeconds+10) * time.Second
	cfg.MaxIdleConns = 2
	cfg.MaxIdleConnsPerHost = 2
	cfg.MaxConnsPerHost = 2
	return httpclient.New(cfg)
}

// Start begins polling for updates.
func (c *PollingClient) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	c.mu.Lock()
	if c.stopped.Load() {
		c.stopCh = make(chan struct{})
		c.stopped.Store(false)
	}
	select {
	case <-c.done:
		c.done = make(chan struct{})
	default:
	}
	c.failed.Store(false)
	stopCh, done := c.stopCh, c.done
	c.mu.Unlock()

	c.wg.Go(func() {
		defer close(done)
		c.pollLoop(ctx, stopCh)
	})

	c.logger.Info("long polling started",
		"session", c.token.Hint(),
		"timeout", c.timeout,
		"limit", c.limit,
		"max_errors", c.maxErrors,
	)

	return nil
}

// Stop gracefully stops the polling client.
func (c *PollingClient) Stop() {
	c.mu.Lock()
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	c.stopped.Store(true)
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Info("long polling stopped")
}

// Done is closed when the poll loop of the current run exits.
func (c *PollingClient) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err returns ErrTooManyFailures if the last run gave up after
// consecutive errors, nil otherwise.
func (c *PollingClient) Err() error {
	if c.failed.Load() {
		return ErrTooManyFailures
	}
	return nil
}

// Running returns true if polling is active.
func (c *PollingClient) Running() bool {
	return c.running.Load()
}

// IsHealthy returns health status for K8s probes.
func (c *PollingClient) IsHealthy() bool {
	if c.maxErrors == 0 {
		return c.running.Load()
	}
	return c.running.Load() && int(c.consecutiveErrors.Load()) < c.maxErrors
}

// ConsecutiveErrors returns the current error count.
func (c *PollingClient) ConsecutiveErrors() int32 {
	return c.consecutiveErrors.Load()
}

// Offset returns the current update offset.
func (c *PollingClient) Offset() int64 {
	return c.offset.Load()
}

func (c *PollingClient) pollLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer c.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("polling stopped: context cancelled")
			return
		case <-stopCh:
			c.logger.Info("polling stopped: stop signal")
			return
		default:
		}

		updates, err := c.fetchUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			errCount := c.consecutiveErrors.Add(1)
			backoff := c.backoff(errCount)
			c.logger.Error("fetch updates failed",
				"error", err,
				"consecutive_errors", errCount,
				"retry_delay", backoff,
			)

			if c.maxErrors > 0 && int(errCount) >= c.maxErrors {
				c.logger.Error("max consecutive errors exceeded", "max_errors", c.maxErrors)
				c.failed.Store(true)
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-time.After(backoff):
				continue
			}
		}

		c.consecutiveErrors.Store(0)

		// The offset moves only after delivery, so undelivered updates come
		// back on the next run.
		for _, update := range updates {
			select {
			case c.updates <- update:
				if int64(update.UpdateID) >= c.offset.Load() {
					c.offset.Store(int64(update.UpdateID) + 1)
				}
				c.logger.Debug("update delivered", "update_id", update.UpdateID)
			case <-ctx.Done():
				c.logger.Info("stopping update delivery: context cancelled")
				return
			case <-stopCh:
				c.logger.Info("stopping update delivery: stop signal")
				return
			}
		}
	}
}

type getUpdatesRequest struct {
	Offset  int64 `json:"offset"`
	Limit   int   `json:"limit"`
	Timeout int   `json:"timeout"`
}

type getUpdatesResponse struct {
	OK          bool                   `json:"ok"`
	Result      []tg.StickerUpdate     `json:"result,omitempty"`
	ErrorCode   int                    `json:"error_code,omitempty"`
	Description string                 `json:"description,omitempty"`
	Parameters  *tg.ResponseParameters `json:"parameters,omitempty"`
}

func (c *PollingClient) fetchUpdates(ctx context.Context) ([]tg.StickerUpdate, error) {
	payload, err := json.Marshal(getUpdatesRequest{
		Offset:  c.offset.Load(),
		Limit:   c.limit,
		Timeout: c.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/session/%s/%s", c.baseURL, c.token.Value(), MethodGetUpdates)

	respBody, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		resp, err := httpclient.DoJSON(ctx, c.client, req, "")
		if err != nil {
			return nil, scrub.TokenFromError(err, c.token)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPollResponseSize+1))
		if err != nil {
			return nil, err
		}
		if int64(len(body)) > maxPollResponseSize {
			return nil, tg.ErrResponseTooLarge
		}

		if resp.StatusCode != http.StatusOK {
			return nil, decodeError(resp.StatusCode, body)
		}
		return body, nil
	})
	if err != nil {
		if resilience.IsBreakerRejection(err) {
			return nil, fmt.Errorf("%w: %w", tg.ErrCircuitOpen, err)
		}
		return nil, err
	}

	var response getUpdatesResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !response.OK {
		return nil, apiError(response)
	}
	return response.Result, nil
}

// decodeError turns a non-200 reply into an APIError, using the envelope
// when the body carries one.
func decodeError(status int, body []byte) error {
	var response getUpdatesResponse
	if err := json.Unmarshal(body, &response); err != nil || response.Description == "" {
		return tg.NewAPIError(MethodGetUpdates, status, http.StatusText(status))
	}
	if response.ErrorCode == 0 {
		response.ErrorCode = status
	}
	return apiError(response)
}

func apiError(r getUpdatesResponse) error {
	if r.Parameters != nil && r.Parameters.RetryAfter > 0 {
		return tg.NewAPIErrorWithRetry(MethodGetUpdates, r.ErrorCode, r.Description,
			time.Duration(r.Parameters.RetryAfter)*time.Second)
	}
	return tg.NewAPIError(MethodGetUpdates, r.ErrorCode, r.Description)
}

func (c *PollingClient) backoff(consecutive int32) time.Duration {
	return resilience.Backoff(resilience.RetryConfig{
		BaseWait:   c.retryInitialDelay,
		MaxWait:    c.retryMaxDelay,
		Multiplier: c.retryBackoffFactor,
		Jitter:     0.25,
	}, int(consecutive-1), nil)
}
