package resilience

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"sync"
	"time"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of retries (0 = no retries)
	BaseWait    time.Duration // Initial wait duration
	MaxWait     time.Duration // Maximum wait duration
	Multiplier  float64       // Backoff multiplier (e.g., 2.0 for exponential)
	Jitter      float64       // Jitter factor (0.0-1.0)

	// ShouldRetry filters errors worth another attempt. Nil retries everything.
	ShouldRetry func(err error) bool

	// Sleep waits between attempts. Nil uses a timer bound to ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseWait:    time.Second,
		MaxWait:     30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// RetryableError wraps an error with retry information.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a retryable error.
func NewRetryableError(err error, retryAfter time.Duration) *RetryableError {
	return &RetryableError{Err: err, RetryAfter: retryAfter}
}

// IsRetryable checks if an error carries retry information.
func IsRetryable(err error) (time.Duration, bool) {
	var retryErr *RetryableError
	if errors.As(err, &retryErr) {
		return retryErr.RetryAfter, true
	}
	return 0, false
}

// Retry executes fn with retries according to cfg.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	return RetryWithCallback(ctx, cfg, fn, nil)
}

// RetryWithCallback executes fn with retries and calls onRetry before each retry.
func RetryWithCallback[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func() (T, error),
	onRetry func(attempt int, err error, wait time.Duration),
) (T, error) {
	var zero T
	var lastErr error

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return zero, err
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		wait := Backoff(cfg, attempt, lastErr)

		if onRetry != nil {
			onRetry(attempt+1, err, wait)
		}

		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

// Backoff returns the wait before retry number attempt+1.
// A RetryableError's RetryAfter takes precedence over the computed delay.
func Backoff(cfg RetryConfig, attempt int, err error) time.Duration {
	if retryAfter, ok := IsRetryable(err); ok && retryAfter > 0 {
		return retryAfter
	}

	wait := float64(cfg.BaseWait)
	for i := 0; i < attempt; i++ {
		wait *= cfg.Multiplier
	}

	if cfg.MaxWait > 0 && wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}

	// Apply jitter using crypto/rand
	if cfg.Jitter > 0 {
		jitterRange := wait * cfg.Jitter
		if int64(jitterRange*2) > 0 {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(jitterRange*2)))
			if err == nil {
				wait += float64(n.Int64()) - jitterRange
			}
		}
	}

	return time.Duration(wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ErrFlightClosed is returned by DoContext after Close.
var ErrFlightClosed = errors.New("resilience: single flight closed")

// SingleFlight prevents duplicate concurrent calls for the same key.
// The zero value is ready to use.
type SingleFlight[T any] struct {
	mu     sync.Mutex
	calls  map[string]*call[T]
	wg     sync.WaitGroup
	closed bool
}

type call[T any] struct {
	done   chan struct{}
	result T
	err    error
	dups   int
	shared bool
}

// Do executes fn only once for concurrent calls with the same key.
// shared reports whether the result was handed to more than one caller.
func (sf *SingleFlight[T]) Do(key string, fn func() (T, error)) (result T, err error, shared bool) {
	sf.mu.Lock()
	c, ok := sf.join(key)
	if ok {
		sf.mu.Unlock()
		<-c.done
		return c.result, c.err, true
	}
	sf.mu.Unlock()

	sf.run(key, c, fn)
	return c.result, c.err, c.shared
}

// DoContext is like Do, but fn runs on its own goroutine and outlives the
// callers: a caller whose ctx ends gets ctx.Err() while the call goes on for
// the others. fn must bound itself; Close waits for it.
func (sf *SingleFlight[T]) DoContext(ctx context.Context, key string, fn func() (T, error)) (result T, err error, shared bool) {
	sf.mu.Lock()
	if sf.closed {
		sf.mu.Unlock()
		return result, ErrFlightClosed, false
	}
	c, ok := sf.join(key)
	if !ok {
		sf.wg.Add(1)
		go func() {
			defer sf.wg.Done()
			sf.run(key, c, fn)
		}()
	}
	sf.mu.Unlock()

	select {
	case <-ctx.Done():
		return result, ctx.Err(), ok
	case <-c.done:
		return c.result, c.err, c.shared
	}
}

// join returns the running call for key, or registers a new one.
// sf.mu must be held.
func (sf *SingleFlight[T]) join(key string) (*call[T], bool) {
	if sf.calls == nil {
		sf.calls = make(map[string]*call[T])
	}
	if c, ok := sf.calls[key]; ok {
		c.dups++
		return c, true
	}
	c := &call[T]{done: make(chan struct{})}
	sf.calls[key] = c
	return c, false
}

func (sf *SingleFlight[T]) run(key string, c *call[T], fn func() (T, error)) {
	c.result, c.err = fn()

	sf.mu.Lock()
	delete(sf.calls, key)
	c.shared = c.dups > 0
	sf.mu.Unlock()
	close(c.done)
}

// InFlight reports whether a call for key is currently running.
func (sf *SingleFlight[T]) InFlight(key string) bool {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	_, ok := sf.calls[key]
	return ok
}

// Close rejects further DoContext calls and waits for running ones.
func (sf *SingleFlight[T]) Close() {
	sf.mu.Lock()
	sf.closed = true
	sf.mu.Unlock()
	sf.wg.Wait()
}
