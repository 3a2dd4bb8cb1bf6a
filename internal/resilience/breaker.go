package resilience

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32        // Max requests in half-open state
	Interval     time.Duration // Counting interval for failures
	Timeout      time.Duration // Open duration before half-open
	Threshold    uint32        // Consecutive failures before opening
	FailureRatio float64       // Ratio threshold (0.5 = 50%)
	MinRequests  uint32        // Minimum requests before checking ratio

	// Trip replaces the Threshold/FailureRatio rule when set.
	Trip func(counts gobreaker.Counts) bool

	// IsSuccessful classifies errors. A nil func counts every error as a failure.
	IsSuccessful  func(err error) bool
	OnStateChange func(name string, from, to string)
}

// DefaultBreakerConfig returns defaults suited to a single API session.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  5,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		Threshold:    5,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

// ReadyToTrip returns the trip rule for cfg: Threshold consecutive failures,
// or a failure ratio of at least FailureRatio once MinRequests were counted.
func (cfg BreakerConfig) ReadyToTrip(counts gobreaker.Counts) bool {
	if cfg.Trip != nil {
		return cfg.Trip(counts)
	}
	if cfg.Threshold > 0 && counts.ConsecutiveFailures >= cfg.Threshold {
		return true
	}
	if cfg.MinRequests > 0 && counts.Requests >= cfg.MinRequests {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return failureRatio >= cfg.FailureRatio
	}
	return false
}

// NewBreaker creates a new circuit breaker with the given configuration.
func NewBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  cfg.ReadyToTrip,
		IsSuccessful: cfg.IsSuccessful,
	}

	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}

	return gobreaker.NewCircuitBreaker[T](settings)
}

// IsOpen returns true if the circuit breaker is in the open state.
func IsOpen[T any](cb *gobreaker.CircuitBreaker[T]) bool {
	return cb.State() == gobreaker.StateOpen
}

// IsBreakerRejection reports whether err was produced by the breaker itself
// rather than by the protected call.
func IsBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
