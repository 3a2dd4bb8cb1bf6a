// Package resilience provides the failure-handling primitives shared by the
// stickerbox transport and storage layers: a circuit breaker built on
// sony/gobreaker, a global plus per-key rate limiter built on
// golang.org/x/time/rate, a retry loop with exponential backoff, and a
// SingleFlight for collapsing concurrent identical calls.
package resilience
