package tg

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors - use with errors.Is()
var (
	// API errors
	ErrUnauthorized    = errors.New("stickerbox: unauthorized (invalid session)")
	ErrForbidden       = errors.New("stickerbox: forbidden")
	ErrNotFound        = errors.New("stickerbox: not found")
	ErrTooManyRequests = errors.New("stickerbox: too many requests")

	// Sticker set errors
	ErrStickerSetInvalid = errors.New("stickerbox: sticker set invalid")
	ErrStickersTooMuch   = errors.New("stickerbox: too many sticker sets installed")
	ErrDocumentInvalid   = errors.New("stickerbox: document invalid")
	ErrShortNameOccupied = errors.New("stickerbox: short name occupied")

	// Client errors
	ErrRateLimited      = errors.New("stickerbox: rate limit exceeded")
	ErrCircuitOpen      = errors.New("stickerbox: circuit breaker open")
	ErrMaxRetries       = errors.New("stickerbox: max retries exceeded")
	ErrResponseTooLarge = errors.New("stickerbox: response too large")

	// Validation errors
	ErrInvalidToken  = errors.New("stickerbox: invalid session token")
	ErrInvalidConfig = errors.New("stickerbox: invalid configuration")
)

// ResponseParameters contains information about why a request was unsuccessful.
type ResponseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

// APIError represents an error response from the sticker API.
// Use errors.As() to extract details, errors.Is() to match sentinels.
type APIError struct {
	Code        int
	Description string
	RetryAfter  time.Duration
	Method      string              // API method that failed
	Parameters  *ResponseParameters // Additional response parameters
	cause       error               // Underlying sentinel for errors.Is()
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("stickerbox: %s failed: %s (code=%d, retry_after=%s)",
			e.Method, e.Description, e.Code, e.RetryAfter)
	}
	return fmt.Sprintf("stickerbox: %s failed: %s (code=%d)", e.Method, e.Description, e.Code)
}

// Unwrap returns the underlying sentinel error for errors.Is() support.
func (e *APIError) Unwrap() error { return e.cause }

// IsRetryable returns true if the error is temporary and may succeed on retry.
// 420 is the flood-wait code, 429 the generic rate limit.
func (e *APIError) IsRetryable() bool {
	return e.Code == 420 || e.Code == 429 || (e.Code >= 500 && e.Code <= 504)
}

// NewAPIError creates an APIError with automatic sentinel detection.
// A FLOOD_WAIT_<n> description sets RetryAfter to n seconds.
func NewAPIError(method string, code int, description string) *APIError {
	return &APIError{
		Code:        code,
		Description: description,
		Method:      method,
		RetryAfter:  FloodWait(description),
		cause:       DetectSentinel(code, description),
	}
}

// NewAPIErrorWithRetry creates an APIError with retry information.
func NewAPIErrorWithRetry(method string, code int, description string, retryAfter time.Duration) *APIError {
	return &APIError{
		Code:        code,
		Description: description,
		Method:      method,
		RetryAfter:  retryAfter,
		cause:       DetectSentinel(code, description),
	}
}

var floodWaitRe = regexp.MustCompile(`FLOOD_WAIT_(\d+)`)

// FloodWait extracts the wait duration from a FLOOD_WAIT_<seconds> description.
// Returns 0 if the description carries no flood wait.
func FloodWait(desc string) time.Duration {
	m := floodWaitRe.FindStringSubmatch(desc)
	if m == nil {
		return 0
	}
	seconds, err := strconv.Atoi(m[1])
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// DetectSentinel maps API error codes/descriptions to sentinel errors.
// Description-based detection is prioritized over HTTP status codes for more specific errors.
func DetectSentinel(code int, desc string) error {
	descUpper := strings.ToUpper(desc)
	switch {
	case strings.Contains(descUpper, "STICKERSET_INVALID"):
		return ErrStickerSetInvalid
	case strings.Contains(descUpper, "STICKERS_TOO_MUCH"):
		return ErrStickersTooMuch
	case strings.Contains(descUpper, "DOCUMENT_INVALID"):
		return ErrDocumentInvalid
	case strings.Contains(descUpper, "SHORT_NAME_OCCUPIED"):
		return ErrShortNameOccupied
	case strings.Contains(descUpper, "FLOOD_WAIT_"):
		return ErrTooManyRequests
	case strings.Contains(descUpper, "AUTH_KEY_UNREGISTERED"),
		strings.Contains(descUpper, "SESSION_REVOKED"):
		return ErrUnauthorized
	}

	// Fall back to generic HTTP status code sentinels
	switch code {
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 420, 429:
		return ErrTooManyRequests
	}

	return nil
}

// ValidationError represents a request validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("stickerbox: validation: %s - %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("stickerbox: config: %s - %s", e.Key, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidConfig) match any ConfigError.
func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// NewConfigError creates a new ConfigError.
func NewConfigError(key, message string) *ConfigError {
	return &ConfigError{Key: key, Message: message}
}
