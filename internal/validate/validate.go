// Package validate checks caller-supplied identifiers before they reach the
// transport. Every failure is a *tg.ValidationError.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/prilive-com/stickerbox/tg"
)

// New creates a new validation error.
func New(field, message string) *tg.ValidationError {
	return tg.NewValidationError(field, message)
}

// Newf creates a new validation error with formatted message.
func Newf(field, format string, args ...any) *tg.ValidationError {
	return tg.NewValidationError(field, fmt.Sprintf(format, args...))
}

// MaxShortNameLength is the longest short name the server accepts.
const MaxShortNameLength = 64

var shortNameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Token validates a session token: non-empty, printable, no whitespace or
// path separators (it is embedded in the request path).
func Token(token string) error {
	if token == "" {
		return New("token", "cannot be empty")
	}
	if strings.ContainsAny(token, "/?# \t\r\n") {
		return New("token", "contains characters not allowed in a URL path segment")
	}
	return nil
}

// ShortName validates a sticker set short name.
func ShortName(name string) error {
	if name == "" {
		return New("short_name", "cannot be empty")
	}
	if len(name) > MaxShortNameLength {
		return Newf("short_name", "exceeds maximum length of %d", MaxShortNameLength)
	}
	if !shortNameRegex.MatchString(name) {
		return New("short_name", "may contain only letters, digits and underscores")
	}
	return nil
}

// StickerSet validates an InputStickerSet reference.
func StickerSet(in tg.InputStickerSet) error {
	if in.IsEmpty() {
		return New("stickerset", "must reference a set by id or short name")
	}
	if in.ShortName != "" {
		return ShortName(in.ShortName)
	}
	return nil
}

// URL validates a URL string.
func URL(field, url string) error {
	if url == "" {
		return New(field, "cannot be empty")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return New(field, "must start with http:// or https://")
	}
	return nil
}

// Positive validates that a value is positive.
func Positive(field string, value int) error {
	if value <= 0 {
		return Newf(field, "must be positive, got %d", value)
	}
	return nil
}

// NonNegative validates that a value is non-negative.
func NonNegative(field string, value int) error {
	if value < 0 {
		return Newf(field, "cannot be negative, got %d", value)
	}
	return nil
}
