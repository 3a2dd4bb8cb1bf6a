package stickerbox

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/prilive-com/stickerbox/internal/validate"
	"github.com/prilive-com/stickerbox/stickers"
	"github.com/prilive-com/stickerbox/tg"
)

// Config holds session settings. Transport settings live in sender.Config.
type Config struct {
	// Database file for installed and archived sets. Empty disables
	// persistence.
	DBPath string

	// Document cache
	DocumentTTL      time.Duration // 0 = never expire
	DocumentCapacity uint64        // 0 = unbounded

	// Prefix of share links
	LinkBase string

	// Deliver change notifications on their own goroutines
	DeferredNotifications bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DocumentCapacity: 4096,
		LinkBase:         stickers.DefaultLinkBase,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validate.URL("link_base", c.LinkBase); err != nil {
		var vErr *tg.ValidationError
		if errors.As(err, &vErr) {
			return tg.NewConfigError(vErr.Field, vErr.Message)
		}
		return err
	}
	if c.DocumentTTL < 0 {
		return tg.NewConfigError("document_ttl", "cannot be negative")
	}
	return nil
}

// LoadConfig reads STICKERBOX_DB_PATH, STICKERBOX_DOCUMENT_TTL,
// STICKERBOX_DOCUMENT_CAPACITY, STICKERBOX_LINK_BASE and
// STICKERBOX_DEFERRED_NOTIFY. Unparseable values keep their defaults.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	cfg.DBPath = os.Getenv("STICKERBOX_DB_PATH")

	if v, ok := os.LookupEnv("STICKERBOX_DOCUMENT_TTL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DocumentTTL = d
		}
	}
	if v, ok := os.LookupEnv("STICKERBOX_DOCUMENT_CAPACITY"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.DocumentCapacity = n
		}
	}
	if v, ok := os.LookupEnv("STICKERBOX_LINK_BASE"); ok && v != "" {
		cfg.LinkBase = v
	}
	if v, ok := os.LookupEnv("STICKERBOX_DEFERRED_NOTIFY"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DeferredNotifications = b
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
