package receiver

import (
	"os"
	"strconv"
	"time"

	"github.com/prilive-com/stickerbox/internal/validate"
	"github.com/prilive-com/stickerbox/tg"
)

// Config holds receiver configuration.
type Config struct {
	// Session token
	Token tg.SecretToken

	// API URL (defaults to sender.DefaultBaseURL)
	BaseURL string

	// Long polling configuration
	PollingTimeout     int           // Seconds to wait (0-60)
	PollingLimit       int           // Max updates per request (1-100)
	PollingMaxErrors   int           // Max consecutive errors (0 = unlimited)
	RetryInitialDelay  time.Duration // Initial retry delay
	RetryMaxDelay      time.Duration // Maximum retry delay
	RetryBackoffFactor float64       // Backoff multiplier

	// Channel buffer size
	UpdateBufferSize int

	// Circuit breaker
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollingTimeout:     30,
		PollingLimit:       100,
		PollingMaxErrors:   10,
		RetryInitialDelay:  time.Second,
		RetryMaxDelay:      60 * time.Second,
		RetryBackoffFactor: 2.0,
		UpdateBufferSize:   100,
		BreakerMaxRequests: 5,
		BreakerInterval:    2 * time.Minute,
		BreakerTimeout:     60 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Token.IsEmpty() {
		return ErrTokenRequired
	}
	if err := validate.Token(c.Token.Value()); err != nil {
		return err
	}
	if c.BaseURL != "" {
		if err := validate.URL("base_url", c.BaseURL); err != nil {
			return err
		}
	}
	if c.PollingTimeout < 0 || c.PollingTimeout > 60 {
		return tg.NewConfigError("polling_timeout", "must be 0-60")
	}
	if c.PollingLimit < 1 || c.PollingLimit > 100 {
		return tg.NewConfigError("polling_limit", "must be 1-100")
	}
	if c.RetryBackoffFactor < 1 {
		return tg.NewConfigError("retry_backoff_factor", "must be at least 1")
	}
	return nil
}

// LoadConfig loads configuration from STICKERBOX_* environment variables.
// Unparseable values keep their defaults.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	cfg.Token = tg.SecretToken(getEnv("STICKERBOX_TOKEN", ""))
	cfg.BaseURL = getEnv("STICKERBOX_API_BASE_URL", "")

	if i, err := strconv.Atoi(getEnv("STICKERBOX_POLLING_TIMEOUT", "30")); err == nil {
		cfg.PollingTimeout = i
	}
	if i, err := strconv.Atoi(getEnv("STICKERBOX_POLLING_LIMIT", "100")); err == nil {
		cfg.PollingLimit = i
	}
	if i, err := strconv.Atoi(getEnv("STICKERBOX_POLLING_MAX_ERRORS", "10")); err == nil {
		cfg.PollingMaxErrors = i
	}

	if d, err := time.ParseDuration(getEnv("STICKERBOX_POLLING_RETRY_INITIAL_DELAY", "1s")); err == nil {
		cfg.RetryInitialDelay = d
	}
	if d, err := time.ParseDuration(getEnv("STICKERBOX_POLLING_RETRY_MAX_DELAY", "60s")); err == nil {
		cfg.RetryMaxDelay = d
	}
	if f, err := strconv.ParseFloat(getEnv("STICKERBOX_POLLING_RETRY_BACKOFF_FACTOR", "2.0"), 64); err == nil {
		cfg.RetryBackoffFactor = f
	}

	if i, err := strconv.Atoi(getEnv("STICKERBOX_UPDATE_BUFFER_SIZE", "100")); err == nil {
		cfg.UpdateBufferSize = i
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
