package sender

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/prilive-com/stickerbox/internal/validate"
	"github.com/prilive-com/stickerbox/tg"
)

// DefaultBaseURL is the API endpoint used when none is configured.
const DefaultBaseURL = "http://localhost:8081"

// Config holds sender configuration.
type Config struct {
	// Session token
	Token tg.SecretToken

	// API settings
	BaseURL        string
	RequestTimeout time.Duration
	KeepAlive      time.Duration
	MaxIdleConns   int
	IdleTimeout    time.Duration

	// Rate limiting
	GlobalRPS   float64
	GlobalBurst int
	MethodRPS   float64
	MethodBurst int

	// Circuit breaker
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration

	// Retry settings
	MaxRetries    int
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
	RetryFactor   float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:            DefaultBaseURL,
		RequestTimeout:     30 * time.Second,
		KeepAlive:          30 * time.Second,
		MaxIdleConns:       10,
		IdleTimeout:        90 * time.Second,
		GlobalRPS:          20,
		GlobalBurst:        10,
		MethodRPS:          5,
		MethodBurst:        5,
		BreakerMaxRequests: 5,
		BreakerInterval:    60 * time.Second,
		BreakerTimeout:     30 * time.Second,
		MaxRetries:         3,
		RetryBaseWait:      time.Second,
		RetryMaxWait:       30 * time.Second,
		RetryFactor:        2.0,
	}
}

// Validate checks the fields a Client cannot run without.
func (c Config) Validate() error {
	if err := validate.URL("base_url", c.BaseURL); err != nil {
		return asConfigError(err)
	}
	if err := validate.NonNegative("max_retries", c.MaxRetries); err != nil {
		return asConfigError(err)
	}
	if c.GlobalRPS <= 0 || c.GlobalBurst <= 0 {
		return tg.NewConfigError("global_rps", "rate and burst must be positive")
	}
	if c.MethodRPS <= 0 || c.MethodBurst <= 0 {
		return tg.NewConfigError("method_rps", "rate and burst must be positive")
	}
	if c.RetryFactor < 1 {
		return tg.NewConfigError("retry_factor", "must be at least 1")
	}
	return nil
}

// LoadConfig loads configuration from STICKERBOX_* environment variables.
// Unparseable values keep their defaults.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	cfg.Token = tg.SecretToken(getEnv("STICKERBOX_TOKEN", ""))

	if url := getEnv("STICKERBOX_API_BASE_URL", ""); url != "" {
		cfg.BaseURL = url
	}

	if d, err := time.ParseDuration(getEnv("STICKERBOX_REQUEST_TIMEOUT", "30s")); err == nil {
		cfg.RequestTimeout = d
	}

	if f, err := strconv.ParseFloat(getEnv("STICKERBOX_RATE_LIMIT_RPS", "20"), 64); err == nil {
		cfg.GlobalRPS = f
	}

	if i, err := strconv.Atoi(getEnv("STICKERBOX_RATE_LIMIT_BURST", "10")); err == nil {
		cfg.GlobalBurst = i
	}

	if f, err := strconv.ParseFloat(getEnv("STICKERBOX_METHOD_RPS", "5"), 64); err == nil {
		cfg.MethodRPS = f
	}

	if i, err := strconv.Atoi(getEnv("STICKERBOX_METHOD_BURST", "5")); err == nil {
		cfg.MethodBurst = i
	}

	if i, err := strconv.ParseUint(getEnv("STICKERBOX_BREAKER_MAX_REQUESTS", "5"), 10, 32); err == nil {
		cfg.BreakerMaxRequests = uint32(i)
	}

	if d, err := time.ParseDuration(getEnv("STICKERBOX_BREAKER_INTERVAL", "60s")); err == nil {
		cfg.BreakerInterval = d
	}

	if d, err := time.ParseDuration(getEnv("STICKERBOX_BREAKER_TIMEOUT", "30s")); err == nil {
		cfg.BreakerTimeout = d
	}

	if i, err := strconv.Atoi(getEnv("STICKERBOX_MAX_RETRIES", "3")); err == nil {
		cfg.MaxRetries = i
	}

	if d, err := time.ParseDuration(getEnv("STICKERBOX_RETRY_BASE_WAIT", "1s")); err == nil {
		cfg.RetryBaseWait = d
	}

	if d, err := time.ParseDuration(getEnv("STICKERBOX_RETRY_MAX_WAIT", "30s")); err == nil {
		cfg.RetryMaxWait = d
	}

	if f, err := strconv.ParseFloat(getEnv("STICKERBOX_RETRY_FACTOR", "2.0"), 64); err == nil {
		cfg.RetryFactor = f
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func asConfigError(err error) error {
	var vErr *tg.ValidationError
	if errors.As(err, &vErr) {
		return tg.NewConfigError(vErr.Field, vErr.Message)
	}
	return err
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
