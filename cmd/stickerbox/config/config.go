// Package config loads the stickerbox CLI configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/prilive-com/stickerbox"
	"github.com/prilive-com/stickerbox/sender"
)

// Config holds CLI configuration.
type Config struct {
	Session  stickerbox.Config
	Sender   sender.Config
	LogLevel slog.Level
}

// Load reads the session, transport and logging settings from STICKERBOX_*
// environment variables.
func Load() (*Config, error) {
	senderCfg, err := sender.LoadConfig()
	if err != nil {
		return nil, err
	}
	sessionCfg, err := stickerbox.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &Config{
		Session:  *sessionCfg,
		Sender:   *senderCfg,
		LogLevel: LogLevel(),
	}, nil
}

// LogLevel returns the level named by STICKERBOX_LOG_LEVEL, Info by default.
func LogLevel() slog.Level {
	return ParseLevel(os.Getenv("STICKERBOX_LOG_LEVEL"))
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
