// Command stickerbox previews, installs and lists sticker sets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prilive-com/stickerbox"
	"github.com/prilive-com/stickerbox/cmd/stickerbox/cli"
	"github.com/prilive-com/stickerbox/cmd/stickerbox/config"
)

func main() {
	// Load .env file if present (doesn't override existing env vars)
	_ = config.LoadDotEnv(".env")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context) (*stickerbox.Session, error) {
		return connect(ctx, logger)
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func connect(ctx context.Context, logger *slog.Logger) (*stickerbox.Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	s, err := stickerbox.NewFromConfig(cfg.Session, cfg.Sender, stickerbox.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := s.Restore(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	logger.Debug("session ready",
		"db", cfg.Session.DBPath,
		"api", cfg.Sender.BaseURL,
		"installed", len(s.Registry().Order()))
	return s, nil
}
