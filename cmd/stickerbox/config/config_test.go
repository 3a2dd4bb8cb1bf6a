package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line  string
		key   string
		value string
		ok    bool
	}{
		{"FOO=bar", "FOO", "bar", true},
		{"  FOO = bar  ", "FOO", "bar", true},
		{`FOO="quoted value"`, "FOO", "quoted value", true},
		{"FOO='single'", "FOO", "single", true},
		{"export FOO=bar", "FOO", "bar", true},
		{"URL=https://x.test/?a=b", "URL", "https://x.test/?a=b", true},
		{"FOO=", "FOO", "", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"no equals", "", "", false},
		{"=value", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			key, value, ok := parseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"# test env\nSTICKERBOX_DOTENV_NEW=from-file\nSTICKERBOX_DOTENV_SET=from-file\n"), 0o600))

	t.Setenv("STICKERBOX_DOTENV_SET", "from-env")
	t.Setenv("STICKERBOX_DOTENV_NEW", "")
	require.NoError(t, os.Unsetenv("STICKERBOX_DOTENV_NEW"))

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "from-file", os.Getenv("STICKERBOX_DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("STICKERBOX_DOTENV_SET"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLoad(t *testing.T) {
	t.Setenv("STICKERBOX_TOKEN", "s3ss10n-TESTtokenABCdef")
	t.Setenv("STICKERBOX_LOG_LEVEL", "debug")
	t.Setenv("STICKERBOX_DB_PATH", "/tmp/stickers.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "/tmp/stickers.db", cfg.Session.DBPath)
	assert.Equal(t, "s3ss10n-TESTtokenABCdef", cfg.Sender.Token.Value())
}
