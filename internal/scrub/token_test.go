package scrub_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/stickerbox/internal/scrub"
	"github.com/prilive-com/stickerbox/tg"
)

const sessionToken = tg.SecretToken("s3ss10n-abcdef")

func TestTokenFromError_PassThrough(t *testing.T) {
	original := errors.New("connection refused")

	tests := []struct {
		name  string
		err   error
		token tg.SecretToken
		want  error
	}{
		{"nil error", nil, sessionToken, nil},
		{"empty token", original, "", original},
		{"token absent", original, sessionToken, original},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scrub.TokenFromError(tt.err, tt.token))
		})
	}
}

func TestTokenFromError_ScrubsToken(t *testing.T) {
	original := fmt.Errorf("Post \"https://api.example/session/s3ss10n-abcdef/messages.getStickerSet\": dial tcp: no such host")
	result := scrub.TokenFromError(original, sessionToken)

	require.NotEqual(t, original, result)
	assert.Contains(t, result.Error(), "/session/[REDACTED]/messages.getStickerSet")
	assert.NotContains(t, result.Error(), sessionToken.Value())
}

func TestTokenFromError_PreservesErrorChain(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	wrapped := fmt.Errorf("Post https://api.example/session/s3ss10n-abcdef/messages.installStickerSet: %w", netErr)

	result := scrub.TokenFromError(wrapped, sessionToken)

	var opErr *net.OpError
	assert.True(t, errors.As(result, &opErr))
	assert.NotContains(t, result.Error(), sessionToken.Value())
}

func TestTokenFromError_PreservesContextErrors(t *testing.T) {
	wrapped := fmt.Errorf("Post /session/s3ss10n-abcdef/x: %w", context.DeadlineExceeded)

	result := scrub.TokenFromError(wrapped, sessionToken)

	assert.ErrorIs(t, result, context.DeadlineExceeded)
}

