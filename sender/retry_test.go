package sender_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/stickerbox/internal/testutil"
	"github.com/prilive-com/stickerbox/sender"
	"github.com/prilive-com/stickerbox/tg"
)

var catsSet = tg.InputByShortName(testutil.TestShortName)

// failThen serves fail for the first n calls and a sticker set afterwards.
func failThen(n int32, attempts *atomic.Int32, fail func(w http.ResponseWriter)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= n {
			fail(w)
			return
		}
		testutil.ReplyStickerSet(w, testutil.StickerSetResponse(testutil.TestSetID, testutil.TestShortName, 1))
	}
}

func TestRetry_429WithRetryAfter(t *testing.T) {
	var attempts atomic.Int32

	server := testutil.NewMockServer(t)
	server.OnAPI(sender.MethodGetStickerSet, failThen(1, &attempts, func(w http.ResponseWriter) {
		testutil.ReplyRateLimit(w, 5)
	}))

	sleeper := &testutil.FakeSleeper{}
	client := testutil.NewRetryTestClient(t, server.BaseURL(), sleeper, sender.WithRetries(3))

	set, err := client.GetStickerSet(context.Background(), catsSet)

	require.NoError(t, err)
	assert.Equal(t, testutil.TestSetID, set.Set.ID)
	assert.Equal(t, int32(2), attempts.Load(), "should have made 2 attempts")
	assert.Equal(t, 1, sleeper.CallCount(), "should have slept once")
	assert.Equal(t, 5*time.Second, sleeper.LastCall(), "should sleep for retry_after duration")
}

func TestRetry_429WithRetryAfterHTTPHeaderFallback(t *testing.T) {
	var attempts atomic.Int32

	server := testutil.NewMockServer(t)
	server.OnAPI(sender.MethodGetStickerSet, failThen(1, &attempts, func(w http.ResponseWriter) {
		testutil.ReplyRateLimitHeaderOnly(w, 3)
	}))

	sleeper := &testutil.FakeSleeper{}
	client := testutil.NewRetryTestClient(t, server.BaseURL(), sleeper, sender.WithRetries(3))

	_, err := client.GetStickerSet(context.Background(), catsSet)

	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, 3*time.Second, sleeper.LastCall(), "should sleep for HTTP header retry_after duration")
}

func TestRetry_FloodWaitDescription(t *testing.T) {
	var attempts atomic.Int32

	server := testutil.NewMockServer(t)
	server.OnAPI(sender.MethodInstallStickerSet, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			testutil.ReplyFloodWait(w, 4)
			return
		}
		testutil.ReplyInstallSuccess(w)
	})

	sleeper := &testutil.FakeSleeper{}
	client := testutil.NewRetryTestClient(t, server.BaseURL(), sleeper, sender.WithRetries(3))

	res, err := client.InstallStickerSet(context.Background(), catsSet, false)

	require.NoError(t, err)
	assert.False(t, res.IsArchive())
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, []time.Duration{4 * time.Second, 4 * time.Second}, sleeper.Calls())
}

func TestRetry_5xxWithExponentialBackoff(t *testing.T) {
	var attempts atomic.Int32

	server := testutil.NewMockServer(t)
	server.OnAPI(sender.MethodGetStickerSet, failThen(2, &attempts, func(w http.ResponseWriter) {
		testutil.ReplyServerError(w, 503, "Service Unavailable")
	}))

	sleeper := &testutil.FakeSleeper{}
	client := testutil.NewRetryTestClient(t, server.BaseURL(), sleeper, sender.WithRetries(3))

	_, err := client.GetStickerSet(context.Background(), catsSet)

	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	require.Equal(t, 2, sleeper.CallCount())
	// Base 1s then 2s, each with ±20% jitter
	assert.GreaterOrEqual(t, sleeper.CallAt(0), 800*time.Millisecond)
	assert.LessOrEqual(t, sleeper.CallAt(0), 1200*time.Millisecond)
	assert.GreaterOrEqual(t, sleeper.CallAt(1), 1600*time.Millisecond)
	assert.LessOrEqual(t, sleeper.CallAt(1), 2400*time.Millisecond)
}

func TestRetry_InstallNotRepeatedAfterServerError(t *testing.T) {
	var attempts atomic.Int32

	server := testutil.NewMockServer(t)
	server.OnAPI(sender.MethodInstallStickerSet, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		testutil.ReplyServerError(w, 503, "Service Unavailable")
	})

	sleeper := &testutil.FakeSleeper{}
	client := testutil.NewRetryTestClient(t, server.BaseURL(), sleeper, sender.WithRetries(3))

	_, err := client.InstallStickerSet(context.Background(), catsSet, false)

	require.Error(t, err)
	assert.NotErrorIs(t, err, sender.ErrMaxRetries)
	var apiErr *tg.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 503, apiErr.Code)
	assert.Equal(t, int32(1), attempts.Load(), "install must not be repeated after a server error")
	assert.Zero(t, sleeper.CallCount())
}

func TestRetry_NoRetryOn4xx(t *testing.T) {
	tests := []struct {
		name     string
		response func(w http.ResponseWriter)
		sentinel error
	}{
		{
			name:     "400 set invalid",
			response: func(w http.ResponseWriter) { testutil.ReplyBadRequest(w, "STICKERSET_INVALID") },
			sentinel: tg.ErrStickerSetInvalid,
		},
		{
			name:     "400 too many sets",
			response: func(w http.ResponseWriter) { testutil.ReplyBadRequest(w, "STICKERS_TOO_MUCH") },
			sentinel: tg.ErrStickersTooMuch,
		},
		{
			name:     "401 unauthorized",
			response: func(w http.ResponseWriter) { testutil.ReplyError(w, 401, "AUTH_KEY_UNREGISTERED", nil) },
			sentinel: tg.ErrUnauthorized,
		},
		{
			name:     "403 forbidden",
			response: func(w http.ResponseWriter) { testutil.ReplyError(w, 403, "Forbidden", nil) },
			sentinel: tg.ErrForbidden,
		},
		{
			name:     "404 not found",
			response: func(w http.ResponseWriter) { testutil.ReplyError(w, 404, "Not Found", nil) },
			sentinel: tg.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			server := testutil.NewMockServer(t)
			server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				tt.response(w)
			})

			sleeper := &testutil.FakeSleeper{}
			client := testutil.NewRetryTestClient(t, server.BaseURL(), sleeper, sender.WithRetries(3))

			_, err := client.GetStickerSet(context.Background(), catsSet)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.NotErrorIs(t, err, sender.ErrMaxRetries, "4xx must not be wrapped in ErrMaxRetries")
			assert.Equal(t, int32(1), attempts.Load(), "should not retry")
			assert.Equal(t, 0, sleeper.CallCount())
		})
	}
}

func TestRetry_MaxRetriesExceeded(t *testing.T) {
	var attempts atomic.Int32

	server := testutil.NewMockServer(t)
	server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		testutil.ReplyServerError(w, 500, "Internal Server Error")
	})

	sleeper := &testutil.FakeSleeper{}
	client := testutil.NewRetryTestClient(t, server.BaseURL(), sleeper, sender.WithRetries(2))

	_, err := client.GetStickerSet(context.Background(), catsSet)

	require.Error(t, err)
	assert.ErrorIs(t, err, sender.ErrMaxRetries)

	var apiErr *sender.APIError
	require.True(t, errors.As(err, &apiErr), "last API error stays in the chain")
	assert.Equal(t, 500, apiErr.Code)
	assert.Equal(t, int32(3), attempts.Load(), "initial attempt plus 2 retries")
	assert.Equal(t, 2, sleeper.CallCount())
}

func TestRetry_NoRetriesConfigured(t *testing.T) {
	var attempts atomic.Int32

	server := testutil.NewMockServer(t)
	server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		testutil.ReplyServerError(w, 502, "Bad Gateway")
	})

	sleeper := &testutil.FakeSleeper{}
	client := testutil.NewRetryTestClient(t, server.BaseURL(), sleeper, sender.WithRetries(0))

	_, err := client.GetStickerSet(context.Background(), catsSet)

	assert.ErrorIs(t, err, sender.ErrMaxRetries)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, 0, sleeper.CallCount())
}

func TestRetry_ContextCancelStopsRetry(t *testing.T) {
	var attempts atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	server := testutil.NewMockServer(t)
	server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		cancel()
		testutil.ReplyServerError(w, 500, "Internal Server Error")
	})

	sleeper := &testutil.FakeSleeper{}
	client := testutil.NewRetryTestClient(t, server.BaseURL(), sleeper, sender.WithRetries(5))

	_, err := client.GetStickerSet(ctx, catsSet)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), attempts.Load())
}
