package stickerbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/stickerbox/internal/testutil"
	"github.com/prilive-com/stickerbox/receiver"
	"github.com/prilive-com/stickerbox/sender"
	"github.com/prilive-com/stickerbox/stickers"
	"github.com/prilive-com/stickerbox/tg"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, server *testutil.MockAPIServer, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		WithLogger(quietLogger()),
		WithBaseURL(server.BaseURL()),
		WithRetries(0),
		WithSenderOptions(
			sender.WithRateLimit(1000, 1000),
			sender.WithMethodRateLimit(1000, 1000),
		),
	}
	s, err := New(testutil.TestToken, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func serveCats(server *testutil.MockAPIServer) {
	server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyStickerSet(w, testutil.StickerSetResponse(testutil.TestSetID, testutil.TestShortName, 1, 2))
	})
	server.OnAPI(sender.MethodInstallStickerSet, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyInstallSuccess(w)
	})
}

func waitPending(t *testing.T, p *stickers.Pending) stickers.Mutation {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := p.Wait(ctx)
	require.NoError(t, err)
	return m
}

func TestSession_InstallPersistsAndRestores(t *testing.T) {
	server := testutil.NewMockServer(t)
	serveCats(server)
	dbPath := filepath.Join(t.TempDir(), "stickers.db")

	s := newTestSession(t, server, WithDB(dbPath))
	require.NoError(t, s.Restore(context.Background()))

	var changes atomic.Int32
	s.Subscribe(func() { changes.Add(1) })

	box := s.Open(tg.InputByShortName(testutil.TestShortName))
	require.NoError(t, box.Load(context.Background()))
	assert.True(t, box.NotInstalled())

	p, err := box.Install()
	require.NoError(t, err)
	m := waitPending(t, p)
	box.Close()

	assert.True(t, m.WroteInstalled)
	assert.Equal(t, int32(1), changes.Load())
	assert.Equal(t, []stickers.SetID{7}, s.Registry().Order())

	install := server.CapturesFor(sender.MethodInstallStickerSet)
	require.Len(t, install, 1)
	install[0].AssertJSONPath(t, "stickerset.short_name", testutil.TestShortName)
	install[0].AssertJSONField(t, "archived", false)
	require.NoError(t, s.Close())

	restored := newTestSession(t, server, WithDB(dbPath))
	require.NoError(t, restored.Restore(context.Background()))

	assert.Equal(t, []stickers.SetID{7}, restored.Registry().Order())
	set, ok := restored.Registry().Get(7)
	require.True(t, ok)
	assert.True(t, set.Installed())
	assert.Equal(t, []stickers.DocumentID{1, 2}, set.Stickers.IDs())

	doc, ok := restored.Documents().Resolve(1)
	require.True(t, ok, "restored documents are cached")
	assert.True(t, doc.IsSticker())
}

func TestSession_SharesConcurrentFetches(t *testing.T) {
	server := testutil.NewMockServer(t)
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var requests atomic.Int32
	server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		entered <- struct{}{}
		<-release
		testutil.ReplyStickerSet(w, testutil.StickerSetResponse(7, "Cats", 1))
	})

	s := newTestSession(t, server)
	input := tg.InputByShortName("Cats")
	first := s.Open(input)
	second := s.Open(input)
	t.Cleanup(first.Close)
	t.Cleanup(second.Close)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = first.Load(context.Background())
	}()
	<-entered
	require.True(t, s.fetches.InFlight(input.Key()))

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[1] = second.Load(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, "Cats stickers", second.Title())
}

func TestSession_ClosingOneBoxKeepsSharedFetch(t *testing.T) {
	server := testutil.NewMockServer(t)
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var requests atomic.Int32
	server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		entered <- struct{}{}
		<-release
		testutil.ReplyStickerSet(w, testutil.StickerSetResponse(7, "Cats", 1))
	})

	s := newTestSession(t, server)
	input := tg.InputByShortName("Cats")
	first := s.Open(input)
	second := s.Open(input)
	t.Cleanup(second.Close)

	firstErr := make(chan error, 1)
	go func() { firstErr <- first.Load(context.Background()) }()
	<-entered

	secondErr := make(chan error, 1)
	go func() { secondErr <- second.Load(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	first.Close()
	assert.ErrorIs(t, <-firstErr, stickers.ErrClosed)
	require.True(t, s.fetches.InFlight(input.Key()), "closing one box must not cancel the shared request")

	close(release)
	require.NoError(t, <-secondErr)
	assert.Equal(t, stickers.StatusReady, second.Status())
	assert.Equal(t, "Cats stickers", second.Title())
	assert.Equal(t, int32(1), requests.Load())
}

func TestSession_FetchAfterClose(t *testing.T) {
	server := testutil.NewMockServer(t)
	serveCats(server)

	s := newTestSession(t, server)
	require.NoError(t, s.Close())

	_, err := s.fetch(context.Background(), tg.InputByShortName(testutil.TestShortName))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_LoadFailureIsNotFound(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyBadRequest(w, "STICKERSET_INVALID")
	})

	s := newTestSession(t, server)
	box := s.Open(tg.InputByShortName("Nope"))
	defer box.Close()

	err := box.Load(context.Background())
	assert.ErrorIs(t, err, stickers.ErrNotFound)
	assert.ErrorIs(t, err, tg.ErrStickerSetInvalid)
	assert.Equal(t, stickers.StatusFailed, box.Status())
}

func TestSession_OpenForDocument(t *testing.T) {
	server := testutil.NewMockServer(t)
	serveCats(server)
	s := newTestSession(t, server)

	plain := testutil.PlainDoc(3)
	_, err := s.OpenForDocument(stickers.NewDocument(&plain))
	assert.ErrorIs(t, err, stickers.ErrNotASticker)

	orphan := testutil.StickerDoc(4, 7, "🐱")
	orphan.Sticker.Set = tg.InputStickerSet{}
	_, err = s.OpenForDocument(stickers.NewDocument(&orphan))
	assert.ErrorIs(t, err, stickers.ErrNotASticker)

	_, err = s.OpenForDocument(nil)
	assert.ErrorIs(t, err, stickers.ErrNotASticker)

	w := testutil.StickerDoc(1, 7, "🐱")
	box, err := s.OpenForDocument(stickers.NewDocument(&w))
	require.NoError(t, err)
	defer box.Close()

	require.NoError(t, box.Load(context.Background()))
	assert.Equal(t, stickers.SetID(7), box.SetID())
	server.LastCapture().AssertJSONPath(t, "stickerset.id", float64(7))
}

func TestSession_RecordUsed(t *testing.T) {
	server := testutil.NewMockServer(t)
	s := newTestSession(t, server)

	var changes atomic.Int32
	unsubscribe := s.Subscribe(func() { changes.Add(1) })

	w := testutil.StickerDoc(90, 9, "🐶")
	m := s.RecordUsed(stickers.NewDocument(&w))
	assert.True(t, m.Created)
	assert.True(t, m.Notified)
	assert.Equal(t, int32(1), changes.Load())

	unsubscribe()
	s.RecordUsed(stickers.NewDocument(&w))
	assert.Equal(t, int32(1), changes.Load())

	custom, ok := s.Registry().Custom()
	require.True(t, ok)
	assert.Equal(t, []stickers.DocumentID{90}, custom.Stickers.IDs())
}

func TestSession_WithTransport(t *testing.T) {
	transport := &staticTransport{resp: testutil.StickerSetResponse(7, "Cats", 1)}
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	s, err := New("", WithTransport(transport), WithLogger(quietLogger()), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	defer s.Close()
	assert.Nil(t, s.Sender())
	assert.NotNil(t, s.Reconciler())

	box := s.Open(tg.InputByShortName("Cats"))
	defer box.Close()
	require.NoError(t, box.Load(context.Background()))
	p, err := box.Install()
	require.NoError(t, err)
	waitPending(t, p)

	set, _ := s.Registry().Get(7)
	assert.Equal(t, fixed, set.InstallDate)
}

func TestSession_InvalidToken(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, tg.ErrInvalidToken)

	_, err = New("bad token")
	assert.ErrorIs(t, err, tg.ErrInvalidToken)
}

func TestSession_InvalidConfig(t *testing.T) {
	_, err := New(testutil.TestToken, WithLinkBase("ftp://nope"))
	assert.ErrorIs(t, err, tg.ErrInvalidConfig)
}

func TestSession_CloseIdempotent(t *testing.T) {
	server := testutil.NewMockServer(t)
	s := newTestSession(t, server, WithDB(filepath.Join(t.TempDir(), "s.db")), WithDeferredNotifications())

	const goroutines = 20
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Close())
		}()
	}
	wg.Wait()
}

type staticTransport struct {
	resp *tg.StickerSetResponse
}

func (s *staticTransport) GetStickerSet(context.Context, tg.InputStickerSet) (*tg.StickerSetResponse, error) {
	return s.resp, nil
}

func (s *staticTransport) InstallStickerSet(context.Context, tg.InputStickerSet, bool) (*tg.InstallResult, error) {
	return &tg.InstallResult{Kind: tg.InstallResultSuccess}, nil
}

func TestSession_HandleUpdate(t *testing.T) {
	server := testutil.NewMockServer(t)
	s := newTestSession(t, server, WithDB(filepath.Join(t.TempDir(), "stickers.db")))

	var notified atomic.Int32
	s.Subscribe(func() { notified.Add(1) })

	err := s.HandleUpdate(tg.StickerUpdate{
		UpdateID:      1,
		NewStickerSet: testutil.StickerSetResponse(testutil.TestSetID, testutil.TestShortName, 1, 2),
	})
	require.NoError(t, err)

	set, ok := s.Registry().Get(stickers.SetID(testutil.TestSetID))
	require.True(t, ok)
	assert.True(t, set.Installed())
	assert.Equal(t, []stickers.SetID{stickers.SetID(testutil.TestSetID)}, s.Registry().Order())
	_, cached := s.Documents().Resolve(1)
	assert.True(t, cached)

	err = s.HandleUpdate(tg.StickerUpdate{
		UpdateID:            2,
		ArchivedStickerSets: []tg.StickerSetCovered{{Set: testutil.StickerSet(testutil.TestSetID, testutil.TestShortName)}},
	})
	require.NoError(t, err)

	assert.Empty(t, s.Registry().Order())
	assert.Equal(t, []stickers.SetID{stickers.SetID(testutil.TestSetID)}, s.Registry().ArchivedOrder())
	assert.Equal(t, int32(2), notified.Load())
}

func TestSession_HandleUpdate_EmptySet(t *testing.T) {
	server := testutil.NewMockServer(t)
	s := newTestSession(t, server)

	err := s.HandleUpdate(tg.StickerUpdate{
		UpdateID:      3,
		NewStickerSet: testutil.StickerSetResponse(testutil.TestSetID, testutil.TestShortName),
	})
	assert.ErrorIs(t, err, stickers.ErrNotFound)
	assert.Zero(t, s.Registry().Len())
}

func watchConfig(server *testutil.MockAPIServer) receiver.Config {
	cfg := receiver.DefaultConfig()
	cfg.Token = tg.SecretToken(testutil.TestToken)
	cfg.BaseURL = server.BaseURL()
	cfg.PollingTimeout = 1
	cfg.PollingMaxErrors = 2
	cfg.RetryInitialDelay = 10 * time.Millisecond
	cfg.RetryMaxDelay = 20 * time.Millisecond
	return cfg
}

func TestSession_WatchAppliesUpdates(t *testing.T) {
	server := testutil.NewMockServer(t)
	var calls atomic.Int32
	server.OnAPI(receiver.MethodGetUpdates, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			testutil.ReplyOK(w, []tg.StickerUpdate{{
				UpdateID:      10,
				NewStickerSet: testutil.StickerSetResponse(testutil.TestSetID, testutil.TestShortName, 1),
			}})
			return
		}
		time.Sleep(10 * time.Millisecond)
		testutil.ReplyOK(w, []tg.StickerUpdate{})
	})
	s := newTestSession(t, server, WithReceiverConfig(watchConfig(server)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	assert.Eventually(t, func() bool {
		set, ok := s.Registry().Get(stickers.SetID(testutil.TestSetID))
		return ok && set.Installed()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestSession_WatchGivesUp(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnAPI(receiver.MethodGetUpdates, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyBadRequest(w, "SESSION_REVOKED")
	})
	s := newTestSession(t, server, WithReceiverConfig(watchConfig(server)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.ErrorIs(t, s.Watch(ctx), receiver.ErrTooManyFailures)
}

func TestSession_WatchUsesSenderToken(t *testing.T) {
	server := testutil.NewMockServer(t)
	s := newTestSession(t, server)

	assert.Equal(t, testutil.TestToken, s.pollConfig.Token.Value())
	assert.Equal(t, server.BaseURL(), s.pollConfig.BaseURL)
}
