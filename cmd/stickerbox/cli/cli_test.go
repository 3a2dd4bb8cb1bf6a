package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/stickerbox"
	"github.com/prilive-com/stickerbox/internal/testutil"
	"github.com/prilive-com/stickerbox/receiver"
	"github.com/prilive-com/stickerbox/sender"
	"github.com/prilive-com/stickerbox/tg"
)

type cliEnv struct {
	server *testutil.MockAPIServer
	dbPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{
		server: testutil.NewMockServer(t),
		dbPath: filepath.Join(t.TempDir(), "stickers.db"),
	}
	env.server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyStickerSet(w, testutil.StickerSetResponse(testutil.TestSetID, testutil.TestShortName, 1, 2, 3))
	})
	return env
}

func (e *cliEnv) connect(ctx context.Context) (*stickerbox.Session, error) {
	s, err := stickerbox.New(testutil.TestToken,
		stickerbox.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		stickerbox.WithBaseURL(e.server.BaseURL()),
		stickerbox.WithRetries(0),
		stickerbox.WithDB(e.dbPath),
		stickerbox.WithSenderOptions(
			sender.WithRateLimit(1000, 1000),
			sender.WithMethodRateLimit(1000, 1000),
		),
	)
	if err != nil {
		return nil, err
	}
	if err := s.Restore(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(e.connect)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(nil)
	require.NotNil(t, cmd)
	assert.Equal(t, "stickerbox", cmd.Use)

	for _, name := range []string{"show", "install", "list", "watch"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "list", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestShow_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "show", testutil.TestShortName, "--format", "json")
	require.NoError(t, err)

	var view BoxView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, testutil.TestSetID, view.ID)
	assert.Equal(t, testutil.TestShortName, view.ShortName)
	assert.Equal(t, 3, view.Count)
	assert.False(t, view.Installed)
	assert.Equal(t, []string{"add", "cancel"}, view.Actions)
	assert.Equal(t, "https://t.me/addstickers/Cats", view.ShareLink)
	assert.Equal(t, map[string]int{testutil.TestEmoji: 3}, view.Emoji)

	c := env.server.LastCapture()
	require.NotNil(t, c)
	c.AssertJSONPath(t, "stickerset.short_name", testutil.TestShortName)
}

func TestShow_LoadFailure(t *testing.T) {
	env := newCLIEnv(t)
	env.server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyBadRequest(w, "STICKERSET_INVALID")
	})

	_, err := env.run(t, "show", "Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load name:Missing")
}

func TestShow_InvalidRef(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "show", "not a name")
	require.Error(t, err)
	assert.Zero(t, env.server.CaptureCount())
}

func TestInstall_ThenList(t *testing.T) {
	env := newCLIEnv(t)
	env.server.OnAPI(sender.MethodInstallStickerSet, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyInstallArchive(w, testutil.StickerSet(9, "Dogs"))
	})

	out, err := env.run(t, "install", testutil.TestShortName)
	require.NoError(t, err)
	assert.Contains(t, out, "installed Cats (3 stickers)")
	assert.Contains(t, out, "archived set 9")

	out, err = env.run(t, "list", "--format", "json")
	require.NoError(t, err)
	var installed ListView
	require.NoError(t, json.Unmarshal([]byte(out), &installed))
	require.Len(t, installed.Sets, 1)
	assert.Equal(t, testutil.TestSetID, installed.Sets[0].ID)
	assert.True(t, installed.Sets[0].Installed)
	assert.NotNil(t, installed.Sets[0].InstalledAt)

	out, err = env.run(t, "list", "--archived", "--format", "json")
	require.NoError(t, err)
	var archived ListView
	require.NoError(t, json.Unmarshal([]byte(out), &archived))
	require.Len(t, archived.Sets, 1)
	assert.Equal(t, uint64(9), archived.Sets[0].ID)
	assert.True(t, archived.Sets[0].Archived)
}

func TestInstall_AlreadyInstalled(t *testing.T) {
	env := newCLIEnv(t)
	env.server.OnAPI(sender.MethodInstallStickerSet, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyInstallSuccess(w)
	})

	_, err := env.run(t, "install", testutil.TestShortName)
	require.NoError(t, err)
	require.Len(t, env.server.CapturesFor(sender.MethodInstallStickerSet), 1)

	env.server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
		resp := testutil.StickerSetResponse(testutil.TestSetID, testutil.TestShortName, 1, 2, 3)
		resp.Set.InstalledDate = 1700000000
		testutil.ReplyStickerSet(w, resp)
	})

	out, err := env.run(t, "install", testutil.TestShortName)
	require.NoError(t, err)
	assert.Contains(t, out, "already installed")
	assert.Len(t, env.server.CapturesFor(sender.MethodInstallStickerSet), 1)
}

func TestList_Empty(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "no sticker sets\n", out)
}

func TestParseSetRef(t *testing.T) {
	tests := []struct {
		ref     string
		want    tg.InputStickerSet
		wantErr bool
	}{
		{"Cats", tg.InputByShortName("Cats"), false},
		{"https://t.me/addstickers/Cats", tg.InputByShortName("Cats"), false},
		{"https://t.me/addstickers/Cats/", tg.InputByShortName("Cats"), false},
		{"7:70", tg.InputByID(7, 70), false},
		{"https://t.me/joinchat/abc", tg.InputStickerSet{}, true},
		{"0:70", tg.InputStickerSet{}, true},
		{"7:x", tg.InputStickerSet{}, true},
		{"", tg.InputStickerSet{}, true},
		{"bad name", tg.InputStickerSet{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := ParseSetRef(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_PrintsChanges(t *testing.T) {
	env := newCLIEnv(t)
	var calls atomic.Int32
	env.server.OnAPI(receiver.MethodGetUpdates, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			testutil.ReplyOK(w, []tg.StickerUpdate{{
				UpdateID:      1,
				NewStickerSet: testutil.StickerSetResponse(testutil.TestSetID, testutil.TestShortName, 1),
			}})
			return
		}
		time.Sleep(10 * time.Millisecond)
		testutil.ReplyOK(w, []tg.StickerUpdate{})
	})

	cmd := NewRootCommand(env.connect)
	var out syncBuffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"watch"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "1 installed, 0 archived")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}

	listOut, err := env.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, listOut, testutil.TestShortName)
}
