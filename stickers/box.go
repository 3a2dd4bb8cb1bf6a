package stickers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/prilive-com/stickerbox/internal/syncutil"
	"github.com/prilive-com/stickerbox/tg"
)

// Transport sends sticker-set requests to the server.
type Transport interface {
	GetStickerSet(ctx context.Context, set tg.InputStickerSet) (*tg.StickerSetResponse, error)
	InstallStickerSet(ctx context.Context, set tg.InputStickerSet, archived bool) (*tg.InstallResult, error)
}

// FetchFunc fetches a sticker set. Sessions use it to share one request
// between boxes opened for the same set.
type FetchFunc func(ctx context.Context, set tg.InputStickerSet) (*tg.StickerSetResponse, error)

// DefaultLinkBase prefixes share links.
const DefaultLinkBase = "https://t.me/"

// Status is the load state of a Box.
type Status int

const (
	StatusLoading Status = iota
	StatusFailed
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusFailed:
		return "failed"
	case StatusReady:
		return "ready"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Action is a user action offered by a Box.
type Action int

const (
	ActionAdd Action = iota
	ActionCancel
	ActionDone
	ActionShare
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionCancel:
		return "cancel"
	case ActionDone:
		return "done"
	case ActionShare:
		return "share"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Box is one preview and install session for a sticker set.
type Box struct {
	input       tg.InputStickerSet
	transport   Transport
	docs        DocumentStore
	reconciler  *Reconciler
	fetch       FetchFunc
	linkBase    string
	logger      *slog.Logger
	onInstalled func(SetID)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	status   Status
	parsed   *ParsedSet
	loadErr  error
	inFlight bool
	closed   bool
}

// BoxOption configures a Box.
type BoxOption func(*Box)

// WithFetcher replaces the transport's GetStickerSet for loads.
func WithFetcher(fetch FetchFunc) BoxOption {
	return func(b *Box) {
		b.fetch = fetch
	}
}

// WithLinkBase sets the prefix of share links.
func WithLinkBase(base string) BoxOption {
	return func(b *Box) {
		b.linkBase = base
	}
}

// WithBoxLogger sets the logger.
func WithBoxLogger(logger *slog.Logger) BoxOption {
	return func(b *Box) {
		b.logger = logger
	}
}

// OnInstalled registers fn to run after an install has been reconciled.
func OnInstalled(fn func(SetID)) BoxOption {
	return func(b *Box) {
		b.onInstalled = fn
	}
}

// NewBox creates a Box for input. Call Load to fetch the set.
func NewBox(input tg.InputStickerSet, transport Transport, docs DocumentStore, reconciler *Reconciler, opts ...BoxOption) *Box {
	b := &Box{
		input:      input,
		transport:  transport,
		docs:       docs,
		reconciler: reconciler,
		linkBase:   DefaultLinkBase,
		logger:     slog.Default(),
		status:     StatusLoading,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.fetch == nil {
		b.fetch = transport.GetStickerSet
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b
}

// Load fetches and parses the set and merges it into the registry.
// Failures are reported as ErrNotFound wrapping the cause.
func (b *Box) Load(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.status = StatusLoading
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(b.ctx, cancel)
	defer stop()

	resp, err := b.fetch(ctx, b.input)
	if err == nil {
		var parsed *ParsedSet
		parsed, err = Parse(resp, b.docs)
		if err == nil {
			return b.loaded(parsed)
		}
	}
	if b.ctx.Err() != nil {
		return ErrClosed
	}
	return b.failed(err)
}

func (b *Box) loaded(parsed *ParsedSet) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.mu.Unlock()

	b.reconciler.ApplyFetched(parsed)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.parsed = parsed
	b.loadErr = nil
	b.status = StatusReady
	b.logger.Debug("sticker set loaded",
		"set_id", uint64(parsed.ID),
		"short_name", parsed.ShortName,
		"stickers", len(parsed.Stickers))
	return nil
}

func (b *Box) failed(cause error) error {
	err := ErrNotFound
	if !errors.Is(cause, ErrNotFound) {
		err = fmt.Errorf("%w: %w", ErrNotFound, cause)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.parsed = nil
	b.loadErr = err
	b.status = StatusFailed
	b.logger.Warn("sticker set load failed", "set", b.input.Key(), "error", cause)
	return err
}

// Install sends the install request. It returns at once; the Pending
// completes after the result has been reconciled.
func (b *Box) Install() (*Pending, error) {
	b.mu.Lock()
	switch {
	case b.closed:
		b.mu.Unlock()
		return nil, ErrClosed
	case b.parsed == nil:
		b.mu.Unlock()
		return nil, ErrNotLoaded
	case b.parsed.Flags.Server.Masks:
		b.mu.Unlock()
		return nil, ErrMasksNotInstallable
	case b.inFlight:
		b.mu.Unlock()
		b.logger.Debug("install already in flight", "set", b.input.Key())
		return nil, ErrAlreadyInFlight
	}
	b.inFlight = true
	parsed := *b.parsed
	p := newPending()
	// Added under mu so a concurrent Close always waits for it.
	syncutil.Go(&b.wg, func() {
		b.install(&parsed, p)
	})
	b.mu.Unlock()
	return p, nil
}

func (b *Box) install(parsed *ParsedSet, p *Pending) {
	result, err := b.transport.InstallStickerSet(b.ctx, b.input, false)
	if b.ctx.Err() != nil {
		b.finish(nil)
		p.complete(Mutation{}, ErrClosed)
		return
	}
	if err != nil {
		b.finish(nil)
		b.logger.Warn("install sticker set failed", "set_id", uint64(parsed.ID), "error", err)
		p.complete(Mutation{}, fmt.Errorf("%w: %w", ErrNotFound, err))
		return
	}

	m := b.reconciler.ApplyInstalled(parsed, result)
	b.finish(parsed)

	if b.onInstalled != nil {
		if r := syncutil.Recover(func() { b.onInstalled(parsed.ID) }); r != nil {
			b.logger.Error("installed callback panicked", "set_id", uint64(parsed.ID), "panic", r)
		}
	}
	p.complete(m, nil)
}

func (b *Box) finish(parsed *ParsedSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight = false
	if parsed != nil && !b.closed {
		b.parsed = parsed
	}
}

// Close cancels outstanding requests and waits for their completions,
// which are dropped. Close is idempotent.
func (b *Box) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}

// Status returns the load state.
func (b *Box) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Err returns the last load error.
func (b *Box) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadErr
}

// Loaded reports whether the set loaded with at least one sticker.
func (b *Box) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parsed != nil
}

// InFlight reports whether an install request is outstanding.
func (b *Box) InFlight() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight
}

// NotInstalled reports whether the loaded set is missing from the registry,
// not installed, or archived.
func (b *Box) NotInstalled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notInstalledLocked()
}

func (b *Box) notInstalledLocked() bool {
	if b.parsed == nil {
		return false
	}
	s, ok := b.reconciler.Registry().Get(b.parsed.ID)
	return !ok || !s.Installed()
}

// Official reports whether the loaded set is an official one.
func (b *Box) Official() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parsed != nil && b.parsed.Official()
}

// SetID returns the id of the loaded set, or 0.
func (b *Box) SetID() SetID {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.parsed == nil {
		return 0
	}
	return b.parsed.ID
}

// Title returns the title of the loaded set, or "".
func (b *Box) Title() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.parsed == nil {
		return ""
	}
	return b.parsed.Title
}

// ShortName returns the short name of the loaded set, or "" for official sets.
func (b *Box) ShortName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.parsed == nil {
		return ""
	}
	return b.parsed.ShortName
}

// Stickers returns the loaded pack.
func (b *Box) Stickers() Pack {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.parsed == nil {
		return nil
	}
	return append(Pack(nil), b.parsed.Stickers...)
}

// Emoji returns the loaded emoji map.
func (b *Box) Emoji() EmojiMap {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.parsed == nil {
		return nil
	}
	return b.parsed.Emoji.clone()
}

// Actions returns the actions to offer for the current state.
func (b *Box) Actions() []Action {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.parsed == nil:
		return []Action{ActionCancel}
	case b.notInstalledLocked():
		return []Action{ActionAdd, ActionCancel}
	case b.parsed.Official():
		return []Action{ActionDone}
	default:
		return []Action{ActionShare, ActionCancel}
	}
}

// ShareLink returns the link to the set, or "" for official or unloaded sets.
func (b *Box) ShareLink() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.parsed == nil || b.parsed.Official() {
		return ""
	}
	base := b.linkBase
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "addstickers/" + b.parsed.ShortName
}

// Pending is the outcome of an install request.
type Pending struct {
	done     chan struct{}
	mutation Mutation
	err      error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) complete(m Mutation, err error) {
	p.mutation = m
	p.err = err
	close(p.done)
}

// Done is closed once the request has completed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the request completes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Mutation, error) {
	select {
	case <-p.done:
		return p.mutation, p.err
	case <-ctx.Done():
		return Mutation{}, ctx.Err()
	}
}
