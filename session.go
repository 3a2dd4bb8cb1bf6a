package stickerbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prilive-com/stickerbox/docstore"
	"github.com/prilive-com/stickerbox/internal/resilience"
	"github.com/prilive-com/stickerbox/notify"
	"github.com/prilive-com/stickerbox/receiver"
	"github.com/prilive-com/stickerbox/sender"
	"github.com/prilive-com/stickerbox/stickers"
	"github.com/prilive-com/stickerbox/storage"
	"github.com/prilive-com/stickerbox/tg"
)

// ErrClosed is returned by fetches started after Close.
var ErrClosed = errors.New("stickerbox: session closed")

// Session owns the sticker state of one account: the transport, the
// document cache, the registry with its persistence, and the change bus.
type Session struct {
	logger     *slog.Logger
	config     Config
	sender     *sender.Client
	transport  stickers.Transport
	docs       *docstore.Store
	store      *storage.Store
	bus        *notify.Bus
	registry   *stickers.Registry
	reconciler *stickers.Reconciler
	fetches    resilience.SingleFlight[*tg.StickerSetResponse]
	pollConfig receiver.Config

	// lifetime bounds shared fetches; Close cancels it.
	lifetime context.Context
	stop     context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

type sessionConfig struct {
	config       Config
	senderConfig sender.Config
	senderOpts   []sender.Option
	transport    stickers.Transport
	pollConfig   *receiver.Config
	logger       *slog.Logger
	clock        func() time.Time
}

// Option configures the Session.
type Option func(*sessionConfig)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *sessionConfig) {
		c.logger = logger
	}
}

// WithDB persists installed and archived sets in the SQLite file at path.
func WithDB(path string) Option {
	return func(c *sessionConfig) {
		c.config.DBPath = path
	}
}

// WithDocumentCache bounds the document cache.
func WithDocumentCache(capacity uint64, ttl time.Duration) Option {
	return func(c *sessionConfig) {
		c.config.DocumentCapacity = capacity
		c.config.DocumentTTL = ttl
	}
}

// WithLinkBase sets the prefix of share links.
func WithLinkBase(base string) Option {
	return func(c *sessionConfig) {
		c.config.LinkBase = base
	}
}

// WithDeferredNotifications delivers change notifications asynchronously.
func WithDeferredNotifications() Option {
	return func(c *sessionConfig) {
		c.config.DeferredNotifications = true
	}
}

// WithBaseURL sets the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *sessionConfig) {
		c.senderConfig.BaseURL = url
	}
}

// WithRetries sets max retry attempts.
func WithRetries(max int) Option {
	return func(c *sessionConfig) {
		c.senderConfig.MaxRetries = max
	}
}

// WithRateLimit sets rate limiting.
func WithRateLimit(globalRPS float64, burst int) Option {
	return func(c *sessionConfig) {
		c.senderConfig.GlobalRPS = globalRPS
		c.senderConfig.GlobalBurst = burst
	}
}

// WithSenderOptions passes options through to the sender.
func WithSenderOptions(opts ...sender.Option) Option {
	return func(c *sessionConfig) {
		c.senderOpts = append(c.senderOpts, opts...)
	}
}

// WithTransport replaces the HTTP sender. The token is not used.
func WithTransport(t stickers.Transport) Option {
	return func(c *sessionConfig) {
		c.transport = t
	}
}

// WithReceiverConfig sets the update polling configuration used by Watch.
// By default Watch polls with the sender's token and base URL.
func WithReceiverConfig(cfg receiver.Config) Option {
	return func(c *sessionConfig) {
		c.pollConfig = &cfg
	}
}

// WithClock sets the time source for install dates.
func WithClock(now func() time.Time) Option {
	return func(c *sessionConfig) {
		c.clock = now
	}
}

// New creates a Session with default configuration.
func New(token string, opts ...Option) (*Session, error) {
	senderCfg := sender.DefaultConfig()
	senderCfg.Token = tg.SecretToken(token)
	return NewFromConfig(DefaultConfig(), senderCfg, opts...)
}

// NewFromConfig creates a Session from explicit configuration. Options are
// applied on top of cfg and senderCfg.
func NewFromConfig(cfg Config, senderCfg sender.Config, opts ...Option) (*Session, error) {
	sc := sessionConfig{config: cfg, senderConfig: senderCfg}
	for _, opt := range opts {
		opt(&sc)
	}
	if err := sc.config.Validate(); err != nil {
		return nil, err
	}

	logger := sc.logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		logger:    logger,
		config:    sc.config,
		transport: sc.transport,
	}
	if sc.pollConfig != nil {
		s.pollConfig = *sc.pollConfig
	} else {
		s.pollConfig = receiver.DefaultConfig()
		s.pollConfig.Token = sc.senderConfig.Token
		s.pollConfig.BaseURL = sc.senderConfig.BaseURL
	}

	if s.transport == nil {
		client, err := sender.NewFromConfig(sc.senderConfig,
			append([]sender.Option{sender.WithLogger(logger)}, sc.senderOpts...)...)
		if err != nil {
			return nil, err
		}
		s.sender = client
		s.transport = client
	}

	if sc.config.DBPath != "" {
		store, err := storage.Open(sc.config.DBPath, storage.WithLogger(logger))
		if err != nil {
			if s.sender != nil {
				_ = s.sender.Close()
			}
			return nil, err
		}
		s.store = store
	}

	docOpts := []docstore.Option{
		docstore.WithCapacity(sc.config.DocumentCapacity),
		docstore.WithTTL(sc.config.DocumentTTL),
		docstore.WithLogger(logger),
	}
	s.docs = docstore.New(docOpts...)

	busOpts := []notify.Option{notify.WithLogger(logger)}
	if sc.config.DeferredNotifications {
		busOpts = append(busOpts, notify.Deferred())
	}
	s.bus = notify.New(busOpts...)

	recOpts := []stickers.ReconcilerOption{
		stickers.WithNotifier(s.bus),
		stickers.WithLogger(logger),
	}
	if s.store != nil {
		recOpts = append(recOpts, stickers.WithPersister(s.store))
	}
	if sc.clock != nil {
		recOpts = append(recOpts, stickers.WithClock(sc.clock))
	}
	s.registry = stickers.NewRegistry()
	s.reconciler = stickers.NewReconciler(s.registry, recOpts...)
	s.lifetime, s.stop = context.WithCancel(context.Background())

	return s, nil
}

// Restore loads the persisted sets into the registry and their documents
// into the cache. It is a no-op without a database.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	installed, archived, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("stickerbox: restore: %w", err)
	}

	for _, list := range [][]stickers.Set{installed, archived} {
		for i := range list {
			s.docs.Put(list[i].Stickers...)
		}
	}
	s.registry.Restore(installed, archived)

	if err := s.registry.Validate(); err != nil {
		s.logger.Warn("restored registry is inconsistent", "error", err)
	}
	s.logger.Debug("sticker sets restored",
		"installed", len(installed),
		"archived", len(archived))
	return nil
}

// Open creates a preview box for a set. Loads of the same set by boxes of
// one session share a single request.
func (s *Session) Open(input tg.InputStickerSet, opts ...stickers.BoxOption) *stickers.Box {
	base := []stickers.BoxOption{
		stickers.WithFetcher(s.fetch),
		stickers.WithLinkBase(s.config.LinkBase),
		stickers.WithBoxLogger(s.logger),
	}
	return stickers.NewBox(input, s.transport, s.docs, s.reconciler, append(base, opts...)...)
}

// OpenForDocument opens a preview box for the set a sticker belongs to.
// It returns stickers.ErrNotASticker for documents without a set.
func (s *Session) OpenForDocument(doc *stickers.Document, opts ...stickers.BoxOption) (*stickers.Box, error) {
	if !doc.IsSticker() || doc.Sticker.Set.IsEmpty() {
		return nil, stickers.ErrNotASticker
	}
	return s.Open(doc.Sticker.Set, opts...), nil
}

// fetch shares one request per set between concurrent boxes. The request
// runs on the session lifetime, so a box that is closed or whose ctx ends
// stops waiting without cancelling it for the others.
func (s *Session) fetch(ctx context.Context, input tg.InputStickerSet) (*tg.StickerSetResponse, error) {
	resp, err, shared := s.fetches.DoContext(ctx, input.Key(), func() (*tg.StickerSetResponse, error) {
		return s.transport.GetStickerSet(s.lifetime, input)
	})
	if errors.Is(err, resilience.ErrFlightClosed) {
		return nil, ErrClosed
	}
	if shared {
		s.logger.Debug("sticker set fetch shared", "set", input.Key())
	}
	return resp, err
}

// RecordUsed puts a sticker sent from outside the installed sets into the
// custom bucket.
func (s *Session) RecordUsed(doc *stickers.Document) stickers.Mutation {
	return s.reconciler.ApplyUsed(doc)
}

// HandleUpdate applies a server-pushed update: a set installed elsewhere
// goes to the front of the install order, archived sets move to the archive.
func (s *Session) HandleUpdate(u tg.StickerUpdate) error {
	if u.NewStickerSet != nil {
		parsed, err := stickers.Parse(u.NewStickerSet, s.docs)
		if err != nil {
			return fmt.Errorf("stickerbox: update %d: %w", u.UpdateID, err)
		}
		m := s.reconciler.ApplyInstalled(parsed, &tg.InstallResult{Kind: tg.InstallResultSuccess})
		s.logger.Debug("set installed remotely",
			"update_id", u.UpdateID,
			"set_id", uint64(m.SetID),
			"created", m.Created)
	}
	if len(u.ArchivedStickerSets) > 0 {
		m := s.reconciler.ApplyArchivedResult(&tg.InstallResult{
			Kind: tg.InstallResultArchive,
			Sets: u.ArchivedStickerSets,
		})
		s.logger.Debug("sets archived remotely",
			"update_id", u.UpdateID,
			"sets", len(m.ArchivedSets))
	}
	return nil
}

// Watch long-polls for sticker set updates and applies them until ctx is
// cancelled. It returns nil on cancellation and receiver.ErrTooManyFailures
// when polling gives up.
func (s *Session) Watch(ctx context.Context, opts ...receiver.PollingOption) error {
	cfg := s.pollConfig
	if err := cfg.Validate(); err != nil {
		return err
	}

	updates := make(chan tg.StickerUpdate, cfg.UpdateBufferSize)
	poller := receiver.NewPollingClient(cfg.Token, updates, s.logger, cfg, opts...)
	if err := poller.Start(ctx); err != nil {
		return err
	}
	defer poller.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poller.Done():
			return poller.Err()
		case u := <-updates:
			if err := s.HandleUpdate(u); err != nil {
				s.logger.Warn("sticker update dropped", "update_id", u.UpdateID, "error", err)
			}
		}
	}
}

// Subscribe registers fn to run whenever sticker data changes.
func (s *Session) Subscribe(fn func()) (unsubscribe func()) {
	return s.bus.Subscribe(fn)
}

// Registry returns the session's registry.
func (s *Session) Registry() *stickers.Registry {
	return s.registry
}

// Reconciler returns the session's reconciler.
func (s *Session) Reconciler() *stickers.Reconciler {
	return s.reconciler
}

// Documents returns the document cache.
func (s *Session) Documents() *docstore.Store {
	return s.docs
}

// Sender returns the underlying sender client, or nil when a custom
// transport was supplied.
func (s *Session) Sender() *sender.Client {
	return s.sender
}

// Close releases all resources. Boxes should be closed first.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.stop()
		s.fetches.Close()
		s.bus.Close()
		s.docs.Close()

		var errs []error
		if s.store != nil {
			errs = append(errs, s.store.Close())
		}
		if s.sender != nil {
			errs = append(errs, s.sender.Close())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
