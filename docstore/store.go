// Package docstore caches documents seen in sticker-set responses.
//
// A Store implements stickers.DocumentStore on top of ttlcache. Entries are
// immutable: ingesting a document that changed replaces the entry instead of
// modifying it, so packs built from an earlier response stay consistent.
package docstore

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/prilive-com/stickerbox/stickers"
	"github.com/prilive-com/stickerbox/tg"
)

// Store is a bounded, optionally expiring document cache.
type Store struct {
	cache    *ttlcache.Cache[stickers.DocumentID, *stickers.Document]
	ttl      time.Duration
	capacity uint64
	logger   *slog.Logger

	mu      sync.Mutex // serializes Ingest and Close
	running bool
}

// Option configures a Store.
type Option func(*Store)

// WithTTL expires documents not accessed for d. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithCapacity bounds the number of cached documents. Zero means unbounded.
func WithCapacity(n uint64) Option {
	return func(s *Store) {
		s.capacity = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store. When a TTL is set, expired entries are swept by a
// background goroutine until Close.
func New(opts ...Option) *Store {
	s := &Store{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	cacheOpts := []ttlcache.Option[stickers.DocumentID, *stickers.Document]{
		ttlcache.WithTTL[stickers.DocumentID, *stickers.Document](s.ttl),
	}
	if s.capacity > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithCapacity[stickers.DocumentID, *stickers.Document](s.capacity))
	}
	s.cache = ttlcache.New[stickers.DocumentID, *stickers.Document](cacheOpts...)

	if s.ttl > 0 {
		s.running = true
		go s.cache.Start()
	}
	return s
}

// Ingest stores a wire document and returns the stored document. An
// unchanged document returns the pointer already cached.
func (s *Store) Ingest(w *tg.Document) *stickers.Document {
	doc := stickers.NewDocument(w)

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.cache.Get(doc.ID); item != nil {
		if cached := item.Value(); cached.Equal(doc) {
			return cached
		}
		s.logger.Debug("document changed", "document_id", uint64(doc.ID))
	}
	s.cache.Set(doc.ID, doc, ttlcache.DefaultTTL)
	return doc
}

// Resolve looks a document up by id.
func (s *Store) Resolve(id stickers.DocumentID) (*stickers.Document, bool) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Put stores documents restored from persistence, replacing cached ones.
func (s *Store) Put(docs ...*stickers.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		if d == nil {
			continue
		}
		s.cache.Set(d.ID, d, ttlcache.DefaultTTL)
	}
}

// Forget drops a document.
func (s *Store) Forget(id stickers.DocumentID) {
	s.cache.Delete(id)
}

// Len returns the number of cached documents.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Close stops the expiry sweeper. Close is idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.running = false
		s.cache.Stop()
	}
}
