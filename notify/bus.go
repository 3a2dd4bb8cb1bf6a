// Package notify delivers "stickers changed" events to subscribers.
package notify

import (
	"log/slog"
	"sync"

	"github.com/prilive-com/stickerbox/internal/syncutil"
)

// Bus is a list of subscribers notified when sticker data changes.
// It implements stickers.Notifier.
type Bus struct {
	logger   *slog.Logger
	deferred bool

	mu     sync.Mutex
	subs   []subscriber
	nextID uint64
	closed bool

	wg sync.WaitGroup
}

type subscriber struct {
	id uint64
	fn func()
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// Deferred delivers each notification on its own goroutine instead of
// calling subscribers before NotifyStickersChanged returns.
func Deferred() Option {
	return func(b *Bus) {
		b.deferred = true
	}
}

// New creates a Bus.
func New(opts ...Option) *Bus {
	b := &Bus{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// NotifyStickersChanged calls every subscriber in registration order.
// Notifications after Close are dropped.
func (b *Bus) NotifyStickersChanged() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := append([]subscriber(nil), b.subs...)
	if b.deferred {
		// Started under the lock so Close cannot miss the delivery.
		syncutil.GoSafe(&b.wg, func() { b.deliver(subs) }, func(r any) {
			b.logger.Error("stickers delivery panicked", "panic", r)
		})
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	b.deliver(subs)
}

func (b *Bus) deliver(subs []subscriber) {
	for _, s := range subs {
		if r := syncutil.Recover(s.fn); r != nil {
			b.logger.Error("stickers subscriber panicked", "subscriber", s.id, "panic", r)
		}
	}
}

// Close drops further notifications and waits for deferred deliveries.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
}
