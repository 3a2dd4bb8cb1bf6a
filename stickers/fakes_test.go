package stickers_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prilive-com/stickerbox/stickers"
	"github.com/prilive-com/stickerbox/tg"
)

// memDocs is an unbounded DocumentStore.
type memDocs struct {
	mu   sync.Mutex
	docs map[stickers.DocumentID]*stickers.Document
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[stickers.DocumentID]*stickers.Document)}
}

func (m *memDocs) Ingest(w *tg.Document) *stickers.Document {
	d := stickers.NewDocument(w)

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.docs[d.ID]; ok && old.Equal(d) {
		return old
	}
	m.docs[d.ID] = d
	return d
}

func (m *memDocs) Resolve(id stickers.DocumentID) (*stickers.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	return d, ok
}

// fakeTransport serves canned sets. When gate is set, installs block until
// it is closed.
type fakeTransport struct {
	mu            sync.Mutex
	sets          map[string]*tg.StickerSetResponse
	getErr        error
	installResult *tg.InstallResult
	installErr    error
	gate          chan struct{}
	started       chan struct{}
	getCalls      int
	installCalls  int
}

func newFakeTransport(responses ...*tg.StickerSetResponse) *fakeTransport {
	f := &fakeTransport{sets: make(map[string]*tg.StickerSetResponse)}
	for _, r := range responses {
		f.sets[tg.InputByID(r.Set.ID, r.Set.AccessHash).Key()] = r
		f.sets[tg.InputByShortName(r.Set.ShortName).Key()] = r
	}
	return f
}

func (f *fakeTransport) GetStickerSet(_ context.Context, set tg.InputStickerSet) (*tg.StickerSetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	resp, ok := f.sets[set.Key()]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", set.Key(), tg.ErrStickerSetInvalid)
	}
	return resp, nil
}

func (f *fakeTransport) InstallStickerSet(ctx context.Context, _ tg.InputStickerSet, _ bool) (*tg.InstallResult, error) {
	f.mu.Lock()
	f.installCalls++
	gate, started := f.gate, f.started
	result, err := f.installResult, f.installErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &tg.InstallResult{Kind: tg.InstallResultSuccess}
	}
	return result, nil
}

func (f *fakeTransport) InstallCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installCalls
}

func (f *fakeTransport) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

type fakePersister struct {
	mu        sync.Mutex
	installed [][]stickers.Set
	archived  [][]stickers.Set
	err       error
}

func (p *fakePersister) WriteInstalledSets(_ context.Context, sets []stickers.Set) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.installed = append(p.installed, sets)
	return nil
}

func (p *fakePersister) WriteArchivedSets(_ context.Context, sets []stickers.Set) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.archived = append(p.archived, sets)
	return nil
}

func (p *fakePersister) InstalledWrites() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.installed)
}

func (p *fakePersister) ArchivedWrites() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.archived)
}

type countingNotifier struct {
	n atomic.Int32
}

func (c *countingNotifier) NotifyStickersChanged() { c.n.Add(1) }

func (c *countingNotifier) Count() int { return int(c.n.Load()) }
