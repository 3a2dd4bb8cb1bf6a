package stickers

import (
	"fmt"
	"slices"
	"sync"
)

// Registry is the client's collection of known sticker sets together with
// the install order and the archived order.
//
// Every id in either order exists in the set map, no id appears twice in
// one order, and CustomSetID appears in neither.
type Registry struct {
	mu            sync.RWMutex
	sets          map[SetID]*Set
	order         []SetID
	archivedOrder []SetID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[SetID]*Set)}
}

// Get returns a copy of the set with the given id.
func (r *Registry) Get(id SetID) (Set, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sets[id]
	if !ok {
		return Set{}, false
	}
	return s.Clone(), true
}

// Order returns the install order, most recent first.
func (r *Registry) Order() []SetID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// ArchivedOrder returns the archived order, most recent first.
func (r *Registry) ArchivedOrder() []SetID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.archivedOrder)
}

// Len returns the number of known sets, the custom bucket included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets)
}

// Custom returns the custom bucket, if present.
func (r *Registry) Custom() (Set, bool) {
	return r.Get(CustomSetID)
}

// InstalledSets returns the installed sets in install order, followed by
// the custom bucket when it exists.
func (r *Registry) InstalledSets() []Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.installedLocked()
}

// ArchivedSets returns the archived sets in archived order.
func (r *Registry) ArchivedSets() []Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.archivedLocked()
}

func (r *Registry) installedLocked() []Set {
	out := make([]Set, 0, len(r.order)+1)
	for _, id := range r.order {
		out = append(out, r.sets[id].Clone())
	}
	if custom, ok := r.sets[CustomSetID]; ok {
		out = append(out, custom.Clone())
	}
	return out
}

func (r *Registry) archivedLocked() []Set {
	out := make([]Set, 0, len(r.archivedOrder))
	for _, id := range r.archivedOrder {
		out = append(out, r.sets[id].Clone())
	}
	return out
}

// Restore replaces the registry contents with persisted lists. The custom
// bucket may appear among installed sets; it is kept out of the install order.
func (r *Registry) Restore(installed, archived []Set) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sets = make(map[SetID]*Set, len(installed)+len(archived))
	r.order = r.order[:0]
	r.archivedOrder = r.archivedOrder[:0]

	for i := range installed {
		s := installed[i].Clone()
		if _, dup := r.sets[s.ID]; dup {
			continue
		}
		r.sets[s.ID] = &s
		if s.ID != CustomSetID {
			r.order = append(r.order, s.ID)
		}
	}
	for i := range archived {
		s := archived[i].Clone()
		if s.ID == CustomSetID {
			continue
		}
		if _, dup := r.sets[s.ID]; dup {
			continue
		}
		r.sets[s.ID] = &s
		r.archivedOrder = append(r.archivedOrder, s.ID)
	}
}

// AddCustom puts a sticker at the front of the custom bucket, creating the
// bucket if needed. It reports whether the bucket changed.
func (r *Registry) AddCustom(doc *Document) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addCustomLocked(doc)
}

func (r *Registry) addCustomLocked(doc *Document) bool {
	if !doc.IsSticker() {
		return false
	}
	custom, ok := r.sets[CustomSetID]
	if !ok {
		custom = &Set{ID: CustomSetID}
		r.sets[CustomSetID] = custom
	}
	if len(custom.Stickers) > 0 && custom.Stickers[0].ID == doc.ID {
		return false
	}

	stickers := make(Pack, 0, len(custom.Stickers)+1)
	stickers = append(stickers, doc)
	for _, d := range custom.Stickers {
		if d.ID != doc.ID {
			stickers = append(stickers, d)
		}
	}
	if len(stickers) > MaxCustomStickers {
		stickers = stickers[:MaxCustomStickers]
	}
	custom.Stickers = stickers
	custom.Count = len(stickers)
	return true
}

// removeCustomLocked drops every sticker of pack from the custom bucket and
// deletes the bucket once it is empty.
func (r *Registry) removeCustomLocked(pack Pack) (removed int, deleted bool) {
	custom, ok := r.sets[CustomSetID]
	if !ok {
		return 0, false
	}
	kept := custom.Stickers[:0:0]
	for _, d := range custom.Stickers {
		if pack.Contains(d.ID) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	if removed == 0 {
		return 0, false
	}
	if len(kept) == 0 {
		delete(r.sets, CustomSetID)
		return removed, true
	}
	custom.Stickers = kept
	custom.Count = len(kept)
	return removed, false
}

// Validate checks the registry invariants.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.validateOrder("order", r.order); err != nil {
		return err
	}
	return r.validateOrder("archived order", r.archivedOrder)
}

func (r *Registry) validateOrder(name string, seq []SetID) error {
	seen := make(map[SetID]struct{}, len(seq))
	for i, id := range seq {
		if id == CustomSetID {
			return fmt.Errorf("stickerbox: registry: %s[%d] is the custom bucket", name, i)
		}
		if _, ok := r.sets[id]; !ok {
			return fmt.Errorf("stickerbox: registry: %s[%d] references unknown set %d", name, i, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("stickerbox: registry: %s[%d] repeats set %d", name, i, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func removeID(seq []SetID, id SetID) ([]SetID, bool) {
	i := slices.Index(seq, id)
	if i < 0 {
		return seq, false
	}
	return slices.Delete(seq, i, i+1), true
}

func prependID(seq []SetID, id SetID) []SetID {
	return slices.Insert(seq, 0, id)
}
