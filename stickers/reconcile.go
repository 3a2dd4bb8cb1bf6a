package stickers

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/prilive-com/stickerbox/tg"
)

// Persister stores the installed and archived lists.
type Persister interface {
	WriteInstalledSets(ctx context.Context, sets []Set) error
	WriteArchivedSets(ctx context.Context, sets []Set) error
}

// Notifier tells observers that sticker data changed.
type Notifier interface {
	NotifyStickersChanged()
}

// Mutation records what a reconcile did to the registry.
type Mutation struct {
	SetID                 SetID
	Created               bool
	RemovedFromArchived   bool
	MovedToFront          bool
	CustomStickersRemoved int
	CustomBucketDeleted   bool
	ArchivedSets          []SetID // sets archived by an archive result
	WroteInstalled        bool
	WroteArchived         bool
	Notified              bool
}

// DefaultPersistTimeout bounds a single persistence write.
const DefaultPersistTimeout = 10 * time.Second

// Reconciler folds server results into a Registry and dispatches the
// resulting writes and notifications.
type Reconciler struct {
	registry       *Registry
	persister      Persister
	notifier       Notifier
	now            func() time.Time
	logger         *slog.Logger
	persistTimeout time.Duration
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithPersister sets where changed lists are written.
func WithPersister(p Persister) ReconcilerOption {
	return func(r *Reconciler) {
		r.persister = p
	}
}

// WithNotifier sets the observer of sticker changes.
func WithNotifier(n Notifier) ReconcilerOption {
	return func(r *Reconciler) {
		r.notifier = n
	}
}

// WithClock sets the time source used for install dates.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithPersistTimeout bounds each persistence write.
func WithPersistTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.persistTimeout = d
		}
	}
}

// NewReconciler creates a Reconciler over reg.
func NewReconciler(reg *Registry, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		registry:       reg,
		now:            time.Now,
		logger:         slog.Default(),
		persistTimeout: DefaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the registry the reconciler mutates.
func (r *Reconciler) Registry() *Registry {
	return r.registry
}

// ApplyFetched merges a freshly fetched set into the registry. The parsed
// set's flags are updated to the merged value.
func (r *Reconciler) ApplyFetched(parsed *ParsedSet) Mutation {
	reg := r.registry
	reg.mu.Lock()
	defer reg.mu.Unlock()

	m := Mutation{SetID: parsed.ID}
	existing, ok := reg.sets[parsed.ID]
	if !ok {
		s := parsed.Set.Clone()
		s.Flags.Client = ClientFlags{}
		reg.sets[parsed.ID] = &s
		parsed.Flags = s.Flags
		m.Created = true
		return m
	}

	existing.Flags = MergeFlags(existing.Flags, parsed.Flags)
	existing.InstallDate = parsed.InstallDate
	existing.Stickers = append(Pack(nil), parsed.Stickers...)
	existing.Emoji = parsed.Emoji.clone()
	existing.Thumbnail = cloneThumb(parsed.Thumbnail)
	parsed.Flags = existing.Flags
	return m
}

// ApplyInstalled folds a completed install into the registry: the set moves
// to the front of the install order, leaves the archived order, and its
// stickers leave the custom bucket. The parsed set's flags and install date
// are updated to match the registry.
func (r *Reconciler) ApplyInstalled(parsed *ParsedSet, result *tg.InstallResult) Mutation {
	reg := r.registry
	reg.mu.Lock()

	id := parsed.ID
	m := Mutation{SetID: id}
	existing, ok := reg.sets[id]

	wasArchived := parsed.Flags.Server.Archived || (ok && existing.Flags.Server.Archived)
	if wasArchived {
		reg.archivedOrder, m.RemovedFromArchived = removeID(reg.archivedOrder, id)
	}

	parsed.InstallDate = r.now()
	parsed.Flags.Server.Archived = false
	parsed.Flags.Server.Installed = true

	if !ok {
		s := parsed.Set.Clone()
		existing = &s
		reg.sets[id] = existing
		m.Created = true
	} else {
		existing.Flags = MergeFlags(existing.Flags, parsed.Flags)
		existing.InstallDate = parsed.InstallDate
	}
	existing.Stickers = append(Pack(nil), parsed.Stickers...)
	existing.Emoji = parsed.Emoji.clone()
	parsed.Flags = existing.Flags

	if idx := slices.Index(reg.order, id); idx != 0 {
		if idx > 0 {
			reg.order, _ = removeID(reg.order, id)
		}
		reg.order = prependID(reg.order, id)
		m.MovedToFront = true
	}

	m.CustomStickersRemoved, m.CustomBucketDeleted = reg.removeCustomLocked(parsed.Stickers)

	writeArchived := wasArchived
	if result.IsArchive() {
		m.ArchivedSets = r.archiveLocked(result.Sets, id)
		writeArchived = true
	}

	installed := reg.installedLocked()
	var archived []Set
	if writeArchived {
		archived = reg.archivedLocked()
	}
	reg.mu.Unlock()

	r.dispatch(&m, installed, archived, writeArchived)
	return m
}

// ApplyArchivedResult marks the sets of an archive result as archived: they
// leave the install order and enter the front of the archived order.
func (r *Reconciler) ApplyArchivedResult(result *tg.InstallResult) Mutation {
	reg := r.registry
	reg.mu.Lock()

	var m Mutation
	if result != nil {
		m.ArchivedSets = r.archiveLocked(result.Sets, 0)
	}
	installed := reg.installedLocked()
	archived := reg.archivedLocked()
	reg.mu.Unlock()

	r.dispatch(&m, installed, archived, true)
	return m
}

// ApplyUsed records a sticker sent from outside the installed sets in the
// custom bucket. Stickers of installed sets are ignored.
func (r *Reconciler) ApplyUsed(doc *Document) Mutation {
	reg := r.registry
	reg.mu.Lock()

	m := Mutation{SetID: CustomSetID}
	if !doc.IsSticker() {
		reg.mu.Unlock()
		return m
	}
	if set, ok := reg.sets[SetID(doc.Sticker.Set.ID)]; ok && set.Installed() {
		reg.mu.Unlock()
		return m
	}
	if _, ok := reg.sets[CustomSetID]; !ok {
		m.Created = true
	}
	if !reg.addCustomLocked(doc) {
		reg.mu.Unlock()
		return m
	}
	installed := reg.installedLocked()
	reg.mu.Unlock()

	r.dispatch(&m, installed, nil, false)
	return m
}

// archiveLocked archives the covered sets, skipping the set being installed.
func (r *Reconciler) archiveLocked(covered []tg.StickerSetCovered, installing SetID) []SetID {
	reg := r.registry
	ids := make([]SetID, 0, len(covered))
	for _, c := range covered {
		id := SetID(c.Set.ID)
		if id == CustomSetID || (installing != 0 && id == installing) {
			continue
		}
		fresh := setFromWire(c.Set)
		fresh.Flags.Server.Archived = true
		fresh.Flags.Server.Installed = false

		if s, ok := reg.sets[id]; ok {
			s.AccessHash = fresh.AccessHash
			s.Title = fresh.Title
			s.ShortName = fresh.ShortName
			s.Count = fresh.Count
			s.Hash = fresh.Hash
			s.Flags = MergeFlags(s.Flags, fresh.Flags)
			if fresh.Thumbnail != nil {
				s.Thumbnail = fresh.Thumbnail
			}
		} else {
			fresh.Flags.Client.NotLoaded = true
			reg.sets[id] = &fresh
		}

		reg.order, _ = removeID(reg.order, id)
		if slices.Index(reg.archivedOrder, id) < 0 {
			reg.archivedOrder = prependID(reg.archivedOrder, id)
		}
		ids = append(ids, id)
	}
	return ids
}

// dispatch runs persistence and notification outside the registry lock.
// Failures are logged and never undo the reconcile.
func (r *Reconciler) dispatch(m *Mutation, installed, archived []Set, writeArchived bool) {
	if r.persister != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
		defer cancel()

		if writeArchived {
			if err := r.persister.WriteArchivedSets(ctx, archived); err != nil {
				r.logger.Error("write archived sets failed", "set_id", uint64(m.SetID), "error", err)
			} else {
				m.WroteArchived = true
			}
		}
		if err := r.persister.WriteInstalledSets(ctx, installed); err != nil {
			r.logger.Error("write installed sets failed", "set_id", uint64(m.SetID), "error", err)
		} else {
			m.WroteInstalled = true
		}
	}
	if r.notifier != nil {
		r.notifier.NotifyStickersChanged()
		m.Notified = true
	}
}
