package sidebar

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/cachestore"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/events"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

// MutationKind names a server-side change that affects a user's sidebar.
type MutationKind string

const (
	ThreadCreated MutationKind = "thread_created"
	ThreadDeleted MutationKind = "thread_deleted"
	ThreadMoved   MutationKind = "thread_moved"
	ThreadTagged  MutationKind = "thread_tagged"
	FolderCreated MutationKind = "folder_created"
	FolderRenamed MutationKind = "folder_renamed"
	FolderDeleted MutationKind = "folder_deleted"
	TagCreated    MutationKind = "tag_created"
	TagDeleted    MutationKind = "tag_deleted"
	TagRelabeled  MutationKind = "tag_relabeled"
)

var knownKinds = map[MutationKind]bool{
	ThreadCreated: true, ThreadDeleted: true, ThreadMoved: true, ThreadTagged: true,
	FolderCreated: true, FolderRenamed: true, FolderDeleted: true,
	TagCreated: true, TagDeleted: true, TagRelabeled: true,
}

// Mutation is a local mutation intent. Thread is required for ThreadCreated,
// ThreadID for ThreadDeleted.
type Mutation struct {
	Kind     MutationKind
	UserID   string
	Thread   *model.Thread
	ThreadID string
}

// SidebarCacheUpdater is implemented by whatever currently owns the live
// sidebar view. The invalidator pushes provisional changes through it.
type SidebarCacheUpdater interface {
	// InsertThread adds or replaces a provisional row.
	InsertThread(t model.Thread)
	// RemoveThread drops a row.
	RemoveThread(threadID string)
	// MarkStale flags the view for a refetch on its next load.
	MarkStale()
}

// Invalidator applies mutation intents to the cache. Every kind clears all
// facets of the user so the next load refetches them together.
type Invalidator struct {
	cache cachestore.Store
	bus   *events.Bus
	log   zerolog.Logger

	mu      sync.RWMutex
	updater SidebarCacheUpdater
	aggs    []*Aggregator
}

// NewInvalidator returns an invalidator over cache. bus may be nil.
func NewInvalidator(cache cachestore.Store, bus *events.Bus, log zerolog.Logger) *Invalidator {
	return &Invalidator{cache: cache, bus: bus, log: log.With().Str("component", "sidebar_invalidator").Logger()}
}

// SetUpdater injects the owner of the live view; nil detaches it.
func (i *Invalidator) SetUpdater(u SidebarCacheUpdater) {
	i.mu.Lock()
	i.updater = u
	i.mu.Unlock()
}

// Attach makes Invalidate also detach agg's in-flight fetches for the user,
// so no load or revalidation started before a mutation can write its result
// back after the clear.
func (i *Invalidator) Attach(agg *Aggregator) {
	i.mu.Lock()
	i.aggs = append(i.aggs, agg)
	i.mu.Unlock()
}

func (i *Invalidator) attached() []*Aggregator {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]*Aggregator(nil), i.aggs...)
}

func (i *Invalidator) currentUpdater() SidebarCacheUpdater {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.updater
}

// Apply records m: the live view gets a provisional insert or removal and is
// marked stale, then every cache key of the user is cleared and an
// invalidated event is published. Storage failures are logged, not returned.
func (i *Invalidator) Apply(ctx context.Context, m Mutation) error {
	if m.UserID == "" {
		return fmt.Errorf("apply %s: %w", m.Kind, model.ErrUnauthorized)
	}
	if !knownKinds[m.Kind] {
		return fmt.Errorf("%w: unknown mutation kind %q", model.ErrValidation, m.Kind)
	}
	if m.Kind == ThreadCreated && (m.Thread == nil || m.Thread.ID == "") {
		return fmt.Errorf("%w: %s needs the created thread", model.ErrValidation, m.Kind)
	}
	if m.Kind == ThreadDeleted && m.ThreadID == "" {
		return fmt.Errorf("%w: %s needs a thread id", model.ErrValidation, m.Kind)
	}

	if u := i.currentUpdater(); u != nil {
		switch m.Kind {
		case ThreadCreated:
			if m.Thread.UserID == m.UserID {
				u.InsertThread(*m.Thread)
			}
		case ThreadDeleted:
			u.RemoveThread(m.ThreadID)
		}
		u.MarkStale()
	}

	if err := i.Invalidate(ctx, m.UserID); err != nil {
		return err
	}
	invalidationsTotal.WithLabelValues(string(m.Kind)).Inc()
	i.log.Debug().Str("kind", string(m.Kind)).Str("user_id", m.UserID).Msg("sidebar invalidated")
	return nil
}

// Invalidate clears every cache key of userID and notifies subscribers.
func (i *Invalidator) Invalidate(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("invalidate: %w", model.ErrUnauthorized)
	}
	for _, agg := range i.attached() {
		agg.Forget(userID)
	}
	if err := i.cache.ClearByPrefix(ctx, UserPrefix(userID)); err != nil {
		storageDegradedTotal.WithLabelValues("clear").Inc()
		i.log.Warn().Err(err).Str("user_id", userID).Msg("cache clear failed, continuing without it")
	}
	if i.bus != nil {
		i.bus.Publish(events.Event{Kind: events.EventInvalidated, UserID: userID})
	}
	return nil
}
