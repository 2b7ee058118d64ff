package sidebar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/cachestore"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/events"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

// ErrInactive is returned by Session.Load when no user is active, or when
// the user switched while the load was in flight. In the latter case the
// result was discarded.
var ErrInactive = errors.New("sidebar: session inactive")

// Session is one browsing context showing a user's sidebar. It owns the live
// view, implements SidebarCacheUpdater, and marks its view stale when another
// context changes the user's cache keys. Refetching happens on the next Load.
type Session struct {
	agg     *Aggregator
	bus     *events.Bus
	watcher cachestore.Watcher
	log     zerolog.Logger
	updates chan struct{}

	mu     sync.Mutex
	parent context.Context
	userID string
	raw    model.PageParams
	params model.PageParams
	key    string
	view   model.SidebarData
	source Source
	stale  bool
	gen    uint64
	// revs counts revalidated views applied, so a cache hit that raced a
	// revalidation does not overwrite the newer data.
	revs   uint64
	actx   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ SidebarCacheUpdater = (*Session)(nil)

// NewSession creates an inactive session. bus and watcher may be nil.
func NewSession(agg *Aggregator, bus *events.Bus, watcher cachestore.Watcher, log zerolog.Logger) *Session {
	return &Session{
		agg:     agg,
		bus:     bus,
		watcher: watcher,
		log:     log.With().Str("component", "sidebar_session").Logger(),
		updates: make(chan struct{}, 1),
		view:    emptyData(),
	}
}

// Activate shows userID's sidebar for params p. Any previous activation is
// cancelled and its in-flight loads are discarded. The session stays active
// until Deactivate or until ctx is done.
func (s *Session) Activate(ctx context.Context, userID string, p model.PageParams) error {
	if userID == "" {
		return fmt.Errorf("activate: %w", model.ErrUnauthorized)
	}
	norm, err := s.agg.Params(p)
	if err != nil {
		return err
	}
	s.stop()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.parent = ctx
	s.userID = userID
	s.raw = p
	s.params = norm
	s.key = s.agg.KeyFor(userID, norm)
	s.view = emptyData()
	s.source = SourceEmpty
	s.stale = true
	s.actx, s.cancel = context.WithCancel(ctx)
	actx := s.actx
	s.mu.Unlock()

	if s.bus != nil {
		ch, unsub := s.bus.Subscribe(userID)
		s.wg.Add(1)
		go s.consumeEvents(actx, gen, ch, unsub)
	}
	if s.watcher != nil {
		changes, err := s.watcher.Watch(actx)
		if err != nil {
			s.log.Warn().Err(err).Msg("cross-context watch unavailable")
		} else {
			s.wg.Add(1)
			go s.consumeChanges(actx, gen, userID, changes)
		}
	}
	s.log.Debug().Str("user_id", userID).Msg("session activated")
	return nil
}

// SwitchUser re-activates the session for another user with the same params.
func (s *Session) SwitchUser(userID string) error {
	s.mu.Lock()
	parent, raw := s.parent, s.raw
	s.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	return s.Activate(parent, userID, raw)
}

// Deactivate cancels in-flight work and stops watching. The view is cleared.
func (s *Session) Deactivate() {
	s.stop()
	s.mu.Lock()
	s.gen++
	s.userID = ""
	s.key = ""
	s.view = emptyData()
	s.source = SourceEmpty
	s.stale = false
	s.mu.Unlock()
}

func (s *Session) stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Load is called when the sidebar becomes visible. It goes through the
// aggregator and replaces the view with the result. If the active user
// changes meanwhile the result is discarded and ErrInactive is returned.
func (s *Session) Load(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return Result{Data: emptyData(), Source: SourceEmpty}, ErrInactive
	}
	userID, p, gen, revs, actx := s.userID, s.params, s.gen, s.revs, s.actx
	s.mu.Unlock()

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopAfter := context.AfterFunc(actx, cancel)
	defer stopAfter()

	// Revalidations outlive this call but not the activation.
	res, err := s.agg.Load(WithRevalidateContext(lctx, actx), userID, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return Result{Data: emptyData(), Source: SourceEmpty}, fmt.Errorf("%w: result for %s discarded", ErrInactive, userID)
	}
	switch {
	case res.Source == SourceFreshCache && s.revs != revs:
	case res.Source != SourceEmpty:
		s.view = res.Data
		s.source = res.Source
		s.stale = res.Source == SourceStaleCache
	case errors.Is(err, model.ErrUnauthorized):
		s.view = emptyData()
		s.source = SourceEmpty
		s.stale = false
	}
	// Otherwise the previous view stays on screen.
	s.signal()
	return res, err
}

// View returns a copy of the live view and whether it is stale.
func (s *Session) View() (model.SidebarData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view
	v.Threads = append([]model.SidebarThread(nil), s.view.Threads...)
	v.Folders = append([]model.Folder(nil), s.view.Folders...)
	v.Tags = append([]model.Tag(nil), s.view.Tags...)
	return v, s.stale
}

// Stale reports whether the view needs a refetch on the next Load.
func (s *Session) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// Source reports where the current view came from.
func (s *Session) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// UserID returns the active user, or "" when inactive.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Updates is signalled whenever the view changes or goes stale.
func (s *Session) Updates() <-chan struct{} { return s.updates }

func (s *Session) signal() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// InsertThread implements SidebarCacheUpdater.
func (s *Session) InsertThread(t model.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(t)
}

// RemoveThread implements SidebarCacheUpdater.
func (s *Session) RemoveThread(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Threads = removeRow(s.view.Threads, threadID)
	s.signal()
}

// MarkStale implements SidebarCacheUpdater.
func (s *Session) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markStaleLocked()
}

func (s *Session) insertLocked(t model.Thread) {
	if s.userID == "" || t.UserID != s.userID {
		return
	}
	if f := s.params.FolderID; f != nil && (t.FolderID == nil || *t.FolderID != *f) {
		return
	}
	c := newCatalog(s.userID, s.view.Folders, s.view.Tags)
	s.view.Threads = insertRow(s.view.Threads, c.row(t))
	s.signal()
}

func (s *Session) markStaleLocked() {
	if s.userID == "" {
		return
	}
	s.stale = true
	s.signal()
}

func (s *Session) consumeEvents(ctx context.Context, gen uint64, ch <-chan events.Event, unsub func()) {
	defer s.wg.Done()
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			s.applyEvent(gen, evt)
		}
	}
}

func (s *Session) applyEvent(gen uint64, evt events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || evt.UserID != s.userID {
		return
	}
	switch evt.Kind {
	case events.EventThreadInserted:
		if evt.Thread != nil {
			s.insertLocked(*evt.Thread)
		}
	case events.EventThreadRemoved:
		s.view.Threads = removeRow(s.view.Threads, evt.ThreadID)
		s.signal()
	case events.EventInvalidated:
		s.markStaleLocked()
	case events.EventRevalidated:
		if evt.Key == s.key && evt.Data != nil {
			s.view = *evt.Data
			s.revs++
			s.source = SourceNetwork
			s.stale = false
			s.signal()
		}
	}
}

// consumeChanges marks the view stale when another context touches this
// user's keys. Clears of a broader prefix count too.
func (s *Session) consumeChanges(ctx context.Context, gen uint64, userID string, changes <-chan cachestore.Change) {
	defer s.wg.Done()
	prefix := UserPrefix(userID)
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			hit := strings.HasPrefix(c.Key, prefix) ||
				(c.Op == cachestore.OpClear && strings.HasPrefix(prefix, c.Key))
			if !hit {
				continue
			}
			s.mu.Lock()
			if s.gen == gen {
				s.markStaleLocked()
			}
			s.mu.Unlock()
		}
	}
}
