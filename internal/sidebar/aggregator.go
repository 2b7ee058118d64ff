// Package sidebar keeps a user's sidebar (threads with their folder and tag
// snapshots) in a local TTL cache that stays consistent with backend
// mutations across every open browsing context.
package sidebar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/cachestore"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/events"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/shardqueue"
)

// Source tells where the data returned by Load came from.
type Source string

const (
	SourceFreshCache Source = "fresh-cache"
	SourceStaleCache Source = "stale-cache"
	SourceNetwork    Source = "network"
	SourceEmpty      Source = "empty"
)

// EntryState is the lifecycle of a cache key: fresh -> stale -> absent.
type EntryState string

const (
	StateFresh  EntryState = "fresh"
	StateStale  EntryState = "stale"
	StateAbsent EntryState = "absent"
)

// Result is the outcome of Load.
type Result struct {
	Data       model.SidebarData
	Source     Source
	CapturedAt time.Time
}

// Options tune an Aggregator. Zero values fall back to the defaults below.
type Options struct {
	TTL          time.Duration // default 5m
	DefaultLimit int           // default 30
	MaxLimit     int           // default 100
	Now          func() time.Time
	// Queue runs background revalidations. Nil disables them.
	Queue *shardqueue.ShardExecutor
	// Bus receives thread_inserted and revalidated events. May be nil.
	Bus *events.Bus
	Log zerolog.Logger
}

// Aggregator loads SidebarData through the cache, composing it from the
// backend on a miss.
type Aggregator struct {
	cache   cachestore.Store
	backend Backend
	opts    Options
	log     zerolog.Logger
	group   singleflight.Group

	// gens counts invalidations per user. Fetches started under an older
	// generation never coalesce with newer loads and never reach the cache.
	genMu sync.RWMutex
	gens  map[string]uint64
}

// NewAggregator wires an aggregator over cache and backend.
func NewAggregator(cache cachestore.Store, backend Backend, opts Options) *Aggregator {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 30
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		cache:   cache,
		backend: backend,
		opts:    opts,
		log:     opts.Log.With().Str("component", "sidebar_aggregator").Logger(),
		gens:    make(map[string]uint64),
	}
}

type revalidateCtxKey struct{}

// WithRevalidateContext returns ctx carrying bg, the context that
// revalidations scheduled by Load run under. Without it they are detached
// from ctx's cancellation.
func WithRevalidateContext(ctx, bg context.Context) context.Context {
	return context.WithValue(ctx, revalidateCtxKey{}, bg)
}

func revalidateContext(ctx context.Context) context.Context {
	if bg, ok := ctx.Value(revalidateCtxKey{}).(context.Context); ok && bg != nil {
		return bg
	}
	return context.WithoutCancel(ctx)
}

func (a *Aggregator) generation(userID string) uint64 {
	a.genMu.RLock()
	defer a.genMu.RUnlock()
	return a.gens[userID]
}

// Forget detaches userID's in-flight fetches: later loads start their own
// and the detached results are not cached. Call it before clearing the
// user's keys.
func (a *Aggregator) Forget(userID string) {
	a.genMu.Lock()
	a.gens[userID]++
	a.genMu.Unlock()
}

// snapshot is a composed result in its canonical cached form.
type snapshot struct {
	data model.CachedSidebarData
	raw  string
}

func emptyData() model.SidebarData {
	return model.SidebarData{
		Threads: []model.SidebarThread{},
		Folders: []model.Folder{},
		Tags:    []model.Tag{},
	}
}

// Params applies the default and maximum limit and validates the result.
// A negative limit is rejected rather than replaced.
func (a *Aggregator) Params(p model.PageParams) (model.PageParams, error) {
	if p.Limit < 0 {
		return p, fmt.Errorf("%w: limit must be positive, got %d", model.ErrValidation, p.Limit)
	}
	p = p.Clamp(a.opts.DefaultLimit, a.opts.MaxLimit)
	return p, p.Validate()
}

// KeyFor returns the threads cache key for normalized params.
func (a *Aggregator) KeyFor(userID string, p model.PageParams) string {
	return Key(userID, FacetThreads, Scope(p, a.opts.DefaultLimit))
}

// Load returns the sidebar for userID. A fresh cache hit returns without a
// network round trip and schedules a background revalidation. A miss fetches
// the page, folders and tags, stores them and returns the composed data.
// When the backend fails transiently any cached value, stale or not, is
// served instead; with nothing cached the result is empty and the error is
// returned.
func (a *Aggregator) Load(ctx context.Context, userID string, p model.PageParams) (Result, error) {
	if userID == "" {
		return Result{Data: emptyData(), Source: SourceEmpty}, fmt.Errorf("load sidebar: %w", model.ErrUnauthorized)
	}
	p, err := a.Params(p)
	if err != nil {
		return Result{Data: emptyData(), Source: SourceEmpty}, err
	}
	key := a.KeyFor(userID, p)
	gen := a.generation(userID)

	if cached, ok := a.read(ctx, key, false); ok {
		cacheLookupsTotal.WithLabelValues("fresh").Inc()
		a.scheduleRevalidate(revalidateContext(ctx), userID, p, key)
		return Result{Data: cached.SidebarData, Source: SourceFreshCache, CapturedAt: cached.CapturedAt}, nil
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()

	snap, err := a.fetchCoalesced(ctx, userID, p, key, gen)
	if err != nil {
		return a.fallback(ctx, userID, key, err)
	}
	a.storeCurrent(ctx, userID, gen, key, snap)
	return Result{Data: snap.data.SidebarData, Source: SourceNetwork, CapturedAt: snap.data.CapturedAt}, nil
}

func (a *Aggregator) fallback(ctx context.Context, userID, key string, cause error) (Result, error) {
	empty := Result{Data: emptyData(), Source: SourceEmpty}
	if errors.Is(cause, model.ErrUnauthorized) || errors.Is(cause, model.ErrValidation) || ctx.Err() != nil {
		return empty, cause
	}
	if cached, ok := a.read(ctx, key, true); ok {
		cacheLookupsTotal.WithLabelValues("stale").Inc()
		a.log.Warn().Err(cause).Str("user_id", userID).Msg("backend unavailable, serving cached sidebar")
		return Result{Data: cached.SidebarData, Source: SourceStaleCache, CapturedAt: cached.CapturedAt}, nil
	}
	a.log.Warn().Err(cause).Str("user_id", userID).Msg("backend unavailable and nothing cached")
	if !errors.Is(cause, model.ErrTransient) {
		cause = fmt.Errorf("%w: %v", model.ErrTransient, cause)
	}
	return empty, cause
}

// fetchCoalesced runs at most one fetch per key and generation. A follower
// whose leader was cancelled retries once under its own context. A result
// that arrives after ctx is done is discarded.
func (a *Aggregator) fetchCoalesced(ctx context.Context, userID string, p model.PageParams, key string, gen uint64) (snapshot, error) {
	flight := key + "#" + strconv.FormatUint(gen, 10)
	for attempt := 0; ; attempt++ {
		v, err, _ := a.group.Do(flight, func() (any, error) {
			return a.fetch(ctx, userID, p)
		})
		if err != nil {
			if attempt == 0 && ctx.Err() == nil && isContextErr(err) {
				continue
			}
			return snapshot{}, err
		}
		if err := ctx.Err(); err != nil {
			fetchesTotal.WithLabelValues("discarded").Inc()
			return snapshot{}, err
		}
		return v.(snapshot), nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// fetch reads the page, folders and tags concurrently and composes them.
// Pages other than the default one reuse fresh folder and tag facets.
func (a *Aggregator) fetch(ctx context.Context, userID string, p model.PageParams) (snapshot, error) {
	var (
		page    *model.Page
		folders []model.Folder
		tags    []model.Tag
	)
	if Scope(p, a.opts.DefaultLimit) != "" {
		a.readFacet(ctx, Key(userID, FacetFolders, ""), &folders)
		a.readFacet(ctx, Key(userID, FacetTags, ""), &tags)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		page, err = a.backend.FetchPage(gctx, userID, p)
		return err
	})
	if folders == nil {
		g.Go(func() (err error) {
			folders, err = a.backend.ListFolders(gctx, userID)
			return err
		})
	}
	if tags == nil {
		g.Go(func() (err error) {
			tags, err = a.backend.ListTags(gctx, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		fetchesTotal.WithLabelValues("error").Inc()
		return snapshot{}, err
	}
	fetchesTotal.WithLabelValues("ok").Inc()

	cached := model.CachedSidebarData{
		SidebarData: Compose(userID, page, folders, tags),
		CapturedAt:  a.opts.Now().UTC(),
	}
	return canonical(cached)
}

// canonical round-trips through JSON so callers see exactly what a later
// cache read would return.
func canonical(c model.CachedSidebarData) (snapshot, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return snapshot{}, fmt.Errorf("encode sidebar: %w", err)
	}
	var out model.CachedSidebarData
	if err := json.Unmarshal(raw, &out); err != nil {
		return snapshot{}, fmt.Errorf("decode sidebar: %w", err)
	}
	return snapshot{data: out, raw: string(raw)}, nil
}

// storeCurrent stores s unless userID was invalidated since gen was read.
// Forget waits for a write in progress, so the clear that follows it wins.
func (a *Aggregator) storeCurrent(ctx context.Context, userID string, gen uint64, key string, s snapshot) bool {
	a.genMu.RLock()
	defer a.genMu.RUnlock()
	if a.gens[userID] != gen {
		fetchesTotal.WithLabelValues("outdated").Inc()
		return false
	}
	a.store(ctx, userID, key, s)
	return true
}

// store writes the four facets. Failures degrade to running uncached.
func (a *Aggregator) store(ctx context.Context, userID, key string, s snapshot) {
	if folders, err := json.Marshal(s.data.Folders); err == nil {
		a.set(ctx, Key(userID, FacetFolders, ""), string(folders), a.opts.TTL)
	}
	if tags, err := json.Marshal(s.data.Tags); err == nil {
		a.set(ctx, Key(userID, FacetTags, ""), string(tags), a.opts.TTL)
	}
	a.set(ctx, Key(userID, FacetTimestamp, ""), s.data.CapturedAt.Format(time.RFC3339Nano), a.opts.TTL)
	a.set(ctx, key, s.raw, a.opts.TTL)
}

func (a *Aggregator) set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := a.cache.Set(ctx, key, value, ttl); err != nil {
		a.degraded("set", key, err)
	}
}

func (a *Aggregator) degraded(op, key string, err error) {
	storageDegradedTotal.WithLabelValues(op).Inc()
	a.log.Warn().Err(err).Str("op", op).Str("key", key).Msg("cache unavailable, continuing without it")
}

// read decodes a cached threads entry. Misses, storage failures and corrupt
// payloads all report false.
func (a *Aggregator) read(ctx context.Context, key string, stale bool) (model.CachedSidebarData, bool) {
	var out model.CachedSidebarData
	e, ok := a.entry(ctx, key, stale)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal([]byte(e.Value), &out); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		return out, false
	}
	return out, true
}

func (a *Aggregator) readFacet(ctx context.Context, key string, dst any) {
	e, ok := a.entry(ctx, key, false)
	if !ok {
		return
	}
	if err := json.Unmarshal([]byte(e.Value), dst); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache facet")
	}
}

func (a *Aggregator) entry(ctx context.Context, key string, stale bool) (cachestore.Entry, bool) {
	get := a.cache.Get
	if stale {
		get = a.cache.GetStale
	}
	e, err := get(ctx, key)
	switch {
	case err == nil:
		return e, true
	case errors.Is(err, cachestore.ErrMiss):
	default:
		a.degraded("get", key, err)
	}
	return cachestore.Entry{}, false
}

func (a *Aggregator) scheduleRevalidate(ctx context.Context, userID string, p model.PageParams, key string) {
	if a.opts.Queue == nil {
		return
	}
	job := shardqueue.JobFunc(func(jctx context.Context) error {
		return a.revalidate(jctx, userID, p, key)
	})
	if _, err := a.opts.Queue.SubmitUnique(ctx, key, job); err != nil {
		a.log.Debug().Err(err).Str("key", key).Msg("revalidation not scheduled")
	}
}

// revalidate repeats the fetch for key and replaces the entry only when the
// result differs from what is cached.
func (a *Aggregator) revalidate(ctx context.Context, userID string, p model.PageParams, key string) error {
	gen := a.generation(userID)
	snap, err := a.fetchCoalesced(ctx, userID, p, key, gen)
	if err != nil {
		if isContextErr(err) {
			revalidationsTotal.WithLabelValues("discarded").Inc()
		}
		return err
	}
	if cur, ok := a.read(ctx, key, true); ok && sameData(cur.SidebarData, snap.data.SidebarData) {
		revalidationsTotal.WithLabelValues("unchanged").Inc()
		return nil
	}
	if err := ctx.Err(); err != nil {
		revalidationsTotal.WithLabelValues("discarded").Inc()
		return err
	}
	if !a.storeCurrent(ctx, userID, gen, key, snap) {
		revalidationsTotal.WithLabelValues("discarded").Inc()
		return nil
	}
	revalidationsTotal.WithLabelValues("replaced").Inc()
	a.publish(events.Event{Kind: events.EventRevalidated, UserID: userID, Data: &snap.data.SidebarData, Key: key})
	return nil
}

func sameData(a, b model.SidebarData) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}

func (a *Aggregator) publish(evt events.Event) {
	if a.opts.Bus != nil {
		a.opts.Bus.Publish(evt)
	}
}

// AppendOptimistic inserts t into the cached default page at its sorted
// position before the backend confirms it. The entry keeps its remaining
// freshness; the next confirmed fetch replaces it. Live views learn about the
// insert through a thread_inserted event.
func (a *Aggregator) AppendOptimistic(ctx context.Context, userID string, t model.Thread) error {
	if t.UserID == "" {
		t.UserID = userID
	}
	if err := a.insertProvisional(ctx, userID, t); err != nil {
		return err
	}
	a.publish(events.Event{Kind: events.EventThreadInserted, UserID: userID, Thread: &t})
	return nil
}

// RetractOptimistic removes a provisional row the backend rejected and tells
// live views through a thread_removed event.
func (a *Aggregator) RetractOptimistic(ctx context.Context, userID, threadID string) error {
	if err := a.retractProvisional(ctx, userID, threadID); err != nil {
		return err
	}
	a.publish(events.Event{Kind: events.EventThreadRemoved, UserID: userID, ThreadID: threadID})
	return nil
}

func (a *Aggregator) insertProvisional(ctx context.Context, userID string, t model.Thread) error {
	if userID == "" || t.UserID != userID {
		return fmt.Errorf("%w: thread owner %q does not match user %q", model.ErrValidation, t.UserID, userID)
	}
	if t.ID == "" {
		return fmt.Errorf("%w: optimistic thread needs an id", model.ErrValidation)
	}
	return a.editDefaultPage(ctx, userID, func(c model.CachedSidebarData) []model.SidebarThread {
		return insertRow(c.Threads, newCatalog(userID, c.Folders, c.Tags).row(t))
	})
}

func (a *Aggregator) retractProvisional(ctx context.Context, userID, threadID string) error {
	if userID == "" || threadID == "" {
		return fmt.Errorf("%w: retract needs a user and a thread id", model.ErrValidation)
	}
	return a.editDefaultPage(ctx, userID, func(c model.CachedSidebarData) []model.SidebarThread {
		return removeRow(c.Threads, threadID)
	})
}

// editDefaultPage rewrites the rows of the cached default page in place,
// keeping its deadline. Nothing cached means nothing to edit.
func (a *Aggregator) editDefaultPage(ctx context.Context, userID string, edit func(model.CachedSidebarData) []model.SidebarThread) error {
	key := Key(userID, FacetThreads, "")
	e, ok := a.entry(ctx, key, true)
	if !ok {
		return nil
	}
	var cached model.CachedSidebarData
	if err := json.Unmarshal([]byte(e.Value), &cached); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		return nil
	}
	cached.Threads = edit(cached)
	snap, err := canonical(cached)
	if err != nil {
		return err
	}
	a.set(ctx, key, snap.raw, e.Remaining(a.opts.Now()))
	return nil
}

// State reports the lifecycle state of the threads entry for (userID, p).
func (a *Aggregator) State(ctx context.Context, userID string, p model.PageParams) (EntryState, error) {
	p, err := a.Params(p)
	if err != nil {
		return StateAbsent, err
	}
	key := a.KeyFor(userID, p)
	if _, ok := a.entry(ctx, key, false); ok {
		return StateFresh, nil
	}
	if _, ok := a.entry(ctx, key, true); ok {
		return StateStale, nil
	}
	return StateAbsent, nil
}

// LastSynced returns when the user's sidebar was last fetched, if known.
func (a *Aggregator) LastSynced(ctx context.Context, userID string) (time.Time, bool) {
	e, ok := a.entry(ctx, Key(userID, FacetTimestamp, ""), true)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, e.Value)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
