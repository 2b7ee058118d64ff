package sidebar

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/cachestore/memory"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/events"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/shardqueue"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store/memstore"
)

const ttl = 5 * time.Minute

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingBackend counts backend reads and can fail or hold them.
type countingBackend struct {
	StoreBackend
	pages, folders, tags atomic.Int32

	mu    sync.Mutex
	err   error
	gate  chan struct{}
	stall *pageStall
}

type pageStall struct {
	started chan struct{}
	release chan struct{}
}

func (b *countingBackend) setErr(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// hold makes FetchPage block until the returned release func is called.
// The wait ignores ctx so a result can arrive after cancellation.
func (b *countingBackend) hold() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.gate = nil
			b.mu.Unlock()
			close(gate)
		})
	}
}

// stallNextPage makes the next FetchPage read its rows, close started and
// then block until release is called, so it returns data older than the store.
func (b *countingBackend) stallNextPage() (started <-chan struct{}, release func()) {
	st := &pageStall{started: make(chan struct{}), release: make(chan struct{})}
	b.mu.Lock()
	b.stall = st
	b.mu.Unlock()
	var once sync.Once
	return st.started, func() { once.Do(func() { close(st.release) }) }
}

func (b *countingBackend) takeStall() *pageStall {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.stall
	b.stall = nil
	return st
}

func (b *countingBackend) state() (chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gate, b.err
}

func (b *countingBackend) FetchPage(ctx context.Context, userID string, p model.PageParams) (*model.Page, error) {
	b.pages.Add(1)
	gate, err := b.state()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if st := b.takeStall(); st != nil {
		page, err := b.StoreBackend.FetchPage(ctx, userID, p)
		close(st.started)
		<-st.release
		return page, err
	}
	return b.StoreBackend.FetchPage(ctx, userID, p)
}

func (b *countingBackend) ListFolders(ctx context.Context, userID string) ([]model.Folder, error) {
	b.folders.Add(1)
	if _, err := b.state(); err != nil {
		return nil, err
	}
	return b.StoreBackend.ListFolders(ctx, userID)
}

func (b *countingBackend) ListTags(ctx context.Context, userID string) ([]model.Tag, error) {
	b.tags.Add(1)
	if _, err := b.state(); err != nil {
		return nil, err
	}
	return b.StoreBackend.ListTags(ctx, userID)
}

type fixture struct {
	clock   *fakeClock
	store   *memstore.Store
	backend *countingBackend
	shared  *memory.Backend
	cache   *memory.Handle
	bus     *events.Bus
	queue   *shardqueue.ShardExecutor
	agg     *Aggregator
	inv     *Invalidator
	actions *Actions
}

type fixtureOpt func(*fixture)

func withQueue(t *testing.T) fixtureOpt {
	return func(f *fixture) {
		f.queue = shardqueue.NewShardExecutor(shardqueue.Config{Shards: 2, MaxAttempts: 1}, zerolog.Nop())
		t.Cleanup(f.queue.Stop)
	}
}

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	clock := &fakeClock{now: base.Add(time.Hour)}
	f := &fixture{clock: clock, store: memstore.New(clock.Now), bus: events.NewBus(32)}
	f.backend = &countingBackend{StoreBackend: StoreBackend{Store: f.store}}
	f.shared = memory.NewBackend(memory.WithClock(clock.Now))
	f.cache = f.shared.Open()
	for _, o := range opts {
		o(f)
	}
	f.agg = NewAggregator(f.cache, f.backend, Options{
		TTL: ttl, DefaultLimit: 30, MaxLimit: 100, Now: clock.Now,
		Queue: f.queue, Bus: f.bus, Log: zerolog.Nop(),
	})
	f.inv = NewInvalidator(f.cache, f.bus, zerolog.Nop())
	f.inv.Attach(f.agg)
	f.actions = NewActions(f.backend, f.agg, f.inv, zerolog.Nop())
	return f
}

// seed creates n threads t1..tn for userID, one second apart, t<n> newest.
func (f *fixture) seed(t *testing.T, userID string, n int) []model.Thread {
	t.Helper()
	out := make([]model.Thread, 0, n)
	for i := 1; i <= n; i++ {
		th, err := f.store.Threads().Create(context.Background(), &model.Thread{
			Title:      fmt.Sprintf("t%d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
			Visibility: model.VisibilityPrivate,
			UserID:     userID,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		out = append(out, *th)
	}
	return out
}

func titles(rows []model.SidebarThread) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Title
	}
	return out
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed before timeout")
	}
}

func waitFor(t *testing.T, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}
