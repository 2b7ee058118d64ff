// Package memory is an in-process cachestore shared by several handles, one
// per browsing context.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/cachestore"
)

// Option configures a Backend.
type Option func(*Backend)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithQuota caps the total size in bytes of keys plus values. Writes that
// would exceed it fail with cachestore.ErrUnavailable.
func WithQuota(bytes int) Option {
	return func(b *Backend) { b.quota = bytes }
}

// Backend is the shared state behind all handles.
type Backend struct {
	mu          sync.Mutex
	entries     map[string]cachestore.Entry
	used        int
	quota       int
	unavailable bool
	now         func() time.Time
	watchers    map[*watcher]struct{}
}

type watcher struct {
	origin string
	ch     chan cachestore.Change
}

// NewBackend creates an empty shared store.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		entries:  make(map[string]cachestore.Entry),
		now:      time.Now,
		watchers: make(map[*watcher]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open returns a new handle with its own origin id.
func (b *Backend) Open() *Handle {
	return &Handle{b: b, origin: uuid.NewString()}
}

// SetUnavailable simulates the storage being disabled or inaccessible.
func (b *Backend) SetUnavailable(v bool) {
	b.mu.Lock()
	b.unavailable = v
	b.mu.Unlock()
}

// Len returns the number of stored keys.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// notifyLocked must be called with b.mu held.
func (b *Backend) notifyLocked(c cachestore.Change) {
	for w := range b.watchers {
		if w.origin == c.Origin {
			continue
		}
		select {
		case w.ch <- c:
		default:
		}
	}
}

// Handle is one context's view of the Backend.
type Handle struct {
	b      *Backend
	origin string
}

var (
	_ cachestore.Store   = (*Handle)(nil)
	_ cachestore.Watcher = (*Handle)(nil)
)

// Origin identifies changes made through this handle.
func (h *Handle) Origin() string { return h.origin }

func (h *Handle) Get(ctx context.Context, key string) (cachestore.Entry, error) {
	e, err := h.GetStale(ctx, key)
	if err != nil {
		return cachestore.Entry{}, err
	}
	if !e.Fresh(h.b.now()) {
		return cachestore.Entry{}, cachestore.ErrMiss
	}
	return e, nil
}

func (h *Handle) GetStale(_ context.Context, key string) (cachestore.Entry, error) {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	if h.b.unavailable {
		return cachestore.Entry{}, fmt.Errorf("%w: storage disabled", cachestore.ErrUnavailable)
	}
	e, ok := h.b.entries[key]
	if !ok {
		return cachestore.Entry{}, cachestore.ErrMiss
	}
	return e, nil
}

func (h *Handle) Set(_ context.Context, key, value string, ttl time.Duration) error {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	if h.b.unavailable {
		return fmt.Errorf("%w: storage disabled", cachestore.ErrUnavailable)
	}
	size := len(key) + len(value)
	used := h.b.used
	if old, ok := h.b.entries[key]; ok {
		used -= len(key) + len(old.Value)
	}
	if h.b.quota > 0 && used+size > h.b.quota {
		return fmt.Errorf("%w: quota of %d bytes exceeded", cachestore.ErrUnavailable, h.b.quota)
	}
	h.b.entries[key] = cachestore.Entry{Value: value, Deadline: h.b.now().Add(ttl)}
	h.b.used = used + size
	h.b.notifyLocked(cachestore.Change{Op: cachestore.OpSet, Key: key, Origin: h.origin})
	return nil
}

func (h *Handle) ClearByPrefix(_ context.Context, prefix string) error {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	if h.b.unavailable {
		return fmt.Errorf("%w: storage disabled", cachestore.ErrUnavailable)
	}
	for k, e := range h.b.entries {
		if strings.HasPrefix(k, prefix) {
			h.b.used -= len(k) + len(e.Value)
			delete(h.b.entries, k)
		}
	}
	h.b.notifyLocked(cachestore.Change{Op: cachestore.OpClear, Key: prefix, Origin: h.origin})
	return nil
}

// Watch subscribes to changes made through other handles.
func (h *Handle) Watch(ctx context.Context) (<-chan cachestore.Change, error) {
	w := &watcher{origin: h.origin, ch: make(chan cachestore.Change, 64)}
	h.b.mu.Lock()
	h.b.watchers[w] = struct{}{}
	h.b.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.b.mu.Lock()
		delete(h.b.watchers, w)
		close(w.ch)
		h.b.mu.Unlock()
	}()
	return w.ch, nil
}
