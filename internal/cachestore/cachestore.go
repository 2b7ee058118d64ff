// Package cachestore defines the client-local key/value store the sidebar
// caches into. Entries carry a freshness deadline; reads can ask for fresh
// data only or accept stale data. Adapters live in subpackages.
package cachestore

import (
	"context"
	"errors"
	"time"
)

// ErrMiss signals that a key is absent (or, for Get, no longer fresh).
var ErrMiss = errors.New("cache: miss")

// ErrUnavailable wraps failures of the underlying store: quota exceeded,
// connection refused, storage disabled.
var ErrUnavailable = errors.New("cache: storage unavailable")

// Entry is a stored payload and its freshness deadline.
type Entry struct {
	Value    string
	Deadline time.Time
}

// Fresh reports whether the entry is still within its TTL at now.
func (e Entry) Fresh(now time.Time) bool { return now.Before(e.Deadline) }

// Remaining returns how much freshness is left at now (zero once expired).
func (e Entry) Remaining(now time.Time) time.Duration {
	if d := e.Deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Store is the per-key, TTL-scoped key/value contract.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry only while it is fresh; an expired entry yields
	// ErrMiss but is kept for GetStale.
	Get(ctx context.Context, key string) (Entry, error)
	// GetStale returns the entry regardless of freshness.
	GetStale(ctx context.Context, key string) (Entry, error)
	// Set stores value with deadline now+ttl, overwriting any prior entry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// ClearByPrefix removes every key that starts with prefix.
	ClearByPrefix(ctx context.Context, prefix string) error
}

// ChangeOp names the kind of mutation a Change describes.
type ChangeOp string

const (
	OpSet   ChangeOp = "set"
	OpClear ChangeOp = "clear"
)

// Change is a notification that another handle mutated the shared store.
// For OpSet, Key is the written key; for OpClear it is the cleared prefix.
type Change struct {
	Op     ChangeOp `json:"op"`
	Key    string   `json:"key"`
	Origin string   `json:"origin"`
}

// Watcher delivers changes made through other handles of the same shared
// store. Changes made through the watching handle itself are not delivered.
// The channel is closed when ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}
