// Package redis is a cachestore backed by Redis. Every process (browsing
// context) that opens a Store against the same Redis shares the entries, and
// mutations are announced on a pub/sub channel so other contexts can react.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/cachestore"
)

// DefaultChannel is the pub/sub channel used for change notifications.
const DefaultChannel = "sidebar:changes"

// Options configures a Store.
type Options struct {
	// Channel overrides DefaultChannel.
	Channel string
	// Retention is how long Redis keeps a key after it was written. It must
	// outlast the freshness TTL so stale entries stay readable; zero keeps keys
	// until they are cleared.
	Retention time.Duration
	// Now overrides time.Now.
	Now func() time.Time
}

// Store adapts a go-redis client to cachestore.Store and cachestore.Watcher.
type Store struct {
	client    *redis.Client
	origin    string
	channel   string
	retention time.Duration
	now       func() time.Time
}

var (
	_ cachestore.Store   = (*Store)(nil)
	_ cachestore.Watcher = (*Store)(nil)
)

// New wraps an existing client. Each Store gets its own origin id.
func New(client *redis.Client, opts Options) *Store {
	s := &Store{
		client:    client,
		origin:    uuid.NewString(),
		channel:   opts.Channel,
		retention: opts.Retention,
		now:       opts.Now,
	}
	if s.channel == "" {
		s.channel = DefaultChannel
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Dial parses a redis:// URL, verifies connectivity and returns a Store.
func Dial(ctx context.Context, url string, opts Options) (*Store, error) {
	if url == "" {
		return nil, errors.New("redis: url is empty")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return New(c, opts), nil
}

// Origin identifies changes made through this Store.
func (s *Store) Origin() string { return s.origin }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

type envelope struct {
	Value    string `json:"v"`
	Deadline int64  `json:"d"` // unix nanoseconds
}

func (s *Store) Get(ctx context.Context, key string) (cachestore.Entry, error) {
	e, err := s.GetStale(ctx, key)
	if err != nil {
		return cachestore.Entry{}, err
	}
	if !e.Fresh(s.now()) {
		return cachestore.Entry{}, cachestore.ErrMiss
	}
	return e, nil
}

func (s *Store) GetStale(ctx context.Context, key string) (cachestore.Entry, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return cachestore.Entry{}, cachestore.ErrMiss
	}
	if err != nil {
		return cachestore.Entry{}, fmt.Errorf("%w: get %s: %v", cachestore.ErrUnavailable, key, err)
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Foreign or corrupted value: treat as absent.
		return cachestore.Entry{}, cachestore.ErrMiss
	}
	return cachestore.Entry{Value: env.Value, Deadline: time.Unix(0, env.Deadline)}, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	b, err := json.Marshal(envelope{Value: value, Deadline: s.now().Add(ttl).UnixNano()})
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", cachestore.ErrUnavailable, key, err)
	}
	expiry := s.retention
	if expiry > 0 && expiry < ttl {
		expiry = ttl
	}
	if err := s.client.Set(ctx, key, b, expiry).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", cachestore.ErrUnavailable, key, err)
	}
	s.publish(ctx, cachestore.Change{Op: cachestore.OpSet, Key: key, Origin: s.origin})
	return nil
}

func (s *Store) ClearByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	pattern := escapeGlob(prefix) + "*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("%w: scan %s: %v", cachestore.ErrUnavailable, pattern, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: del: %v", cachestore.ErrUnavailable, err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	s.publish(ctx, cachestore.Change{Op: cachestore.OpClear, Key: prefix, Origin: s.origin})
	return nil
}

// publish is best-effort; a lost notification only delays convergence until
// the next TTL expiry.
func (s *Store) publish(ctx context.Context, c cachestore.Change) {
	b, err := json.Marshal(c)
	if err != nil {
		return
	}
	_ = s.client.Publish(ctx, s.channel, b).Err()
}

// Watch subscribes to the change channel. It returns once the subscription is
// confirmed by the server.
func (s *Store) Watch(ctx context.Context) (<-chan cachestore.Change, error) {
	ps := s.client.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: subscribe: %v", cachestore.ErrUnavailable, err)
	}
	out := make(chan cachestore.Change, 64)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c cachestore.Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil || c.Origin == s.origin {
					continue
				}
				select {
				case out <- c:
				default:
				}
			}
		}
	}()
	return out, nil
}

// escapeGlob quotes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
