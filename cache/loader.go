package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoadFunc resolves the value for a key on a cache miss.
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

// Stats receives cache lookup events.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Stats interface {
	Hit(ctx context.Context, key string)
	Miss(ctx context.Context, key string)
	LoadError(ctx context.Context, key string, err error)
}

// Loader is a read-through layer over a TTLCache.
//
// Contract:
//   - Concurrency: safe for concurrent use; Loader serializes all access to
//     the wrapped cache, which must not be used directly while shared.
//   - Loads: concurrent misses for one key run a single load and share its
//     result. The context of the first caller is the one the load sees.
//   - Errors: failed loads are returned to every waiter and never cached.
//   - Invalidation: a load in flight when its key is invalidated still
//     answers its waiters but does not repopulate the cache.
type Loader[V any] struct {
	mu    sync.Mutex
	cache *TTLCache[V]
	gens  map[string]uint64
	group singleflight.Group
	stats Stats
}

// LoaderOption configures a Loader.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	stats Stats
}

// WithStats reports hits, misses and load errors to s.
func WithStats(s Stats) LoaderOption {
	return func(o *loaderOptions) {
		if s != nil {
			o.stats = s
		}
	}
}

// NewLoader wraps c with read-through loading.
func NewLoader[V any](c *TTLCache[V], opts ...LoaderOption) *Loader[V] {
	o := loaderOptions{stats: nopStats{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Loader[V]{cache: c, gens: make(map[string]uint64), stats: o.stats}
}

// Get returns the cached value for key, calling load on a miss.
// Keys that fail ValidateKey bypass the cache entirely.
func (l *Loader[V]) Get(ctx context.Context, key string, load LoadFunc[V]) (V, error) {
	var zero V
	if load == nil {
		return zero, ErrNilLoader
	}
	if err := ValidateKey(key); err != nil {
		return load(ctx, key)
	}

	if v, ok := l.Peek(key); ok {
		l.stats.Hit(ctx, key)
		return v, nil
	}
	l.stats.Miss(ctx, key)

	res, err, _ := l.group.Do(key, func() (any, error) {
		l.mu.Lock()
		// A load that finished since the Peek above already filled the entry.
		if v, ok := l.cache.Get(key); ok {
			l.mu.Unlock()
			return v, nil
		}
		gen := l.gens[key]
		l.mu.Unlock()

		v, err := load(ctx, key)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		if l.gens[key] == gen {
			l.cache.Set(key, v)
		}
		l.mu.Unlock()
		return v, nil
	})
	if err != nil {
		l.stats.LoadError(ctx, key, err)
		return zero, err
	}

	v, _ := res.(V)
	return v, nil
}

// Peek returns the cached value without loading.
func (l *Loader[V]) Peek(key string) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Get(key)
}

// Invalidate drops key so the next Get reloads it, including when a load
// for key is already running.
func (l *Loader[V]) Invalidate(key string) {
	l.mu.Lock()
	l.gens[key]++
	l.cache.Delete(key)
	l.mu.Unlock()
	l.group.Forget(key)
}

// Cleanup purges expired entries from the wrapped cache.
func (l *Loader[V]) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Cleanup()
}

type nopStats struct{}

func (nopStats) Hit(context.Context, string)              {}
func (nopStats) Miss(context.Context, string)             {}
func (nopStats) LoadError(context.Context, string, error) {}
