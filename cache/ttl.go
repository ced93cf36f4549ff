package cache

import (
	"time"

	"github.com/benbjohnson/clock"
)

// TTLCache maps string keys to values that expire a fixed duration after
// they were last set.
//
// Contract:
//   - Expiry: an entry set at T is visible on [T, T+ttl). Expiry is checked
//     on read; there is no background sweeper.
//   - Concurrency: not safe for concurrent use. Callers sharing an instance
//     across goroutines must serialize access (see Loader).
//   - Ownership: values are stored and returned as-is, never copied.
type TTLCache[V any] struct {
	ttl     time.Duration
	clock   clock.Clock
	entries map[string]ttlEntry[V]
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock sets the time source. Defaults to the real clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// NewTTLCache creates an empty cache whose entries live for ttl.
// A ttl <= 0 yields a cache that never retains anything.
func NewTTLCache[V any](ttl time.Duration, opts ...Option) *TTLCache[V] {
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[V]{
		ttl:     ttl,
		clock:   o.clock,
		entries: make(map[string]ttlEntry[V]),
	}
}

// NewTTLCacheFromPolicy creates a cache using the policy's effective TTL.
func NewTTLCacheFromPolicy[V any](p Policy, opts ...Option) *TTLCache[V] {
	return NewTTLCache[V](p.EffectiveTTL(0), opts...)
}

// TTL returns the lifetime applied to every entry.
func (c *TTLCache[V]) TTL() time.Duration {
	return c.ttl
}

// Set inserts or replaces the entry for key. The expiry window restarts
// from now; any previous expiry is discarded.
func (c *TTLCache[V]) Set(key string, value V) {
	if c.ttl <= 0 {
		delete(c.entries, key)
		return
	}
	c.entries[key] = ttlEntry[V]{
		value:     value,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Get returns the value for key. It reports false when the key was never
// set, was deleted, or has reached its expiry time.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	if !c.clock.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}

	return entry.value, true
}

// Delete removes the entry for key. Deleting a missing key is a no-op.
func (c *TTLCache[V]) Delete(key string) {
	delete(c.entries, key)
}

// Len returns the number of stored entries, including expired entries that
// no read has observed yet.
func (c *TTLCache[V]) Len() int {
	return len(c.entries)
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *TTLCache[V]) Cleanup() int {
	now := c.clock.Now()
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
