// Package cache provides a time-to-live cache for expensive lookups.
//
// TTLCache is a plain generic map with lazy, read-time expiry. Loader layers
// read-through loading on top of it: concurrent misses share one load and
// failed loads are never cached. Keyer and Policy derive deterministic keys
// and effective TTLs for callers that cache remote resources.
package cache
