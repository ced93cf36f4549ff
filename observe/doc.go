// Package observe provides observability primitives for cache and remote
// metadata operations.
//
// It is a pure instrumentation library: no transport and no I/O beyond
// exporter setup. The remote client wraps each call with Middleware, and
// CacheStats reports Loader hits and misses as OpenTelemetry counters.
package observe
