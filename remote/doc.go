// Package remote is a client for the metadata endpoints of a remote
// LanceDB-style table service.
//
// Table schemas and the table list are expensive to fetch and change rarely,
// so Client keeps them in TTL caches (see package cache) and only goes to
// the network on a miss or after Invalidate. Row counts are always fetched;
// their filters are built with sqlval.Bind.
//
// Every request runs through a resilience.Executor (per-attempt timeout,
// retry on transient failures, circuit breaker, optional rate limit) and is
// instrumented with observe.Middleware.
package remote
