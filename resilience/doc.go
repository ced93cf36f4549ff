// Package resilience guards remote metadata calls with timeouts, retries,
// a circuit breaker and an optional rate limiter.
//
// Each pattern works on its own; Executor composes them in a fixed order:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRateLimiter(rl),
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(retry),
//	    resilience.WithTimeout(5*time.Second),
//	)
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return describe(ctx)
//	})
//
// Time is read through a clock.Clock so tests can drive breaker resets,
// backoff and token refill with a mock.
package resilience
