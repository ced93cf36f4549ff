// Package health reports whether the remote metadata endpoint, and anything
// else registered alongside it, is usable.
//
// A Checker reports a Result with one of three statuses. NewPingChecker
// adapts a reachability probe such as remote.Client.Ping, and Aggregator
// runs several checkers under one deadline:
//
//	agg := health.NewAggregator()
//	agg.Register("lancedb", client.HealthChecker())
//	results := agg.CheckAll(ctx)
//	if agg.OverallStatus(results) != health.StatusHealthy {
//	    ...
//	}
package health
