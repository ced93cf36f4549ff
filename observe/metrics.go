package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records operation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error)
}

type opMetrics struct {
	total    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics registers the lance.op.* instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	total, err := meter.Int64Counter(
		"lance.op.total",
		metric.WithDescription("Total number of operations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(
		"lance.op.errors",
		metric.WithDescription("Total number of failed operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"lance.op.duration_ms",
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &opMetrics{total: total, errors: errs, duration: duration}, nil
}

func (m *opMetrics) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.total.Add(ctx, 1, opt)
	if err != nil {
		m.errors.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

// CacheStats reports cache.Loader events as lance.cache.* counters. It
// satisfies cache.Stats.
type CacheStats struct {
	hits       metric.Int64Counter
	misses     metric.Int64Counter
	loadErrors metric.Int64Counter
	opt        metric.MeasurementOption
	logger     Logger
}

// NewCacheStats registers cache counters on obs's meter, labelled with the
// cache name. Load errors are also logged at warn level.
func NewCacheStats(obs Observer, name string) (*CacheStats, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	meter := obs.Meter()

	hits, err := meter.Int64Counter(
		"lance.cache.hits",
		metric.WithDescription("Cache lookups served from a live entry"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"lance.cache.misses",
		metric.WithDescription("Cache lookups that required a load"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	loadErrors, err := meter.Int64Counter(
		"lance.cache.load_errors",
		metric.WithDescription("Loads that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &CacheStats{
		hits:       hits,
		misses:     misses,
		loadErrors: loadErrors,
		opt:        metric.WithAttributes(attribute.String("cache.name", name)),
		logger:     obs.Logger().WithOp(OpMeta{Component: "cache", Name: name}),
	}, nil
}

// Hit records a lookup served from the cache.
func (s *CacheStats) Hit(ctx context.Context, _ string) {
	s.hits.Add(ctx, 1, s.opt)
}

// Miss records a lookup that triggered a load.
func (s *CacheStats) Miss(ctx context.Context, _ string) {
	s.misses.Add(ctx, 1, s.opt)
}

// LoadError records a failed load.
func (s *CacheStats) LoadError(ctx context.Context, key string, err error) {
	s.loadErrors.Add(ctx, 1, s.opt)
	s.logger.Warn(ctx, "cache load failed", Field{Key: "key", Value: key}, Field{Key: "error", Value: err})
}
