package observe

import (
	"context"
	"time"
)

// OpFunc is the unit of work Middleware instruments.
type OpFunc func(ctx context.Context) error

// Middleware wraps operations with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned
//     unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
	now     func() time.Time
}

// NewMiddleware creates a Middleware from its components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// MiddlewareFromObserver builds a Middleware from obs's tracer, meter and
// logger.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Run executes fn inside a span and records its outcome.
func (m *Middleware) Run(ctx context.Context, meta OpMeta, fn OpFunc) error {
	if meta.Name == "" {
		return ErrMissingOpName
	}

	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := m.now()
	err := fn(ctx)
	duration := m.now().Sub(start)
	m.tracer.EndSpan(span, err)

	m.metrics.RecordOperation(ctx, meta, duration, err)

	logger := m.logger.WithOp(meta)
	fields := []Field{{Key: "duration_ms", Value: float64(duration) / float64(time.Millisecond)}}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err})
		logger.Error(ctx, "operation failed", fields...)
		return err
	}
	logger.Debug(ctx, "operation completed", fields...)
	return nil
}
