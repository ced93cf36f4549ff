package health

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Status represents the health status of a component.
type Status int

const (
	StatusHealthy Status = iota
	// StatusDegraded means the component works but is slow or partially
	// impaired.
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one check.
type Result struct {
	Status    Status
	Message   string
	Details   map[string]any
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err}
}

// WithDetails returns a copy of r carrying details.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker is the interface for health checks.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a named CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string                     { return f.name }
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

// PingConfig configures a PingChecker.
type PingConfig struct {
	// DegradedAfter marks a successful ping slower than this as degraded.
	// Zero disables the latency check.
	DegradedAfter time.Duration

	Clock clock.Clock
}

// PingChecker turns a reachability probe into a Checker.
type PingChecker struct {
	name   string
	ping   func(context.Context) error
	config PingConfig
}

// NewPingChecker creates a checker that is healthy when ping succeeds.
func NewPingChecker(name string, ping func(context.Context) error, config PingConfig) *PingChecker {
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	return &PingChecker{name: name, ping: ping, config: config}
}

func (p *PingChecker) Name() string { return p.name }

// Check pings once and reports the latency in Details["latency"].
func (p *PingChecker) Check(ctx context.Context) Result {
	start := p.config.Clock.Now()
	err := p.ping(ctx)
	latency := p.config.Clock.Since(start)
	details := map[string]any{"latency": latency.String()}

	switch {
	case err != nil:
		return Unhealthy("ping failed", err).WithDetails(details)
	case p.config.DegradedAfter > 0 && latency > p.config.DegradedAfter:
		return Degraded("ping slow").WithDetails(details)
	default:
		return Healthy("ping ok").WithDetails(details)
	}
}
