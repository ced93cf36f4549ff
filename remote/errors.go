package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jonwraymond/lanceops/resilience"
)

var (
	// ErrInvalidURI indicates Config.URI is not of the form db://<name>.
	ErrInvalidURI = errors.New("remote: uri must be of the form db://<name>")

	// ErrMissingCredentials indicates neither Credentials nor an APIKey was
	// configured, or the APIKey resolved to an empty value.
	ErrMissingCredentials = errors.New("remote: credentials are required")

	// ErrInvalidTableName indicates an empty table name.
	ErrInvalidTableName = errors.New("remote: table name is required")

	// ErrTableNotFound is returned when the service reports an unknown table.
	ErrTableNotFound = errors.New("remote: table not found")
)

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string

	retryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("remote: %s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// RetryAfter returns the delay the server asked for, or zero.
func (e *StatusError) RetryAfter() time.Duration {
	return e.retryAfter
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

var _ resilience.RetryAfterError = (*StatusError)(nil)

// isTransient reports whether err is worth retrying and counts against the
// circuit breaker: 429 and 5xx responses, per-attempt timeouts and network
// failures. Caller cancellation never is.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	if errors.Is(err, resilience.ErrTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
