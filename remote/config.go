package remote

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/lanceops/cache"
	"github.com/jonwraymond/lanceops/resilience"
)

const (
	// DefaultRegion is used when Config.Region is empty.
	DefaultRegion = "us-east-1"

	// DefaultSchemaTTL is how long schemas and the table list stay cached.
	DefaultSchemaTTL = 5 * time.Minute

	// DefaultTimeout bounds each HTTP attempt.
	DefaultTimeout = 30 * time.Second

	uriScheme = "db://"
)

// Config configures a Client.
type Config struct {
	// URI names the database: db://<name>.
	URI string

	// APIKey authenticates with the x-api-key header. It may reference the
	// environment (${LANCEDB_API_KEY}) or a secret (secretref:env:NAME).
	// Ignored when Credentials is set.
	APIKey string

	// Region selects the hosted endpoint. Default: us-east-1.
	Region string

	// HostOverride replaces the hosted endpoint with a base URL, for
	// self-hosted deployments and tests.
	HostOverride string

	// Headers are extra request headers. Values are resolved like APIKey.
	Headers map[string]string

	// SchemaTTL is how long table schemas and the table list are cached.
	// Default: 5m, clamped to 1h.
	SchemaTTL time.Duration

	// DisableCache turns off schema and table list caching.
	DisableCache bool

	// Timeout bounds each HTTP attempt. Default: 30s.
	Timeout time.Duration

	// Retry configures retries of transient failures. RetryIf defaults to
	// 429, 5xx, timeouts and network errors.
	Retry resilience.RetryConfig

	// CircuitBreaker configures the breaker. IsFailure defaults to the same
	// transient classification as Retry.
	CircuitBreaker resilience.CircuitBreakerConfig

	// RateLimit, when set, limits outgoing requests.
	RateLimit *resilience.RateLimiterConfig

	// Credentials overrides APIKey.
	Credentials Credentials
}

// Validate checks the configuration without resolving secrets.
func (c *Config) Validate() error {
	if _, err := c.database(); err != nil {
		return err
	}
	if c.Credentials == nil && strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingCredentials
	}
	if c.HostOverride != "" {
		u, err := url.Parse(c.HostOverride)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("remote: invalid host override %q", c.HostOverride)
		}
	}
	return nil
}

func (c *Config) database() (string, error) {
	name, ok := strings.CutPrefix(c.URI, uriScheme)
	if !ok || name == "" || strings.ContainsAny(name, "/?#") {
		return "", fmt.Errorf("%w: %q", ErrInvalidURI, c.URI)
	}
	return name, nil
}

// baseURL returns the service root for db.
func (c *Config) baseURL(db string) string {
	if c.HostOverride != "" {
		return strings.TrimSuffix(c.HostOverride, "/")
	}
	region := c.Region
	if region == "" {
		region = DefaultRegion
	}
	return fmt.Sprintf("https://%s.%s.api.lancedb.com", db, region)
}

func (c *Config) cachePolicy() cache.Policy {
	if c.DisableCache {
		return cache.NoCachePolicy()
	}
	p := cache.DefaultPolicy()
	p.DefaultTTL = p.EffectiveTTL(c.SchemaTTL)
	return p
}

func (c *Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
