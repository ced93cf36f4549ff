package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/jonwraymond/lanceops/cache"
	"github.com/jonwraymond/lanceops/health"
	"github.com/jonwraymond/lanceops/observe"
	"github.com/jonwraymond/lanceops/resilience"
	"github.com/jonwraymond/lanceops/secret"
	"github.com/jonwraymond/lanceops/sqlval"
)

const (
	userAgent      = "lanceops-go/0.1"
	listPageSize   = 100
	maxErrorBody   = 4 << 10
	slowPing       = 2 * time.Second
	component      = "remote"
	tablesCacheKey = "tables:all"
)

// Client fetches table metadata from a remote table service.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Caching: DescribeTable and TableNames are served from TTL caches;
//     concurrent misses for one table share a single request.
//   - Errors: non-2xx responses are *StatusError; failed lookups are never
//     cached.
type Client struct {
	db      string
	base    string
	http    *http.Client
	creds   Credentials
	headers map[string]string
	clock   clock.Clock

	exec   *resilience.Executor
	mw     *observe.Middleware
	logger observe.Logger

	keyer   cache.Keyer
	schemas *cache.Loader[*TableSchema]
	tables  *cache.Loader[[]string]
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	observer   observe.Observer
	clock      clock.Clock
	resolver   *secret.Resolver
}

// WithHTTPClient sets the HTTP client. Its own Timeout, if any, applies in
// addition to Config.Timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithObserver reports spans, metrics and logs to obs.
func WithObserver(obs observe.Observer) Option {
	return func(o *clientOptions) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithClock drives cache expiry, the circuit breaker reset and health check
// latency.
func WithClock(c clock.Clock) Option {
	return func(o *clientOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithResolver resolves APIKey and Headers. Default: env and file providers.
func WithResolver(r *secret.Resolver) Option {
	return func(o *clientOptions) {
		if r != nil {
			o.resolver = r
		}
	}
}

// NewClient validates cfg, resolves its secrets and builds a Client.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, _ := cfg.database()

	o := clientOptions{
		httpClient: http.DefaultClient,
		observer:   observe.NewNopObserver(),
		clock:      clock.New(),
		resolver:   secret.NewDefaultResolver(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	creds := cfg.Credentials
	if creds == nil {
		key, err := o.resolver.ResolveValue(ctx, cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("remote: resolve api key: %w", err)
		}
		if key == "" {
			return nil, ErrMissingCredentials
		}
		creds = APIKeyCredentials{Key: key}
	}

	headers, err := o.resolver.ResolveMap(ctx, cfg.Headers)
	if err != nil {
		return nil, fmt.Errorf("remote: resolve headers: %w", err)
	}

	mw, err := observe.MiddlewareFromObserver(o.observer)
	if err != nil {
		return nil, err
	}
	schemaStats, err := observe.NewCacheStats(o.observer, "schemas")
	if err != nil {
		return nil, err
	}
	tableStats, err := observe.NewCacheStats(o.observer, "tables")
	if err != nil {
		return nil, err
	}

	policy := cfg.cachePolicy()
	c := &Client{
		db:      db,
		base:    cfg.baseURL(db),
		http:    o.httpClient,
		creds:   creds,
		headers: headers,
		clock:   o.clock,
		exec:    newExecutor(&cfg, o.clock),
		mw:      mw,
		logger:  o.observer.Logger().WithOp(observe.OpMeta{Component: component, Name: "client", Resource: db}),
		keyer:   cache.NewDefaultKeyer(),
		schemas: cache.NewLoader(cache.NewTTLCacheFromPolicy[*TableSchema](policy, cache.WithClock(o.clock)), cache.WithStats(schemaStats)),
		tables:  cache.NewLoader(cache.NewTTLCacheFromPolicy[[]string](policy, cache.WithClock(o.clock)), cache.WithStats(tableStats)),
	}
	if !policy.ShouldCache() {
		c.logger.Info(ctx, "metadata caching disabled")
	}
	return c, nil
}

func newExecutor(cfg *Config, clk clock.Clock) *resilience.Executor {
	retry := cfg.Retry
	if retry.RetryIf == nil {
		retry.RetryIf = isTransient
	}
	breaker := cfg.CircuitBreaker
	if breaker.IsFailure == nil {
		breaker.IsFailure = isTransient
	}
	if breaker.Clock == nil {
		breaker.Clock = clk
	}

	opts := []resilience.ExecutorOption{
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(breaker)),
		resilience.WithRetry(resilience.NewRetry(retry)),
		resilience.WithTimeout(cfg.timeout()),
	}
	if cfg.RateLimit != nil {
		opts = append(opts, resilience.WithRateLimiter(resilience.NewRateLimiter(*cfg.RateLimit)))
	}
	return resilience.NewExecutor(opts...)
}

// Database returns the database name from the URI.
func (c *Client) Database() string {
	return c.db
}

// DescribeTable returns the schema of name, from cache when fresh.
func (c *Client) DescribeTable(ctx context.Context, name string) (*TableSchema, error) {
	key, err := c.schemaKey(name)
	if err != nil {
		return nil, err
	}

	return c.schemas.Get(ctx, key, func(ctx context.Context, _ string) (*TableSchema, error) {
		var resp describeResponse
		op := observe.OpMeta{Component: component, Name: "describe_table", Resource: name}
		err := c.call(ctx, op, http.MethodPost, tablePath(name, "describe"), struct{}{}, &resp)

		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %q: %w", ErrTableNotFound, name, err)
		}
		if err != nil {
			return nil, err
		}
		return resp.schema(name), nil
	})
}

// TableNames lists every table in the database, from cache when fresh. The
// returned slice is the caller's to modify.
func (c *Client) TableNames(ctx context.Context) ([]string, error) {
	names, err := c.tables.Get(ctx, tablesCacheKey, func(ctx context.Context, _ string) ([]string, error) {
		var all []string
		token := ""
		for {
			page, err := c.listPage(ctx, token, listPageSize)
			if err != nil {
				return nil, err
			}
			all = append(all, page.Tables...)
			if page.PageToken == "" || len(page.Tables) == 0 {
				break
			}
			token = page.PageToken
		}
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(names), nil
}

// CountRows counts rows of name matching filter, a SQL predicate whose ?
// placeholders are bound to args. An empty filter counts every row. Counts
// are never cached.
func (c *Client) CountRows(ctx context.Context, name, filter string, args ...any) (int64, error) {
	if name == "" {
		return 0, ErrInvalidTableName
	}

	var req countRowsRequest
	if filter != "" {
		predicate, err := sqlval.Bind(filter, args...)
		if err != nil {
			return 0, err
		}
		req.Predicate = predicate
	} else if len(args) > 0 {
		return 0, fmt.Errorf("%w: no filter for %d args", sqlval.ErrArgCount, len(args))
	}

	var n int64
	op := observe.OpMeta{Component: component, Name: "count_rows", Resource: name}
	err := c.call(ctx, op, http.MethodPost, tablePath(name, "count_rows"), req, &n)

	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %q: %w", ErrTableNotFound, name, err)
	}
	return n, err
}

// Invalidate drops the cached schema of name and the cached table list.
func (c *Client) Invalidate(name string) {
	if key, err := c.schemaKey(name); err == nil {
		c.schemas.Invalidate(key)
	}
	c.tables.Invalidate(tablesCacheKey)
}

// Cleanup purges expired cache entries and returns how many were removed.
func (c *Client) Cleanup() int {
	return c.schemas.Cleanup() + c.tables.Cleanup()
}

// Ping checks that the service answers an authenticated request.
func (c *Client) Ping(ctx context.Context) error {
	var page listTablesResponse
	op := observe.OpMeta{Component: component, Name: "ping", Resource: c.db}
	return c.call(ctx, op, http.MethodGet, "/v1/table/?limit=1", nil, &page)
}

// HealthChecker reports the service as unhealthy when Ping fails and
// degraded when it is slow.
func (c *Client) HealthChecker() health.Checker {
	return health.NewPingChecker("lancedb:"+c.db, c.Ping, health.PingConfig{
		DegradedAfter: slowPing,
		Clock:         c.clock,
	})
}

// CircuitState reports the breaker guarding the service.
func (c *Client) CircuitState() resilience.State {
	return c.exec.CircuitBreaker().State()
}

func (c *Client) listPage(ctx context.Context, token string, limit int) (*listTablesResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if token != "" {
		q.Set("page_token", token)
	}

	var page listTablesResponse
	op := observe.OpMeta{Component: component, Name: "list_tables", Resource: c.db}
	if err := c.call(ctx, op, http.MethodGet, "/v1/table/?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) schemaKey(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidTableName
	}
	return c.keyer.Key("schema", name, nil)
}

func tablePath(name, action string) string {
	return "/v1/table/" + url.PathEscape(name) + "/" + action + "/"
}

// call performs one instrumented, resilient request. in is JSON-encoded
// when non-nil; a 2xx body is decoded into out when non-nil.
func (c *Client) call(ctx context.Context, op observe.OpMeta, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: encode %s request: %w", op.Name, err)
		}
		body = b
	}

	return c.mw.Run(ctx, op, func(ctx context.Context) error {
		return c.exec.Execute(ctx, func(ctx context.Context) error {
			return c.roundTrip(ctx, method, path, body, out)
		})
	})
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("x-lancedb-database", c.db)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if err := c.creds.Apply(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.clock.Now()),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s %s: %w", method, req.URL.Path, err)
	}
	return nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
