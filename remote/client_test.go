package remote

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/lanceops/health"
	"github.com/jonwraymond/lanceops/observe"
	"github.com/jonwraymond/lanceops/resilience"
	"github.com/jonwraymond/lanceops/secret"
	"github.com/jonwraymond/lanceops/sqlval"
)

const describePath = "/v1/table/items/describe/"

func TestNewClient_ResolvesAPIKey(t *testing.T) {
	_, srv := newFakeService(t)
	t.Setenv("LANCEOPS_TEST_KEY", "sk-test")

	for _, key := range []string{"${LANCEOPS_TEST_KEY}", "secretref:env:LANCEOPS_TEST_KEY"} {
		cfg := testConfig(srv)
		cfg.APIKey = key
		c, _ := newTestClient(t, cfg)
		if err := c.Ping(context.Background()); err != nil {
			t.Errorf("APIKey %q: Ping() error = %v", key, err)
		}
	}
}

func TestNewClient_Errors(t *testing.T) {
	_, srv := newFakeService(t)
	ctx := context.Background()

	cfg := testConfig(srv)
	cfg.APIKey = "${LANCEOPS_UNSET_KEY}"
	if _, err := NewClient(ctx, cfg); !errors.Is(err, secret.ErrMissingEnv) {
		t.Errorf("unset env: err = %v, want %v", err, secret.ErrMissingEnv)
	}

	cfg = testConfig(srv)
	cfg.APIKey = "secretref:stub:empty"
	stub := secret.NewResolver(false, emptyProvider{})
	if _, err := NewClient(ctx, cfg, WithResolver(stub)); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("empty key: err = %v, want %v", err, ErrMissingCredentials)
	}

	cfg = testConfig(srv)
	cfg.URI = "s3://bucket"
	if _, err := NewClient(ctx, cfg); !errors.Is(err, ErrInvalidURI) {
		t.Errorf("bad uri: err = %v, want %v", err, ErrInvalidURI)
	}
}

type emptyProvider struct{}

func (emptyProvider) Name() string                                    { return "stub" }
func (emptyProvider) Resolve(context.Context, string) (string, error) { return "", nil }
func (emptyProvider) Close() error                                    { return nil }

func TestDescribeTable(t *testing.T) {
	_, srv := newFakeService(t)
	c, _ := newTestClient(t, testConfig(srv))

	s, err := c.DescribeTable(context.Background(), "items")
	if err != nil {
		t.Fatalf("DescribeTable() error = %v", err)
	}
	if s.Name != "items" || s.Version != 3 || s.NumRows != 42 || len(s.Fields) != 2 {
		t.Fatalf("schema = %+v", s)
	}
	if f, ok := s.Field("vector"); !ok || f.Type != "fixed_size_list" || !f.Nullable {
		t.Errorf("Field(vector) = %+v, %v", f, ok)
	}
	if _, ok := s.Field("missing"); ok {
		t.Error("Field(missing) found")
	}
}

func TestDescribeTable_CachedForSchemaTTL(t *testing.T) {
	svc, srv := newFakeService(t)
	c, mock := newTestClient(t, testConfig(srv))
	ctx := context.Background()

	first, _ := c.DescribeTable(ctx, "items")
	mock.Add(59 * time.Second)
	second, _ := c.DescribeTable(ctx, "items")
	if got := svc.count(describePath); got != 1 {
		t.Fatalf("requests within TTL = %d, want 1", got)
	}
	if first != second {
		t.Error("cached schema should be the same value")
	}

	mock.Add(time.Second)
	if _, err := c.DescribeTable(ctx, "items"); err != nil {
		t.Fatalf("DescribeTable() error = %v", err)
	}
	if got := svc.count(describePath); got != 2 {
		t.Errorf("requests after TTL = %d, want 2", got)
	}
}

func TestDescribeTable_ConcurrentMissesShareRequest(t *testing.T) {
	svc, srv := newFakeService(t)
	svc.delay = 50 * time.Millisecond
	c, _ := newTestClient(t, testConfig(srv))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.DescribeTable(context.Background(), "items"); err != nil {
				t.Errorf("DescribeTable() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := svc.count(describePath); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestDescribeTable_NotFoundIsNotCached(t *testing.T) {
	svc, srv := newFakeService(t)
	c, _ := newTestClient(t, testConfig(srv))

	for i := 0; i < 2; i++ {
		_, err := c.DescribeTable(context.Background(), "ghost")
		if !errors.Is(err, ErrTableNotFound) {
			t.Fatalf("err = %v, want %v", err, ErrTableNotFound)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
			t.Fatalf("err = %v, want *StatusError 404", err)
		}
	}
	if got := svc.count("/v1/table/ghost/describe/"); got != 2 {
		t.Errorf("requests = %d, want 2 (no retries, no caching)", got)
	}
	if c.CircuitState() != resilience.StateClosed {
		t.Error("a missing table must not count against the breaker")
	}

	if _, err := c.DescribeTable(context.Background(), ""); !errors.Is(err, ErrInvalidTableName) {
		t.Errorf("empty name: err = %v, want %v", err, ErrInvalidTableName)
	}
}

func TestDescribeTable_RetriesTransientFailures(t *testing.T) {
	for _, status := range []int{http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		svc, srv := newFakeService(t)
		svc.failWith(status, 2)
		c, _ := newTestClient(t, testConfig(srv))

		if _, err := c.DescribeTable(context.Background(), "items"); err != nil {
			t.Fatalf("status %d: DescribeTable() error = %v", status, err)
		}
		if got := svc.count(describePath); got != 3 {
			t.Errorf("status %d: requests = %d, want 3", status, got)
		}
	}
}

func TestClient_ClientErrorsFailFast(t *testing.T) {
	svc, srv := newFakeService(t)
	cfg := testConfig(srv)
	cfg.APIKey = "sk-wrong"
	c, _ := newTestClient(t, cfg)

	err := c.Ping(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized || se.Message != "bad key" {
		t.Fatalf("err = %v, want 401 StatusError", err)
	}
	if got := svc.count("/v1/table/"); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestClient_CircuitOpensOnServerErrors(t *testing.T) {
	svc, srv := newFakeService(t)
	svc.failWith(http.StatusInternalServerError, 100)
	cfg := testConfig(srv)
	cfg.Retry.MaxAttempts = 1
	cfg.CircuitBreaker = resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute}
	c, mock := newTestClient(t, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		var se *StatusError
		if _, err := c.DescribeTable(ctx, "items"); !errors.As(err, &se) {
			t.Fatalf("call %d: err = %v, want *StatusError", i, err)
		}
	}
	if _, err := c.DescribeTable(ctx, "items"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want %v", err, resilience.ErrCircuitOpen)
	}
	if got := svc.count(describePath); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}

	svc.failWith(0, 0)
	mock.Add(time.Minute)
	if _, err := c.DescribeTable(ctx, "items"); err != nil {
		t.Fatalf("after reset timeout: err = %v", err)
	}
	if c.CircuitState() != resilience.StateClosed {
		t.Errorf("CircuitState() = %v, want closed", c.CircuitState())
	}
}

func TestTableNames(t *testing.T) {
	svc, srv := newFakeService(t)
	c, mock := newTestClient(t, testConfig(srv))
	ctx := context.Background()

	names, err := c.TableNames(ctx)
	if err != nil {
		t.Fatalf("TableNames() error = %v", err)
	}
	if strings.Join(names, ",") != "events,items,users" {
		t.Fatalf("TableNames() = %v", names)
	}
	if got := svc.count("/v1/table/"); got != 2 {
		t.Errorf("page requests = %d, want 2", got)
	}

	names[0] = "mutated"
	again, _ := c.TableNames(ctx)
	if again[0] != "events" {
		t.Error("caller mutation leaked into the cache")
	}
	if got := svc.count("/v1/table/"); got != 2 {
		t.Errorf("cached call made requests: %d", got)
	}

	mock.Add(time.Minute)
	_, _ = c.TableNames(ctx)
	if got := svc.count("/v1/table/"); got != 4 {
		t.Errorf("requests after TTL = %d, want 4", got)
	}
}

func TestInvalidate(t *testing.T) {
	svc, srv := newFakeService(t)
	c, _ := newTestClient(t, testConfig(srv))
	ctx := context.Background()

	_, _ = c.DescribeTable(ctx, "items")
	_, _ = c.TableNames(ctx)
	c.Invalidate("items")
	_, _ = c.DescribeTable(ctx, "items")
	_, _ = c.TableNames(ctx)

	if got := svc.count(describePath); got != 2 {
		t.Errorf("describe requests = %d, want 2", got)
	}
	if got := svc.count("/v1/table/"); got != 4 {
		t.Errorf("list requests = %d, want 4", got)
	}
}

func TestDisableCache(t *testing.T) {
	svc, srv := newFakeService(t)
	cfg := testConfig(srv)
	cfg.DisableCache = true
	c, _ := newTestClient(t, cfg)

	_, _ = c.DescribeTable(context.Background(), "items")
	_, _ = c.DescribeTable(context.Background(), "items")
	if got := svc.count(describePath); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestCleanup(t *testing.T) {
	_, srv := newFakeService(t)
	c, mock := newTestClient(t, testConfig(srv))
	ctx := context.Background()

	_, _ = c.DescribeTable(ctx, "items")
	_, _ = c.DescribeTable(ctx, "users")
	_, _ = c.TableNames(ctx)
	if got := c.Cleanup(); got != 0 {
		t.Errorf("Cleanup() before expiry = %d, want 0", got)
	}
	mock.Add(time.Minute)
	if got := c.Cleanup(); got != 3 {
		t.Errorf("Cleanup() after expiry = %d, want 3", got)
	}
}

func TestCountRows(t *testing.T) {
	svc, srv := newFakeService(t)
	c, _ := newTestClient(t, testConfig(srv))
	ctx := context.Background()

	n, err := c.CountRows(ctx, "items", "")
	if err != nil || n != 42 {
		t.Fatalf("CountRows(all) = %d, %v; want 42", n, err)
	}

	n, err = c.CountRows(ctx, "items", "name = ? AND id > ? AND tag IN ?", "o'neil", 3, []string{"a", "b"})
	if err != nil || n != 1 {
		t.Fatalf("CountRows(filter) = %d, %v; want 1", n, err)
	}

	want := []string{"", "name = 'o''neil' AND id > 3 AND tag IN ['a', 'b']"}
	svc.mu.Lock()
	got := append([]string(nil), svc.predicates...)
	svc.mu.Unlock()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("predicates = %q, want %q", got, want)
	}

	_, _ = c.CountRows(ctx, "items", "")
	if got := svc.count("/v1/table/items/count_rows/"); got != 3 {
		t.Errorf("requests = %d, want 3 (never cached)", got)
	}
}

func TestCountRows_Errors(t *testing.T) {
	_, srv := newFakeService(t)
	c, _ := newTestClient(t, testConfig(srv))
	ctx := context.Background()

	if _, err := c.CountRows(ctx, "items", "a = ?"); !errors.Is(err, sqlval.ErrArgCount) {
		t.Errorf("missing arg: err = %v", err)
	}
	if _, err := c.CountRows(ctx, "items", "", 1); !errors.Is(err, sqlval.ErrArgCount) {
		t.Errorf("args without filter: err = %v", err)
	}
	if _, err := c.CountRows(ctx, "items", "a = ?", struct{}{}); !errors.Is(err, sqlval.ErrUnsupportedType) {
		t.Errorf("unsupported arg: err = %v", err)
	}
	if _, err := c.CountRows(ctx, "ghost", ""); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("missing table: err = %v", err)
	}
	if _, err := c.CountRows(ctx, "", ""); !errors.Is(err, ErrInvalidTableName) {
		t.Errorf("empty name: err = %v", err)
	}
}

func TestHealthChecker(t *testing.T) {
	_, srv := newFakeService(t)
	cfg := testConfig(srv)
	cfg.Retry.MaxAttempts = 1
	c, _ := newTestClient(t, cfg)

	hc := c.HealthChecker()
	if hc.Name() != "lancedb:mydb" {
		t.Errorf("Name() = %q", hc.Name())
	}
	if r := hc.Check(context.Background()); r.Status != health.StatusHealthy {
		t.Fatalf("Check() = %+v, want healthy", r)
	}

	srv.Close()
	if r := hc.Check(context.Background()); r.Status != health.StatusUnhealthy || r.Error == nil {
		t.Errorf("Check() after shutdown = %+v, want unhealthy", r)
	}
}

type testObserver struct {
	meter  metric.Meter
	logger observe.Logger
}

func (o testObserver) Tracer() trace.Tracer           { return tracenoop.NewTracerProvider().Tracer("test") }
func (o testObserver) Meter() metric.Meter            { return o.meter }
func (o testObserver) Logger() observe.Logger         { return o.logger }
func (o testObserver) Shutdown(context.Context) error { return nil }

func TestClient_Observability(t *testing.T) {
	_, srv := newFakeService(t)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	var logs bytes.Buffer
	obs := testObserver{meter: mp.Meter("test"), logger: observe.NewLoggerWithWriter("debug", &logs)}

	c, _ := newTestClient(t, testConfig(srv), WithObserver(obs))
	ctx := context.Background()
	_, _ = c.DescribeTable(ctx, "items")
	_, _ = c.DescribeTable(ctx, "items")
	_, _ = c.DescribeTable(ctx, "ghost")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	counters := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					counters[m.Name] += dp.Value
				}
			}
		}
	}
	want := map[string]int64{
		"lance.cache.hits":        1,
		"lance.cache.misses":      2,
		"lance.cache.load_errors": 1,
		"lance.op.total":          2,
		"lance.op.errors":         1,
	}
	for name, v := range want {
		if counters[name] != v {
			t.Errorf("%s = %d, want %d", name, counters[name], v)
		}
	}

	out := logs.String()
	if strings.Contains(out, "sk-test") {
		t.Fatal("api key leaked into logs")
	}
	if !strings.Contains(out, `"op.id":"remote.describe_table"`) {
		t.Errorf("missing operation log line: %s", out)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := map[string]time.Duration{
		"":                              0,
		"3":                             3 * time.Second,
		"-1":                            0,
		"soon":                          0,
		"Mon, 01 Jan 2024 00:00:10 GMT": 10 * time.Second,
		"Sun, 31 Dec 2023 23:59:00 GMT": 0,
	}
	for in, want := range tests {
		if got := parseRetryAfter(in, now); got != want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &StatusError{StatusCode: 429}, true},
		{"503", &StatusError{StatusCode: 503}, true},
		{"404", &StatusError{StatusCode: 404}, false},
		{"timeout", resilience.ErrTimeout, true},
		{"cancelled", context.Canceled, false},
		{"decode", errors.New("remote: decode"), false},
	}
	for _, tt := range tests {
		if got := isTransient(tt.err); got != tt.want {
			t.Errorf("%s: isTransient() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStatusError_Error(t *testing.T) {
	e := &StatusError{Method: "POST", Path: describePath, StatusCode: 503, Message: "overloaded"}
	if got := e.Error(); got != "remote: POST /v1/table/items/describe/: 503 Service Unavailable: overloaded" {
		t.Errorf("Error() = %q", got)
	}
	e.Message = ""
	if got := e.Error(); got != "remote: POST /v1/table/items/describe/: 503 Service Unavailable" {
		t.Errorf("Error() = %q", got)
	}
}
