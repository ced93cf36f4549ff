package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/jonwraymond/lanceops/resilience"
)

// fakeService is an in-memory table service speaking the client's REST
// dialect.
type fakeService struct {
	t      *testing.T
	apiKey string

	mu         sync.Mutex
	requests   map[string]int
	predicates []string
	tables     map[string]int64
	failNext   int
	failStatus int
	delay      time.Duration
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	f := &fakeService{
		t:        t,
		apiKey:   "sk-test",
		requests: make(map[string]int),
		tables:   map[string]int64{"items": 42, "users": 7, "events": 1000},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeService) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeService) failWith(status, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus, f.failNext = status, times
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests[r.URL.Path]++
	fail := f.failNext > 0
	if fail {
		f.failNext--
	}
	status, delay := f.failStatus, f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		w.Header().Set("Retry-After", "0")
		http.Error(w, "try later", status)
		return
	}

	if r.Header.Get("x-api-key") != f.apiKey && !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		http.Error(w, "bad key", http.StatusUnauthorized)
		return
	}
	if r.Header.Get("x-lancedb-database") != "mydb" {
		http.Error(w, "wrong database", http.StatusBadRequest)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/table/":
		f.list(w, r)
	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "describe":
		f.describe(w, parts[2])
	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "count_rows":
		f.countRows(w, r, parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeService) list(w http.ResponseWriter, r *http.Request) {
	// Two tables per page regardless of the requested limit.
	pages := map[string]listTablesResponse{
		"":  {Tables: []string{"events", "items"}, PageToken: "p2"},
		"p2": {Tables: []string{"users"}},
	}
	writeJSON(w, pages[r.URL.Query().Get("page_token")])
}

func (f *fakeService) describe(w http.ResponseWriter, name string) {
	rows, ok := f.tables[name]
	if !ok {
		http.Error(w, "Table '"+name+"' was not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"table":   name,
		"version": 3,
		"schema": map[string]any{"fields": []map[string]any{
			{"name": "id", "type": map[string]any{"type": "int64"}, "nullable": false},
			{"name": "vector", "type": map[string]any{"type": "fixed_size_list"}, "nullable": true},
		}},
		"stats": map[string]any{"num_rows": rows},
	})
}

func (f *fakeService) countRows(w http.ResponseWriter, r *http.Request, name string) {
	rows, ok := f.tables[name]
	if !ok {
		http.Error(w, "no such table", http.StatusNotFound)
		return
	}
	var req countRowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.predicates = append(f.predicates, req.Predicate)
	f.mu.Unlock()
	if req.Predicate != "" {
		rows = 1
	}
	writeJSON(w, rows)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// testConfig points at srv with fast retries.
func testConfig(srv *httptest.Server) Config {
	return Config{
		URI:          "db://mydb",
		APIKey:       "sk-test",
		HostOverride: srv.URL,
		SchemaTTL:    time.Minute,
		Timeout:      time.Second,
		Retry:        resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond},
	}
}

func newTestClient(t *testing.T, cfg Config, opts ...Option) (*Client, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	c, err := NewClient(context.Background(), cfg, append([]Option{WithClock(mock)}, opts...)...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c, mock
}
