package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// SiloResponse is one canned answer of FakeSilo.
type SiloResponse struct {
	Status     int
	Body       string
	RetryAfter string
}

// FakeSilo is an in-process stand-in for the downstream engine. It counts
// calls per path and records every query body it receives.
//
// Thread-safety: All methods are safe for concurrent use.
type FakeSilo struct {
	*httptest.Server

	mu          sync.Mutex
	calls       map[string]int
	queries     []string
	dataVersion string
	siloVersion string
	onQuery     func(query string) SiloResponse
	lineages    map[string]string
}

// NewFakeSilo starts a fake engine that answers every query with no rows.
// The server is closed when the test ends.
func NewFakeSilo(t testing.TB) *FakeSilo {
	t.Helper()
	f := &FakeSilo{
		calls:       map[string]int{},
		dataVersion: "1700000000",
		siloVersion: "0.5.0",
		onQuery:     func(string) SiloResponse { return SiloResponse{Status: http.StatusOK} },
		lineages:    map[string]string{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", f.handleQuery)
	mux.HandleFunc("GET /info", f.handleInfo)
	mux.HandleFunc("GET /lineageDefinition/{column}", f.handleLineage)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// Rows makes every query answer with the given NDJSON lines.
func (f *FakeSilo) Rows(lines ...string) {
	body := strings.Join(lines, "\n")
	if body != "" {
		body += "\n"
	}
	f.OnQuery(func(string) SiloResponse {
		return SiloResponse{Status: http.StatusOK, Body: body}
	})
}

// Fail makes every query answer with status and body.
func (f *FakeSilo) Fail(status int, retryAfter, body string) {
	f.OnQuery(func(string) SiloResponse {
		return SiloResponse{Status: status, Body: body, RetryAfter: retryAfter}
	})
}

// OnQuery installs a handler computing the answer from the query body.
func (f *FakeSilo) OnQuery(fn func(query string) SiloResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onQuery = fn
}

// SetDataVersion changes the data-version header of subsequent answers.
func (f *FakeSilo) SetDataVersion(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataVersion = v
}

// SetLineageDefinition serves yaml for /lineageDefinition/column.
func (f *FakeSilo) SetLineageDefinition(column, yaml string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lineages[column] = yaml
}

// Calls returns how often path was requested.
func (f *FakeSilo) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// Queries returns the received query bodies in arrival order.
func (f *FakeSilo) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// LastQuery returns the most recent query body, or "".
func (f *FakeSilo) LastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

func (f *FakeSilo) count(r *http.Request) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[r.URL.Path]++
	return f.dataVersion
}

func (f *FakeSilo) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	version := f.count(r)

	f.mu.Lock()
	f.queries = append(f.queries, string(body))
	onQuery := f.onQuery
	f.mu.Unlock()

	resp := onQuery(string(body))
	if resp.RetryAfter != "" {
		w.Header().Set("Retry-After", resp.RetryAfter)
	}
	if resp.Status < 300 {
		w.Header().Set("data-version", version)
		w.Header().Set("Content-Type", "application/x-ndjson")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}

func (f *FakeSilo) handleInfo(w http.ResponseWriter, r *http.Request) {
	version := f.count(r)
	f.mu.Lock()
	silo := f.siloVersion
	f.mu.Unlock()

	w.Header().Set("data-version", version)
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"version":"`+silo+`"}`)
}

func (f *FakeSilo) handleLineage(w http.ResponseWriter, r *http.Request) {
	version := f.count(r)
	f.mu.Lock()
	def, ok := f.lineages[r.PathValue("column")]
	f.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Bad request","message":"The lineage definition for column '`+
			r.PathValue("column")+`' does not exist."}`)
		return
	}
	w.Header().Set("data-version", version)
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = io.WriteString(w, def)
}
