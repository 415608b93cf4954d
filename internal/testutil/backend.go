// Package testutil provides a real in-memory backend with fault injection
// for client library tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"reelshare/internal/config"
	"reelshare/internal/database"
	"reelshare/internal/models"
	"reelshare/internal/repository"
	"reelshare/internal/server"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// RecordedRequest is one request seen by the backend.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Fault makes matching requests misbehave.
//
// With Block set, a matching request waits until Block is closed (or the
// client gives up) before anything else happens. Status then decides the
// answer: zero forwards the request normally, otherwise that status is
// returned. With AfterApply, the request is forwarded first and the response
// is replaced by Status, simulating a write that landed but whose reply was
// lost. Skip lets that many matching requests through untouched first.
// Times limits how many requests the fault applies to; zero means every
// matching request. Entered should be buffered; it is signalled without
// blocking when a request starts waiting on Block.
type Fault struct {
	Method     string
	PathPrefix string
	Status     int
	Block      chan struct{}
	Entered    chan struct{}
	AfterApply bool
	Skip       int
	Times      int

	seen int
	hits int
}

// claim reports whether f applies to r, counting r against Skip and Times.
func (f *Fault) claim(r *http.Request) bool {
	if f.Method != "" && f.Method != r.Method {
		return false
	}
	if !strings.HasPrefix(r.URL.Path, f.PathPrefix) {
		return false
	}
	if f.Times > 0 && f.hits >= f.Times {
		return false
	}
	f.seen++
	if f.seen <= f.Skip {
		return false
	}
	f.hits++
	return true
}

// Option configures a Backend.
type Option func(*backendOptions)

type backendOptions struct {
	flags    string
	redis    *redis.Client
	realtime bool
}

// WithFlags sets the FEATURE_FLAGS value the backend evaluates.
func WithFlags(flags string) Option {
	return func(o *backendOptions) { o.flags = flags }
}

// WithRedis backs the server with rdb for caching and event fanout.
func WithRedis(rdb *redis.Client) Option {
	return func(o *backendOptions) { o.redis = rdb }
}

// WithRealtime also serves the app on a real listener so websockets work.
func WithRealtime() Option {
	return func(o *backendOptions) { o.realtime = true }
}

// Backend is the fiber API running against in-memory SQLite.
type Backend struct {
	// URL is the base URL of the HTTP API, without the /api prefix.
	URL string
	// RealtimeURL is set with WithRealtime; websocket clients dial it.
	RealtimeURL string
	Repo        repository.DocumentRepository

	srv      *server.Server
	app      http.Handler
	mu       sync.Mutex
	faults   []*Fault
	requests []RecordedRequest
}

// NewBackend starts a backend that is torn down with t.
func NewBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	o := backendOptions{flags: "server_counters=on"}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.OpenMemory()
	require.NoError(t, err)

	cfg := &config.Config{
		Port:           "0",
		Env:            "test",
		DBDriver:       "sqlite",
		AllowedOrigins: "*",
		FeatureFlags:   o.flags,
	}
	srv, err := server.NewServerWithDeps(cfg, db, o.redis)
	require.NoError(t, err)

	b := &Backend{
		Repo: repository.NewDocumentRepository(db),
		srv:  srv,
		app:  adaptor.FiberApp(srv.NewApp()),
	}
	ts := httptest.NewServer(http.HandlerFunc(b.serveHTTP))
	b.URL = ts.URL

	if o.realtime {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		rt := srv.NewApp()
		go func() { _ = rt.Listener(ln) }()
		b.RealtimeURL = "http://" + ln.Addr().String()
		t.Cleanup(func() { _ = rt.ShutdownWithTimeout(time.Second) })
	}

	t.Cleanup(func() {
		ts.CloseClientConnections()
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return b
}

func (b *Backend) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	b.mu.Lock()
	b.requests = append(b.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	var fault *Fault
	for _, f := range b.faults {
		if f.claim(r) {
			fault = f
			break
		}
	}
	b.mu.Unlock()

	if fault == nil {
		b.app.ServeHTTP(w, r)
		return
	}

	if fault.Block != nil {
		if fault.Entered != nil {
			select {
			case fault.Entered <- struct{}{}:
			default:
			}
		}
		select {
		case <-fault.Block:
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case fault.AfterApply:
		b.app.ServeHTTP(httptest.NewRecorder(), r)
		writeFault(w, fault.Status)
	case fault.Status != 0:
		writeFault(w, fault.Status)
	default:
		b.app.ServeHTTP(w, r)
	}
}

func writeFault(w http.ResponseWriter, status int) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"injected fault","code":"` + models.CodeInternal + `"}`))
}

// Online reports whether userID has a connected notification socket.
func (b *Backend) Online(userID string) bool {
	return b.srv.IsOnline(userID)
}

// Inject installs f. Faults are checked in the order they were added.
func (b *Backend) Inject(f *Fault) *Fault {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults = append(b.faults, f)
	return f
}

// Fail makes the next times requests matching method and prefix return status.
func (b *Backend) Fail(method, prefix string, status, times int) *Fault {
	return b.Inject(&Fault{Method: method, PathPrefix: prefix, Status: status, Times: times})
}

// ClearFaults removes every installed fault.
func (b *Backend) ClearFaults() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults = nil
}

// Requests returns the recorded requests matching method (any when empty)
// and path prefix, in arrival order.
func (b *Backend) Requests(method, prefix string) []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []RecordedRequest
	for _, r := range b.requests {
		if (method == "" || r.Method == method) && strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// ResetRequests forgets every recorded request.
func (b *Backend) ResetRequests() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = nil
}

// Seed stores doc in collection directly through the repository, bypassing
// the HTTP layer and its recording. doc must carry an id.
func (b *Backend) Seed(t *testing.T, collection models.Collection, doc any) models.Fields {
	t.Helper()
	fields, err := models.ToFields(doc)
	require.NoError(t, err)
	require.NotEmpty(t, fields.ID(), "seeded documents need an id")
	out, err := b.Repo.Create(context.Background(), collection.String(), fields)
	require.NoError(t, err)
	return out
}

// Doc reads a stored document into dest, failing t if it is missing.
func (b *Backend) Doc(t *testing.T, collection models.Collection, id string, dest any) {
	t.Helper()
	fields, err := b.Repo.Get(context.Background(), collection.String(), id)
	require.NoError(t, err)
	require.NoError(t, fields.Decode(dest))
}

// Docs lists stored documents in collection that match filters.
func (b *Backend) Docs(t *testing.T, collection models.Collection, filters map[string]string) []models.Fields {
	t.Helper()
	docs, err := b.Repo.List(context.Background(), collection.String(), repository.Query{Filters: filters})
	require.NoError(t, err)
	return docs
}
