package webserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spboyer/aemforge/internal/agents"
	"github.com/spboyer/aemforge/internal/jobstore"
	"github.com/spboyer/aemforge/internal/kvstore"
	"github.com/spboyer/aemforge/internal/orchestration"
	"github.com/spboyer/aemforge/internal/webapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) Config {
	t.Helper()
	orch := orchestration.New(jobstore.New(kvstore.NewMemory(), jobstore.Config{}), agents.NewScriptedGenerator())
	t.Cleanup(orch.Wait)
	return Config{
		Jobs:           orch,
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newTestServer(t *testing.T, mutate ...func(*Config)) http.Handler {
	t.Helper()
	cfg := newTestConfig(t)
	for _, m := range mutate {
		m(&cfg)
	}
	srv, err := New(cfg)
	require.NoError(t, err)
	return srv.Handler()
}

func TestNew_RequiresJobs(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	srv, err := New(newTestConfig(t))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8000", srv.Addr())
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(webapi.HeaderRequestID))
	assert.NotEmpty(t, rec.Header().Get(webapi.HeaderProcessTime))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIndexAndUnknownAPI(t *testing.T) {
	handler := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "POST /api/components/generate")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestMiddlewareChain(t *testing.T) {
	handler := newTestServer(t, func(c *Config) {
		c.RateLimit = webapi.RateLimitConfig{Calls: 1, Period: time.Hour}
	})

	pre := httptest.NewRequest(http.MethodOptions, "/api/components/generate", nil)
	pre.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, pre)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	// the preflight did not consume the single allowed call
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(webapi.HeaderRequestID), "rejected requests are logged too")
}

func TestServe_GracefulShutdown(t *testing.T) {
	srv, err := New(newTestConfig(t))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/api/components/generate", "application/json",
		strings.NewReader(`{"description": "Hero banner"}`))
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
