package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spboyer/aemforge/internal/agents"
	"github.com/spboyer/aemforge/internal/jobstore"
	"github.com/spboyer/aemforge/internal/kvstore"
	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/orchestration"
	"github.com/spboyer/aemforge/internal/retry"
	"github.com/spboyer/aemforge/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper to send a JSON-RPC request and decode the response
func rpcCall(t *testing.T, server *Server, method string, params any) Response {
	t.Helper()
	paramsJSON, err := json.Marshal(params)
	require.NoError(t, err)

	reqLine := fmt.Sprintf(`{"jsonrpc":"2.0","method":"%s","params":%s,"id":1}`, method, string(paramsJSON))
	var out bytes.Buffer
	server.ServeStdio(context.Background(), strings.NewReader(reqLine+"\n"), &out)

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	return resp
}

func resultAs[T any](t *testing.T, resp Response) T {
	t.Helper()
	require.Nil(t, resp.Error)
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

type testEnv struct {
	server *Server
	orch   *orchestration.Orchestrator
	gen    *agents.ScriptedGenerator
	kv     *kvstore.Memory
}

func newTestEnv(t *testing.T, scorer scoring.Scorer) *testEnv {
	t.Helper()
	kv := kvstore.NewMemory()
	gen := agents.NewScriptedGenerator()
	orch := orchestration.New(jobstore.New(kv, jobstore.Config{}), gen,
		orchestration.WithRetryPolicy(retry.Policy{MaxAttempts: 1}))
	t.Cleanup(orch.Wait)

	registry := NewMethodRegistry()
	RegisterHandlers(registry, NewHandlerContext(orch, scorer, nil))
	return &testEnv{server: NewServer(registry, nil), orch: orch, gen: gen, kv: kv}
}

func TestRegisterHandlers(t *testing.T) {
	registry := NewMethodRegistry()
	RegisterHandlers(registry, NewHandlerContext(nil, nil, nil))
	assert.Equal(t, []string{"bundle.score", "job.result", "job.status", "job.submit", DiscoverMethod}, registry.Methods())
}

func TestHandler_Discover(t *testing.T) {
	env := newTestEnv(t, nil)

	listing := resultAs[struct {
		Methods []MethodInfo `json:"methods"`
	}](t, rpcCall(t, env.server, DiscoverMethod, map[string]any{}))

	require.Len(t, listing.Methods, 5)
	assert.Equal(t, "bundle.score", listing.Methods[0].Name)
	for _, m := range listing.Methods {
		assert.NotEmpty(t, m.Summary, m.Name)
	}
}

func TestHandler_JobSubmit_InvalidParams(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := rpcCall(t, env.server, "job.submit", "not an object")
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = rpcCall(t, env.server, "job.submit", map[string]string{"description": "  "})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	assert.Equal(t, 0, env.kv.Len(), "rejected requests are never stored")
}

func TestHandler_JobLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	submitted := resultAs[SubmitResult](t, rpcCall(t, env.server, "job.submit", map[string]any{
		"description": "Hero banner with title and CTA",
	}))
	require.NotEmpty(t, submitted.RequestID)
	assert.Equal(t, models.JobQueued, submitted.Status)

	env.orch.Wait()

	job := resultAs[models.Job](t, rpcCall(t, env.server, "job.status", JobParams{ID: submitted.RequestID}))
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)

	res := resultAs[models.JobResult](t, rpcCall(t, env.server, "job.result", JobParams{ID: submitted.RequestID}))
	assert.Equal(t, submitted.RequestID, res.JobID)
	require.NotNil(t, res.Bundle)
	require.NotNil(t, res.Validation)
	assert.Equal(t, models.ValidationPass, res.Validation.Status)
}

func TestHandler_JobStatus_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := rpcCall(t, env.server, "job.status", JobParams{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = rpcCall(t, env.server, "job.status", JobParams{ID: "missing"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeJobNotFound, resp.Error.Code)

	resp = rpcCall(t, env.server, "job.result", JobParams{ID: "missing"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeJobNotFound, resp.Error.Code)
}

func TestHandler_JobResult_Failed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.gen.Enqueue(agents.StageComponent, "no json here")

	submitted := resultAs[SubmitResult](t, rpcCall(t, env.server, "job.submit", map[string]any{"description": "Card"}))
	env.orch.Wait()

	resp := rpcCall(t, env.server, "job.result", JobParams{ID: submitted.RequestID})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeJobFailed, resp.Error.Code)
	assert.Contains(t, fmt.Sprint(resp.Error.Data), "invalid response")
}

// stubJobs reports a job that never finishes, or fails every call with err.
type stubJobs struct {
	err error
}

func (s stubJobs) Submit(context.Context, *models.GenerationRequest) (string, error) {
	return "", s.err
}

func (s stubJobs) Status(_ context.Context, id string) (*models.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Job{ID: id, Status: models.JobProcessing, Progress: 50}, nil
}

func (s stubJobs) Result(context.Context, string) (*models.JobResult, error) {
	return nil, s.err
}

func (s stubJobs) OnProgress(orchestration.ProgressListener) func() {
	return func() {}
}

func TestHandler_JobResult_NotReady(t *testing.T) {
	registry := NewMethodRegistry()
	RegisterHandlers(registry, NewHandlerContext(stubJobs{}, nil, nil))

	resp := rpcCall(t, NewServer(registry, nil), "job.result", JobParams{ID: "job-1"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeJobNotReady, resp.Error.Code)
	assert.Equal(t, "processing", resp.Error.Data)
}

func TestHandler_StoreUnavailable(t *testing.T) {
	registry := NewMethodRegistry()
	unavailable := fmt.Errorf("%w: connection refused", jobstore.ErrStoreUnavailable)
	RegisterHandlers(registry, NewHandlerContext(stubJobs{err: unavailable}, nil, nil))
	server := NewServer(registry, nil)

	for _, method := range []string{"job.status", "job.result"} {
		resp := rpcCall(t, server, method, JobParams{ID: "job-1"})
		require.NotNil(t, resp.Error, method)
		assert.Equal(t, CodeStoreUnavailable, resp.Error.Code, method)
	}
	resp := rpcCall(t, server, "job.submit", map[string]string{"description": "Card"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeStoreUnavailable, resp.Error.Code)
}

// syncBuffer is a bytes.Buffer safe for the concurrent notification writer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func TestHandler_JobSubmit_WatchPushesProgress(t *testing.T) {
	env := newTestEnv(t, nil)

	out := &syncBuffer{}
	req := `{"jsonrpc":"2.0","method":"job.submit","params":{"description":"Hero banner","watch":true},"id":1}` + "\n"
	env.server.ServeStdio(context.Background(), strings.NewReader(req), out)
	env.orch.Wait()

	var events []orchestration.ProgressEvent
	require.Eventually(t, func() bool {
		events = events[:0]
		for _, line := range out.lines() {
			var n struct {
				Method string                      `json:"method"`
				Params orchestration.ProgressEvent `json:"params"`
			}
			if json.Unmarshal([]byte(line), &n) == nil && n.Method == ProgressMethod {
				events = append(events, n.Params)
			}
		}
		return len(events) > 0 && events[len(events)-1].Status == models.JobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	last := -1
	for _, e := range events {
		assert.GreaterOrEqual(t, e.Progress, last, "notifications never go backwards")
		last = e.Progress
	}
	assert.Equal(t, 100, last)

	var first Response
	require.NoError(t, json.Unmarshal([]byte(out.lines()[0]), &first))
	assert.Nil(t, first.Error)
}

func TestHandler_BundleScore(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := rpcCall(t, env.server, "bundle.score", map[string]any{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	bundle := &models.ArtifactBundle{Artifacts: map[string]string{
		models.ArtifactTemplate: `<div onclick="eval(x)">${properties.title}</div>`,
	}}
	report := resultAs[models.ValidationReport](t, rpcCall(t, env.server, "bundle.score", ScoreParams{Files: bundle}))
	assert.Less(t, report.Score, 90)
	assert.Contains(t, report.Issues, "Security risk: avoid eval() function")
	assert.LessOrEqual(t, report.Categories[models.CategorySecurity], 75)
	assert.Len(t, report.Categories, len(models.Categories))
}

type failingReviewer struct{}

func (failingReviewer) Review(context.Context, *models.ArtifactBundle) (*models.ReviewOpinion, error) {
	return nil, errors.New("reviewer offline")
}

func TestHandler_BundleScore_Secondary(t *testing.T) {
	bundle := map[string]any{"files": map[string]any{"artifacts": map[string]string{"model": "class A {}"}}, "secondary": true}

	env := newTestEnv(t, scoring.NewEngine(nil, nil))
	resp := rpcCall(t, env.server, "bundle.score", bundle)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	env = newTestEnv(t, scoring.NewEngine(nil, failingReviewer{}))
	resp = rpcCall(t, env.server, "bundle.score", bundle)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeReviewFailed, resp.Error.Code)
	assert.Contains(t, fmt.Sprint(resp.Error.Data), "reviewer offline")
}
