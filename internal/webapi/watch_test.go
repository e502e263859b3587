package webapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spboyer/aemforge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWatch(t *testing.T, h http.Handler, id string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/components/watch/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) WatchMessage {
	t.Helper()
	var msg WatchMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHandleWatch_StreamsUntilCompleted(t *testing.T) {
	jobs := newFakeJobs()
	jobs.set(models.Job{ID: "job-1", Status: models.JobProcessing, Progress: 10, CurrentStep: "Analyzing requirements"})

	logged := RequestLogger(newMux(jobs, nil), slog.New(slog.NewTextHandler(io.Discard, nil)))
	conn := dialWatch(t, logged, "job-1")

	first := readFrame(t, conn)
	assert.Equal(t, "progress", first.Type)
	assert.Equal(t, 10, first.Job.Progress)

	jobs.set(models.Job{ID: "job-1", Status: models.JobProcessing, Progress: 50, CurrentStep: "Generating component"})
	msg := readFrame(t, conn)
	assert.Equal(t, 50, msg.Job.Progress)
	assert.Equal(t, "Generating component", msg.Job.CurrentStep)

	jobs.set(models.Job{ID: "job-1", Status: models.JobCompleted, Progress: 100, CurrentStep: "Generation complete"})
	msg = readFrame(t, conn)
	assert.Equal(t, "progress", msg.Type)
	assert.Equal(t, 100, msg.Job.Progress)

	final := readFrame(t, conn)
	assert.Equal(t, "completed", final.Type)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestHandleWatch_PollsWithoutEvents(t *testing.T) {
	jobs := newFakeJobs()
	jobs.silent = true
	jobs.set(models.Job{ID: "job-1", Status: models.JobProcessing, Progress: 30})

	conn := dialWatch(t, newMux(jobs, nil), "job-1")
	readFrame(t, conn)

	jobs.set(models.Job{ID: "job-1", Status: models.JobFailed, Progress: 30, CurrentStep: "component-generation returned an invalid response"})

	msg := readFrame(t, conn)
	assert.Equal(t, models.JobFailed, msg.Job.Status)
	final := readFrame(t, conn)
	assert.Equal(t, "failed", final.Type)
	assert.Contains(t, final.Job.CurrentStep, "invalid response")
}

func TestHandleWatch_TerminalJob(t *testing.T) {
	jobs := newFakeJobs()
	jobs.set(models.Job{ID: "done", Status: models.JobCompleted, Progress: 100})

	conn := dialWatch(t, newMux(jobs, nil), "done")
	assert.Equal(t, "progress", readFrame(t, conn).Type)
	assert.Equal(t, "completed", readFrame(t, conn).Type)
}

func TestHandleWatch_UnknownJob(t *testing.T) {
	rec := do(t, newMux(newFakeJobs(), nil), http.MethodGet, "/api/components/watch/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdvanced(t *testing.T) {
	prev := &models.Job{Status: models.JobProcessing, Progress: 50, CurrentStep: "Generating component"}

	assert.False(t, advanced(prev, &models.Job{Status: models.JobProcessing, Progress: 50, CurrentStep: "Generating component"}))
	assert.False(t, advanced(prev, &models.Job{Status: models.JobProcessing, Progress: 30, CurrentStep: "Analyzing image"}))
	assert.True(t, advanced(prev, &models.Job{Status: models.JobProcessing, Progress: 80, CurrentStep: "Validating component"}))
	assert.True(t, advanced(prev, &models.Job{Status: models.JobFailed, Progress: 50, CurrentStep: "boom"}))
	assert.False(t, advanced(&models.Job{Status: models.JobFailed}, &models.Job{Status: models.JobFailed, Progress: 90}))
}
