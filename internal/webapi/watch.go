package webapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spboyer/aemforge/internal/models"
)

const (
	watchWriteWait = 10 * time.Second
	// watchMaxDuration closes streams of jobs that never finish.
	watchMaxDuration = 30 * time.Minute
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks are done by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// HandleWatch streams progress frames of a job over a websocket until the
// job completes or fails. The first frame is the current status; unknown
// jobs are rejected before the upgrade.
func (h *Handlers) HandleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.jobs.Status(r.Context(), id); err != nil {
		h.writeJobError(w, r, id, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.opts.Logger.Debug("Websocket upgrade failed", "job", id, "error", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), watchMaxDuration)
	defer cancel()

	// the read loop only exists to observe the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(msg WatchMessage) error {
		conn.SetWriteDeadline(time.Now().Add(watchWriteWait)) //nolint:errcheck
		return conn.WriteJSON(msg)
	}

	job, err := follow(ctx, h.jobs, id, h.opts.PollInterval, func(j *models.Job) error {
		return send(WatchMessage{Type: "progress", Job: j})
	})
	closeCode, reason := websocket.CloseNormalClosure, "done"
	switch {
	case err == nil:
		send(WatchMessage{Type: string(job.Status), Job: job}) //nolint:errcheck
	case errors.Is(err, context.Canceled):
		return
	default:
		h.opts.Logger.Debug("Watch ended", "job", id, "error", err)
		send(WatchMessage{Type: "error", Error: err.Error()}) //nolint:errcheck
		closeCode, reason = websocket.CloseInternalServerErr, "watch failed"
	}

	deadline := time.Now().Add(watchWriteWait)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, reason), deadline) //nolint:errcheck
}
