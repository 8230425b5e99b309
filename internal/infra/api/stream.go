// File: internal/infra/api/stream.go
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"ai-generation-queue/internal/domain/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin policy is enforced at the deployment edge.
	CheckOrigin: func(*http.Request) bool { return true },
}

type streamUpdate struct {
	Type          string          `json:"type"`
	JobID         string          `json:"job_id"`
	Status        model.JobStatus `json:"status"`
	Progress      int             `json:"progress"`
	QueuePosition int             `json:"queue_position,omitempty"`
	Result        string          `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// handleStream pushes job status over a websocket until the job reaches a
// terminal state or the client goes away. Updates are polled server-side
// and sent only on change, so idle connections stay quiet.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	userID := UserID(r.Context())

	// Authorize before upgrading; upgraded connections cannot carry an
	// HTTP error status anymore.
	job, err := s.jobs.GetStatus(r.Context(), jobID, userID)
	if err != nil {
		writeDomainError(w, err, nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Discard client frames but notice disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(toUpdate(job)); err != nil {
		return
	}
	last := snapshot(job)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
		job, err := s.jobs.GetStatus(r.Context(), jobID, userID)
		if err != nil {
			return
		}
		cur := snapshot(job)
		if cur != last {
			if err := conn.WriteJSON(toUpdate(job)); err != nil {
				return
			}
			last = cur
		}
		if job.Status.IsTerminal() {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)))
			return
		}
	}
}

type streamSnapshot struct {
	status   model.JobStatus
	progress int
	position int
}

func snapshot(job *model.Job) streamSnapshot {
	return streamSnapshot{status: job.Status, progress: job.Progress, position: job.QueuePosition}
}

func toUpdate(job *model.Job) streamUpdate {
	return streamUpdate{
		Type:          "job_update",
		JobID:         job.ID,
		Status:        job.Status,
		Progress:      job.Progress,
		QueuePosition: job.QueuePosition,
		Result:        job.Result,
		Error:         job.Error,
		Timestamp:     job.UpdatedAt,
	}
}
