// File: internal/infra/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/usecase"
)

type submitRequest struct {
	Kind     string            `json:"kind"`
	Prompt   string            `json:"prompt"`
	Metadata model.JobMetadata `json:"metadata"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}
	job, err := s.admission.Submit(r.Context(), usecase.SubmitRequest{
		UserID: UserID(r.Context()),
		Kind:   req.Kind,
		Prompt: req.Prompt,
		Meta:   req.Metadata,
	})
	if err != nil {
		// Admission rejections still carry the persisted audit job.
		writeDomainError(w, err, job)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetStatus(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Retry(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Cancel(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	balance, err := s.ledger.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "balance": balance})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	history, err := s.ledger.History(r.Context(), UserID(r.Context()), 50)
	if err != nil {
		writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": history})
}

// ===== response helpers =====

type errorBody struct {
	Error string     `json:"error"`
	Job   *model.Job `json:"job,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

func writeDomainError(w http.ResponseWriter, err error, job *model.Job) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrNotOwner):
		code = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrQueueLimitExceeded):
		code = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInsufficientTokens):
		code = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrInvalidTransition):
		code = http.StatusConflict
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{Error: msg, Job: job})
}
