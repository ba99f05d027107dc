package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zoumson/OpenFreeAI/internal/domain/job"
)

// maxPollIDs bounds one poll request.
const maxPollIDs = 1000

// JobReader reads job snapshots; *job.Poller satisfies it.
type JobReader interface {
	Get(ctx context.Context, id string) (job.Snapshot, error)
	Poll(ctx context.Context, ids []string) ([]job.Snapshot, error)
}

// JobHandler reports job status.
type JobHandler struct {
	reader JobReader
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(reader JobReader) *JobHandler {
	return &JobHandler{reader: reader}
}

// PollRequest is the body of POST /api/v1/jobs/poll.
type PollRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// PollResponse carries one snapshot per requested id, in request order.
type PollResponse struct {
	Jobs    []job.Snapshot `json:"jobs"`
	Summary job.Summary    `json:"summary"`
}

// Get handles GET /api/v1/job/{id}. Unknown ids get 404 with status NOT_FOUND.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.reader.Get(r.Context(), id)
	if errors.Is(err, job.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"id":     id,
			"status": string(job.StatusNotFound),
			"error":  "job not found",
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read job")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Poll handles POST /api/v1/jobs/poll. Unknown ids appear inline as NOT_FOUND.
func (h *JobHandler) Poll(w http.ResponseWriter, r *http.Request) {
	var req PollRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TaskIDs == nil {
		writeError(w, http.StatusBadRequest, "task_ids is required")
		return
	}
	if len(req.TaskIDs) > maxPollIDs {
		writeError(w, http.StatusBadRequest, "too many task_ids")
		return
	}

	snaps, err := h.reader.Poll(r.Context(), req.TaskIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to poll jobs")
		return
	}
	writeJSON(w, http.StatusOK, PollResponse{Jobs: snaps, Summary: job.Summarize(snaps)})
}
