package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zoumson/OpenFreeAI/internal/domain/job"
)

// Submitter enqueues prompts; *job.Dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, sub job.Submission) ([]string, error)
}

// PromptHandler accepts prompt submissions.
type PromptHandler struct {
	submitter Submitter
	logger    *slog.Logger
}

// NewPromptHandler creates a PromptHandler. A nil logger uses slog.Default().
func NewPromptHandler(submitter Submitter, logger *slog.Logger) *PromptHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptHandler{submitter: submitter, logger: logger}
}

// PromptRequest is the body of POST /api/v1/prompt. When several selectors
// are present, models wins over model_name, which wins over model_index.
type PromptRequest struct {
	Prompt     string   `json:"prompt"`
	ModelIndex *int     `json:"model_index,omitempty"`
	ModelName  string   `json:"model_name,omitempty"`
	Models     []string `json:"models,omitempty"`
	Stream     bool     `json:"stream,omitempty"`
}

// PromptResponse lists the queued job ids. TaskID is set when exactly one
// job was created.
type PromptResponse struct {
	TaskIDs []string `json:"task_ids"`
	TaskID  string   `json:"task_id,omitempty"`
	Status  string   `json:"status"`
}

// Submit handles POST /api/v1/prompt.
//
// Response codes:
//   - 202 Accepted: jobs queued
//   - 400 Bad Request: malformed body, empty prompt or empty model list
//   - 404 Not Found: one or more named models are not in the catalog
func (h *PromptHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ids, err := h.submitter.Submit(r.Context(), job.Submission{
		Prompt:    req.Prompt,
		Selection: job.SelectionFrom(req.ModelIndex, req.ModelName, req.Models),
		Stream:    req.Stream,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "prompt rejected", "error", err)
		writeJobError(w, err)
		return
	}

	resp := PromptResponse{TaskIDs: ids, Status: "queued"}
	if len(ids) == 1 {
		resp.TaskID = ids[0]
	}
	writeJSON(w, http.StatusAccepted, resp)
}
