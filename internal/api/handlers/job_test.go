package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zoumson/OpenFreeAI/internal/domain/job"
)

type fakeJobReader struct {
	snap job.Snapshot
	err  error
	ids  []string
}

func (f *fakeJobReader) Get(_ context.Context, id string) (job.Snapshot, error) {
	return f.snap, f.err
}

func (f *fakeJobReader) Poll(_ context.Context, ids []string) ([]job.Snapshot, error) {
	f.ids = ids
	if f.err != nil {
		return nil, f.err
	}
	out := make([]job.Snapshot, len(ids))
	for i, id := range ids {
		out[i] = job.Snapshot{ID: id, Status: job.StatusSuccess}
	}
	return out, nil
}

func getJob(h *JobHandler, id string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/v1/job/{id}", h.Get)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/job/"+id, nil))
	return w
}

func TestJobHandler_Get(t *testing.T) {
	t.Parallel()

	w := getJob(NewJobHandler(&fakeJobReader{snap: job.Snapshot{ID: "j1", Status: job.StatusFailure, Error: "boom"}}), "j1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = getJob(NewJobHandler(&fakeJobReader{err: job.ErrJobNotFound}), "j2")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown job status = %d", w.Code)
	}

	w = getJob(NewJobHandler(&fakeJobReader{err: errors.New("redis down")}), "j3")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("store failure status = %d", w.Code)
	}
}

func TestJobHandler_Poll(t *testing.T) {
	t.Parallel()

	reader := &fakeJobReader{}
	h := NewJobHandler(reader)

	w := postJSON(h.Poll, "/api/v1/jobs/poll", `{"task_ids":["b","a"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(reader.ids) != 2 || reader.ids[0] != "b" {
		t.Errorf("ids forwarded = %v", reader.ids)
	}

	if w := postJSON(h.Poll, "/api/v1/jobs/poll", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing task_ids status = %d", w.Code)
	}
	if w := postJSON(h.Poll, "/api/v1/jobs/poll", `{"task_ids":[]}`); w.Code != http.StatusOK {
		t.Errorf("empty task_ids status = %d", w.Code)
	}
}
