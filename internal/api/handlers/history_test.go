package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zoumson/OpenFreeAI/internal/domain/history"
)

type fakeHistory struct {
	query    history.Query
	rows     []history.PromptRecord
	usage    map[string]int64
	resetFor *string
	err      error
}

func (f *fakeHistory) List(_ context.Context, q history.Query) ([]history.PromptRecord, error) {
	f.query = q
	return f.rows, f.err
}

func (f *fakeHistory) Usage(context.Context) (map[string]int64, error) {
	return f.usage, f.err
}

func (f *fakeHistory) ResetUsage(_ context.Context, model string) (int, error) {
	f.resetFor = &model
	return len(f.usage), f.err
}

func TestHistoryHandler_List(t *testing.T) {
	t.Parallel()

	store := &fakeHistory{rows: []history.PromptRecord{{JobID: "j1", ModelName: "a/one"}}}
	h := NewHistoryHandler(store)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=5&model_name=a/one", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if store.query.Limit != 5 || store.query.ModelName != "a/one" {
		t.Fatalf("query = %+v", store.query)
	}
	var body struct {
		History []history.PromptRecord `json:"history"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.History) != 1 || body.History[0].JobID != "j1" {
		t.Fatalf("history = %+v", body.History)
	}
}

func TestHistoryHandler_List_BadLimit(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"abc", "0", "-3"} {
		w := httptest.NewRecorder()
		NewHistoryHandler(&fakeHistory{}).List(w, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit="+raw, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d; want 400", raw, w.Code)
		}
	}
}

func TestHistoryHandler_Usage_Total(t *testing.T) {
	t.Parallel()

	h := NewHistoryHandler(&fakeHistory{usage: map[string]int64{"a/one": 3, "b/two": 4}})
	w := httptest.NewRecorder()
	h.Usage(w, httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil))

	var body struct {
		Usage map[string]int64 `json:"usage"`
		Total int64            `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 7 || body.Usage["b/two"] != 4 {
		t.Fatalf("body = %+v", body)
	}
}

func TestHistoryHandler_ResetUsage(t *testing.T) {
	t.Parallel()

	store := &fakeHistory{usage: map[string]int64{"a/one": 3}}
	w := postJSON(NewHistoryHandler(store).ResetUsage, "/api/v1/usage/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("empty body: status = %d; want 200", w.Code)
	}
	if store.resetFor == nil || *store.resetFor != "" {
		t.Fatalf("empty body should reset every model, got %v", store.resetFor)
	}

	w = postJSON(NewHistoryHandler(store).ResetUsage, "/api/v1/usage/reset", `{"model_name":"a/one"}`)
	if w.Code != http.StatusOK || *store.resetFor != "a/one" {
		t.Fatalf("status = %d, reset for %q", w.Code, *store.resetFor)
	}
}

func TestHistoryHandler_StoreErrors(t *testing.T) {
	t.Parallel()

	h := NewHistoryHandler(&fakeHistory{err: errors.New("disk full")})

	w := httptest.NewRecorder()
	h.Usage(w, httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("usage: status = %d; want 500", w.Code)
	}
	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("list: status = %d; want 500", w.Code)
	}
}

func TestSystemHandlers(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !json.Valid(w.Body.Bytes()) {
		t.Fatalf("health: %d %s", w.Code, w.Body)
	}

	w = httptest.NewRecorder()
	Version(w, httptest.NewRequest(http.MethodGet, "/api/v1/version", nil))
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["version"]; !ok {
		t.Fatalf("version body = %v", body)
	}
}
