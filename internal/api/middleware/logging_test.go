package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
)

func TestRequestLogger_LogsStatusAndPath(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := chimw.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/job/abc", nil))

	line := buf.String()
	for _, want := range []string{"level=WARN", "method=GET", "path=/api/v1/job/abc", "status=404", "outcome=error", "request_id="} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %q: %s", want, line)
		}
	}
}

func TestRequestLogger_DefaultStatusIsOK(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := RequestLogger(slog.New(slog.NewTextHandler(&buf, nil)))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/prompt", nil))

	if !strings.Contains(buf.String(), "status=200") || !strings.Contains(buf.String(), "level=INFO") {
		t.Errorf("unexpected log line: %s", buf.String())
	}
}

func TestOutcomeFromStatus(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		http.StatusAccepted:            "success",
		http.StatusUnauthorized:        "denied",
		http.StatusForbidden:           "denied",
		http.StatusBadRequest:          "error",
		http.StatusInternalServerError: "error",
	}
	for status, want := range cases {
		if got := outcomeFromStatus(status); got != want {
			t.Errorf("outcomeFromStatus(%d) = %q, want %q", status, got, want)
		}
	}
}
