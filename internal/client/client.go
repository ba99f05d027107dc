// Package client talks to a running OpenFreeAI server: it submits prompts and
// polls the resulting jobs until they settle.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zoumson/OpenFreeAI/internal/api/handlers"
	"github.com/zoumson/OpenFreeAI/internal/domain/job"
)

const maxErrorBody = 4 << 10

// ErrGaveUp is returned by Wait when the poll budget runs out first.
var ErrGaveUp = errors.New("jobs still running")

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server replied %d: %s", e.StatusCode, e.Message)
}

// Client is an HTTP client for the /api/v1 job endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for baseURL (e.g. http://localhost:5000). A zero
// timeout falls back to 30s per request.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit queues req and returns the job ids in selection order.
func (c *Client) Submit(ctx context.Context, req handlers.PromptRequest) ([]string, error) {
	var resp handlers.PromptResponse
	if err := c.post(ctx, "/api/v1/prompt", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.TaskIDs) == 0 {
		return nil, errors.New("server returned no task ids")
	}
	return resp.TaskIDs, nil
}

// Poll reads the current snapshots of ids.
func (c *Client) Poll(ctx context.Context, ids []string) (handlers.PollResponse, error) {
	var resp handlers.PollResponse
	err := c.post(ctx, "/api/v1/jobs/poll", handlers.PollRequest{TaskIDs: ids}, &resp)
	return resp, err
}

// Wait polls every interval until every job is settled, at most maxPolls
// times. On ErrGaveUp the last snapshots are returned alongside the error.
func (c *Client) Wait(ctx context.Context, ids []string, interval time.Duration, maxPolls int) ([]job.Snapshot, error) {
	if maxPolls < 1 {
		return nil, fmt.Errorf("max polls %d must be >= 1", maxPolls)
	}
	var last handlers.PollResponse
	polls := 0
	op := func() error {
		polls++
		resp, err := c.Poll(ctx, ids)
		if err != nil {
			return backoff.Permanent(err)
		}
		last = resp
		if !resp.Summary.Done {
			return ErrGaveUp
		}
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(maxPolls-1)), ctx)
	err := backoff.Retry(op, b)
	if errors.Is(err, ErrGaveUp) {
		return last.Jobs, fmt.Errorf("%w after %d polls", ErrGaveUp, polls)
	}
	if err != nil {
		return nil, err
	}
	return last.Jobs, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var env struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			msg = env.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
