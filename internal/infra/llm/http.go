package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"

	// maxErrorBody bounds how much of a failed reply is kept for the message.
	maxErrorBody = 4 << 10
)

// postJSON sends body as JSON and returns the open response body on 2xx.
// Caller is responsible for closing the returned ReadCloser.
func postJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header, body any) (io.ReadCloser, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", provider, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set(headerContentType, mimeJSON)

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(ctx, provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(provider, resp.StatusCode, errorMessage(raw))
	}
	return resp.Body, nil
}

// errorMessage pulls a message out of the usual JSON error envelopes
// ({"error":{"message":...}} or {"error":"..."}), else returns the raw text.
func errorMessage(raw []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &flat) == nil && flat.Error != "" {
		return flat.Error
	}
	return string(raw)
}
