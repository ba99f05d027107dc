package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ollamaName = "ollama"

// OllamaProvider calls a local Ollama instance over its REST API (POST /api/chat).
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllamaProvider creates an OllamaProvider. A zero timeout falls back to 60s;
// local models are slow to load on first use.
func NewOllamaProvider(baseURL string, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ─── internal Ollama JSON types ──────────────────────────────────────────────

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	DoneReason      string            `json:"done_reason"`
	Done            bool              `json:"done"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
	Error           string            `json:"error,omitempty"`
}

// ─── Provider implementation ─────────────────────────────────────────────────

func (p *OllamaProvider) Name() string { return ollamaName }

// ChatCompletion performs a non-streaming chat via POST /api/chat.
func (p *OllamaProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	respBody, err := postJSON(ctx, p.httpClient, ollamaName, p.baseURL+"/api/chat", nil, buildOllamaRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer respBody.Close() //nolint:errcheck

	var ollamaResp ollamaChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&ollamaResp); decodeErr != nil {
		return nil, fmt.Errorf("ollama: decode chat response: %w", decodeErr)
	}
	if ollamaResp.Error != "" {
		return nil, errors.New("ollama: " + ollamaResp.Error)
	}
	return &ChatResponse{
		Content:    ollamaResp.Message.Content,
		StopReason: ollamaResp.DoneReason,
		Tokens:     ollamaResp.PromptEvalCount + ollamaResp.EvalCount,
	}, nil
}

// ChatCompletionStream reads Ollama's newline-delimited JSON stream until done.
func (p *OllamaProvider) ChatCompletionStream(ctx context.Context, req ChatRequest, onChunk ChunkFunc) error {
	respBody, err := postJSON(ctx, p.httpClient, ollamaName, p.baseURL+"/api/chat", nil, buildOllamaRequest(req, true))
	if err != nil {
		return err
	}
	defer respBody.Close() //nolint:errcheck

	dec := json.NewDecoder(respBody)
	for {
		var part ollamaChatResponse
		if err := dec.Decode(&part); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return transportError(ctx, ollamaName, fmt.Errorf("decode stream: %w", err))
		}
		if part.Error != "" {
			return errors.New("ollama: " + part.Error)
		}
		if part.Message.Content != "" {
			if err := onChunk(part.Message.Content); err != nil {
				return err
			}
		}
		if part.Done {
			return nil
		}
	}
}

// buildOllamaRequest maps ChatRequest onto the Ollama body.
func buildOllamaRequest(req ChatRequest, stream bool) ollamaChatRequest {
	msgs := make([]ollamaChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = ollamaChatMessage(m)
	}
	return ollamaChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   stream,
		Options:  buildChatOptions(req),
	}
}

// buildChatOptions converts ChatRequest fields into Ollama options map.
func buildChatOptions(req ChatRequest) map[string]any {
	opts := map[string]any{}
	if req.Temperature != 0 {
		opts["temperature"] = req.Temperature
	}
	if req.MaxTokens != 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}
