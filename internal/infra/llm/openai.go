package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const openAIName = "openai"

// OpenAIProvider speaks the OpenAI chat-completions protocol. It targets
// OpenRouter by default but works with any compatible gateway.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider for baseURL (e.g. https://openrouter.ai/api/v1).
// A zero timeout falls back to 60s.
func NewOpenAIProvider(baseURL, apiKey string, timeout time.Duration) *OpenAIProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ─── wire types ──────────────────────────────────────────────────────────────

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature *float32        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ─── Provider implementation ─────────────────────────────────────────────────

func (p *OpenAIProvider) Name() string { return openAIName }

// ChatCompletion performs a non-streaming POST /chat/completions.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := postJSON(ctx, p.httpClient, openAIName, p.baseURL+"/chat/completions", p.header(), p.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var resp openAIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("openai: decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}
	return &ChatResponse{
		Content:    resp.Choices[0].Message.Content,
		StopReason: resp.Choices[0].FinishReason,
		Tokens:     resp.Usage.TotalTokens,
	}, nil
}

// ChatCompletionStream reads the server-sent event stream until [DONE].
func (p *OpenAIProvider) ChatCompletionStream(ctx context.Context, req ChatRequest, onChunk ChunkFunc) error {
	body, err := postJSON(ctx, p.httpClient, openAIName, p.baseURL+"/chat/completions", p.header(), p.buildRequest(req, true))
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Blank separators and ": keep-alive" comments carry no data.
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return nil
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("openai: decode stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return &TransientError{Provider: openAIName, Err: errors.New(chunk.Error.Message)}
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content == "" {
				continue
			}
			if err := onChunk(c.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return transportError(ctx, openAIName, err)
	}
	// Connection closed without [DONE]: treat as complete.
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (p *OpenAIProvider) header() http.Header {
	h := http.Header{}
	if p.apiKey != "" {
		h.Set("Authorization", "Bearer "+p.apiKey)
	}
	h.Set("Accept", "application/json, text/event-stream")
	return h
}

func (p *OpenAIProvider) buildRequest(req ChatRequest, stream bool) openAIRequest {
	msgs := make([]openAIMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openAIMessage(m)
	}
	out := openAIRequest{
		Model:     req.Model,
		Messages:  msgs,
		Stream:    stream,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		out.Temperature = &t
	}
	return out
}
