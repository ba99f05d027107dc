package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const geminiName = "gemini"

// GeminiProvider calls Google's Gemini models through the generative-ai SDK.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a client authenticated with apiKey.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key must not be empty")
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return geminiName }

// Close releases the SDK connection.
func (p *GeminiProvider) Close() error { return p.client.Close() }

// ChatCompletion sends the last message with earlier turns as chat history.
func (p *GeminiProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	session, last, err := p.session(req)
	if err != nil {
		return nil, err
	}
	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	text, reason := geminiText(resp)
	out := &ChatResponse{Content: text, StopReason: reason}
	if resp.UsageMetadata != nil {
		out.Tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

// ChatCompletionStream walks the SDK's response iterator.
func (p *GeminiProvider) ChatCompletionStream(ctx context.Context, req ChatRequest, onChunk ChunkFunc) error {
	session, last, err := p.session(req)
	if err != nil {
		return err
	}
	iter := session.SendMessageStream(ctx, genai.Text(last))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return classifyGeminiError(err)
		}
		if text, _ := geminiText(resp); text != "" {
			if err := onChunk(text); err != nil {
				return err
			}
		}
	}
}

func (p *GeminiProvider) session(req ChatRequest) (*genai.ChatSession, string, error) {
	if len(req.Messages) == 0 {
		return nil, "", errors.New("gemini: request has no messages")
	}
	model := p.client.GenerativeModel(req.Model)
	if req.Temperature != 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens != 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	system, history, last := splitGeminiTurns(req.Messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	session := model.StartChat()
	session.History = history
	return session, last, nil
}

// splitGeminiTurns separates system text, prior turns and the final user
// message. Gemini names the assistant role "model".
func splitGeminiTurns(msgs []Message) (system string, history []*genai.Content, last string) {
	var sys []string
	turns := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 {
		return strings.Join(sys, "\n"), nil, ""
	}
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(sys, "\n"), history, turns[len(turns)-1].Content
}

// geminiText concatenates the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	cand := resp.Candidates[0]
	reason := strings.ToLower(strings.TrimPrefix(cand.FinishReason.String(), "FinishReason"))
	if cand.Content == nil {
		return "", reason
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), reason
}

// classifyGeminiError marks quota, overload and timeout failures as transient.
func classifyGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return &TransientError{Provider: geminiName, StatusCode: apiErr.Code, Err: err}
		}
		return fmt.Errorf("gemini: %w", err)
	}
	switch status.Code(err) {
	case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Internal:
		return &TransientError{Provider: geminiName, Err: err}
	}
	return fmt.Errorf("gemini: %w", err)
}
