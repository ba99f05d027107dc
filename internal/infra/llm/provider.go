package llm

import "context"

// Provider is a chat-completion backend. Adapters for OpenAI-compatible
// gateways, Ollama and Gemini implement it.
type Provider interface {
	// Name identifies the backend in logs and errors.
	Name() string

	// ChatCompletion returns the whole completion in one response.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatCompletionStream delivers the completion in chunks to onChunk and
	// returns once the backend signals the end of the stream.
	ChatCompletionStream(ctx context.Context, req ChatRequest, onChunk ChunkFunc) error
}

var (
	_ Provider = (*OpenAIProvider)(nil)
	_ Provider = (*OllamaProvider)(nil)
	_ Provider = (*GeminiProvider)(nil)
)
