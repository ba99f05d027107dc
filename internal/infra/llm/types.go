// Package llm holds the chat-completion providers and the pieces that pick
// and retry them.
package llm

// Message is one conversation turn.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// ChatRequest is the provider-neutral completion input.
type ChatRequest struct {
	// Model is the provider-local model id (router prefix already stripped).
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// ChatResponse is a fully assembled completion.
type ChatResponse struct {
	Content    string
	StopReason string // "stop" | "length" | provider specific
	Tokens     int    // prompt + completion, 0 when the provider does not report it
}

// ChunkFunc receives streamed text in arrival order. Returning an error
// aborts the stream.
type ChunkFunc func(chunk string) error

// UserPrompt builds the single-turn request the worker sends.
func UserPrompt(model, prompt string) ChatRequest {
	return ChatRequest{
		Model:    model,
		Messages: []Message{{Role: "user", Content: prompt}},
	}
}
