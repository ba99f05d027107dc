package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Router picks a Provider from the catalog model id. A registered prefix
// ("ollama/llama3") routes to its provider with the prefix stripped; any
// other id goes unchanged to the fallback provider, which for OpenRouter
// expects the full "vendor/model:tag" form.
type Router struct {
	mu       sync.RWMutex
	prefixed map[string]Provider
	fallback Provider
}

// NewRouter creates a Router. fallback may be nil, in which case only
// prefixed ids resolve.
func NewRouter(fallback Provider) *Router {
	return &Router{prefixed: map[string]Provider{}, fallback: fallback}
}

// Register adds (or replaces) the provider for a model id prefix.
func (r *Router) Register(prefix string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixed[strings.TrimSuffix(prefix, "/")] = p
}

// Route returns the provider for model and the id to send it.
func (r *Router) Route(model string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if prefix, rest, ok := strings.Cut(model, "/"); ok && rest != "" {
		if p, found := r.prefixed[prefix]; found {
			return p, rest, nil
		}
	}
	if r.fallback == nil {
		return nil, "", fmt.Errorf("llm router: no provider for model %q (prefixes: %v)", model, r.keys())
	}
	return r.fallback, model, nil
}

// Complete runs one completion attempt for prompt against model. A streamed
// completion is buffered in full before returning.
func (r *Router) Complete(ctx context.Context, model, prompt string, stream bool) (string, error) {
	p, id, err := r.Route(model)
	if err != nil {
		return "", err
	}
	req := UserPrompt(id, prompt)
	if !stream {
		resp, err := p.ChatCompletion(ctx, req)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	var b strings.Builder
	err = p.ChatCompletionStream(ctx, req, func(chunk string) error {
		b.WriteString(chunk)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// keys returns the registered prefixes (for error messages).
func (r *Router) keys() []string {
	out := make([]string, 0, len(r.prefixed))
	for k := range r.prefixed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
