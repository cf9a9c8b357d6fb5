// Package model defines the narrow contract over the external language
// completion service. The core consumes completions only through
// Completer; concrete transports live in the provider subpackages
// (openai, anthropic) plus the in-memory mock below.
package model

import (
	"context"
	"sync"

	"github.com/finsight-ai/finsight/core"
)

// Request captures one completion call: a system instruction, a prompt
// and the sampling parameters.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

// Usage captures token usage statistics for a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completion service's reply: free text (possibly a JSON
// object the caller parses) plus usage when the provider reports it.
type Response struct {
	Text  string
	Usage *Usage
}

// Info contains metadata about a completer implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock"
}

// Completer is the minimal interface analysis tools use to drive
// generation. Implementations fail with errors carrying the
// RateLimited, AuthError, Timeout or CompletionServiceError kinds.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the completer implementation.
	Info() Info
}

// MockCompleter is a lightweight in-memory Completer useful for tests &
// examples. Responses are keyed by exact prompt; unmatched prompts get
// the default response.
type MockCompleter struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	fallback  string
	err       error
	calls     int
}

// NewMockCompleter constructs a MockCompleter with a generic structured
// default answer so analysis tools can parse something sensible.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{
		info:      Info{Name: "mock", Provider: "mock"},
		responses: map[string]string{},
		fallback: `{"answer":"Mock analysis of the supplied data.",` +
			`"insights":["mock insight"],"recommendations":["mock recommendation"]}`,
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockCompleter) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetDefault overrides the response used for unmatched prompts.
func (m *MockCompleter) SetDefault(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MockCompleter) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many completions were requested.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Complete implements Completer.
func (m *MockCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.WrapError(core.KindCancelled, err, "mock completion")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	text, ok := m.responses[req.Prompt]
	if !ok {
		text = m.fallback
	}
	return &Response{
		Text: text,
		Usage: &Usage{
			PromptTokens:     len(req.Prompt) / 4,
			CompletionTokens: len(text) / 4,
			TotalTokens:      (len(req.Prompt) + len(text)) / 4,
		},
	}, nil
}

// Info implements Completer.
func (m *MockCompleter) Info() Info { return m.info }
