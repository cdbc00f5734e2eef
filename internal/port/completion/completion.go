// Package completion defines the port for LLM completion backends used by
// agent capability handlers.
package completion

import "context"

// Request is a single completion call.
type Request struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Response is the completion output plus usage accounting.
type Response struct {
	Text         string  `json:"text"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Completer is the port interface for text completion.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
