// Package llm defines the Provider interface for Large Language Model
// backends.
//
// The resolver only needs single-shot text completions (punctuation
// restoration of transcripts), so the interface is a single blocking call.
// Implementations must be safe for concurrent use.
package llm

import "context"

// Roles accepted in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the prompt.
type Message struct {
	Role    string
	Content string
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries the prompt. Messages must not be empty.
type CompletionRequest struct {
	// SystemPrompt, if set, is sent before Messages as a system message.
	SystemPrompt string

	Messages []Message

	// Temperature in [0, 2]. Zero leaves the backend default.
	Temperature float64

	// MaxTokens caps the completion. Zero leaves the backend default.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req and waits for the full response. It returns promptly
	// with ctx.Err() once ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// ModelID identifies the model for logs and metrics.
	ModelID() string
}
