package resilience

import (
	"context"

	"github.com/MrWong99/signcascade/pkg/provider/llm"
)

var _ llm.Provider = (*LLMFallback)(nil)

// LLMFallback fails over between completion backends.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// NewLLMFallback returns a fallback with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, name string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, name, cfg)}
}

// AddFallback registers another backend.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) {
	f.group.AddFallback(name, p)
}

// Complete implements llm.Provider.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Call(ctx, f.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// ModelID returns the primary's model. Metrics label calls by the preferred
// backend even when a fallback answered.
func (f *LLMFallback) ModelID() string {
	return f.group.Primary().ModelID()
}
