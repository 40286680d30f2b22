// Package mock provides a test double for the embeddings.Provider interface.
//
// Vectors can be canned per input text (Vectors) with a fallback for anything
// else (EmbedResult). Errors can be injected globally (EmbedErr) or per text
// (Errs). Every call is recorded.
//
// Example:
//
//	p := &mock.Provider{
//	    Vectors: map[string][]float32{
//	        "world": {1, 0},
//	    },
//	    EmbedResult:     []float32{0, 1},
//	    DimensionsValue: 2,
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/signcascade/pkg/provider/embeddings"
)

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	Ctx  context.Context
	Text string
}

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// Vectors maps an exact input text to the vector Embed returns for it.
	Vectors map[string][]float32

	// EmbedResult is returned by Embed for texts missing from Vectors.
	EmbedResult []float32

	// Errs maps an exact input text to an error Embed returns for it.
	Errs map[string]error

	// EmbedErr, if non-nil, is returned by every Embed call.
	EmbedErr error

	// Block, if non-nil, makes Embed wait until it is closed or ctx is done.
	Block chan struct{}

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// EmbedCalls records every call to Embed in order of arrival.
	EmbedCalls []EmbedCall

	// EmbedBatchCalls records the texts of every EmbedBatch call.
	EmbedBatchCalls [][]string
}

// Embed records the call and returns the canned vector for text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.lookup(text)
}

// EmbedBatch records the call and resolves each text as Embed would.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	cp := make([]string, len(texts))
	copy(cp, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, cp)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.lookup(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *Provider) lookup(text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if err, ok := p.Errs[text]; ok {
		return nil, err
	}
	if v, ok := p.Vectors[text]; ok {
		return v, nil
	}
	return p.EmbedResult, nil
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DimensionsValue
}

// ModelID returns ModelIDValue, or "mock" when unset.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ModelIDValue == "" {
		return "mock"
	}
	return p.ModelIDValue
}

// Texts returns a snapshot of the texts passed to Embed, in call order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.EmbedCalls))
	for i, c := range p.EmbedCalls {
		out[i] = c.Text
	}
	return out
}

// CallCount returns the number of Embed calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.EmbedCalls)
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
}

var _ embeddings.Provider = (*Provider)(nil)
