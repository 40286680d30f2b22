// Package mock provides a test double for the llm.Provider interface.
//
// Example:
//
//	p := &mock.Provider{
//	    Response: &llm.CompletionResponse{Content: "Hello, world."},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/signcascade/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Response is returned by Complete. A nil Response yields an empty one.
	Response *llm.CompletionResponse

	// Respond, if set, computes the response from the request and takes
	// precedence over Response.
	Respond func(req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// Err, if non-nil, is returned by every Complete call.
	Err error

	// ModelIDValue is returned by ModelID. Default: "mock".
	ModelIDValue string

	// Calls records every Complete call in order.
	Calls []CompleteCall
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, CompleteCall{Ctx: ctx, Req: req})
	respond, resp, err := p.Respond, p.Response, p.Err
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if respond != nil {
		return respond(req)
	}
	if resp == nil {
		return &llm.CompletionResponse{}, nil
	}
	cp := *resp
	return &cp, nil
}

// ModelID implements llm.Provider.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ModelIDValue == "" {
		return "mock"
	}
	return p.ModelIDValue
}

// CallCount returns the number of Complete calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
