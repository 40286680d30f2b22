// Package ollama provides an embeddings provider backed by an Ollama server.
//
// It talks to Ollama's native POST /api/embed endpoint, which accepts one or
// many inputs per request. Reference corpora are usually produced offline with
// the same model, so the model name configured here must match the one used to
// build them.
//
//	p, err := ollama.New("http://localhost:11434", "nomic-embed-text")
//	vec, err := p.Embed(ctx, "hello world")
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/signcascade/pkg/provider/embeddings"
)

// DefaultBaseURL is the address of a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

// maxErrorBody caps how much of a non-200 response body ends up in an error.
const maxErrorBody = 512

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider against Ollama.
type Provider struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithTimeout bounds every HTTP request issued by the provider.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithDimensions declares the model's output width. Without it the width
// comes from the built-in table or is probed once at startup.
func WithDimensions(dims int) Option {
	return func(p *Provider) { p.dimensions = dims }
}

// WithHTTPClient replaces the HTTP client. Mostly useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New constructs an Ollama Provider. An empty baseURL selects DefaultBaseURL.
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("ollama embeddings: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	if p.dimensions == 0 {
		p.dimensions = knownDimensions(model)
	}
	return p, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.post(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed: %w", err)
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider. An empty input issues no request.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.post(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama embeddings: embed batch: got %d vectors for %d inputs", len(vecs), len(texts))
	}
	return vecs, nil
}

// Dimensions implements embeddings.Provider. Returns 0 for unknown models
// configured without WithDimensions; see embeddings.Probe.
func (p *Provider) Dimensions() int { return p.dimensions }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.model }

func (p *Provider) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embeddings) == 0 {
		return nil, errors.New("empty embeddings in response")
	}
	return out.Embeddings, nil
}

// knownDimensions returns the output width of common Ollama embedding models,
// or 0 when the model is not recognised.
func knownDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "nomic-embed-text"):
		return 768
	case strings.Contains(lower, "mxbai-embed-large"):
		return 1024
	case strings.Contains(lower, "all-minilm"):
		return 384
	case strings.Contains(lower, "bge-m3"):
		return 1024
	case strings.Contains(lower, "bert-base"):
		return 768
	default:
		return 0
	}
}
