// Package embeddings defines the Provider interface for text-embedding backends.
//
// The resolver embeds normalized sentences and words and compares them against
// reference corpora that were embedded offline with the same model. A provider
// is therefore expected to be deterministic for a fixed model version: the
// same text must always map to the same vector, otherwise corpus similarity
// scores drift between runs.
//
// Implementations must be safe for concurrent use.
package embeddings

import (
	"context"
	"fmt"
)

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by one Provider share the length reported by
// Dimensions. The reference corpora are validated against that length at
// startup.
type Provider interface {
	// Embed computes the embedding of a single text. The text is forwarded
	// verbatim; callers normalize it first.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts in one backend call. result[i]
	// corresponds to texts[i]. On error the whole result is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length produced by the model. It returns 0
	// when the length is not yet known (see Probe).
	Dimensions() int

	// ModelID returns the backend model identifier, used in logs and metrics.
	ModelID() string
}

// Probe returns the vector length of p. When p.Dimensions reports 0 a single
// embed call is issued and the length of its result is used instead. The
// returned error is non-nil when the length cannot be established.
func Probe(ctx context.Context, p Provider) (int, error) {
	if d := p.Dimensions(); d > 0 {
		return d, nil
	}
	vec, err := p.Embed(ctx, "probe")
	if err != nil {
		return 0, fmt.Errorf("embeddings: probe %s: %w", p.ModelID(), err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("embeddings: probe %s: empty vector", p.ModelID())
	}
	return len(vec), nil
}
