// Package match finds the reference entry most similar to a query vector.
//
// The resolver only depends on the [Matcher] interface. [Linear] is the
// reference implementation: an exact cosine scan in corpus load order. The
// pgvec subpackage provides an index-backed implementation for corpora too
// large to scan per request.
package match

import (
	"context"
	"fmt"

	"github.com/MrWong99/signcascade/internal/corpus"
	"github.com/MrWong99/signcascade/pkg/types"
)

// Matcher looks up the nearest neighbour of a query in a corpus.
//
// Implementations return the entry with the highest cosine similarity and
// that similarity. When several entries share the highest score the one
// loaded first wins. Implementations must be safe for concurrent use.
type Matcher interface {
	NearestNeighbor(ctx context.Context, query []float32, c *corpus.Corpus) (types.ReferenceEntry, float64, error)
}

// DimensionError is returned when a query vector's width differs from the
// corpus width.
type DimensionError struct {
	Query  int
	Corpus int
	Kind   types.Granularity
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("match: query width %d does not match %s corpus width %d", e.Query, e.Kind, e.Corpus)
}

// Decide applies the acceptance threshold to a lookup result. The comparison
// is inclusive: a score of exactly types.Threshold is a match.
func Decide(entry types.ReferenceEntry, score float64) types.MatchResult {
	return types.MatchResult{
		Entry:   entry,
		Score:   score,
		IsMatch: score >= types.Threshold,
	}
}

// Lookup runs m and applies Decide.
func Lookup(ctx context.Context, m Matcher, query []float32, c *corpus.Corpus) (types.MatchResult, error) {
	entry, score, err := m.NearestNeighbor(ctx, query, c)
	if err != nil {
		return types.MatchResult{}, err
	}
	return Decide(entry, score), nil
}

func checkDim(query []float32, c *corpus.Corpus) error {
	if len(query) != c.Dim() {
		return &DimensionError{Query: len(query), Corpus: c.Dim(), Kind: c.Kind()}
	}
	return nil
}
