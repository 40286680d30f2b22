package match

import (
	"context"
	"math"

	"github.com/MrWong99/signcascade/internal/corpus"
	"github.com/MrWong99/signcascade/pkg/types"
)

var _ Matcher = Linear{}

// Linear scans every corpus row. It is exact and allocation free.
type Linear struct{}

// NearestNeighbor implements Matcher. Rows are visited in load order and only
// a strictly greater score replaces the current best, so the earliest of
// equally scored rows wins. Zero vectors score 0 against everything.
func (Linear) NearestNeighbor(ctx context.Context, query []float32, c *corpus.Corpus) (types.ReferenceEntry, float64, error) {
	if err := checkDim(query, c); err != nil {
		return types.ReferenceEntry{}, 0, err
	}
	if err := ctx.Err(); err != nil {
		return types.ReferenceEntry{}, 0, err
	}

	qn := corpus.Norm(query)
	best, bestScore := 0, cosine(query, qn, c.Vector(0), c.NormAt(0))
	for i := 1; i < c.Len(); i++ {
		s := cosine(query, qn, c.Vector(i), c.NormAt(i))
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return c.Entry(best), bestScore, nil
}

// Cosine returns dot(a,b) / (|a|*|b|), or 0 when either vector has zero norm
// or the result is not a number. a and b must have equal length.
func Cosine(a, b []float32) float64 {
	return cosine(a, corpus.Norm(a), b, corpus.Norm(b))
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	s := dot / (an * bn)
	if math.IsNaN(s) {
		return 0
	}
	return s
}
