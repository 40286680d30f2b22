// Package corpus holds the reference tables the resolver matches against.
//
// A Corpus is an ordered, immutable list of (identifier, vector) rows of one
// granularity. Row order is the load order of the source table and is what
// breaks ties between equally similar entries. Corpora are built once at
// startup and then shared read-only by every resolution.
package corpus

import (
	"fmt"
	"iter"
	"math"

	"github.com/MrWong99/signcascade/pkg/types"
)

// IDColumn returns the identifier column name used by tables of the given
// granularity.
func IDColumn(kind types.Granularity) string {
	switch kind {
	case types.Sentence:
		return "SENTENCE_NAME"
	case types.Word:
		return "WORD_NAME"
	default:
		return ""
	}
}

// Corpus is safe for concurrent reads. It has no mutating methods.
type Corpus struct {
	kind   types.Granularity
	source string
	dim    int
	ids    []string
	vecs   [][]float32
	norms  []float64
}

// New builds a corpus from in-memory entries, applying the same validation as
// the file loader. source names the origin in errors and logs.
func New(kind types.Granularity, source string, entries []types.ReferenceEntry) (*Corpus, error) {
	fail := func(row int, reason string) error {
		return &CorpusLoadError{Path: source, Kind: kind, Row: row, Reason: reason}
	}
	if IDColumn(kind) == "" {
		return nil, fail(0, fmt.Sprintf("unsupported corpus kind %q", kind))
	}
	if len(entries) == 0 {
		return nil, fail(0, "table has no rows")
	}
	c := &Corpus{
		kind:   kind,
		source: source,
		dim:    len(entries[0].Vector),
		ids:    make([]string, len(entries)),
		vecs:   make([][]float32, len(entries)),
		norms:  make([]float64, len(entries)),
	}
	if c.dim == 0 {
		return nil, fail(1, "row has no vector columns")
	}
	for i, e := range entries {
		if e.ID == "" {
			return nil, fail(i+1, "empty identifier")
		}
		if len(e.Vector) != c.dim {
			return nil, fail(i+1, fmt.Sprintf("vector width %d differs from first row width %d", len(e.Vector), c.dim))
		}
		vec := make([]float32, c.dim)
		copy(vec, e.Vector)
		c.ids[i] = e.ID
		c.vecs[i] = vec
		c.norms[i] = Norm(vec)
	}
	return c, nil
}

// Kind returns the granularity of the corpus.
func (c *Corpus) Kind() types.Granularity { return c.kind }

// Source returns the path or label the corpus was loaded from.
func (c *Corpus) Source() string { return c.source }

// Len returns the number of rows.
func (c *Corpus) Len() int { return len(c.ids) }

// Dim returns the shared vector width.
func (c *Corpus) Dim() int { return c.dim }

// ID returns the identifier of row i.
func (c *Corpus) ID(i int) string { return c.ids[i] }

// Vector returns the vector of row i. The slice is shared; callers must not
// modify it.
func (c *Corpus) Vector(i int) []float32 { return c.vecs[i] }

// NormAt returns the precomputed Euclidean norm of row i.
func (c *Corpus) NormAt(i int) float64 { return c.norms[i] }

// Entry returns row i as a ReferenceEntry sharing the underlying vector.
func (c *Corpus) Entry(i int) types.ReferenceEntry {
	return types.ReferenceEntry{ID: c.ids[i], Vector: c.vecs[i]}
}

// All iterates rows in load order.
func (c *Corpus) All() iter.Seq2[int, types.ReferenceEntry] {
	return func(yield func(int, types.ReferenceEntry) bool) {
		for i := range c.ids {
			if !yield(i, c.Entry(i)) {
				return
			}
		}
	}
}

// CheckDim returns a *CorpusLoadError when the corpus width differs from the
// embedding provider's output width.
func (c *Corpus) CheckDim(dim int) error {
	if dim != c.dim {
		return &CorpusLoadError{
			Path:   c.source,
			Kind:   c.kind,
			Reason: fmt.Sprintf("vector width %d does not match embedding dimension %d", c.dim, dim),
		}
	}
	return nil
}

// Norm returns the Euclidean norm of v, accumulated in float64.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
