// Package types defines the shared value types passed between the normalizer,
// the reference corpora, the similarity matcher and the cascade resolver.
//
// They live here rather than in any one of those packages so that storage
// backends (pgvector, history) and outer surfaces (HTTP, MCP) can speak the
// same vocabulary without importing the resolver.
package types

import "fmt"

// Threshold is the minimum cosine similarity a nearest-neighbour hit must reach
// to be accepted at any cascade level. The comparison is inclusive.
const Threshold = 0.85

// Granularity is the level of text a unit or corpus operates on.
type Granularity string

const (
	// Sentence units are whole normalized sentences matched against the
	// sentence corpus.
	Sentence Granularity = "sentence"

	// Word units are single normalized words matched against the word corpus.
	Word Granularity = "word"

	// Letter is the terminal fallback level. No corpus exists for it; letters
	// are spelled directly.
	Letter Granularity = "letter"
)

// String implements fmt.Stringer.
func (g Granularity) String() string { return string(g) }

// IsValid reports whether g names a known granularity.
func (g Granularity) IsValid() bool {
	switch g {
	case Sentence, Word, Letter:
		return true
	}
	return false
}

// TextUnit is a fragment of input text at a given granularity. Units are
// created per resolution call and discarded afterwards.
type TextUnit struct {
	// Raw is the fragment as it appeared in the input (after punctuation
	// restoration and segmentation, if any).
	Raw string

	// Normalized is the form that is embedded. May be empty, in which case the
	// unit is not embedded at its own level.
	Normalized string

	Granularity Granularity
}

// ReferenceEntry is one row of a reference corpus.
type ReferenceEntry struct {
	// ID is the sign identifier emitted when this entry wins a match.
	ID string

	// Vector is the precomputed embedding of the entry's text.
	Vector []float32
}

// MatchResult is the outcome of a nearest-neighbour lookup plus the threshold
// decision.
type MatchResult struct {
	Entry   ReferenceEntry
	Score   float64
	IsMatch bool
}

// String returns a compact human-readable form, e.g. "WORLD_SIGN@0.9000(match)".
func (m MatchResult) String() string {
	verdict := "miss"
	if m.IsMatch {
		verdict = "match"
	}
	return fmt.Sprintf("%s@%.4f(%s)", m.Entry.ID, m.Score, verdict)
}

// SymbolSequence is the ordered output of one resolution: sentence ids, word
// ids and single letters in reading order.
type SymbolSequence []string

// Clone returns an independent copy of s. A nil sequence clones to an empty,
// non-nil one so JSON encodes it as [] rather than null.
func (s SymbolSequence) Clone() SymbolSequence {
	out := make(SymbolSequence, len(s))
	copy(out, s)
	return out
}
