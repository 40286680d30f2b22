// Package phonetic finds the vocabulary word a misheard transcript word was
// most likely meant to be.
//
// A candidate must share a Double Metaphone code with the heard word and
// reach the Jaro-Winkler threshold on the lower-cased spellings. Among
// candidates the highest Jaro-Winkler score wins; ties keep vocabulary order.
package phonetic

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultThreshold = 0.85
	defaultMinLength = 3
)

// Option is a functional option for configuring an [Index].
type Option func(*Index)

// WithThreshold sets the minimum Jaro-Winkler score. Default: 0.85.
func WithThreshold(threshold float64) Option {
	return func(ix *Index) { ix.threshold = threshold }
}

// WithMinLength sets the shortest word, in runes, that is looked up. Shorter
// words collide phonetically too often. Default: 3.
func WithMinLength(n int) Option {
	return func(ix *Index) { ix.minLength = n }
}

type entry struct {
	word  string
	codes [2]string
}

// Index is read-only after construction and safe for concurrent use.
type Index struct {
	entries   []entry
	known     map[string]struct{}
	threshold float64
	minLength int
}

// New indexes the single-word terms of vocabulary. Terms are lower-cased;
// empty and multi-word terms are skipped.
func New(vocabulary []string, opts ...Option) *Index {
	ix := &Index{
		known:     make(map[string]struct{}, len(vocabulary)),
		threshold: defaultThreshold,
		minLength: defaultMinLength,
	}
	for _, o := range opts {
		o(ix)
	}
	for _, v := range vocabulary {
		w := strings.ToLower(strings.TrimSpace(v))
		if w == "" || strings.ContainsAny(w, " \t") {
			continue
		}
		if _, dup := ix.known[w]; dup {
			continue
		}
		ix.known[w] = struct{}{}
		p, s := matchr.DoubleMetaphone(w)
		ix.entries = append(ix.entries, entry{word: w, codes: [2]string{p, s}})
	}
	return ix
}

// Len returns the number of indexed words.
func (ix *Index) Len() int { return len(ix.entries) }

// Contains reports whether word (any case) is in the vocabulary.
func (ix *Index) Contains(word string) bool {
	_, ok := ix.known[strings.ToLower(word)]
	return ok
}

// Match returns the closest vocabulary word for word. A word already in the
// vocabulary matches itself with score 1.
func (ix *Index) Match(word string) (match string, score float64, ok bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return word, 0, false
	}
	if _, known := ix.known[w]; known {
		return w, 1, true
	}
	if utf8.RuneCountInString(w) < ix.minLength {
		return word, 0, false
	}

	p, s := matchr.DoubleMetaphone(w)
	for _, e := range ix.entries {
		if !overlap([2]string{p, s}, e.codes) {
			continue
		}
		jw := matchr.JaroWinkler(w, e.word, false)
		if jw >= ix.threshold && jw > score {
			match, score = e.word, jw
		}
	}
	if match == "" {
		return word, 0, false
	}
	return match, score, true
}

func overlap(a, b [2]string) bool {
	for _, x := range a {
		if x == "" {
			continue
		}
		if x == b[0] || x == b[1] {
			return true
		}
	}
	return false
}
