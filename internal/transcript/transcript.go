// Package transcript corrects speech-to-text output against the sign
// vocabulary before resolution.
//
// Speech recognisers mishear rare words, and a misheard word is spelled
// letter by letter even when the intended word has a sign. The [Corrector]
// replaces words that sound like a vocabulary word and are spelled close to
// it. Punctuation around a word is kept, as is an initial capital.
package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/signcascade/internal/transcript/phonetic"
)

// Correction is one replaced word.
type Correction struct {
	// Index is the position of the word among the transcript's
	// whitespace-separated tokens.
	Index int

	Original   string
	Corrected  string
	Confidence float64
}

// Result is the output of [Corrector.Correct].
type Result struct {
	Text string

	// Corrections is empty, not nil, when nothing changed.
	Corrections []Correction
}

// Corrector is safe for concurrent use.
type Corrector struct {
	index *phonetic.Index
}

// NewCorrector builds a Corrector over vocabulary.
func NewCorrector(vocabulary []string, opts ...phonetic.Option) *Corrector {
	return &Corrector{index: phonetic.New(vocabulary, opts...)}
}

// Correct returns text with misheard vocabulary words replaced. When nothing
// is replaced Text equals text byte for byte.
func (c *Corrector) Correct(text string) Result {
	res := Result{Text: text, Corrections: []Correction{}}
	tokens := strings.Fields(text)
	changed := false
	for i, tok := range tokens {
		lead, core, trail := splitToken(tok)
		if core == "" || c.index.Contains(core) {
			continue
		}
		match, score, ok := c.index.Match(core)
		if !ok {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(core); unicode.IsUpper(r) {
			match = capitalize(match)
		}
		tokens[i] = lead + match + trail
		changed = true
		res.Corrections = append(res.Corrections, Correction{
			Index:      i,
			Original:   core,
			Corrected:  match,
			Confidence: score,
		})
	}
	if changed {
		res.Text = strings.Join(tokens, " ")
	}
	return res
}

// VocabularyFromIDs derives vocabulary words from word corpus identifiers.
// Identifiers name the word they sign, with underscores for spaces.
func VocabularyFromIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if w := strings.ToLower(strings.ReplaceAll(id, "_", " ")); strings.TrimSpace(w) != "" {
			out = append(out, w)
		}
	}
	return out
}

// splitToken separates leading and trailing non-letter runes from the word.
func splitToken(tok string) (lead, core, trail string) {
	isLetter := func(r rune) bool { return unicode.IsLetter(r) }
	start := strings.IndexFunc(tok, isLetter)
	if start < 0 {
		return tok, "", ""
	}
	end := strings.LastIndexFunc(tok, isLetter)
	_, size := utf8.DecodeRuneInString(tok[end:])
	end += size
	return tok[:start], tok[start:end], tok[end:]
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
