// Package textnorm cleans and tokenizes text for embedding and for letter
// spelling.
//
// Three views of the same input are produced:
//
//   - sentences: segmented, then cleaned, stop-word filtered and lemmatized
//     into one normalized string per sentence;
//   - words: the tokens of an original sentence, lower-cased with
//     punctuation removed and nothing else;
//   - letters: the alphabetic characters of a normalized word.
//
// Cleaning folds the text with NFKC, lower-cases it and removes every rune
// that is neither a word character (letter, number, underscore) nor space.
package textnorm

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizationError reports text that cannot be normalized, currently only
// input that is not valid UTF-8.
type NormalizationError struct {
	// Offset is the byte offset of the first invalid sequence.
	Offset int
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("textnorm: invalid UTF-8 at byte %d", e.Offset)
}

// Normalizer is safe for concurrent use once constructed.
type Normalizer struct {
	stop map[string]struct{}
	keep map[string]struct{}
	lem  Lemmatizer
	seg  Segmenter
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithStopWords replaces the stop word list.
func WithStopWords(words []string) Option {
	return func(n *Normalizer) { n.stop = toSet(words) }
}

// WithKeepWords replaces the list of stop words that survive filtering.
func WithKeepWords(words []string) Option {
	return func(n *Normalizer) { n.keep = toSet(words) }
}

// WithLemmatizer sets the lemmatizer. Without it the English dictionary
// lemmatizer is loaded.
func WithLemmatizer(l Lemmatizer) Option {
	return func(n *Normalizer) { n.lem = l }
}

// WithSegmenter sets the sentence segmenter. Without it the English Punkt
// model is loaded.
func WithSegmenter(s Segmenter) Option {
	return func(n *Normalizer) { n.seg = s }
}

// New builds a Normalizer. It fails only when a default language model cannot
// be loaded.
func New(opts ...Option) (*Normalizer, error) {
	n := &Normalizer{
		stop: toSet(DefaultStopWords()),
		keep: toSet(DefaultKeepWords()),
	}
	for _, o := range opts {
		o(n)
	}
	if n.lem == nil {
		lem, err := NewDictLemmatizer()
		if err != nil {
			return nil, err
		}
		n.lem = lem
	}
	if n.seg == nil {
		seg, err := NewPunktSegmenter()
		if err != nil {
			return nil, err
		}
		n.seg = seg
	}
	return n, nil
}

// Validate returns a *NormalizationError when text is not valid UTF-8.
func Validate(text string) error {
	if utf8.ValidString(text) {
		return nil
	}
	for i, r := range text {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(text[i:]); size <= 1 {
				return &NormalizationError{Offset: i}
			}
		}
	}
	return &NormalizationError{Offset: len(text)}
}

// Sentences segments text into trimmed, non-empty sentences in reading order.
func (n *Normalizer) Sentences(text string) ([]string, error) {
	if err := Validate(text); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return n.seg.Segment(norm.NFKC.String(text)), nil
}

// NormalizeSentence returns the embedding form of one sentence: cleaned,
// stop words removed (keep words excepted), each token lemmatized, joined by
// single spaces. The result is empty when every token was a stop word.
func (n *Normalizer) NormalizeSentence(sentence string) (string, error) {
	if err := Validate(sentence); err != nil {
		return "", err
	}
	tokens := strings.Fields(clean(sentence))
	kept := tokens[:0]
	for _, tok := range tokens {
		if lemma, ok := n.filter(tok); ok {
			kept = append(kept, lemma)
		}
	}
	return strings.Join(kept, " "), nil
}

// Words splits an original (unfiltered) sentence into raw word tokens.
// Whitespace, dashes and slashes separate words, and so does clause or
// sentence punctuation sitting between two letters ("hello,world"). Other
// punctuation, apostrophes included, stays attached and is removed later by
// NormalizeWord.
func (n *Normalizer) Words(sentence string) []string {
	var (
		words []string
		cur   strings.Builder
		prev  rune
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for i, r := range sentence {
		switch {
		case isWordSeparator(r):
			flush()
		case isInnerBreak(r) && unicode.IsLetter(prev) && letterAt(sentence, i+utf8.RuneLen(r)):
			flush()
		default:
			cur.WriteRune(r)
		}
		prev = r
	}
	flush()
	return words
}

// NormalizeWord lower-cases w and strips punctuation. No stop word removal or
// lemmatization happens here.
func (n *Normalizer) NormalizeWord(w string) string {
	return strings.Join(strings.Fields(clean(w)), "")
}

// FilterWord normalizes w and then applies stop word filtering and
// lemmatization. ok is false when the word is empty or a filtered stop word.
func (n *Normalizer) FilterWord(w string) (lemma string, ok bool) {
	nw := n.NormalizeWord(w)
	if nw == "" {
		return "", false
	}
	return n.filter(nw)
}

func (n *Normalizer) filter(tok string) (string, bool) {
	if _, stop := n.stop[tok]; stop {
		if _, keep := n.keep[tok]; !keep {
			return "", false
		}
	}
	return n.lem.Lemma(tok), true
}

// Letters returns the alphabetic characters of w as one-character strings, in
// order. Digits, punctuation and marks are dropped. The result may be empty.
func Letters(w string) []string {
	var out []string
	for _, r := range w {
		if unicode.IsLetter(r) {
			out = append(out, string(r))
		}
	}
	return out
}

// clean folds s with NFKC, lower-cases it, deletes non-word non-space runes
// and collapses whitespace runs to one space.
func clean(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case isWordRune(r):
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isWordSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '-', '/', '–', '—':
		return true
	}
	return false
}

func isInnerBreak(r rune) bool {
	switch r {
	case ',', ';', ':', '.', '!', '?':
		return true
	}
	return false
}

// letterAt reports whether the rune starting at byte offset i of s is a letter.
func letterAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(r)
}
