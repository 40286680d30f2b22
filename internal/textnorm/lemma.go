package textnorm

import (
	"fmt"
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// Lemmatizer reduces an inflected word to its base form. Implementations
// receive lower-case tokens and must be safe for concurrent use.
type Lemmatizer interface {
	Lemma(word string) string
}

// LemmaFunc adapts a plain function to the Lemmatizer interface.
type LemmaFunc func(word string) string

// Lemma implements Lemmatizer.
func (f LemmaFunc) Lemma(word string) string { return f(word) }

// Identity returns words unchanged.
var Identity Lemmatizer = LemmaFunc(func(w string) string { return w })

// DictLemmatizer looks words up in an English inflection dictionary. Unknown
// words are returned as-is.
type DictLemmatizer struct {
	lem *golem.Lemmatizer
}

// NewDictLemmatizer loads the bundled English dictionary. Loading takes a
// noticeable fraction of a second; build one per process and share it.
func NewDictLemmatizer() (*DictLemmatizer, error) {
	lem, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("textnorm: load english lemma dictionary: %w", err)
	}
	return &DictLemmatizer{lem: lem}, nil
}

// Lemma implements Lemmatizer.
func (d *DictLemmatizer) Lemma(word string) string {
	lemma := d.lem.Lemma(word)
	if lemma == "" {
		return word
	}
	return strings.ToLower(lemma)
}
