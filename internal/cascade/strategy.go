package cascade

import (
	"errors"
	"fmt"
)

// ErrUnknownStrategy is wrapped by ParseStrategy for values that name no
// strategy.
var ErrUnknownStrategy = errors.New("cascade: unknown strategy")

// Strategy selects the entry level of the cascade.
type Strategy string

const (
	// SentenceFirst restores punctuation, segments the input into sentences
	// and matches each sentence before descending to its words.
	SentenceFirst Strategy = "sentence_first"

	// WordFirst skips punctuation and segmentation and matches every word of
	// the input directly.
	WordFirst Strategy = "word_first"
)

// ParseStrategy maps a configuration or request value to a Strategy. The
// empty string yields def.
func ParseStrategy(s string, def Strategy) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return def, nil
	case SentenceFirst, WordFirst:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w %q (want %q or %q)", ErrUnknownStrategy, s, SentenceFirst, WordFirst)
}

// WordPolicy controls how a word is normalized before its embedding lookup.
type WordPolicy string

const (
	// Raw lower-cases the word and strips punctuation.
	Raw WordPolicy = "raw"

	// Filtered additionally drops stop words and lemmatizes. Letters of a
	// missed word are spelled from the lemma.
	Filtered WordPolicy = "filtered"
)

// ParseWordPolicy maps a configuration value to a WordPolicy. The empty
// string yields Raw.
func ParseWordPolicy(s string) (WordPolicy, error) {
	switch WordPolicy(s) {
	case "":
		return Raw, nil
	case Raw, Filtered:
		return WordPolicy(s), nil
	}
	return "", fmt.Errorf("cascade: unknown word policy %q (want %q or %q)", s, Raw, Filtered)
}
