package textnorm

import "strings"

// englishStopWords is the NLTK English stop word list. Entries containing an
// apostrophe never match a cleaned token and are kept only so the list stays
// recognisable.
const englishStopWords = `
i me my myself we our ours ourselves you you're you've you'll you'd your yours
yourself yourselves he him his himself she she's her hers herself it it's its
itself they them their theirs themselves what which who whom this that that'll
these those am is are was were be been being have has had having do does did
doing a an the and but if or because as until while of at by for with about
against between into through during before after above below to from up down
in out on off over under again further then once here there when where why how
all any both each few more most other some such no nor not only own same so
than too very s t can will just don don't should should've now d ll m o re ve
y ain aren aren't couldn couldn't didn didn't doesn doesn't hadn hadn't hasn
hasn't haven haven't isn isn't ma mightn mightn't mustn mustn't needn needn't
shan shan't shouldn shouldn't wasn wasn't weren weren't won won't wouldn
wouldn't
`

// defaultKeepWords are stop words that carry meaning in sign language and
// therefore survive filtering: personal pronouns, possessives and modals.
var defaultKeepWords = []string{
	"i", "you", "he", "she", "it", "we", "they",
	"me", "him", "her", "us", "them", "my", "your",
	"his", "its", "our", "their", "can", "could", "will",
	"would", "shall", "should", "may", "might", "must",
}

// DefaultStopWords returns a fresh copy of the English stop word list.
func DefaultStopWords() []string {
	return strings.Fields(englishStopWords)
}

// DefaultKeepWords returns a fresh copy of the stop word whitelist.
func DefaultKeepWords() []string {
	out := make([]string, len(defaultKeepWords))
	copy(out, defaultKeepWords)
	return out
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
