package textnorm

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Segmenter splits running text into sentences, preserving order.
type Segmenter interface {
	Segment(text string) []string
}

// PunktSegmenter is an unsupervised Punkt sentence splitter trained on
// English. It knows common abbreviations ("Dr.", "e.g.") and does not break
// on them.
type PunktSegmenter struct {
	tok *sentences.DefaultSentenceTokenizer
}

// NewPunktSegmenter loads the bundled English Punkt model.
func NewPunktSegmenter() (*PunktSegmenter, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("textnorm: load punkt model: %w", err)
	}
	return &PunktSegmenter{tok: tok}, nil
}

// Segment implements Segmenter. Blank sentences are dropped.
func (p *PunktSegmenter) Segment(text string) []string {
	var out []string
	for _, s := range p.tok.Tokenize(text) {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SegmentFunc adapts a plain function to the Segmenter interface.
type SegmentFunc func(text string) []string

// Segment implements Segmenter.
func (f SegmentFunc) Segment(text string) []string { return f(text) }
