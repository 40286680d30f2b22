package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/signcascade/pkg/types"
)

// CorpusLoadError reports a reference table that cannot be used. It is a
// startup error: the process must not serve requests after receiving one.
type CorpusLoadError struct {
	Path string
	Kind types.Granularity

	// Row is the 1-based data row the problem was found on, or 0 when the
	// problem concerns the table as a whole.
	Row int

	Reason string
	Err    error
}

func (e *CorpusLoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "corpus: load %s corpus %q", e.Kind, e.Path)
	if e.Row > 0 {
		fmt.Fprintf(&b, ": row %d", e.Row)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CorpusLoadError) Unwrap() error { return e.Err }

// Load reads a CSV reference table from path. The header must contain the
// identifier column for kind (see IDColumn); every other column is a vector
// component, in header order. When dim is positive the vector width must
// equal it.
func Load(path string, kind types.Granularity, dim int) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &CorpusLoadError{Path: path, Kind: kind, Reason: "open source file", Err: err}
	}
	defer f.Close()

	c, err := Read(f, path, kind)
	if err != nil {
		return nil, err
	}
	if dim > 0 {
		if err := c.CheckDim(dim); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Read parses a CSV reference table from r. source labels the table in errors.
func Read(r io.Reader, source string, kind types.Granularity) (*Corpus, error) {
	fail := func(row int, reason string, err error) error {
		return &CorpusLoadError{Path: source, Kind: kind, Row: row, Reason: reason, Err: err}
	}
	idCol := IDColumn(kind)
	if idCol == "" {
		return nil, fail(0, fmt.Sprintf("unsupported corpus kind %q", kind), nil)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fail(0, "table is empty", nil)
	}
	if err != nil {
		return nil, fail(0, "read header", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idIdx := -1
	for i, h := range header {
		if strings.TrimSpace(h) == idCol {
			idIdx = i
			break
		}
	}
	if idIdx < 0 {
		return nil, fail(0, fmt.Sprintf("missing identifier column %s", idCol), nil)
	}
	width := len(header) - 1
	if width == 0 {
		return nil, fail(0, "no vector columns", nil)
	}

	var entries []types.ReferenceEntry
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fail(row, "read row", err)
		}
		if len(rec) != len(header) {
			return nil, fail(row, fmt.Sprintf("has %d columns, header has %d", len(rec), len(header)), nil)
		}
		vec := make([]float32, 0, width)
		for i, cell := range rec {
			if i == idIdx {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 32)
			if err != nil {
				return nil, fail(row, fmt.Sprintf("column %q is not numeric", header[i]), err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fail(row, fmt.Sprintf("column %q is not finite", header[i]), nil)
			}
			vec = append(vec, float32(v))
		}
		entries = append(entries, types.ReferenceEntry{ID: strings.TrimSpace(rec[idIdx]), Vector: vec})
	}
	return New(kind, source, entries)
}

// Set bundles the two corpora the resolver needs.
type Set struct {
	Sentences *Corpus
	Words     *Corpus
}

// LoadSet loads the sentence and word tables concurrently and checks both
// against the embedding dimension dim.
func LoadSet(sentencePath, wordPath string, dim int) (*Set, error) {
	var (
		set Set
		g   errgroup.Group
	)
	g.Go(func() error {
		c, err := Load(sentencePath, types.Sentence, dim)
		set.Sentences = c
		return err
	})
	g.Go(func() error {
		c, err := Load(wordPath, types.Word, dim)
		set.Words = c
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if set.Sentences.Dim() != set.Words.Dim() {
		return nil, &CorpusLoadError{
			Path:   wordPath,
			Kind:   types.Word,
			Reason: fmt.Sprintf("vector width %d differs from sentence corpus width %d", set.Words.Dim(), set.Sentences.Dim()),
		}
	}
	slog.Info("reference corpora loaded",
		"sentences", set.Sentences.Len(),
		"words", set.Words.Len(),
		"dim", set.Sentences.Dim(),
	)
	return &set, nil
}
