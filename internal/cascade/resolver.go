// Package cascade turns free text into a sequence of sign identifiers.
//
// Every unit of text is tried at the coarsest level first. A sentence whose
// embedding is close enough to a sentence corpus entry emits that entry's id.
// Otherwise each word of the sentence is tried against the word corpus, and a
// word without a close match is spelled letter by letter. The output keeps
// sentence order, word order within a sentence and letter order within a
// word.
//
// A Resolver holds no per-call state and may be shared by concurrent callers.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/signcascade/internal/corpus"
	"github.com/MrWong99/signcascade/internal/match"
	"github.com/MrWong99/signcascade/internal/observe"
	"github.com/MrWong99/signcascade/internal/textnorm"
	"github.com/MrWong99/signcascade/pkg/provider/embeddings"
	"github.com/MrWong99/signcascade/pkg/types"
)

// DefaultEmbedTimeout bounds a single embedding call.
const DefaultEmbedTimeout = 10 * time.Second

// Punctuator restores sentence punctuation in unpunctuated text, such as a
// speech transcript. A returned error is logged and the text is used as is.
type Punctuator interface {
	Restore(ctx context.Context, text string) (string, error)
}

// Trace is the decision taken for one text unit.
type Trace struct {
	Unit types.TextUnit

	// Level is the level that produced Emitted. For a sentence that missed it
	// is [types.Word]: the symbols follow in the traces of its words.
	Level types.Granularity

	// Result is the best corpus match, or nil when the unit normalized to the
	// empty string and was not embedded.
	Result *types.MatchResult

	// Emitted are the symbols this unit contributed to the sequence.
	Emitted []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategy sets the strategy used by Resolve and Explain. Default:
// SentenceFirst.
func WithStrategy(s Strategy) Option {
	return func(r *Resolver) { r.strategy = s }
}

// WithWordPolicy sets how words are normalized. Default: Raw.
func WithWordPolicy(p WordPolicy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithPunctuator enables punctuation restoration for SentenceFirst.
func WithPunctuator(p Punctuator) Option {
	return func(r *Resolver) { r.punct = p }
}

// WithEmbedTimeout bounds each embedding call. Zero disables the bound.
func WithEmbedTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.embedTimeout = d }
}

// WithConcurrency sets the maximum number of embedding calls in flight for
// one resolution. Values below 2 resolve strictly in order.
func WithConcurrency(n int) Option {
	return func(r *Resolver) { r.concurrency = n }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithMatcher sets the nearest-neighbour implementation. Default:
// [match.Linear].
func WithMatcher(m match.Matcher) Option {
	return func(r *Resolver) { r.matcher = m }
}

// Resolver runs the sentence → word → letter cascade.
type Resolver struct {
	provider embeddings.Provider
	set      *corpus.Set
	norm     *textnorm.Normalizer
	matcher  match.Matcher
	punct    Punctuator

	strategy     Strategy
	policy       WordPolicy
	embedTimeout time.Duration
	concurrency  int
	metrics      *observe.Metrics
}

// New builds a Resolver over the given corpora. Corpora are read-only from
// here on.
func New(provider embeddings.Provider, set *corpus.Set, norm *textnorm.Normalizer, opts ...Option) (*Resolver, error) {
	switch {
	case provider == nil:
		return nil, errors.New("cascade: embeddings provider is required")
	case set == nil || set.Sentences == nil || set.Words == nil:
		return nil, errors.New("cascade: sentence and word corpora are required")
	case norm == nil:
		return nil, errors.New("cascade: normalizer is required")
	}
	r := &Resolver{
		provider:     provider,
		set:          set,
		norm:         norm,
		matcher:      match.Linear{},
		strategy:     SentenceFirst,
		policy:       Raw,
		embedTimeout: DefaultEmbedTimeout,
		concurrency:  1,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	if _, err := ParseStrategy(string(r.strategy), SentenceFirst); err != nil {
		return nil, err
	}
	if _, err := ParseWordPolicy(string(r.policy)); err != nil {
		return nil, err
	}
	return r, nil
}

// Strategy returns the configured default strategy.
func (r *Resolver) Strategy() Strategy { return r.strategy }

// Resolve converts text with the configured strategy.
func (r *Resolver) Resolve(ctx context.Context, text string) (types.SymbolSequence, error) {
	return r.ResolveWith(ctx, text, r.strategy)
}

// ResolveWith converts text with strategy s. On error no partial sequence is
// returned. Empty or whitespace-only text yields an empty sequence without
// any embedding call.
func (r *Resolver) ResolveWith(ctx context.Context, text string, s Strategy) (types.SymbolSequence, error) {
	traces, err := r.ExplainWith(ctx, text, s)
	if err != nil {
		return nil, err
	}
	out := types.SymbolSequence{}
	for _, tr := range traces {
		out = append(out, tr.Emitted...)
	}
	return out, nil
}

// Explain returns the per-unit decisions Resolve would take for text.
func (r *Resolver) Explain(ctx context.Context, text string) ([]Trace, error) {
	return r.ExplainWith(ctx, text, r.strategy)
}

// ExplainWith is Explain with an explicit strategy.
func (r *Resolver) ExplainWith(ctx context.Context, text string, s Strategy) (traces []Trace, err error) {
	s, err = ParseStrategy(string(s), r.strategy)
	if err != nil {
		return nil, err
	}
	if err := textnorm.Validate(text); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	ctx, span := observe.StartSpan(ctx, "cascade.resolve",
		trace.WithAttributes(attribute.String("strategy", string(s))))
	r.metrics.ActiveResolutions.Add(ctx, 1)
	start := time.Now()
	defer func() {
		r.metrics.ActiveResolutions.Add(ctx, -1)
		r.metrics.RecordResolve(ctx, string(s), time.Since(start), err)
		if err == nil {
			r.recordSymbols(ctx, traces)
		}
		observe.EndSpan(span, err)
	}()

	run := &resolution{}
	if r.concurrency > 1 {
		run.sem = semaphore.NewWeighted(int64(r.concurrency))
	}

	if s == WordFirst {
		return r.resolveWords(ctx, run, r.norm.Words(text))
	}
	return r.resolveSentences(ctx, run, text)
}

// resolution carries state scoped to one ExplainWith call.
type resolution struct {
	// sem caps in-flight embedding calls across nested fan-outs. Nil when
	// resolving sequentially.
	sem *semaphore.Weighted
}

func (r *Resolver) resolveSentences(ctx context.Context, run *resolution, text string) ([]Trace, error) {
	if r.punct != nil {
		restored, err := r.punct.Restore(ctx, text)
		switch {
		case err != nil:
			observe.Logger(ctx).Warn("punctuation restoration failed, using original text", "err", err)
		case strings.TrimSpace(restored) != "":
			text = restored
		}
	}

	sentences, err := r.norm.Sentences(text)
	if err != nil {
		return nil, err
	}
	parts := make([][]Trace, len(sentences))
	err = r.forEach(ctx, len(sentences), func(ctx context.Context, i int) error {
		tr, err := r.resolveSentence(ctx, run, sentences[i])
		parts[i] = tr
		return err
	})
	if err != nil {
		return nil, err
	}
	return flatten(parts), nil
}

func (r *Resolver) resolveSentence(ctx context.Context, run *resolution, sentence string) ([]Trace, error) {
	normalized, err := r.norm.NormalizeSentence(sentence)
	if err != nil {
		return nil, err
	}
	head := Trace{
		Unit:  types.TextUnit{Raw: sentence, Normalized: normalized, Granularity: types.Sentence},
		Level: types.Word,
	}
	if normalized != "" {
		res, err := r.lookup(ctx, run, head.Unit, r.set.Sentences)
		if err != nil {
			return nil, err
		}
		head.Result = &res
		if res.IsMatch {
			head.Level = types.Sentence
			head.Emitted = []string{res.Entry.ID}
			return []Trace{head}, nil
		}
	}

	words, err := r.resolveWords(ctx, run, r.norm.Words(sentence))
	if err != nil {
		return nil, err
	}
	return append([]Trace{head}, words...), nil
}

// resolveWords runs the word → letter part of the cascade on raw tokens.
// Tokens that normalize to the empty string contribute nothing.
func (r *Resolver) resolveWords(ctx context.Context, run *resolution, tokens []string) ([]Trace, error) {
	traces := make([]*Trace, len(tokens))
	err := r.forEach(ctx, len(tokens), func(ctx context.Context, i int) error {
		form := r.wordForm(tokens[i])
		if form == "" {
			return nil
		}
		tr := &Trace{Unit: types.TextUnit{Raw: tokens[i], Normalized: form, Granularity: types.Word}}
		res, err := r.lookup(ctx, run, tr.Unit, r.set.Words)
		if err != nil {
			return err
		}
		tr.Result = &res
		if res.IsMatch {
			tr.Level = types.Word
			tr.Emitted = []string{res.Entry.ID}
		} else {
			tr.Level = types.Letter
			tr.Emitted = textnorm.Letters(form)
			observe.Logger(ctx).Debug("word spelled as letters",
				slog.String("word", form),
				slog.String("nearest", res.Entry.ID),
				slog.Float64("score", res.Score),
			)
		}
		traces[i] = tr
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Trace, 0, len(traces))
	for _, tr := range traces {
		if tr != nil {
			out = append(out, *tr)
		}
	}
	return out, nil
}

func (r *Resolver) wordForm(token string) string {
	if r.policy == Filtered {
		lemma, ok := r.norm.FilterWord(token)
		if !ok {
			return ""
		}
		return lemma
	}
	return r.norm.NormalizeWord(token)
}

// lookup embeds unit.Normalized and matches it against c.
func (r *Resolver) lookup(ctx context.Context, run *resolution, unit types.TextUnit, c *corpus.Corpus) (types.MatchResult, error) {
	vec, err := r.embed(ctx, run, unit)
	if err != nil {
		return types.MatchResult{}, err
	}
	res, err := match.Lookup(ctx, r.matcher, vec, c)
	if err != nil {
		var de *match.DimensionError
		if errors.As(err, &de) {
			return types.MatchResult{}, &EmbeddingProviderError{Text: unit.Normalized, Granularity: unit.Granularity, Err: err}
		}
		return types.MatchResult{}, fmt.Errorf("cascade: match %s: %w", unit.Granularity, err)
	}
	return res, nil
}

func (r *Resolver) embed(ctx context.Context, run *resolution, unit types.TextUnit) ([]float32, error) {
	wrap := func(err error) error {
		return &EmbeddingProviderError{Text: unit.Normalized, Granularity: unit.Granularity, Err: err}
	}
	if run.sem != nil {
		if err := run.sem.Acquire(ctx, 1); err != nil {
			return nil, wrap(err)
		}
		defer run.sem.Release(1)
	}
	if r.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.embedTimeout)
		defer cancel()
	}

	ctx, span := observe.StartSpan(ctx, "cascade.embed",
		trace.WithAttributes(attribute.String("level", unit.Granularity.String())))
	start := time.Now()
	vec, err := r.provider.Embed(ctx, unit.Normalized)
	r.metrics.RecordEmbed(ctx, unit.Granularity.String(), r.provider.ModelID(), time.Since(start), err)
	observe.EndSpan(span, err)
	if err != nil {
		return nil, wrap(err)
	}
	return vec, nil
}

// forEach calls fn for 0..n-1, in order when concurrency is off and through a
// bounded errgroup otherwise. The first error cancels the remaining calls.
func (r *Resolver) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if r.concurrency <= 1 || n <= 1 {
		for i := range n {
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range n {
		g.Go(func() error { return fn(gctx, i) })
	}
	return g.Wait()
}

func (r *Resolver) recordSymbols(ctx context.Context, traces []Trace) {
	counts := make(map[types.Granularity]int, 3)
	for _, tr := range traces {
		counts[tr.Level] += len(tr.Emitted)
	}
	for level, n := range counts {
		r.metrics.RecordSymbols(ctx, level.String(), n)
	}
}

func flatten(parts [][]Trace) []Trace {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]Trace, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
