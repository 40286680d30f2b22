// Package punct restores sentence punctuation in raw transcripts.
//
// Speech-to-text output is often a single run of lower-case words. Sentence
// segmentation needs terminal punctuation, so transcripts pass through a
// Restorer before the cascade splits them. A restorer may only add
// punctuation and change case: the word sequence must survive unchanged, and
// [LLM] falls back to its input when a model rewrites words.
package punct

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/MrWong99/signcascade/internal/observe"
	"github.com/MrWong99/signcascade/pkg/provider/llm"
)

// Restorer adds punctuation to text.
type Restorer interface {
	Restore(ctx context.Context, text string) (string, error)
}

// Passthrough returns text unchanged.
type Passthrough struct{}

// Restore implements Restorer.
func (Passthrough) Restore(_ context.Context, text string) (string, error) { return text, nil }

const defaultTemperature = 0.0

const systemPrompt = `You restore punctuation in speech transcripts.

Rules:
- Insert periods, question marks, exclamation marks and commas where a careful writer would.
- Capitalise the first word of every sentence.
- Do NOT add, remove, reorder, translate or correct any word.
- Do NOT expand or contract words.

Respond with ONLY the punctuated transcript (no quotes, no markdown, no commentary).`

// Option configures an LLM restorer.
type Option func(*LLM)

// WithTemperature sets the sampling temperature. Default: 0.
func WithTemperature(t float64) Option {
	return func(l *LLM) { l.temperature = t }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(l *LLM) { l.metrics = m }
}

// LLM restores punctuation with a language model. It is safe for concurrent
// use.
type LLM struct {
	provider    llm.Provider
	temperature float64
	metrics     *observe.Metrics
}

// NewLLM returns a restorer backed by provider.
func NewLLM(provider llm.Provider, opts ...Option) (*LLM, error) {
	if provider == nil {
		return nil, errors.New("punct: llm provider is required")
	}
	l := &LLM{provider: provider, temperature: defaultTemperature}
	for _, o := range opts {
		o(l)
	}
	if l.metrics == nil {
		l.metrics = observe.DefaultMetrics()
	}
	return l, nil
}

// Restore implements Restorer. Provider failures are returned. A reply that
// is empty or changes the words yields text unchanged and a nil error.
func (l *LLM) Restore(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	start := time.Now()
	resp, err := l.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  l.temperature,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
	})
	l.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	status := observe.StatusOK
	if err != nil {
		status = observe.StatusError
		l.metrics.RecordProviderError(ctx, l.provider.ModelID(), "llm")
	}
	l.metrics.RecordProviderRequest(ctx, l.provider.ModelID(), "llm", status)
	if err != nil {
		return "", fmt.Errorf("punct: complete: %w", err)
	}

	restored := stripFences(resp.Content)
	if restored == "" {
		return text, nil
	}
	if i, ok := sameWords(text, restored); !ok {
		observe.Logger(ctx).Warn("punctuation model changed words, keeping original text",
			"model", l.provider.ModelID(),
			"word_index", i,
		)
		return text, nil
	}
	return restored, nil
}

// stripFences removes markdown code fences and surrounding quotes some models
// wrap their reply in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " .,") {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// sameWords reports whether a and b consist of the same words, ignoring case,
// punctuation and apostrophes. On mismatch it returns the index of the first
// differing word.
func sameWords(a, b string) (int, bool) {
	wa, wb := words(a), words(b)
	n := min(len(wa), len(wb))
	for i := range n {
		if wa[i] != wb[i] {
			return i, false
		}
	}
	if len(wa) != len(wb) {
		return n, false
	}
	return 0, true
}

func words(s string) []string {
	s = strings.Map(func(r rune) rune {
		if r == '\'' || r == '’' {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
