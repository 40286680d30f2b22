// Package app wires the signcascade subsystems into a running application.
//
// New builds every subsystem from the config unless a test double is
// injected with an Option. The App then serves the text and audio pipelines
// (transcribe, correct, resolve, record) and tears everything down in
// Shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/signcascade/internal/cascade"
	"github.com/MrWong99/signcascade/internal/config"
	"github.com/MrWong99/signcascade/internal/corpus"
	"github.com/MrWong99/signcascade/internal/health"
	"github.com/MrWong99/signcascade/internal/history"
	historypg "github.com/MrWong99/signcascade/internal/history/postgres"
	"github.com/MrWong99/signcascade/internal/match"
	"github.com/MrWong99/signcascade/internal/match/pgvec"
	"github.com/MrWong99/signcascade/internal/media"
	"github.com/MrWong99/signcascade/internal/observe"
	"github.com/MrWong99/signcascade/internal/punct"
	"github.com/MrWong99/signcascade/internal/resilience"
	"github.com/MrWong99/signcascade/internal/textnorm"
	"github.com/MrWong99/signcascade/internal/transcript"
	"github.com/MrWong99/signcascade/internal/transcript/phonetic"
	"github.com/MrWong99/signcascade/pkg/provider/embeddings"
	"github.com/MrWong99/signcascade/pkg/provider/llm"
	"github.com/MrWong99/signcascade/pkg/provider/stt"
	"github.com/MrWong99/signcascade/pkg/types"
)

// Providers holds one value per provider kind. Embeddings is required; a nil
// LLM disables punctuation restoration and a nil STT disables transcription.
type Providers struct {
	Embeddings embeddings.Provider
	LLM        llm.Provider
	STT        stt.Transcriber

	// STTName labels transcription metrics. Default: "stt".
	STTName string
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	levelVar  *slog.LevelVar

	embedder  *resilience.GuardedEmbedder
	corpora   *corpus.Set
	norm      *textnorm.Normalizer
	matcher   match.Matcher
	punct     *switchPunctuator
	resolver  *cascade.Resolver
	corrector *transcript.Corrector
	history   history.Store
	media     media.Store
	health    *health.Handler
	checkers  []health.Checker

	strategy atomic.Value // cascade.Strategy

	closers  []func() error
	stopOnce sync.Once
}

// Option injects a subsystem instead of building it from config.
type Option func(*App)

// WithCorpora uses set instead of loading the configured CSV files.
func WithCorpora(set *corpus.Set) Option {
	return func(a *App) { a.corpora = set }
}

// WithNormalizer uses n instead of the default English normalizer.
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(a *App) { a.norm = n }
}

// WithMatcher uses m instead of the configured matcher backend.
func WithMatcher(m match.Matcher) Option {
	return func(a *App) { a.matcher = m }
}

// WithHistory uses s instead of the configured history store.
func WithHistory(s history.Store) Option {
	return func(a *App) { a.history = s }
}

// WithMedia uses s instead of the configured video store.
func WithMedia(s media.Store) Option {
	return func(a *App) { a.media = s }
}

// WithMetrics records into m instead of observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets config reloads change the log level through v.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = v }
}

// New builds the application. Corpus load errors are returned as
// *corpus.CorpusLoadError and are fatal.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Embeddings == nil {
		return nil, errors.New("app: an embeddings provider is required")
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.providers.STTName == "" {
		a.providers.STTName = "stt"
	}

	a.embedder = resilience.NewGuardedEmbedder(providers.Embeddings, resilience.GuardConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Resilience.MaxFailures,
			ResetTimeout: cfg.Resilience.ResetTimeout,
		},
		RateLimit: cfg.Resilience.RateLimit,
		Burst:     cfg.Resilience.Burst,
	})
	a.checkers = append(a.checkers, health.Checker{Name: "embeddings", Check: a.checkEmbedder})

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"corpora", a.initCorpora},
		{"normalizer", a.initNormalizer},
		{"matcher", a.initMatcher},
		{"resolver", a.initResolver},
		{"transcript", a.initCorrector},
		{"history", a.initHistory},
		{"media", a.initMedia},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			_ = a.Shutdown(context.Background())
			return nil, fmt.Errorf("app: init %s: %w", s.name, err)
		}
	}

	a.health = health.New(a.checkers...)
	a.health.SetReady(true)
	return a, nil
}

func (a *App) checkEmbedder(context.Context) error {
	if a.embedder.Breaker().State() == resilience.StateOpen {
		return resilience.ErrCircuitOpen
	}
	return nil
}

func (a *App) initCorpora(ctx context.Context) error {
	if a.corpora != nil {
		return nil
	}
	dim := a.embedder.Dimensions()
	if dim == 0 {
		d, err := embeddings.Probe(ctx, a.embedder)
		if err != nil {
			return &corpus.CorpusLoadError{
				Path:   a.cfg.Corpus.Sentences,
				Kind:   types.Sentence,
				Reason: "embedding dimension unknown",
				Err:    err,
			}
		}
		dim = d
	}
	set, err := corpus.LoadSet(a.cfg.Corpus.Sentences, a.cfg.Corpus.Words, dim)
	if err != nil {
		return err
	}
	a.corpora = set
	return nil
}

func (a *App) initNormalizer(context.Context) error {
	if a.norm != nil {
		return nil
	}
	var opts []textnorm.Option
	if len(a.cfg.Resolver.StopWords) > 0 {
		opts = append(opts, textnorm.WithStopWords(a.cfg.Resolver.StopWords))
	}
	if len(a.cfg.Resolver.KeepWords) > 0 {
		opts = append(opts, textnorm.WithKeepWords(a.cfg.Resolver.KeepWords))
	}
	n, err := textnorm.New(opts...)
	if err != nil {
		return err
	}
	a.norm = n
	return nil
}

func (a *App) initMatcher(ctx context.Context) error {
	if a.matcher != nil {
		return nil
	}
	if a.cfg.Matcher.Backend != "pgvector" {
		a.matcher = match.Linear{}
		return nil
	}
	var opts []pgvec.Option
	if a.cfg.Matcher.Candidates > 0 {
		opts = append(opts, pgvec.WithCandidates(a.cfg.Matcher.Candidates))
	}
	m, err := pgvec.New(ctx, a.cfg.Matcher.PostgresDSN, a.corpora.Sentences.Dim(), opts...)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { m.Close(); return nil })
	for _, c := range []*corpus.Corpus{a.corpora.Sentences, a.corpora.Words} {
		if err := m.Sync(ctx, c); err != nil {
			return err
		}
	}
	a.matcher = m
	a.checkers = append(a.checkers, health.Checker{Name: "matcher", Check: m.Ping})
	return nil
}

func (a *App) initResolver(context.Context) error {
	def, err := cascade.ParseStrategy(a.cfg.Resolver.Strategy, cascade.SentenceFirst)
	if err != nil {
		return err
	}
	policy, err := cascade.ParseWordPolicy(a.cfg.Resolver.WordPolicy)
	if err != nil {
		return err
	}
	a.strategy.Store(def)

	a.punct = &switchPunctuator{}
	if a.providers.LLM != nil {
		restorer, err := punct.NewLLM(a.providers.LLM,
			punct.WithTemperature(a.cfg.Punctuation.Temperature),
			punct.WithMetrics(a.metrics),
		)
		if err != nil {
			return err
		}
		a.punct.restorer = restorer
	}
	a.punct.enabled.Store(a.cfg.Punctuation.Enabled)

	r, err := cascade.New(a.embedder, a.corpora, a.norm,
		cascade.WithStrategy(def),
		cascade.WithWordPolicy(policy),
		cascade.WithPunctuator(a.punct),
		cascade.WithEmbedTimeout(a.cfg.Resolver.EmbedTimeout),
		cascade.WithConcurrency(a.cfg.Resolver.Concurrency),
		cascade.WithMetrics(a.metrics),
		cascade.WithMatcher(a.matcher),
	)
	if err != nil {
		return err
	}
	a.resolver = r
	return nil
}

func (a *App) initCorrector(context.Context) error {
	if !a.cfg.Transcript.VocabularyCorrection {
		return nil
	}
	ids := make([]string, 0, a.corpora.Words.Len())
	for _, e := range a.corpora.Words.All() {
		ids = append(ids, e.ID)
	}
	a.corrector = transcript.NewCorrector(
		transcript.VocabularyFromIDs(ids),
		phonetic.WithThreshold(a.cfg.Transcript.PhoneticThreshold),
	)
	return nil
}

func (a *App) initHistory(ctx context.Context) error {
	if a.history != nil {
		return nil
	}
	if a.cfg.History.PostgresDSN == "" {
		a.history = history.NewMemoryStore(a.cfg.History.MemoryCapacity)
		return nil
	}
	s, err := historypg.New(ctx, a.cfg.History.PostgresDSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { s.Close(); return nil })
	a.checkers = append(a.checkers, health.Checker{Name: "history", Check: s.Ping})
	a.history = s
	return nil
}

func (a *App) initMedia(ctx context.Context) error {
	if a.media != nil {
		return nil
	}
	switch a.cfg.Media.Backend {
	case "s3":
		s3cfg := a.cfg.Media.S3
		s, err := media.NewS3(ctx, media.S3Config{
			Bucket:          s3cfg.Bucket,
			Prefix:          s3cfg.Prefix,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			PathStyle:       s3cfg.PathStyle,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
		})
		if err != nil {
			return err
		}
		a.media = s
	default:
		l, err := media.NewLocal(a.cfg.Media.Dir)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("video directory missing; video requests will fail as unavailable", "dir", a.cfg.Media.Dir)
			return nil
		}
		if err != nil {
			return err
		}
		a.closers = append(a.closers, l.Close)
		a.media = l
	}
	return nil
}

// Health returns the probe handler.
func (a *App) Health() *health.Handler { return a.health }

// Resolver returns the cascade resolver.
func (a *App) Resolver() *cascade.Resolver { return a.resolver }

// Corpora returns the loaded reference corpora.
func (a *App) Corpora() *corpus.Set { return a.corpora }

// DefaultStrategy returns the strategy used when a request names none.
func (a *App) DefaultStrategy() cascade.Strategy {
	return a.strategy.Load().(cascade.Strategy)
}

// ApplyConfig applies the hot-reloadable part of a changed config and logs
// the sections that need a restart.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.StrategyChanged {
		s, err := cascade.ParseStrategy(d.NewStrategy, cascade.SentenceFirst)
		if err != nil {
			slog.Warn("ignoring resolver.strategy change", "err", err)
		} else {
			a.strategy.Store(s)
			slog.Info("default strategy changed", "strategy", s)
		}
	}
	if d.PunctuationChanged {
		if d.PunctuationEnabled && a.punct.restorer == nil {
			slog.Warn("punctuation enabled but no LLM provider was configured at startup")
		}
		a.punct.enabled.Store(d.PunctuationEnabled)
		slog.Info("punctuation restoration toggled", "enabled", d.PunctuationEnabled)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// Shutdown runs the closers in reverse order of creation. Remaining closers
// are skipped once ctx is done.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		if a.health != nil {
			a.health.SetReady(false)
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if ctx.Err() != nil {
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				err = ctx.Err()
				return
			}
			if cerr := a.closers[i](); cerr != nil {
				slog.Warn("closer error", "index", i, "err", cerr)
			}
		}
	})
	return err
}

// switchPunctuator lets reloads turn punctuation restoration on and off.
type switchPunctuator struct {
	enabled  atomic.Bool
	restorer punct.Restorer
}

func (s *switchPunctuator) Restore(ctx context.Context, text string) (string, error) {
	if s.restorer == nil || !s.enabled.Load() {
		return text, nil
	}
	return s.restorer.Restore(ctx, text)
}
