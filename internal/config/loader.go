package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the built-in provider names per kind. Unknown
// names only produce a warning since third-party factories may be registered.
var ValidProviderNames = map[string][]string{
	"embeddings": {"openai", "ollama"},
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":        {"whisper", "deepgram"},
}

// Defaults.
const (
	DefaultListenAddr     = ":8080"
	DefaultMaxUploadBytes = 100 << 20
	DefaultMaxTextBytes   = 64 << 10
	DefaultEmbedTimeout   = 10 * time.Second
	DefaultMemoryCapacity = 10000
)

// Load reads, expands, decodes, defaults and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r. ${VAR} and $VAR references are
// replaced with environment values before decoding; unknown keys are errors.
// An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(raw)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Server.MaxTextBytes <= 0 {
		cfg.Server.MaxTextBytes = DefaultMaxTextBytes
	}
	if cfg.Resolver.Strategy == "" {
		cfg.Resolver.Strategy = "sentence_first"
	}
	if cfg.Resolver.WordPolicy == "" {
		cfg.Resolver.WordPolicy = "raw"
	}
	if cfg.Resolver.Threshold == 0 {
		cfg.Resolver.Threshold = Threshold
	}
	if cfg.Resolver.EmbedTimeout <= 0 {
		cfg.Resolver.EmbedTimeout = DefaultEmbedTimeout
	}
	if cfg.Resolver.Concurrency <= 0 {
		cfg.Resolver.Concurrency = 1
	}
	if cfg.Matcher.Backend == "" {
		cfg.Matcher.Backend = "linear"
	}
	if cfg.Transcript.PhoneticThreshold == 0 {
		cfg.Transcript.PhoneticThreshold = Threshold
	}
	if cfg.History.MemoryCapacity <= 0 {
		cfg.History.MemoryCapacity = DefaultMemoryCapacity
	}
	if cfg.Media.Backend == "" {
		cfg.Media.Backend = "local"
	}
	if cfg.Media.Backend == "local" && cfg.Media.Dir == "" {
		cfg.Media.Dir = "videos"
	}
	if cfg.Resilience.MaxFailures <= 0 {
		cfg.Resilience.MaxFailures = 5
	}
	if cfg.Resilience.ResetTimeout <= 0 {
		cfg.Resilience.ResetTimeout = 30 * time.Second
	}
}

// Validate returns every problem found, joined.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		add("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel)
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		add("server.tls requires cert_file and key_file")
	}

	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	for i, e := range cfg.Providers.LLMFallbacks {
		if e.Name == "" {
			add("providers.llm_fallbacks[%d].name is required", i)
		}
		validateProviderName("llm", e.Name)
	}
	for i, e := range cfg.Providers.STTFallbacks {
		if e.Name == "" {
			add("providers.stt_fallbacks[%d].name is required", i)
		}
		validateProviderName("stt", e.Name)
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		add("providers.llm_fallbacks requires providers.llm")
	}
	if len(cfg.Providers.STTFallbacks) > 0 && cfg.Providers.STT.Name == "" {
		add("providers.stt_fallbacks requires providers.stt")
	}

	switch cfg.Resolver.Strategy {
	case "", "sentence_first", "word_first":
	default:
		add("resolver.strategy %q is invalid; valid values: sentence_first, word_first", cfg.Resolver.Strategy)
	}
	switch cfg.Resolver.WordPolicy {
	case "", "raw", "filtered":
	default:
		add("resolver.word_policy %q is invalid; valid values: raw, filtered", cfg.Resolver.WordPolicy)
	}
	if t := cfg.Resolver.Threshold; t != 0 && t != Threshold {
		add("resolver.threshold is fixed at %.2f, got %v", Threshold, t)
	}
	if cfg.Resolver.Concurrency < 0 {
		add("resolver.concurrency must not be negative")
	}

	switch cfg.Matcher.Backend {
	case "", "linear":
	case "pgvector":
		if cfg.Matcher.PostgresDSN == "" {
			add("matcher.postgres_dsn is required for the pgvector backend")
		}
	default:
		add("matcher.backend %q is invalid; valid values: linear, pgvector", cfg.Matcher.Backend)
	}

	if cfg.Punctuation.Enabled && cfg.Providers.LLM.Name == "" {
		add("punctuation.enabled requires providers.llm")
	}
	if t := cfg.Transcript.PhoneticThreshold; t < 0 || t > 1 {
		add("transcript.phonetic_threshold %v is out of range [0, 1]", t)
	}

	switch cfg.Media.Backend {
	case "", "local":
	case "s3":
		if cfg.Media.S3.Bucket == "" {
			add("media.s3.bucket is required for the s3 backend")
		}
	default:
		add("media.backend %q is invalid; valid values: local, s3", cfg.Media.Backend)
	}

	if cfg.Resilience.RateLimit < 0 {
		add("resilience.rate_limit must not be negative")
	}

	if cfg.Providers.Embeddings.Name != "" && (cfg.Corpus.Sentences == "" || cfg.Corpus.Words == "") {
		slog.Warn("providers.embeddings is set but corpus paths are missing; resolution will be unavailable")
	}
	return errors.Join(errs...)
}

func validateProviderName(kind, name string) {
	if name == "" || slices.Contains(ValidProviderNames[kind], name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", ValidProviderNames[kind],
	)
}
