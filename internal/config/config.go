// Package config provides the configuration schema, loader, hot-reload watcher
// and provider registry of the signcascade server.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog returns the matching slog level; unknown values map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Threshold is the fixed similarity threshold. The resolver field of the same
// name exists only so configs can state it; any other value is rejected.
const Threshold = 0.85

// Config is the root configuration, usually read with [Load].
type Config struct {
	LogLevel    LogLevel          `yaml:"log_level"`
	Server      ServerConfig      `yaml:"server"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Resolver    ResolverConfig    `yaml:"resolver"`
	Matcher     MatcherConfig     `yaml:"matcher"`
	Punctuation PunctuationConfig `yaml:"punctuation"`
	Transcript  TranscriptConfig  `yaml:"transcript"`
	History     HistoryConfig     `yaml:"history"`
	Media       MediaConfig       `yaml:"media"`
	Resilience  ResilienceConfig  `yaml:"resilience"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// ListenAddr is the TCP address, e.g. ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// MaxUploadBytes caps transcription uploads. Default: 100 MiB.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// MaxTextBytes caps the text of a resolve request. Default: 64 KiB.
	MaxTextBytes int64 `yaml:"max_text_bytes"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds PEM file paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the backend of each provider kind by registry name.
// STT and LLM accept ordered fallbacks; embeddings never fail over because
// the corpora are tied to one model.
type ProvidersConfig struct {
	Embeddings   ProviderEntry   `yaml:"embeddings"`
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
	STT          ProviderEntry   `yaml:"stt"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
}

// ProviderEntry is the common block of every provider.
type ProviderEntry struct {
	// Name selects the registered implementation, e.g. "openai" or "whisper".
	Name string `yaml:"name"`

	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	Model string `yaml:"model"`

	// Options holds provider-specific values, e.g. "dimensions" or "language".
	Options map[string]any `yaml:"options"`
}

// CorpusConfig points at the two reference tables.
type CorpusConfig struct {
	Sentences string `yaml:"sentences"`
	Words     string `yaml:"words"`
}

// ResolverConfig tunes the cascade.
type ResolverConfig struct {
	// Strategy is the default for requests that do not name one:
	// "sentence_first" (default) or "word_first".
	Strategy string `yaml:"strategy"`

	// WordPolicy is "raw" (default) or "filtered".
	WordPolicy string `yaml:"word_policy"`

	// Threshold may only be 0 (unset) or 0.85.
	Threshold float64 `yaml:"threshold"`

	// EmbedTimeout bounds each embedding call. Default: 10s.
	EmbedTimeout time.Duration `yaml:"embed_timeout"`

	// Concurrency caps parallel embedding calls per resolution. 1 (default)
	// resolves sequentially.
	Concurrency int `yaml:"concurrency"`

	// StopWords and KeepWords replace the built-in English lists when set.
	StopWords []string `yaml:"stop_words"`
	KeepWords []string `yaml:"keep_words"`
}

// MatcherConfig selects the nearest-neighbour backend.
type MatcherConfig struct {
	// Backend is "linear" (default) or "pgvector".
	Backend string `yaml:"backend"`

	// PostgresDSN is required for the pgvector backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Candidates is the pgvector candidate count per lookup.
	Candidates int `yaml:"candidates"`
}

// PunctuationConfig enables LLM punctuation restoration before sentence
// segmentation. It requires providers.llm.
type PunctuationConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Temperature float64 `yaml:"temperature"`
}

// TranscriptConfig tunes post-processing of transcriptions.
type TranscriptConfig struct {
	// VocabularyCorrection replaces words that sound like a word-corpus
	// identifier with that identifier's spelling.
	VocabularyCorrection bool `yaml:"vocabulary_correction"`

	// PhoneticThreshold is the Jaro-Winkler score needed for a correction.
	// Default: 0.85.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`
}

// HistoryConfig selects the history store. Without a DSN records are kept
// in memory.
type HistoryConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`

	// MemoryCapacity bounds the in-memory store. Default: 10000.
	MemoryCapacity int `yaml:"memory_capacity"`
}

// MediaConfig selects where sign videos live.
type MediaConfig struct {
	// Backend is "local" (default) or "s3".
	Backend string `yaml:"backend"`

	// Dir is the video directory of the local backend.
	Dir string `yaml:"dir"`

	S3 S3Config `yaml:"s3"`
}

// S3Config configures the S3 media backend.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// ResilienceConfig tunes the circuit breakers and the embedding rate limit.
type ResilienceConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// RateLimit is embedding calls per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}
