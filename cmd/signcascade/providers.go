package main

import (
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/signcascade/internal/app"
	"github.com/MrWong99/signcascade/internal/config"
	"github.com/MrWong99/signcascade/internal/resilience"
	"github.com/MrWong99/signcascade/pkg/provider/embeddings"
	ollamaembed "github.com/MrWong99/signcascade/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/signcascade/pkg/provider/embeddings/openai"
	"github.com/MrWong99/signcascade/pkg/provider/llm"
	"github.com/MrWong99/signcascade/pkg/provider/llm/anyllm"
	"github.com/MrWong99/signcascade/pkg/provider/stt"
	"github.com/MrWong99/signcascade/pkg/provider/stt/deepgram"
	"github.com/MrWong99/signcascade/pkg/provider/stt/whisper"
)

// registerBuiltinProviders wires the built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// LLMs go through any-llm. Local servers take a base URL, hosted ones an
	// API key; both are optional here and validated by the library.
	for _, name := range config.ValidProviderNames["llm"] {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang, ok := entry.OptionString("language"); ok {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang, ok := entry.OptionString("language"); ok {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if dims, ok := entry.OptionInt("dimensions"); ok {
			opts = append(opts, oaembed.WithDimensions(dims))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if dims, ok := entry.OptionInt("dimensions"); ok {
			opts = append(opts, ollamaembed.WithDimensions(dims))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})
}

// buildProviders instantiates the providers named in cfg. STT and LLM
// fallbacks are chained behind their primary; embeddings never fail over
// because the corpora were embedded with one specific model.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	fb := resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.Resilience.MaxFailures,
		ResetTimeout: cfg.Resilience.ResetTimeout,
	}}

	emb, err := create("embeddings", cfg.Providers.Embeddings, reg.CreateEmbeddings)
	if err != nil {
		return nil, err
	}
	if emb == nil {
		return nil, errors.New("providers.embeddings is required")
	}
	ps.Embeddings = emb

	if primary, err := create("llm", cfg.Providers.LLM, reg.CreateLLM); err != nil {
		return nil, err
	} else if primary != nil {
		group := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, fb)
		for _, entry := range cfg.Providers.LLMFallbacks {
			p, err := create("llm", entry, reg.CreateLLM)
			if err != nil {
				return nil, err
			}
			if p != nil {
				group.AddFallback(entry.Name, p)
			}
		}
		ps.LLM = group
	}

	if primary, err := create("stt", cfg.Providers.STT, reg.CreateSTT); err != nil {
		return nil, err
	} else if primary != nil {
		group := resilience.NewSTTFallback(primary, cfg.Providers.STT.Name, fb)
		for _, entry := range cfg.Providers.STTFallbacks {
			t, err := create("stt", entry, reg.CreateSTT)
			if err != nil {
				return nil, err
			}
			if t != nil {
				group.AddFallback(entry.Name, t)
			}
		}
		ps.STT = group
		ps.STTName = cfg.Providers.STT.Name
	}
	return ps, nil
}

// create returns the zero value for an unconfigured or unregistered entry.
func create[T any](kind string, entry config.ProviderEntry, factory func(config.ProviderEntry) (T, error)) (T, error) {
	var zero T
	if entry.Name == "" {
		return zero, nil
	}
	p, err := factory(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("provider not registered, skipping", "kind", kind, "name", entry.Name)
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
	}
	slog.Info("provider created", "kind", kind, "name", entry.Name, "model", entry.Model)
	return p, nil
}
