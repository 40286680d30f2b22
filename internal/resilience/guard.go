package resilience

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/MrWong99/signcascade/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*GuardedEmbedder)(nil)

// GuardConfig tunes a [GuardedEmbedder].
type GuardConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// RateLimit is the sustained number of embed calls per second. Zero
	// disables limiting.
	RateLimit float64

	// Burst is the number of calls allowed at once. Defaults to 1 when a rate
	// limit is set.
	Burst int
}

// GuardedEmbedder wraps an embeddings.Provider with a circuit breaker and an
// optional token-bucket rate limiter. Waiting for a token honours ctx, so the
// per-call embed timeout also bounds time spent throttled.
type GuardedEmbedder struct {
	inner   embeddings.Provider
	breaker *CircuitBreaker
	limiter *rate.Limiter
}

// NewGuardedEmbedder wraps p.
func NewGuardedEmbedder(p embeddings.Provider, cfg GuardConfig) *GuardedEmbedder {
	cb := cfg.CircuitBreaker
	if cb.Name == "" {
		cb.Name = "embeddings/" + p.ModelID()
	}
	g := &GuardedEmbedder{inner: p, breaker: NewCircuitBreaker(cb)}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return g
}

// Breaker exposes the breaker for health reporting.
func (g *GuardedEmbedder) Breaker() *CircuitBreaker { return g.breaker }

func (g *GuardedEmbedder) wait(ctx context.Context, n int) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.WaitN(ctx, min(n, g.limiter.Burst())); err != nil {
		return fmt.Errorf("resilience: rate limit: %w", err)
	}
	return nil
}

// Embed implements embeddings.Provider.
func (g *GuardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := g.wait(ctx, 1); err != nil {
		return nil, err
	}
	var vec []float32
	err := g.breaker.Execute(func() error {
		var err error
		vec, err = g.inner.Embed(ctx, text)
		return err
	})
	return vec, err
}

// EmbedBatch implements embeddings.Provider. A batch takes one token per text,
// capped at the burst size.
func (g *GuardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := g.wait(ctx, len(texts)); err != nil {
		return nil, err
	}
	var vecs [][]float32
	err := g.breaker.Execute(func() error {
		var err error
		vecs, err = g.inner.EmbedBatch(ctx, texts)
		return err
	})
	return vecs, err
}

// Dimensions implements embeddings.Provider.
func (g *GuardedEmbedder) Dimensions() int { return g.inner.Dimensions() }

// ModelID implements embeddings.Provider.
func (g *GuardedEmbedder) ModelID() string { return g.inner.ModelID() }
