package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/signcascade/internal/resilience"
	"github.com/MrWong99/signcascade/pkg/provider/embeddings/mock"
)

func TestGuardedEmbedder_Delegates(t *testing.T) {
	t.Parallel()
	inner := &mock.Provider{
		Vectors:         map[string][]float32{"world": {1, 0}},
		DimensionsValue: 2,
		ModelIDValue:    "nomic-embed-text",
	}
	g := resilience.NewGuardedEmbedder(inner, resilience.GuardConfig{})

	vec, err := g.Embed(context.Background(), "world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 1 {
		t.Errorf("vec = %v", vec)
	}
	if g.Dimensions() != 2 || g.ModelID() != "nomic-embed-text" {
		t.Errorf("Dimensions/ModelID = %d/%q", g.Dimensions(), g.ModelID())
	}
	if g.Breaker().Name() != "embeddings/nomic-embed-text" {
		t.Errorf("breaker name = %q", g.Breaker().Name())
	}
}

func TestGuardedEmbedder_OpensBreaker(t *testing.T) {
	t.Parallel()
	inner := &mock.Provider{EmbedErr: errors.New("connection refused")}
	g := resilience.NewGuardedEmbedder(inner, resilience.GuardConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})

	for range 2 {
		_, _ = g.Embed(context.Background(), "x")
	}
	_, err := g.Embed(context.Background(), "x")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if n := len(inner.Texts()); n != 2 {
		t.Errorf("inner calls = %d, want 2", n)
	}
}

func TestGuardedEmbedder_RateLimitHonoursContext(t *testing.T) {
	t.Parallel()
	inner := &mock.Provider{EmbedResult: []float32{1}}
	g := resilience.NewGuardedEmbedder(inner, resilience.GuardConfig{RateLimit: 0.001, Burst: 1})

	if _, err := g.Embed(context.Background(), "first"); err != nil {
		t.Fatalf("first Embed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := g.Embed(ctx, "second"); err == nil {
		t.Fatal("second Embed: expected rate limit error")
	}
	if n := len(inner.Texts()); n != 1 {
		t.Errorf("inner calls = %d, want 1", n)
	}
}

func TestGuardedEmbedder_Batch(t *testing.T) {
	t.Parallel()
	inner := &mock.Provider{EmbedResult: []float32{0.5}}
	g := resilience.NewGuardedEmbedder(inner, resilience.GuardConfig{RateLimit: 1000, Burst: 2})

	vecs, err := g.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Errorf("len = %d", len(vecs))
	}
}
