package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/signcascade/internal/observe"
)

// ErrAllFailed is returned when every entry of a [FallbackGroup] failed or
// was skipped by its breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// FallbackConfig is applied to the breaker of every entry.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary and optional fallbacks of one provider type.
// Entries are tried in registration order. Register every entry before the
// group is used concurrently.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup returns a group whose first entry is primary.
func NewFallbackGroup[T any](primary T, name string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.AddFallback(name, primary)
	return g
}

// AddFallback appends an entry.
func (g *FallbackGroup[T]) AddFallback(name string, value T) {
	cb := g.cfg.CircuitBreaker
	cb.Name = name
	g.entries = append(g.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cb),
	})
}

// Len returns the number of entries.
func (g *FallbackGroup[T]) Len() int { return len(g.entries) }

// Primary returns the first entry.
func (g *FallbackGroup[T]) Primary() T { return g.entries[0].value }

// Call runs fn against each entry until one succeeds. It stops early when ctx
// is done, returning the context error. When every entry fails the result
// wraps [ErrAllFailed] together with the last error.
func Call[T, R any](ctx context.Context, g *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	log := observe.Logger(ctx)
	for i := range g.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		e := &g.entries[i]
		var out R
		err := e.breaker.Execute(func() error {
			var err error
			out, err = fn(ctx, e.value)
			return err
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			log.Debug("provider skipped, circuit open", "provider", e.name)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, err
		}
		if i < len(g.entries)-1 {
			log.Warn("provider failed, trying next", "provider", e.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
