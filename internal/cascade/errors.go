package cascade

import (
	"fmt"

	"github.com/MrWong99/signcascade/pkg/types"
)

// EmbeddingProviderError reports a failed embedding of one text unit. It
// wraps the provider error, a context.DeadlineExceeded from the per-call
// timeout, or a *match.DimensionError when the returned vector does not fit
// the corpus.
type EmbeddingProviderError struct {
	Text        string
	Granularity types.Granularity
	Err         error
}

func (e *EmbeddingProviderError) Error() string {
	return fmt.Sprintf("cascade: embed %s %q: %v", e.Granularity, excerpt(e.Text, 48), e.Err)
}

func (e *EmbeddingProviderError) Unwrap() error { return e.Err }

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
