// Package embedding provides text embeddings over a primary/fallback
// provider pair. It mirrors the LLM gateway's failover shape but stays
// deliberately cheaper: no backoff, a short timeout, and callers are
// expected to fail open when the whole chain is down.
package embedding

import (
	"context"
	"fmt"
)

// Embedder computes a vector representation of a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// ErrUnavailable indicates every configured embedding provider failed.
// Classification fails open on this error; it is never surfaced to users.
type ErrUnavailable struct {
	Errs []error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("all %d embedding providers unavailable", len(e.Errs))
}
