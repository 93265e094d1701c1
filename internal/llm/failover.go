package llm

import (
	"context"
	"errors"
	"log/slog"
)

// FailoverChain tries providers in configured order. Each provider is
// expected to already carry its own retry decorator; the chain only
// advances after a provider's retries are exhausted. A stream that
// failed mid-delivery is never re-issued against the next provider.
type FailoverChain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewFailoverChain builds a chain over providers, primary first.
func NewFailoverChain(logger *slog.Logger, providers ...Provider) *FailoverChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverChain{providers: providers, logger: logger.With("component", "llm")}
}

func (c *FailoverChain) GenerateStream(ctx context.Context, req Request, fn StreamFunc) error {
	var attempts []ProviderAttempt

	for _, p := range c.providers {
		err := p.GenerateStream(ctx, req, fn)
		if err == nil {
			return nil
		}
		if !c.advance(ctx, p, err) {
			return err
		}
		attempts = append(attempts, ProviderAttempt{Provider: p.Name(), Err: err})
	}

	return &ErrAllProvidersUnavailable{Attempts: attempts}
}

func (c *FailoverChain) Generate(ctx context.Context, req Request) (*Response, error) {
	var attempts []ProviderAttempt

	for _, p := range c.providers {
		resp, err := p.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !c.advance(ctx, p, err) {
			return nil, err
		}
		attempts = append(attempts, ProviderAttempt{Provider: p.Name(), Err: err})
	}

	return nil, &ErrAllProvidersUnavailable{Attempts: attempts}
}

// advance reports whether the chain should move on to the next provider
// after err. Cancellation and interrupted streams end the whole call.
func (c *FailoverChain) advance(ctx context.Context, p Provider, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var interrupted *ErrStreamInterrupted
	if errors.As(err, &interrupted) {
		return false
	}
	c.logger.WarnContext(ctx, "provider exhausted, failing over",
		"provider", p.Name(), "model", p.ModelID(), "error", err)
	return true
}

// CountTokens delegates to the primary provider's accounting.
func (c *FailoverChain) CountTokens(text string) int {
	if len(c.providers) == 0 {
		return approxTokens(text)
	}
	return c.providers[0].CountTokens(text)
}

func (c *FailoverChain) Name() string {
	if len(c.providers) == 0 {
		return "none"
	}
	return c.providers[0].Name()
}

func (c *FailoverChain) ModelID() string {
	if len(c.providers) == 0 {
		return "none"
	}
	return c.providers[0].ModelID()
}
