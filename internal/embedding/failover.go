package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Chain tries embedders in order and returns the first success. Unlike
// the LLM failover chain there is no per-provider backoff: embeddings
// sit on the hot path of every turn, and the caller degrades gracefully
// when the chain fails.
type Chain struct {
	embedders []Embedder
	timeout   time.Duration
	logger    *slog.Logger
}

// NewChain builds an embedder chain, primary first.
func NewChain(logger *slog.Logger, timeout time.Duration, embedders ...Embedder) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		embedders: embedders,
		timeout:   timeout,
		logger:    logger.With("component", "embedding"),
	}
}

// NewChainFromConfig builds the embedder chain from configuration.
func NewChainFromConfig(ctx context.Context, cfg Config, logger *slog.Logger) (*Chain, error) {
	names := cfg.ConfiguredProviders()
	if len(names) == 0 {
		return nil, fmt.Errorf("no embedding provider configured")
	}

	embedders := make([]Embedder, 0, len(names))
	for _, name := range names {
		var (
			e   Embedder
			err error
		)
		switch name {
		case "openai":
			e, err = NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		case "gemini":
			e, err = NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		case "mock":
			e = NewMockEmbedder()
		default:
			err = fmt.Errorf("unknown embedding provider: %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("initializing %s embedder: %w", name, err)
		}
		embedders = append(embedders, e)
	}

	return NewChain(logger, cfg.Timeout, embedders...), nil
}

func (c *Chain) Embed(ctx context.Context, text string) ([]float32, error) {
	var errs []error

	for _, e := range c.embedders {
		vec, err := c.embedOne(ctx, e, text)
		if err == nil {
			return vec, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		c.logger.WarnContext(ctx, "embedder failed, trying next",
			"embedder", e.Name(), "error", err)
		errs = append(errs, err)
	}

	return nil, &ErrUnavailable{Errs: errs}
}

func (c *Chain) embedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return e.Embed(ctx, text)
}

func (c *Chain) Name() string {
	if len(c.embedders) == 0 {
		return "none"
	}
	return c.embedders[0].Name()
}
