package llm

import (
	"context"
	"fmt"
	"log/slog"
)

// EventSink records each LLM request for auditing. Implemented by the
// store's llm_request event repo; a nil sink disables request logging.
type EventSink interface {
	AppendLLMRequest(ctx context.Context, data RequestEvent) error
}

// NewGateway creates the provider failover chain from configuration.
// Each backend is wrapped with logging and retry middleware before the
// chain: caller → chain → retry → logging → backend.
func NewGateway(ctx context.Context, cfg Config, logger *slog.Logger, sink EventSink) (Provider, error) {
	names := cfg.ConfiguredProviders()
	if len(names) == 0 {
		return nil, fmt.Errorf("no LLM provider configured: set ANTHROPIC_API_KEY, OPENAI_API_KEY, or GEMINI_API_KEY")
	}

	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		base, err := newBackend(ctx, name, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing %s provider: %w", name, err)
		}
		logged := WithRequestLog(base, logger, sink)
		providers = append(providers, WithRetry(logged, cfg.Retry))
	}

	return NewFailoverChain(logger, providers...), nil
}

func newBackend(ctx context.Context, name string, cfg Config) (Provider, error) {
	switch name {
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		return NewGeminiProvider(ctx, cfg.Gemini)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", name)
	}
}
