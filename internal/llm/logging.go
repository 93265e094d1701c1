package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// RequestEvent captures one LLM API call for the audit log.
type RequestEvent struct {
	Provider     string
	Model        string
	Purpose      string
	Streaming    bool
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// LoggingProvider is a decorator that records every LLM request, both to
// the structured log and to the event sink when one is configured.
type LoggingProvider struct {
	inner  Provider
	logger *slog.Logger
	sink   EventSink
}

// WithRequestLog wraps a Provider with request logging.
func WithRequestLog(p Provider, logger *slog.Logger, sink EventSink) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingProvider{
		inner:  p,
		logger: logger.With("component", "llm", "provider", p.Name()),
		sink:   sink,
	}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := l.inner.Generate(ctx, req)

	event := RequestEvent{
		Provider:  l.inner.Name(),
		Model:     l.inner.ModelID(),
		Purpose:   PurposeFrom(ctx),
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}
	if resp != nil {
		event.InputTokens = resp.Usage.InputTokens
		event.OutputTokens = resp.Usage.OutputTokens
		event.Model = resp.Model
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}

	l.record(ctx, event)
	return resp, err
}

func (l *LoggingProvider) GenerateStream(ctx context.Context, req Request, fn StreamFunc) error {
	start := time.Now()
	var out strings.Builder

	err := l.inner.GenerateStream(ctx, req, func(ctx context.Context, chunk string) error {
		out.WriteString(chunk)
		return fn(ctx, chunk)
	})

	event := RequestEvent{
		Provider:     l.inner.Name(),
		Model:        l.inner.ModelID(),
		Purpose:      PurposeFrom(ctx),
		Streaming:    true,
		InputTokens:  l.requestTokens(req),
		OutputTokens: l.inner.CountTokens(out.String()),
		LatencyMs:    time.Since(start).Milliseconds(),
		Success:      err == nil,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}

	l.record(ctx, event)
	return err
}

func (l *LoggingProvider) record(ctx context.Context, event RequestEvent) {
	if event.Success {
		l.logger.DebugContext(ctx, "llm request",
			"model", event.Model, "purpose", event.Purpose,
			"streaming", event.Streaming, "latency_ms", event.LatencyMs,
			"input_tokens", event.InputTokens, "output_tokens", event.OutputTokens)
	} else {
		l.logger.WarnContext(ctx, "llm request failed",
			"model", event.Model, "purpose", event.Purpose,
			"latency_ms", event.LatencyMs, "error", event.ErrorMessage)
	}

	if l.sink == nil {
		return
	}
	// Record the event but don't fail the request if logging fails.
	if sinkErr := l.sink.AppendLLMRequest(ctx, event); sinkErr != nil {
		l.logger.WarnContext(ctx, "failed to record llm request event", "error", sinkErr)
	}
}

func (l *LoggingProvider) requestTokens(req Request) int {
	total := l.inner.CountTokens(req.System)
	for _, m := range req.Messages {
		total += l.inner.CountTokens(m.Content)
	}
	return total
}

func (l *LoggingProvider) CountTokens(text string) int { return l.inner.CountTokens(text) }
func (l *LoggingProvider) Name() string                { return l.inner.Name() }
func (l *LoggingProvider) ModelID() string             { return l.inner.ModelID() }
