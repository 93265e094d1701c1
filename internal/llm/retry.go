package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryProvider is a decorator that retries transient errors with
// exponential backoff and jitter. Streams are only retried when they
// failed before delivering any chunk; a partially delivered stream is
// not restartable and its error passes through as ErrStreamInterrupted.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// WithRetry wraps a Provider with retry logic.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	return &RetryProvider{inner: p, config: cfg}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	err := r.attempt(ctx, func() error {
		var genErr error
		resp, genErr = r.inner.Generate(ctx, req)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *RetryProvider) GenerateStream(ctx context.Context, req Request, fn StreamFunc) error {
	delivered := 0
	counting := func(ctx context.Context, chunk string) error {
		delivered++
		return fn(ctx, chunk)
	}

	err := r.attempt(ctx, func() error {
		streamErr := r.inner.GenerateStream(ctx, req, counting)
		if streamErr != nil && delivered > 0 {
			return &ErrStreamInterrupted{Delivered: delivered, Err: streamErr}
		}
		return streamErr
	})
	return err
}

func (r *RetryProvider) CountTokens(text string) int { return r.inner.CountTokens(text) }
func (r *RetryProvider) Name() string                { return r.inner.Name() }
func (r *RetryProvider) ModelID() string             { return r.inner.ModelID() }

// attempt runs op up to MaxAttempts times, backing off between retryable
// failures.
func (r *RetryProvider) attempt(ctx context.Context, op func() error) error {
	var lastErr error
	invalidRetried := false

	for attempt := range r.config.MaxAttempts {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err, &invalidRetried) {
			return err
		}

		// Last attempt — don't sleep, just return the error.
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		wait := r.backoff(attempt, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return lastErr
}

// shouldRetry determines if an error is retryable.
func shouldRetry(err error, invalidRetried *bool) bool {
	// Context errors are never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// An interrupted stream cannot be re-issued.
	var interrupted *ErrStreamInterrupted
	if errors.As(err, &interrupted) {
		return false
	}

	// Max tokens is a configuration issue, not transient.
	var maxTok *ErrMaxTokensExceeded
	if errors.As(err, &maxTok) {
		return false
	}

	// Invalid response gets one retry.
	var invResp *ErrInvalidResponse
	if errors.As(err, &invResp) {
		if *invalidRetried {
			return false
		}
		*invalidRetried = true
		return true
	}

	// Rate limit and provider unavailable are retryable.
	var rl *ErrRateLimit
	if errors.As(err, &rl) {
		return true
	}
	var unavail *ErrProviderUnavailable
	if errors.As(err, &unavail) {
		return true
	}

	// Other errors (network, etc.) are treated as transient.
	return true
}

// backoff computes the wait duration for the given attempt.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	// Respect RetryAfter for rate limits.
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// Add ±20% jitter.
	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
