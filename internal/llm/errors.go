package llm

import (
	"encoding/json"
	"fmt"
	"time"
)

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates a single provider is down, timing out,
// or unreachable.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrAllProvidersUnavailable indicates every configured provider was
// exhausted, retries included. The caller surfaces a fixed user-facing
// message; the per-provider errors are kept for the logs.
type ErrAllProvidersUnavailable struct {
	Attempts []ProviderAttempt
}

// ProviderAttempt records the terminal error of one provider in the chain.
type ProviderAttempt struct {
	Provider string
	Err      error
}

func (e *ErrAllProvidersUnavailable) Error() string {
	if len(e.Attempts) == 0 {
		return "all LLM providers unavailable"
	}
	return fmt.Sprintf("all %d LLM providers unavailable (last: %s: %v)",
		len(e.Attempts), e.Attempts[len(e.Attempts)-1].Provider, e.Attempts[len(e.Attempts)-1].Err)
}

// ErrStreamInterrupted indicates a stream failed after at least one chunk
// was already delivered. Such a stream cannot be restarted, so neither the
// retry decorator nor the failover chain will re-attempt it.
type ErrStreamInterrupted struct {
	Delivered int // chunks delivered before the failure
	Err       error
}

func (e *ErrStreamInterrupted) Error() string {
	return fmt.Sprintf("stream interrupted after %d chunks: %v", e.Delivered, e.Err)
}

func (e *ErrStreamInterrupted) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the LLM returned content that does not
// conform to the requested schema.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded indicates the response was truncated because it
// hit the MaxTokens limit.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}
