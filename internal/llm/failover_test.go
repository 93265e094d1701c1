package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestFailover_PrimarySucceeds(t *testing.T) {
	primary := NewMockProvider(MockResponse{Content: json.RawMessage(`primary says hi`)})
	secondary := NewMockProvider(MockResponse{Content: json.RawMessage(`unused`)})
	chain := NewFailoverChain(nil, primary, secondary)

	var got string
	err := chain.GenerateStream(context.Background(), Request{}, func(_ context.Context, chunk string) error {
		got += chunk
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "primary says hi" {
		t.Fatalf("unexpected output: %q", got)
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary should not be called, got %d calls", secondary.CallCount())
	}
}

func TestFailover_AdvancesToSecondary(t *testing.T) {
	primary := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})
	secondary := NewMockProvider(MockResponse{Content: json.RawMessage(`backup here`)})
	chain := NewFailoverChain(nil, primary, secondary)

	var got string
	err := chain.GenerateStream(context.Background(), Request{}, func(_ context.Context, chunk string) error {
		got += chunk
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "backup here" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestFailover_AllExhausted(t *testing.T) {
	primary := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})
	secondary := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("also down")}})
	chain := NewFailoverChain(nil, primary, secondary)

	err := chain.GenerateStream(context.Background(), Request{}, func(_ context.Context, chunk string) error {
		t.Fatal("no chunks expected")
		return nil
	})
	var all *ErrAllProvidersUnavailable
	if !errors.As(err, &all) {
		t.Fatalf("expected ErrAllProvidersUnavailable, got: %v", err)
	}
	if len(all.Attempts) != 2 {
		t.Fatalf("expected 2 recorded attempts, got %d", len(all.Attempts))
	}
}

func TestFailover_RetriedProvidersExhaustBeforeAdvancing(t *testing.T) {
	// Both providers time out on every attempt; with 3 retries each, the
	// chain makes 6 calls total and then reports full exhaustion.
	primary := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("timeout")}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("timeout")}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("timeout")}},
	)
	secondary := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("timeout")}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("timeout")}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("timeout")}},
	)
	chain := NewFailoverChain(nil,
		WithRetry(primary, retryConfig()),
		WithRetry(secondary, retryConfig()),
	)

	_, err := chain.Generate(context.Background(), Request{})
	var all *ErrAllProvidersUnavailable
	if !errors.As(err, &all) {
		t.Fatalf("expected ErrAllProvidersUnavailable, got: %v", err)
	}
	if primary.CallCount() != 3 {
		t.Fatalf("expected 3 primary attempts, got %d", primary.CallCount())
	}
	if secondary.CallCount() != 3 {
		t.Fatalf("expected 3 secondary attempts, got %d", secondary.CallCount())
	}
}

func TestFailover_InterruptedStreamDoesNotFailOver(t *testing.T) {
	primary := NewMockProvider(MockResponse{Content: json.RawMessage(`one two three`)})
	secondary := NewMockProvider(MockResponse{Content: json.RawMessage(`unused`)})
	chain := NewFailoverChain(nil,
		WithRetry(primary, retryConfig()),
		WithRetry(secondary, retryConfig()),
	)

	chunks := 0
	err := chain.GenerateStream(context.Background(), Request{}, func(_ context.Context, chunk string) error {
		chunks++
		if chunks == 2 {
			return &ErrProviderUnavailable{Err: errors.New("connection reset")}
		}
		return nil
	})

	var interrupted *ErrStreamInterrupted
	if !errors.As(err, &interrupted) {
		t.Fatalf("expected ErrStreamInterrupted, got: %v", err)
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary must not be tried after partial delivery, got %d calls", secondary.CallCount())
	}
}
