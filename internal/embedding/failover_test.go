package embedding

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChain_PrimarySucceeds(t *testing.T) {
	primary := NewMockEmbedder()
	primary.Pin("hello", []float32{1, 0, 0})
	secondary := NewMockEmbedder()
	chain := NewChain(nil, time.Second, primary, secondary)

	vec, err := chain.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 1 {
		t.Fatalf("unexpected vector: %v", vec)
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary should not be called, got %d calls", secondary.CallCount())
	}
}

func TestChain_FallsBack(t *testing.T) {
	primary := NewMockEmbedder()
	primary.FailNext(errors.New("quota exceeded"))
	secondary := NewMockEmbedder()
	secondary.Pin("hello", []float32{0, 1, 0})
	chain := NewChain(nil, time.Second, primary, secondary)

	vec, err := chain.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[1] != 1 {
		t.Fatalf("expected fallback vector, got %v", vec)
	}
}

func TestChain_AllDown(t *testing.T) {
	primary := NewMockEmbedder()
	primary.FailNext(errors.New("down"))
	secondary := NewMockEmbedder()
	secondary.FailNext(errors.New("also down"))
	chain := NewChain(nil, time.Second, primary, secondary)

	_, err := chain.Embed(context.Background(), "hello")
	var unavail *ErrUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrUnavailable, got: %v", err)
	}
	if len(unavail.Errs) != 2 {
		t.Fatalf("expected 2 recorded errors, got %d", len(unavail.Errs))
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	a1, _ := m.Embed(context.Background(), "same text")
	a2, _ := m.Embed(context.Background(), "same text")
	b, _ := m.Embed(context.Background(), "different text")

	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("equal inputs produced different vectors at %d: %v vs %v", i, a1, a2)
		}
	}

	same := true
	for i := range a1 {
		if a1[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different inputs produced identical vectors")
	}
}
