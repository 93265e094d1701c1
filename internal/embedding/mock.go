package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// MockEmbedder is a deterministic Embedder for testing. Vectors can be
// pinned per input text; unpinned inputs get a stable hash-derived
// vector, so equal texts always embed equally and different texts almost
// always differ.
type MockEmbedder struct {
	mu     sync.Mutex
	pinned map[string][]float32
	errs   []error
	Calls  []string
}

// NewMockEmbedder creates an empty MockEmbedder.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{pinned: make(map[string][]float32)}
}

// Pin fixes the vector returned for text.
func (m *MockEmbedder) Pin(text string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinned[text] = vec
}

// FailNext queues errors to be returned, FIFO, before any embedding.
func (m *MockEmbedder) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, text)

	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}

	if vec, ok := m.pinned[text]; ok {
		return vec, nil
	}
	return hashVector(text, 8), nil
}

func (m *MockEmbedder) Name() string { return "mock" }

// CallCount returns the number of Embed calls made.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// hashVector derives a unit vector from text. Deterministic across runs.
func hashVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	var norm float64
	for i := range dim {
		h := fnv.New32a()
		h.Write([]byte(text))
		h.Write([]byte{byte(i)})
		v := float64(h.Sum32()%1000)/500.0 - 1.0
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
