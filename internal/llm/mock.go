package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MockResponse is a canned response for the MockProvider. For streaming
// calls the Content is yielded word by word.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider is a deterministic Provider for testing.
// It returns canned responses in FIFO order and records all requests.
type MockProvider struct {
	mu          sync.Mutex
	responses   []MockResponse
	Calls       []Request
	StreamCalls int
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Generate returns the next canned response or ErrProviderUnavailable if
// the queue is empty.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	resp, err := m.next(req)
	if err != nil {
		return nil, err
	}
	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

// GenerateStream yields the next canned response word by word.
func (m *MockProvider) GenerateStream(ctx context.Context, req Request, fn StreamFunc) error {
	m.mu.Lock()
	m.StreamCalls++
	m.mu.Unlock()

	resp, err := m.next(req)
	if err != nil {
		return err
	}

	words := strings.SplitAfter(string(resp.Content), " ")
	for _, w := range words {
		if w == "" {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockProvider) next(req Request) (MockResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if len(m.responses) == 0 {
		return MockResponse{}, &ErrProviderUnavailable{Err: nil}
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]

	if resp.Err != nil {
		return MockResponse{}, resp.Err
	}
	return resp, nil
}

func (m *MockProvider) CountTokens(text string) int { return approxTokens(text) }

// Name returns "mock".
func (m *MockProvider) Name() string { return "mock" }

// ModelID returns "mock".
func (m *MockProvider) ModelID() string { return "mock" }

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate and GenerateStream calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
