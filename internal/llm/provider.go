package llm

import (
	"context"
	"encoding/json"
)

// StreamFunc receives one generated text chunk. Returning an error stops
// the stream and cancels the underlying provider request.
type StreamFunc func(ctx context.Context, chunk string) error

// Provider is the core abstraction for LLM interaction. Chat turns use
// GenerateStream; auxiliary calls (history compression) use Generate with
// a Schema for structured output.
type Provider interface {
	// GenerateStream sends a prompt to the LLM and invokes fn once per
	// generated text chunk, in generation order. The stream is finite and
	// not restartable. Cancelling ctx aborts the provider request.
	GenerateStream(ctx context.Context, req Request, fn StreamFunc) error

	// Generate sends a prompt and returns the complete response. The
	// request's Schema field, when set, instructs the provider to return
	// JSON conforming to that schema; the response Content will be the
	// validated JSON.
	Generate(ctx context.Context, req Request) (*Response, error)

	// CountTokens returns the approximate token count for text, using
	// the provider's own accounting heuristic.
	CountTokens(text string) int

	// Name returns the provider's short name ("anthropic", "openai", ...).
	Name() string

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt. Sets the LLM's role and constraints.
	System string

	// Messages is the conversation history, oldest first, ending with
	// the current user turn.
	Messages []Message

	// Schema is the JSON Schema the response must conform to.
	// Only honored by Generate; streaming requests ignore it.
	Schema *Schema

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	// Default: 0.0 (deterministic) when not set.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies this schema (used as tool name for Anthropic,
	// schema name for OpenAI). Kebab-case, e.g. "history-summary".
	Name string

	// Description is a human-readable description of what this schema
	// represents. Sent to the LLM to guide generation.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the LLM's output for non-streaming generation.
type Response struct {
	// Content is the generated output. When a Schema was provided in the
	// request, this is the validated JSON object. When no Schema was
	// provided, this is the raw text response.
	Content json.RawMessage

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// approxTokens estimates token count from text length. All three
// provider APIs bill close to 4 characters per token for English text,
// and the context builder only needs a conservative upper bound.
func approxTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}
