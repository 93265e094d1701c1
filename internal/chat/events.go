// Package chat runs the per-turn pipeline: admission checks,
// classification, pedagogy decision, prompt assembly, streamed
// generation, and persistence.
package chat

// Event is one message on the turn's outbound stream, serialized to the
// client as JSON. A turn emits one session event, then zero or more
// token events, then exactly one of done, canned, or error.
type Event struct {
	Type string `json:"type"` // session, token, canned, done, error

	// session
	SessionID string `json:"session_id,omitempty"`

	// token and canned
	Content string `json:"content,omitempty"`

	// canned
	Filter string `json:"filter,omitempty"`

	// done
	HintLevel             int    `json:"hint_level,omitempty"`
	ErrorKind             string `json:"error_kind,omitempty"`
	ProgrammingDifficulty int    `json:"programming_difficulty,omitempty"`
	MathsDifficulty       int    `json:"maths_difficulty,omitempty"`
	InputTokens           int    `json:"input_tokens,omitempty"`
	OutputTokens          int    `json:"output_tokens,omitempty"`
	Incomplete            bool   `json:"incomplete,omitempty"`

	// error
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Error codes sent to the client.
const (
	CodeRateLimited   = "rate_limited"
	CodeDailyCap      = "daily_cap_exceeded"
	CodeInputTooLarge = "input_too_large"
	CodeEmptyMessage  = "empty_message"
	CodeBusy          = "session_busy"
	CodeUnavailable   = "providers_unavailable"
	CodeInterrupted   = "stream_interrupted"
	CodeInternal      = "internal_error"
)

// Emitter delivers one event to the client. A returned error means the
// client is gone; the turn is abandoned.
type Emitter func(Event) error
