package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codetutor/codetutor/internal/llm"
)

// LLMEventRepo records one row per LLM request. It implements
// llm.EventSink so the gateway's logging decorator can write straight
// into it.
type LLMEventRepo struct {
	db *sql.DB
}

// LLMEvent is one stored request event.
type LLMEvent struct {
	ID           int64
	Provider     string
	Model        string
	Purpose      string
	Streaming    bool
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}

// List returns the most recent events, newest first.
func (r *LLMEventRepo) List(ctx context.Context, limit int) ([]LLMEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, provider, model, purpose, streaming, input_tokens,
		       output_tokens, latency_ms, success, error_message, created_at
		FROM llm_request_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	defer rows.Close()

	var out []LLMEvent
	for rows.Next() {
		var e LLMEvent
		if err := rows.Scan(&e.ID, &e.Provider, &e.Model, &e.Purpose, &e.Streaming,
			&e.InputTokens, &e.OutputTokens, &e.LatencyMs, &e.Success,
			&e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan LLM event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendLLMRequest stores one request event.
func (r *LLMEventRepo) AppendLLMRequest(ctx context.Context, ev llm.RequestEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO llm_request_events (
			provider, model, purpose, streaming, input_tokens, output_tokens,
			latency_ms, success, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Provider, ev.Model, ev.Purpose, ev.Streaming, ev.InputTokens, ev.OutputTokens,
		ev.LatencyMs, ev.Success, ev.ErrorMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}
