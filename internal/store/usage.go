package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DailyUsage is one user's token consumption for one UTC day.
type DailyUsage struct {
	UserID       string
	Day          string // YYYY-MM-DD, UTC
	InputTokens  int
	OutputTokens int
}

// Total returns combined input and output tokens.
func (u DailyUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// UsageRepo tracks per-user daily token consumption for cap
// enforcement.
type UsageRepo struct {
	db *sql.DB
}

// Today returns the user's usage for the current UTC day; zeros when
// nothing is recorded yet.
func (r *UsageRepo) Today(ctx context.Context, userID string) (DailyUsage, error) {
	day := utcDay(time.Now())
	u := DailyUsage{UserID: userID, Day: day}

	row := r.db.QueryRowContext(ctx, `
		SELECT input_tokens, output_tokens FROM daily_usage
		WHERE user_id = ? AND day = ?`, userID, day)
	err := row.Scan(&u.InputTokens, &u.OutputTokens)
	if errors.Is(err, sql.ErrNoRows) {
		return u, nil
	}
	if err != nil {
		return u, fmt.Errorf("load daily usage: %w", err)
	}
	return u, nil
}

// Add accumulates tokens onto the current UTC day.
func (r *UsageRepo) Add(ctx context.Context, userID string, inputTokens, outputTokens int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_usage (user_id, day, input_tokens, output_tokens)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, day) DO UPDATE SET
			input_tokens = input_tokens + excluded.input_tokens,
			output_tokens = output_tokens + excluded.output_tokens`,
		userID, utcDay(time.Now()), inputTokens, outputTokens)
	if err != nil {
		return fmt.Errorf("record daily usage: %w", err)
	}
	return nil
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
