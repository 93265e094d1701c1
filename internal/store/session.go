package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codetutor/codetutor/internal/llm"
)

// Session is one chat session.
type Session struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoredMessage is one persisted chat message with its turn metadata.
// Metadata fields are zero for user messages.
type StoredMessage struct {
	ID                    int64
	SessionID             string
	Role                  llm.Role
	Content               string
	HintLevel             int
	ErrorKind             string
	ProgrammingDifficulty int
	MathsDifficulty       int
	Tokens                int

	// Incomplete marks an assistant message whose stream was cut off
	// after some content had been delivered.
	Incomplete bool

	CreatedAt time.Time
}

// SessionRepo persists chat sessions and their messages.
type SessionRepo struct {
	db *sql.DB
}

// GetOrCreate returns the session with the given id, creating it when
// id is empty or unknown. A created session gets a fresh UUID.
func (r *SessionRepo) GetOrCreate(ctx context.Context, id, userID string) (*Session, error) {
	if id != "" {
		s, err := r.get(ctx, id)
		if err == nil {
			if s.UserID != userID {
				return nil, fmt.Errorf("session %s does not belong to user", id)
			}
			return s, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, '', ?, ?)`,
		s.ID, s.UserID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// Get returns the session only if it exists and belongs to userID.
func (r *SessionRepo) Get(ctx context.Context, id, userID string) (*Session, error) {
	s, err := r.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s.UserID != userID {
		return nil, fmt.Errorf("session %s does not belong to user", id)
	}
	return s, nil
}

func (r *SessionRepo) get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	var s Session
	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// AppendMessage stores one message and bumps the session timestamp. The
// first user message of a session also becomes its title.
func (r *SessionRepo) AppendMessage(ctx context.Context, m *StoredMessage) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (
			session_id, role, content, hint_level, error_kind,
			programming_difficulty, maths_difficulty, tokens, incomplete, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SessionID, string(m.Role), m.Content, m.HintLevel, m.ErrorKind,
		m.ProgrammingDifficulty, m.MathsDifficulty, m.Tokens, m.Incomplete, now)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	m.CreatedAt = now

	if m.Role == llm.RoleUser {
		_, err = r.db.ExecContext(ctx, `
			UPDATE sessions SET
				title = CASE WHEN title = '' THEN ? ELSE title END,
				updated_at = ?
			WHERE id = ?`, titleFrom(m.Content), now, m.SessionID)
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE sessions SET updated_at = ? WHERE id = ?`, now, m.SessionID)
	}
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// History returns the session's messages in chronological order, as
// prompt-ready llm messages. Incomplete assistant messages are included;
// their text was shown to the student and is part of the conversation.
func (r *SessionRepo) History(ctx context.Context, sessionID string) ([]llm.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT role, content FROM messages
		WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []llm.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, llm.Message{Role: llm.Role(role), Content: content})
	}
	return out, rows.Err()
}

// Messages returns the full stored messages for a session, oldest first.
func (r *SessionRepo) Messages(ctx context.Context, sessionID string) ([]StoredMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, hint_level, error_kind,
		       programming_difficulty, maths_difficulty, tokens, incomplete, created_at
		FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.HintLevel,
			&m.ErrorKind, &m.ProgrammingDifficulty, &m.MathsDifficulty,
			&m.Tokens, &m.Incomplete, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = llm.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// List returns the user's sessions, most recently active first.
func (r *SessionRepo) List(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM sessions WHERE user_id = ?
		ORDER BY updated_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a session and, via cascade, its messages.
func (r *SessionRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// titleFrom derives a session title from its first message.
func titleFrom(content string) string {
	const maxTitle = 60
	if len(content) <= maxTitle {
		return content
	}
	return content[:maxTitle]
}
