package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/codetutor/codetutor/internal/pedagogy"
)

// StudentStateRepo persists pedagogy.StudentState, one row per user.
type StudentStateRepo struct {
	db *sql.DB
}

// Get loads the state for userID. When none exists yet, a fresh state
// seeded from the given self-assessed levels is returned (not saved:
// the first completed turn saves it).
func (r *StudentStateRepo) Get(ctx context.Context, userID string, programmingLevel, mathsLevel int) (*pedagogy.StudentState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT effective_programming_level, effective_maths_level,
		       current_hint_level, attempt_count, problem_fingerprint,
		       problem_programming_difficulty, problem_maths_difficulty
		FROM student_states WHERE user_id = ?`, userID)

	st := &pedagogy.StudentState{UserID: userID}
	var fingerprint []byte
	err := row.Scan(
		&st.EffectiveProgrammingLevel, &st.EffectiveMathsLevel,
		&st.CurrentHintLevel, &st.AttemptCount, &fingerprint,
		&st.ProblemProgrammingDifficulty, &st.ProblemMathsDifficulty,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return pedagogy.NewStudentState(userID, programmingLevel, mathsLevel), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load student state: %w", err)
	}

	st.LastProblemFingerprint = decodeVector(fingerprint)
	return st, nil
}

// Save upserts the state.
func (r *StudentStateRepo) Save(ctx context.Context, st *pedagogy.StudentState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO student_states (
			user_id, effective_programming_level, effective_maths_level,
			current_hint_level, attempt_count, problem_fingerprint,
			problem_programming_difficulty, problem_maths_difficulty, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			effective_programming_level = excluded.effective_programming_level,
			effective_maths_level = excluded.effective_maths_level,
			current_hint_level = excluded.current_hint_level,
			attempt_count = excluded.attempt_count,
			problem_fingerprint = excluded.problem_fingerprint,
			problem_programming_difficulty = excluded.problem_programming_difficulty,
			problem_maths_difficulty = excluded.problem_maths_difficulty,
			updated_at = excluded.updated_at`,
		st.UserID, st.EffectiveProgrammingLevel, st.EffectiveMathsLevel,
		st.CurrentHintLevel, st.AttemptCount, encodeVector(st.LastProblemFingerprint),
		st.ProblemProgrammingDifficulty, st.ProblemMathsDifficulty, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save student state: %w", err)
	}
	return nil
}

// encodeVector packs a float32 vector as little-endian bytes for BLOB
// storage. nil maps to nil.
func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
