// Package pedagogy decides the response strategy for each chat turn:
// canned reply, or a hint level plus adapted tutoring instructions for
// the LLM. It owns the per-student hidden state and never calls the LLM
// itself.
package pedagogy

// Hint levels. Escalation is one level per failed attempt on the same
// problem, clamped at the full answer.
const (
	HintSocratic   = 1 // guiding questions only
	HintConceptual = 2 // name the concept involved
	HintStructural = 3 // outline the shape of the solution
	HintConcrete   = 4 // concrete steps, partial code
	HintFullAnswer = 5 // complete solution with explanation
)

const (
	// EMA weights for effective-level updates on problem completion.
	emaOldWeight      = 0.8
	emaObservedWeight = 0.2

	minLevel = 1.0
	maxLevel = 5.0
)

// StudentState is the persistent per-student record. It is loaded at
// turn start, passed explicitly through the pipeline, and saved at turn
// end; nothing here is ambient or global.
type StudentState struct {
	UserID string

	// Hidden proficiency estimates, 1.0–5.0, moved only by completed
	// problems via the EMA rule.
	EffectiveProgrammingLevel float64
	EffectiveMathsLevel       float64

	// Hint escalation state for the active problem.
	CurrentHintLevel int // 1–5, min(5, AttemptCount)
	AttemptCount     int // 0 before the first problem turn

	// LastProblemFingerprint is the embedding the same-problem check
	// compares against: the previous Q+A pair by default.
	LastProblemFingerprint []float32

	// Difficulty of the active problem, estimated on its first turn and
	// used as the EMA observation base when the problem completes.
	ProblemProgrammingDifficulty int
	ProblemMathsDifficulty       int
}

// NewStudentState creates state seeded from profile self-assessment.
func NewStudentState(userID string, programmingLevel, mathsLevel int) *StudentState {
	return &StudentState{
		UserID:                    userID,
		EffectiveProgrammingLevel: clampLevel(float64(programmingLevel)),
		EffectiveMathsLevel:       clampLevel(float64(mathsLevel)),
	}
}

// Normalize repairs corrupt or missing fields in place and reports
// whether anything had to change. Corrupt state is recovered locally,
// never surfaced as an error.
func (s *StudentState) Normalize() bool {
	repaired := false

	if s.EffectiveProgrammingLevel < minLevel || s.EffectiveProgrammingLevel > maxLevel {
		s.EffectiveProgrammingLevel = clampLevel(s.EffectiveProgrammingLevel)
		repaired = true
	}
	if s.EffectiveMathsLevel < minLevel || s.EffectiveMathsLevel > maxLevel {
		s.EffectiveMathsLevel = clampLevel(s.EffectiveMathsLevel)
		repaired = true
	}
	if s.AttemptCount < 0 {
		s.AttemptCount = 0
		repaired = true
	}
	want := hintLevelFor(s.AttemptCount)
	if s.CurrentHintLevel != want {
		s.CurrentHintLevel = want
		repaired = true
	}
	if s.ProblemProgrammingDifficulty < 0 || s.ProblemProgrammingDifficulty > 5 {
		s.ProblemProgrammingDifficulty = 0
		repaired = true
	}
	if s.ProblemMathsDifficulty < 0 || s.ProblemMathsDifficulty > 5 {
		s.ProblemMathsDifficulty = 0
		repaired = true
	}

	return repaired
}

// hintLevelFor maps an attempt count to its hint level. Zero attempts
// (no active problem) still answers at the Socratic level.
func hintLevelFor(attempts int) int {
	if attempts <= 1 {
		return HintSocratic
	}
	if attempts >= HintFullAnswer {
		return HintFullAnswer
	}
	return attempts
}

// updateEMA folds one observed proficiency sample into an effective
// level: new = old*0.8 + observed*0.2, clamped to [1.0, 5.0].
func updateEMA(old, observed float64) float64 {
	return clampLevel(old*emaOldWeight + observed*emaObservedWeight)
}

// observedSample derives the proficiency observation from a completed
// problem: its difficulty, shifted by how much help was needed. Solving
// a problem at the Socratic level reads well above its difficulty;
// needing the full answer reads well below it.
func observedSample(difficulty, hintLevelUsed int) float64 {
	return clampLevel(float64(difficulty) + (3.0-float64(hintLevelUsed))*0.5)
}

func clampLevel(v float64) float64 {
	if v < minLevel {
		return minLevel
	}
	if v > maxLevel {
		return maxLevel
	}
	return v
}
