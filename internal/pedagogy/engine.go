package pedagogy

import (
	"context"
	"log/slog"
	"strings"

	"github.com/codetutor/codetutor/internal/classify"
	"github.com/codetutor/codetutor/internal/diagnosis"
)

// FingerprintBasis selects what the stored problem fingerprint embeds.
type FingerprintBasis string

const (
	// FingerprintQAPair embeds the previous question and answer together.
	// Default: answers usually restate the problem, which makes the
	// same-problem comparison more stable than the question alone.
	FingerprintQAPair FingerprintBasis = "qa_pair"

	// FingerprintMessage keeps the student-message embedding from
	// classification and skips the post-generation embed call.
	FingerprintMessage FingerprintBasis = "message"
)

// Turn is one incoming student message with its notebook context.
type Turn struct {
	Message   string
	CellCode  string
	ErrorText string
	Username  string
}

// HasTaskContext reports whether the turn carries notebook code or
// error output. Such turns bypass the greeting/off-topic filters.
func (t Turn) HasTaskContext() bool {
	return t.CellCode != "" || t.ErrorText != ""
}

// Decision is the engine's output for one turn.
type Decision struct {
	// Canned, when non-empty, is the full response: no LLM call is made
	// and student state does not advance. Filter names the signal that
	// fired.
	Canned string
	Filter string

	HintLevel int
	ErrorKind diagnosis.ErrorKind

	// Instructions are the adapted system-prompt blocks, in injection
	// order, Persona excluded.
	Instructions []string

	// Difficulty estimates for the active problem, echoed to the client
	// in the turn's done event.
	ProgrammingDifficulty int
	MathsDifficulty       int
}

// completionMarkers signal that the student solved the active problem.
// Matched case-insensitively as substrings of the message.
var completionMarkers = []string{
	"it works", "it worked", "that worked", "works now",
	"solved it", "fixed it", "got it working", "passes now",
	"all tests pass",
}

// Engine is the per-turn decision maker. Stateless itself; all mutable
// state lives in the StudentState it is handed.
type Engine struct {
	classifier *classify.Classifier
	embedder   classify.Embedder
	basis      FingerprintBasis
	logger     *slog.Logger
}

// NewEngine creates an Engine. embedder is only used for the Q+A pair
// fingerprint; pass the same chain the classifier uses.
func NewEngine(classifier *classify.Classifier, embedder classify.Embedder, basis FingerprintBasis, logger *slog.Logger) *Engine {
	if basis == "" {
		basis = FingerprintQAPair
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		classifier: classifier,
		embedder:   embedder,
		basis:      basis,
		logger:     logger.With("component", "pedagogy"),
	}
}

// Decide runs the full turn decision: classification, error diagnosis,
// problem-boundary handling, hint escalation, and instruction assembly.
// It mutates st but never persists it; the caller saves after the turn
// completes. Decide never fails: degraded classification and corrupt
// state both fall back to safe defaults.
func (e *Engine) Decide(ctx context.Context, turn Turn, st *StudentState) Decision {
	if st.Normalize() {
		e.logger.WarnContext(ctx, "repaired invalid student state", "user_id", st.UserID)
	}

	res := e.classifier.Classify(ctx, turn.Message, st.LastProblemFingerprint, classify.Options{
		SkipTopicFilters: turn.HasTaskContext(),
	})

	// Canned short-circuits: no LLM call, no state advance.
	if res.Signals.Greeting {
		return Decision{Canned: greetingResponse(turn.Username), Filter: classify.SignalGreeting}
	}
	if res.Signals.OffTopic {
		return Decision{Canned: offTopicResponse(), Filter: classify.SignalOffTopic}
	}

	kind := diagnosis.Classify(&diagnosis.ClassifyInput{
		ErrorText: turn.ErrorText,
		Message:   turn.Message,
	})

	e.advance(ctx, turn, st, res, kind)

	st.CurrentHintLevel = hintLevelFor(st.AttemptCount)

	instr := []string{
		hintInstructions[st.CurrentHintLevel],
		programmingAdaptation(st.EffectiveProgrammingLevel),
		mathsAdaptation(st.EffectiveMathsLevel),
	}
	if block, ok := errorKindInstructions[kind]; ok {
		instr = append(instr, block)
	}

	return Decision{
		HintLevel:             st.CurrentHintLevel,
		ErrorKind:             kind,
		Instructions:          instr,
		ProgrammingDifficulty: st.ProblemProgrammingDifficulty,
		MathsDifficulty:       st.ProblemMathsDifficulty,
	}
}

// advance applies the problem-boundary state machine for one non-canned
// turn.
func (e *Engine) advance(ctx context.Context, turn Turn, st *StudentState, res classify.Result, kind diagnosis.ErrorKind) {
	if st.AttemptCount > 0 && isCompletion(turn.Message) {
		// Explicit success confirmation: fold the completed problem into
		// the effective levels and close it out. The reply to this turn
		// is generated with a fresh problem slate.
		e.completeProblem(ctx, st)
		return
	}

	switch {
	case res.Degraded:
		// No embedding, so no boundary signal. Treat as a continuation
		// of the active problem when there is one; do not escalate on a
		// signal we never saw.
		if st.AttemptCount == 0 {
			e.startProblem(turn, st, nil, kind)
		}

	case res.Signals.Elaboration:
		// Clarifying the previous answer is not a new attempt.
		if st.AttemptCount == 0 {
			e.startProblem(turn, st, res.Embedding, kind)
		}

	case res.Signals.SameProblem:
		st.AttemptCount++

	default:
		// New problem. A hint ladder that reached the full answer counts
		// as an implicit completion of the previous one.
		if st.CurrentHintLevel >= HintFullAnswer {
			e.completeProblem(ctx, st)
		}
		e.startProblem(turn, st, res.Embedding, kind)
	}
}

func (e *Engine) startProblem(turn Turn, st *StudentState, fingerprint []float32, kind diagnosis.ErrorKind) {
	st.AttemptCount = 1
	if fingerprint != nil {
		st.LastProblemFingerprint = fingerprint
	}
	prog, maths := estimateDifficulty(turn.Message, turn.HasTaskContext(), kind)
	st.ProblemProgrammingDifficulty = prog
	st.ProblemMathsDifficulty = maths
}

// completeProblem applies the EMA update for the problem the student
// just finished and resets the escalation state.
func (e *Engine) completeProblem(ctx context.Context, st *StudentState) {
	hintUsed := hintLevelFor(st.AttemptCount)

	if st.ProblemProgrammingDifficulty > 0 {
		obs := observedSample(st.ProblemProgrammingDifficulty, hintUsed)
		st.EffectiveProgrammingLevel = updateEMA(st.EffectiveProgrammingLevel, obs)
	}
	if st.ProblemMathsDifficulty > 0 {
		obs := observedSample(st.ProblemMathsDifficulty, hintUsed)
		st.EffectiveMathsLevel = updateEMA(st.EffectiveMathsLevel, obs)
	}

	e.logger.DebugContext(ctx, "problem completed",
		"user_id", st.UserID,
		"attempts", st.AttemptCount,
		"hint_level_used", hintUsed,
		"effective_programming", st.EffectiveProgrammingLevel,
		"effective_maths", st.EffectiveMathsLevel,
	)

	st.AttemptCount = 0
	st.CurrentHintLevel = hintLevelFor(0)
	st.LastProblemFingerprint = nil
	st.ProblemProgrammingDifficulty = 0
	st.ProblemMathsDifficulty = 0
}

// RecordExchange updates the problem fingerprint after a generation
// completes. With the Q+A basis it embeds the question and answer
// together; failures leave the classification-time fingerprint in
// place, which is a usable approximation.
func (e *Engine) RecordExchange(ctx context.Context, st *StudentState, question, answer string) {
	if e.basis != FingerprintQAPair || st.AttemptCount == 0 {
		return
	}
	vec, err := e.embedder.Embed(ctx, question+"\n"+answer)
	if err != nil {
		e.logger.WarnContext(ctx, "fingerprint embed failed, keeping message fingerprint",
			"user_id", st.UserID, "error", err)
		return
	}
	st.LastProblemFingerprint = vec
}

func isCompletion(message string) bool {
	lower := strings.ToLower(message)
	for _, m := range completionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
