package pedagogy

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/codetutor/codetutor/internal/classify"
	"github.com/codetutor/codetutor/internal/diagnosis"
	"github.com/codetutor/codetutor/internal/embedding"
)

func testAnchors() *classify.Anchors {
	return &classify.Anchors{
		Version:    1,
		Thresholds: classify.DefaultThresholds(),
		Sets: map[string][]classify.AnchorPhrase{
			classify.SignalGreeting: {
				{Phrase: "hi", Vector: []float32{1, 0, 0, 0}},
			},
			classify.SignalOffTopic: {
				{Phrase: "tell me a joke", Vector: []float32{0, 1, 0, 0}},
			},
			classify.SignalElaboration: {
				{Phrase: "can you explain that more?", Vector: []float32{0, 0, 1, 0}},
			},
		},
	}
}

func testEngine(emb *embedding.MockEmbedder, basis FingerprintBasis) *Engine {
	c := classify.New(emb, testAnchors(), nil)
	return NewEngine(c, emb, basis, nil)
}

func TestDecide_HintEscalation(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("my loop never stops", []float32{0, 0, 0, 1})
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)

	// Seven turns on the same problem: the hint level climbs one per
	// attempt and saturates at the full answer.
	want := []int{1, 2, 3, 4, 5, 5, 5}
	for i, w := range want {
		d := eng.Decide(context.Background(), Turn{Message: "my loop never stops"}, st)
		if d.Canned != "" {
			t.Fatalf("turn %d: unexpected canned response", i+1)
		}
		if d.HintLevel != w {
			t.Fatalf("turn %d: hint level %d, want %d", i+1, d.HintLevel, w)
		}
		if st.AttemptCount != i+1 {
			t.Fatalf("turn %d: attempt count %d, want %d", i+1, st.AttemptCount, i+1)
		}
	}
}

func TestDecide_NewProblemResetsAttempts(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("loop bug", []float32{0, 0, 0, 1})
	emb.Pin("how do I read a file?", []float32{0.1, 0.1, 0.1, -0.9})
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)

	for range 3 {
		eng.Decide(context.Background(), Turn{Message: "loop bug"}, st)
	}
	if st.AttemptCount != 3 {
		t.Fatalf("attempt count %d, want 3", st.AttemptCount)
	}

	d := eng.Decide(context.Background(), Turn{Message: "how do I read a file?"}, st)
	if st.AttemptCount != 1 {
		t.Fatalf("new problem: attempt count %d, want 1", st.AttemptCount)
	}
	if d.HintLevel != HintSocratic {
		t.Fatalf("new problem: hint level %d, want %d", d.HintLevel, HintSocratic)
	}
}

func TestDecide_ElaborationDoesNotEscalate(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("loop bug", []float32{0, 0, 0, 1})
	emb.Pin("what do you mean by that?", []float32{0, 0, 0.99, 0.1})
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)

	eng.Decide(context.Background(), Turn{Message: "loop bug"}, st)
	eng.Decide(context.Background(), Turn{Message: "loop bug"}, st)

	d := eng.Decide(context.Background(), Turn{Message: "what do you mean by that?"}, st)
	if st.AttemptCount != 2 {
		t.Fatalf("elaboration changed attempt count to %d", st.AttemptCount)
	}
	if d.HintLevel != 2 {
		t.Fatalf("elaboration changed hint level to %d", d.HintLevel)
	}
}

func TestDecide_GreetingIsCanned(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("hello!", []float32{0.99, 0.1, 0, 0})
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)
	st.AttemptCount = 2
	st.CurrentHintLevel = 2

	d := eng.Decide(context.Background(), Turn{Message: "hello!", Username: "Ada"}, st)
	if d.Canned == "" || d.Filter != classify.SignalGreeting {
		t.Fatalf("expected canned greeting, got %+v", d)
	}
	if !strings.Contains(d.Canned, "Ada") {
		t.Fatalf("greeting should address the student: %q", d.Canned)
	}
	if st.AttemptCount != 2 || st.CurrentHintLevel != 2 {
		t.Fatal("canned turn must not advance student state")
	}
}

func TestDecide_OffTopicIsCanned(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("who won the match?", []float32{0.1, 0.97, 0, 0})
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)

	d := eng.Decide(context.Background(), Turn{Message: "who won the match?"}, st)
	if d.Canned == "" || d.Filter != classify.SignalOffTopic {
		t.Fatalf("expected canned off-topic reply, got %+v", d)
	}
	if st.AttemptCount != 0 {
		t.Fatal("canned turn must not advance student state")
	}
}

func TestDecide_TaskContextBypassesFilters(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("hello!", []float32{0.99, 0.1, 0, 0})
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)

	// The same greeting-shaped message, but attached to a cell: it is
	// task context and must reach generation.
	d := eng.Decide(context.Background(), Turn{Message: "hello!", CellCode: "print(x)"}, st)
	if d.Canned != "" {
		t.Fatal("turn with notebook context must not be filtered")
	}
	if d.HintLevel != HintSocratic {
		t.Fatalf("hint level %d, want %d", d.HintLevel, HintSocratic)
	}
}

func TestDecide_DegradedClassificationProceeds(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.FailNext(errors.New("providers down"))
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)

	d := eng.Decide(context.Background(), Turn{Message: "loop bug"}, st)
	if d.Canned != "" {
		t.Fatal("degraded classification must never produce a canned reply")
	}
	if st.AttemptCount != 1 || d.HintLevel != HintSocratic {
		t.Fatalf("degraded first turn: attempts=%d hint=%d", st.AttemptCount, d.HintLevel)
	}
	if st.LastProblemFingerprint != nil {
		t.Fatal("no embedding means no fingerprint")
	}
}

func TestDecide_DegradedContinuesActiveProblem(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("loop bug", []float32{0, 0, 0, 1})
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)

	eng.Decide(context.Background(), Turn{Message: "loop bug"}, st)
	emb.FailNext(errors.New("providers down"))
	d := eng.Decide(context.Background(), Turn{Message: "still broken"}, st)

	// No signal was observed, so the attempt count holds rather than
	// escalating or resetting on a guess.
	if st.AttemptCount != 1 || d.HintLevel != HintSocratic {
		t.Fatalf("degraded continuation: attempts=%d hint=%d", st.AttemptCount, d.HintLevel)
	}
}

func TestDecide_ExplicitCompletionAppliesEMA(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)
	st.AttemptCount = 2
	st.CurrentHintLevel = 2
	st.LastProblemFingerprint = []float32{0, 0, 0, 1}
	st.ProblemProgrammingDifficulty = 3

	d := eng.Decide(context.Background(), Turn{Message: "thanks, it works now!"}, st)
	if d.Canned != "" {
		t.Fatal("completion turn still gets a generated reply")
	}

	// observed = 3 + (3-2)*0.5 = 3.5; new = 3.0*0.8 + 3.5*0.2 = 3.1
	if math.Abs(st.EffectiveProgrammingLevel-3.1) > 1e-9 {
		t.Fatalf("effective programming level %v, want 3.1", st.EffectiveProgrammingLevel)
	}
	if st.EffectiveMathsLevel != 3.0 {
		t.Fatalf("maths level moved without a maths difficulty: %v", st.EffectiveMathsLevel)
	}
	if st.AttemptCount != 0 || st.LastProblemFingerprint != nil {
		t.Fatal("completion must reset the escalation state")
	}
}

func TestDecide_NoMathsProblemLeavesMathsLevelAlone(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("my loop never stops", []float32{0, 0, 0, 1})
	emb.Pin("thanks, it works now!", []float32{0, 0, 0, 1})
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 2, 4)

	// A pure programming problem carries no maths difficulty, so
	// completing it updates only the programming estimate.
	eng.Decide(context.Background(), Turn{Message: "my loop never stops"}, st)
	if st.ProblemMathsDifficulty != 0 {
		t.Fatalf("maths difficulty %d, want 0", st.ProblemMathsDifficulty)
	}

	eng.Decide(context.Background(), Turn{Message: "thanks, it works now!"}, st)
	if st.EffectiveMathsLevel != 4.0 {
		t.Fatalf("maths level moved on a no-maths problem: %v", st.EffectiveMathsLevel)
	}
	// observed = 2 + (3-1)*0.5 = 3.0; new = 2.0*0.8 + 3.0*0.2 = 2.2
	if math.Abs(st.EffectiveProgrammingLevel-2.2) > 1e-9 {
		t.Fatalf("effective programming level %v, want 2.2", st.EffectiveProgrammingLevel)
	}
}

func TestDecide_FullAnswerThenNewProblemCompletes(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("next question", []float32{0.1, 0.1, 0.1, -0.9})
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)
	st.AttemptCount = 5
	st.CurrentHintLevel = 5
	st.LastProblemFingerprint = []float32{0, 0, 0, 1}
	st.ProblemProgrammingDifficulty = 3

	eng.Decide(context.Background(), Turn{Message: "next question"}, st)

	// observed = 3 + (3-5)*0.5 = 2.0; new = 3.0*0.8 + 2.0*0.2 = 2.8
	if math.Abs(st.EffectiveProgrammingLevel-2.8) > 1e-9 {
		t.Fatalf("effective programming level %v, want 2.8", st.EffectiveProgrammingLevel)
	}
	if st.AttemptCount != 1 {
		t.Fatalf("new problem after completion: attempt count %d, want 1", st.AttemptCount)
	}
}

func TestDecide_ErrorKindSelectsInstructions(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("why does this crash?", []float32{0, 0, 0, 1})
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)

	d := eng.Decide(context.Background(), Turn{
		Message:   "why does this crash?",
		ErrorText: "NameError: name 'x' is not defined",
	}, st)
	if d.ErrorKind != diagnosis.KindRuntime {
		t.Fatalf("error kind %q, want runtime", d.ErrorKind)
	}
	found := false
	for _, block := range d.Instructions {
		if strings.Contains(block, "traceback") {
			found = true
		}
	}
	if !found {
		t.Fatal("runtime guidance missing from instructions")
	}
}

func TestDecide_RepairsCorruptState(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("loop bug", []float32{0, 0, 0, 1})
	eng := testEngine(emb, FingerprintMessage)
	st := &StudentState{UserID: "u1", EffectiveProgrammingLevel: 99, EffectiveMathsLevel: -1, AttemptCount: -7, CurrentHintLevel: 42}

	d := eng.Decide(context.Background(), Turn{Message: "loop bug"}, st)
	if d.Canned != "" {
		t.Fatal("corrupt state must not block the turn")
	}
	if d.HintLevel < HintSocratic || d.HintLevel > HintFullAnswer {
		t.Fatalf("hint level out of range after repair: %d", d.HintLevel)
	}
}

func TestRecordExchange_QAPairBasis(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.Pin("Q\nA", []float32{0.2, 0.4, 0.6, 0.8})
	eng := testEngine(emb, FingerprintQAPair)
	st := NewStudentState("u1", 3, 3)
	st.AttemptCount = 1

	eng.RecordExchange(context.Background(), st, "Q", "A")
	want := []float32{0.2, 0.4, 0.6, 0.8}
	for i, v := range want {
		if st.LastProblemFingerprint[i] != v {
			t.Fatalf("fingerprint[%d] = %v, want %v", i, st.LastProblemFingerprint[i], v)
		}
	}
}

func TestRecordExchange_MessageBasisSkipsEmbed(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	eng := testEngine(emb, FingerprintMessage)
	st := NewStudentState("u1", 3, 3)
	st.AttemptCount = 1

	eng.RecordExchange(context.Background(), st, "Q", "A")
	if emb.CallCount() != 0 {
		t.Fatalf("message basis must not embed, got %d calls", emb.CallCount())
	}
}

func TestRecordExchange_EmbedFailureKeepsOldFingerprint(t *testing.T) {
	emb := embedding.NewMockEmbedder()
	emb.FailNext(errors.New("down"))
	eng := testEngine(emb, FingerprintQAPair)
	st := NewStudentState("u1", 3, 3)
	st.AttemptCount = 1
	st.LastProblemFingerprint = []float32{0, 0, 0, 1}

	eng.RecordExchange(context.Background(), st, "Q", "A")
	if st.LastProblemFingerprint[3] != 1 {
		t.Fatal("failed embed must keep the previous fingerprint")
	}
}
