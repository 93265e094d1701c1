package chat

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codetutor/codetutor/internal/classify"
	"github.com/codetutor/codetutor/internal/embedding"
	"github.com/codetutor/codetutor/internal/llm"
	"github.com/codetutor/codetutor/internal/pedagogy"
	"github.com/codetutor/codetutor/internal/prompt"
	"github.com/codetutor/codetutor/internal/store"
)

type fixture struct {
	svc      *Service
	store    *store.Store
	provider *llm.MockProvider
	embedder *embedding.MockEmbedder
}

func newFixture(t *testing.T, cfg Config, responses ...llm.MockResponse) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	emb := embedding.NewMockEmbedder()
	anchors := &classify.Anchors{
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
				{Phrase: "explain more", Vector: []float32{0, 0, 1, 0}},
			},
		},
	}
	engine := pedagogy.NewEngine(classify.New(emb, anchors, nil), emb, pedagogy.FingerprintMessage, nil)

	provider := llm.NewMockProvider(responses...)
	builder := prompt.NewBuilder(provider.CountTokens, nil, prompt.DefaultConfig(), nil)

	return &fixture{
		svc:      NewService(st, engine, builder, provider, cfg, nil),
		store:    st,
		provider: provider,
		embedder: emb,
	}
}

// collect gathers all emitted events.
func collect(events *[]Event) Emitter {
	return func(e Event) error {
		*events = append(*events, e)
		return nil
	}
}

func eventsOfType(events []Event, typ string) []Event {
	var out []Event
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestHandleTurn_HappyPath(t *testing.T) {
	f := newFixture(t, DefaultConfig(), llm.MockResponse{
		Content: json.RawMessage("What does your loop condition check?"),
	})
	f.embedder.Pin("my loop never stops", []float32{0, 0, 0, 1})

	var events []Event
	err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:           "u1",
		Message:          "my loop never stops",
		ProgrammingLevel: 3,
		MathsLevel:       3,
	}, collect(&events))
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}

	sessions := eventsOfType(events, "session")
	if len(sessions) != 1 || sessions[0].SessionID == "" {
		t.Fatal("expected a session event with an id")
	}

	var reply strings.Builder
	for _, e := range eventsOfType(events, "token") {
		reply.WriteString(e.Content)
	}
	if reply.String() != "What does your loop condition check?" {
		t.Fatalf("reassembled reply = %q", reply.String())
	}

	done := eventsOfType(events, "done")
	if len(done) != 1 {
		t.Fatalf("want 1 done event, got %d", len(done))
	}
	if done[0].HintLevel != 1 {
		t.Fatalf("first attempt hint level = %d, want 1", done[0].HintLevel)
	}
	if done[0].OutputTokens == 0 {
		t.Fatal("done event missing token usage")
	}

	// Both sides of the exchange are persisted.
	msgs, err := f.store.Sessions().Messages(context.Background(), sessions[0].SessionID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != llm.RoleUser || msgs[1].Role != llm.RoleAssistant {
		t.Fatalf("persisted exchange wrong: %d messages", len(msgs))
	}
	if msgs[1].HintLevel != 1 {
		t.Fatalf("assistant metadata lost: %+v", msgs[1])
	}

	// Usage was recorded.
	u, err := f.store.Usage().Today(context.Background(), "u1")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if u.Total() == 0 {
		t.Fatal("no usage recorded")
	}
}

func TestHandleTurn_GreetingSkipsLLM(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.embedder.Pin("hello!", []float32{0.99, 0.1, 0, 0})

	var events []Event
	err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID: "u1", Username: "Ada", Message: "hello!",
		ProgrammingLevel: 3, MathsLevel: 3,
	}, collect(&events))
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}

	if len(f.provider.Calls) != 0 || f.provider.StreamCalls != 0 {
		t.Fatalf("canned turn must not call the LLM: %d calls", len(f.provider.Calls))
	}

	canned := eventsOfType(events, "canned")
	if len(canned) != 1 || !strings.Contains(canned[0].Content, "Ada") {
		t.Fatalf("expected one canned event addressing the student: %+v", canned)
	}
	if canned[0].Filter != "greeting" {
		t.Fatalf("canned event should name the filter: %+v", canned[0])
	}
	if len(eventsOfType(events, "done")) != 0 {
		t.Fatal("canned turn must end with the canned event, not done")
	}
}

func TestHandleTurn_RateLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerMinute = 1
	cfg.Burst = 1
	f := newFixture(t, cfg,
		llm.MockResponse{Content: json.RawMessage("first answer")},
	)

	var events []Event
	req := TurnRequest{UserID: "u1", Message: "question one", ProgrammingLevel: 3, MathsLevel: 3}
	if err := f.svc.HandleTurn(context.Background(), req, collect(&events)); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	events = nil
	if err := f.svc.HandleTurn(context.Background(), req, collect(&events)); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	errs := eventsOfType(events, "error")
	if len(errs) != 1 || errs[0].Code != CodeRateLimited {
		t.Fatalf("expected rate-limited error, got %+v", events)
	}
}

func TestHandleTurn_DailyCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DailyTokenCap = 100
	f := newFixture(t, cfg)

	if err := f.store.Usage().Add(context.Background(), "u1", 80, 30); err != nil {
		t.Fatalf("seed usage: %v", err)
	}

	var events []Event
	err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID: "u1", Message: "one more question",
	}, collect(&events))
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	errs := eventsOfType(events, "error")
	if len(errs) != 1 || errs[0].Code != CodeDailyCap {
		t.Fatalf("expected daily-cap error, got %+v", events)
	}
	if len(f.provider.Calls) != 0 {
		t.Fatal("capped turn must not reach the LLM")
	}
}

func TestHandleTurn_InputTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxInputTokens = 5
	f := newFixture(t, cfg)

	var events []Event
	err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:   "u1",
		Message:  "please debug all of this for me",
		CellCode: strings.Repeat("x = x + 1\n", 10),
	}, collect(&events))
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	errs := eventsOfType(events, "error")
	if len(errs) != 1 || errs[0].Code != CodeInputTooLarge {
		t.Fatalf("expected input-too-large error, got %+v", events)
	}
}

func TestHandleTurn_AllProvidersDown(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	// Route through a failover chain whose only member has an empty
	// response queue, so every attempt fails.
	f.svc.gateway = llm.NewFailoverChain(nil, f.provider)

	var events []Event
	err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID: "u1", Message: "my code is broken",
	}, collect(&events))
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}

	errs := eventsOfType(events, "error")
	if len(errs) != 1 || errs[0].Code != CodeUnavailable {
		t.Fatalf("expected providers-unavailable error, got %+v", events)
	}

	// A turn that produced nothing persists nothing.
	sessions := eventsOfType(events, "session")
	if len(sessions) != 1 {
		t.Fatal("session event missing")
	}
	msgs, err := f.store.Sessions().Messages(context.Background(), sessions[0].SessionID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	for _, m := range msgs {
		if m.Role == llm.RoleAssistant {
			t.Fatal("failed turn must not persist an assistant message")
		}
	}
}

func TestSessionGuard(t *testing.T) {
	g := newSessionGuard()
	if !g.acquire("s1") {
		t.Fatal("first acquire must succeed")
	}
	if g.acquire("s1") {
		t.Fatal("second acquire on the same session must fail")
	}
	if !g.acquire("s2") {
		t.Fatal("other sessions are unaffected")
	}
	g.release("s1")
	if !g.acquire("s1") {
		t.Fatal("acquire after release must succeed")
	}
}

func TestUserLimiters_PerUser(t *testing.T) {
	l := newUserLimiters(1, 1)
	if !l.allow("u1") {
		t.Fatal("first request must pass")
	}
	if l.allow("u1") {
		t.Fatal("burst of 1 must reject the second request")
	}
	if !l.allow("u2") {
		t.Fatal("limits are per user")
	}
}
