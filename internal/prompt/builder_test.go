package prompt

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/codetutor/codetutor/internal/llm"
)

// wordCount counts whitespace-separated words, which makes test budgets
// exact instead of length-heuristic approximations.
func wordCount(text string) int {
	return len(strings.Fields(text))
}

func msg(role llm.Role, content string) llm.Message {
	return llm.Message{Role: role, Content: content}
}

func TestBuild_EmptyHistory(t *testing.T) {
	b := NewBuilder(wordCount, nil, DefaultConfig(), nil)
	p := b.Build(context.Background(), Input{
		Persona:      "persona",
		Instructions: []string{"rule one", "rule two"},
		Message:      "help me",
	})

	if len(p.Messages) != 1 {
		t.Fatalf("want exactly 1 message, got %d", len(p.Messages))
	}
	if p.Messages[0].Content != "help me" {
		t.Fatalf("unexpected current turn: %q", p.Messages[0].Content)
	}
	if p.System != "persona\n\nrule one\n\nrule two" {
		t.Fatalf("system parts not concatenated in order: %q", p.System)
	}
}

func TestBuild_SystemOrderIsDeterministic(t *testing.T) {
	b := NewBuilder(wordCount, nil, DefaultConfig(), nil)
	in := Input{Persona: "p", Instructions: []string{"a", "b", "c"}, Message: "m"}

	first := b.Build(context.Background(), in)
	second := b.Build(context.Background(), in)
	if first.System != second.System {
		t.Fatal("same input must produce the same system prompt")
	}
}

func TestBuild_CurrentTurnSections(t *testing.T) {
	b := NewBuilder(wordCount, nil, DefaultConfig(), nil)
	p := b.Build(context.Background(), Input{
		Message:   "why does this fail?",
		CellCode:  "print(x)",
		ErrorText: "NameError: name 'x' is not defined",
	})

	got := p.Messages[0].Content
	if !strings.Contains(got, "Current cell:\n```\nprint(x)\n```") {
		t.Fatalf("cell section missing: %q", got)
	}
	if !strings.Contains(got, "Error output:\n```\nNameError") {
		t.Fatalf("error section missing: %q", got)
	}
	if strings.Index(got, "Current cell:") > strings.Index(got, "Error output:") {
		t.Fatal("sections out of order")
	}
}

func TestBuild_HistoryFitsUntouched(t *testing.T) {
	cfg := Config{TokenBudget: 100, CompressRatio: 0.8, KeepRecent: 4}
	b := NewBuilder(wordCount, nil, cfg, nil)
	history := []llm.Message{
		msg(llm.RoleUser, "one two three"),
		msg(llm.RoleAssistant, "four five six"),
	}
	p := b.Build(context.Background(), Input{Message: "now", History: history})

	if len(p.Messages) != 3 || p.Dropped != 0 || p.Compressed {
		t.Fatalf("small history must pass through whole: %+v", p)
	}
	if p.Messages[0].Content != "one two three" || p.Messages[2].Content != "now" {
		t.Fatal("messages out of chronological order")
	}
}

func TestBuild_TrimsOldestFirst(t *testing.T) {
	// Budget 10, message "now" costs 1, so 9 tokens of history fit.
	// Ratio 1.0 disables compression; trimming drops the oldest.
	cfg := Config{TokenBudget: 10, CompressRatio: 1.0, KeepRecent: 4}
	b := NewBuilder(wordCount, nil, cfg, nil)
	history := []llm.Message{
		msg(llm.RoleUser, "a b c d e"),      // 5 tokens, dropped
		msg(llm.RoleAssistant, "f g h i j"), // 5 tokens, kept
		msg(llm.RoleUser, "k l m n"),        // 4 tokens, kept
	}
	p := b.Build(context.Background(), Input{Message: "now", History: history})

	if p.Dropped != 1 {
		t.Fatalf("dropped %d, want 1", p.Dropped)
	}
	if len(p.Messages) != 3 {
		t.Fatalf("want 2 history + current, got %d messages", len(p.Messages))
	}
	if p.Messages[0].Content != "f g h i j" {
		t.Fatalf("kept wrong messages: %q", p.Messages[0].Content)
	}
}

func TestBuild_NeverSplitsHistoryMessages(t *testing.T) {
	cfg := Config{TokenBudget: 8, CompressRatio: 1.0, KeepRecent: 4}
	b := NewBuilder(wordCount, nil, cfg, nil)
	history := []llm.Message{
		msg(llm.RoleUser, "a b c d e f"), // 6 tokens: does not fit in 7
		msg(llm.RoleAssistant, "g h"),    // fits
	}
	p := b.Build(context.Background(), Input{Message: "now", History: history})

	for _, m := range p.Messages[:len(p.Messages)-1] {
		if m.Content != "g h" {
			t.Fatalf("partial history message leaked: %q", m.Content)
		}
	}
}

func TestBuild_CompressesOverThreshold(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"summary":"earlier we fixed a loop bug","open_threads":["file reading"]}`),
	})
	comp := NewCompressor(mock, DefaultCompressorConfig())

	cfg := Config{TokenBudget: 30, CompressRatio: 0.5, KeepRecent: 2}
	b := NewBuilder(wordCount, comp, cfg, nil)
	history := []llm.Message{
		msg(llm.RoleUser, "q1 about loops and things"),
		msg(llm.RoleAssistant, "a1 with a long detailed answer here"),
		msg(llm.RoleUser, "q2 short"),
		msg(llm.RoleAssistant, "a2 short"),
	}
	p := b.Build(context.Background(), Input{Message: "now", History: history})

	if !p.Compressed {
		t.Fatal("expected compression over the threshold")
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("want exactly one summarize call, got %d", len(mock.Calls))
	}
	lead := p.Messages[0].Content
	if !strings.Contains(lead, "earlier we fixed a loop bug") {
		t.Fatalf("summary not spliced in: %q", lead)
	}
	// The two newest messages ride along verbatim.
	if p.Messages[1].Content != "q2 short" || p.Messages[2].Content != "a2 short" {
		t.Fatal("recent history not kept verbatim")
	}
	if p.Messages[len(p.Messages)-1].Content != "now" {
		t.Fatal("current turn must come last")
	}
}

func TestBuild_OversizedSummaryStaysWithinBudget(t *testing.T) {
	// A summary much larger than the whole budget must be cut down, not
	// carried whole past the cap.
	long := strings.Repeat("word ", 40)
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"summary":"` + strings.TrimSpace(long) + `","open_threads":[]}`),
	})
	comp := NewCompressor(mock, DefaultCompressorConfig())

	cfg := Config{TokenBudget: 20, CompressRatio: 0.5, KeepRecent: 2}
	b := NewBuilder(wordCount, comp, cfg, nil)
	history := []llm.Message{
		msg(llm.RoleUser, "a b c d e f"),
		msg(llm.RoleAssistant, "g h i j k l"),
		msg(llm.RoleUser, "m n"),
		msg(llm.RoleAssistant, "o p"),
	}
	p := b.Build(context.Background(), Input{Message: "now", History: history})

	if !p.Compressed {
		t.Fatal("expected the compressed path")
	}
	total := wordCount(p.System)
	for _, m := range p.Messages {
		total += wordCount(m.Content)
	}
	if total > cfg.TokenBudget {
		t.Fatalf("prompt over budget: %d tokens, budget %d", total, cfg.TokenBudget)
	}
	if !strings.HasPrefix(p.Messages[0].Content, "Summary of our conversation so far:") {
		t.Fatalf("truncated summary lost its marker: %q", p.Messages[0].Content)
	}
}

func TestBuild_CompressionFailureFallsBackToTrim(t *testing.T) {
	mock := llm.NewMockProvider() // empty queue: every call fails
	comp := NewCompressor(mock, DefaultCompressorConfig())

	cfg := Config{TokenBudget: 12, CompressRatio: 0.5, KeepRecent: 2}
	b := NewBuilder(wordCount, comp, cfg, nil)
	history := []llm.Message{
		msg(llm.RoleUser, "a b c d e f g h"),
		msg(llm.RoleAssistant, "i j"),
		msg(llm.RoleUser, "k l"),
	}
	p := b.Build(context.Background(), Input{Message: "now", History: history})

	if p.Compressed {
		t.Fatal("failed compression must not be reported as compressed")
	}
	if len(p.Messages) == 0 || p.Messages[len(p.Messages)-1].Content != "now" {
		t.Fatal("prompt must still be usable after compression failure")
	}
	if p.Dropped == 0 {
		t.Fatal("fallback should have trimmed the oversized history")
	}
}

func TestBuild_CurrentTurnTruncatedAsLastResort(t *testing.T) {
	cfg := Config{TokenBudget: 6, CompressRatio: 0.8, KeepRecent: 4}
	b := NewBuilder(wordCount, nil, cfg, nil)
	p := b.Build(context.Background(), Input{
		Persona: "one two three",
		Message: "a b c d e f g h i j",
		History: []llm.Message{msg(llm.RoleUser, "old")},
	})

	if len(p.Messages) != 1 {
		t.Fatalf("history must be dropped before truncation, got %d messages", len(p.Messages))
	}
	if got := wordCount(p.Messages[0].Content); got > 3 {
		t.Fatalf("current turn not truncated to budget: %d tokens", got)
	}
	if p.Dropped != 1 {
		t.Fatalf("dropped %d, want 1", p.Dropped)
	}
}

func TestTruncateToTokens(t *testing.T) {
	text := "alpha beta gamma delta"
	got := truncateToTokens(text, 2, wordCount)
	if wordCount(got) > 2 {
		t.Fatalf("still over budget: %q", got)
	}
	if !strings.HasPrefix(text, got) {
		t.Fatalf("truncation must be a prefix: %q", got)
	}
	if truncateToTokens(text, 0, wordCount) != "" {
		t.Fatal("zero budget must yield empty text")
	}
}
