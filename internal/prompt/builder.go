package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codetutor/codetutor/internal/llm"
)

// Config holds prompt assembly settings.
type Config struct {
	// TokenBudget is the cap for the whole prompt: system, history, and
	// current turn together.
	TokenBudget int

	// CompressRatio is the fraction of the history budget above which
	// older history is compressed instead of trimmed. 0.8 means
	// compression starts when history needs more than 80% of the room
	// left after system and current turn.
	CompressRatio float64

	// KeepRecent is how many of the newest history messages are always
	// carried verbatim, never folded into a summary.
	KeepRecent int
}

// DefaultConfig returns sensible defaults for prompt assembly.
func DefaultConfig() Config {
	return Config{
		TokenBudget:   8000,
		CompressRatio: 0.8,
		KeepRecent:    4,
	}
}

// Input is everything the builder needs for one turn.
type Input struct {
	Persona      string
	Instructions []string

	Message   string
	CellCode  string
	ErrorText string

	// History is the prior conversation, oldest first.
	History []llm.Message
}

// Prompt is the assembled request content.
type Prompt struct {
	System   string
	Messages []llm.Message

	// Compressed is set when older history was summarized by the LLM.
	// Dropped counts history messages that fit neither verbatim nor via
	// a summary.
	Compressed bool
	Dropped    int
}

// Builder assembles prompts deterministically: the same input, budget,
// and counter always produce the same output, except for the LLM-backed
// summary text itself.
type Builder struct {
	count      TokenCounter
	compressor *Compressor
	cfg        Config
	logger     *slog.Logger
}

// NewBuilder creates a Builder. compressor may be nil, in which case
// oversized history is trimmed instead of summarized.
func NewBuilder(count TokenCounter, compressor *Compressor, cfg Config, logger *slog.Logger) *Builder {
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultConfig().TokenBudget
	}
	if cfg.CompressRatio <= 0 || cfg.CompressRatio > 1 {
		cfg.CompressRatio = DefaultConfig().CompressRatio
	}
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = DefaultConfig().KeepRecent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{count: count, compressor: compressor, cfg: cfg, logger: logger.With("component", "prompt")}
}

// Build assembles the prompt for one turn. It never fails: when the
// compressor is unavailable or errors, it degrades to whole-message
// trimming, and when even the current turn overflows the budget it is
// truncated as a last resort.
func (b *Builder) Build(ctx context.Context, in Input) *Prompt {
	system := buildSystem(in.Persona, in.Instructions)
	current := formatCurrentTurn(in.Message, in.CellCode, in.ErrorText)

	historyBudget := b.cfg.TokenBudget - b.count(system) - b.count(current)
	if historyBudget < 0 {
		// System plus current turn alone overflow. Instructions are not
		// negotiable, so the turn text gives way.
		current = truncateToTokens(current, b.cfg.TokenBudget-b.count(system), b.count)
		return &Prompt{
			System:   system,
			Messages: []llm.Message{{Role: llm.RoleUser, Content: current}},
			Dropped:  len(in.History),
		}
	}

	msgs, compressed, dropped := b.fitHistory(ctx, in.History, historyBudget)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: current})

	return &Prompt{System: system, Messages: msgs, Compressed: compressed, Dropped: dropped}
}

// buildSystem concatenates the persona and instruction blocks in order,
// separated by blank lines.
func buildSystem(persona string, instructions []string) string {
	parts := make([]string, 0, len(instructions)+1)
	if persona != "" {
		parts = append(parts, persona)
	}
	for _, in := range instructions {
		if in != "" {
			parts = append(parts, in)
		}
	}
	return strings.Join(parts, "\n\n")
}

// formatCurrentTurn renders the student message with its notebook
// context under fixed section markers. Only the current turn carries
// these sections; history messages are stored as plain text.
func formatCurrentTurn(message, cellCode, errorText string) string {
	var b strings.Builder
	b.WriteString(message)
	if cellCode != "" {
		fmt.Fprintf(&b, "\n\nCurrent cell:\n```\n%s\n```", cellCode)
	}
	if errorText != "" {
		fmt.Fprintf(&b, "\n\nError output:\n```\n%s\n```", errorText)
	}
	return b.String()
}

// fitHistory fits history into budget tokens. Under the compression
// threshold it trims oldest-first; over it, the older share is
// summarized into one synthetic message and the newest KeepRecent
// messages ride along verbatim.
func (b *Builder) fitHistory(ctx context.Context, history []llm.Message, budget int) (msgs []llm.Message, compressed bool, dropped int) {
	if len(history) == 0 || budget <= 0 {
		return nil, false, len(history)
	}

	total := 0
	for _, m := range history {
		total += b.count(m.Content)
	}

	threshold := int(float64(budget) * b.cfg.CompressRatio)
	if total <= threshold {
		return history, false, 0
	}

	if b.compressor != nil && len(history) > b.cfg.KeepRecent {
		keep := history[len(history)-b.cfg.KeepRecent:]
		older := history[:len(history)-b.cfg.KeepRecent]

		summary, err := b.compressor.Summarize(ctx, older)
		if err == nil {
			lead := llm.Message{
				Role:    llm.RoleUser,
				Content: "Summary of our conversation so far:\n" + summary,
			}
			// The summary itself counts against the budget like any other
			// message: cut it down if it alone would not fit.
			if b.count(lead.Content) > budget {
				lead.Content = truncateToTokens(lead.Content, budget, b.count)
			}
			msgs = append([]llm.Message{lead}, keep...)
			// The summary can still crowd out a tight budget; trim the
			// verbatim tail if so, keeping the summary.
			msgs, droppedTail := b.trimOldest(msgs, budget, 1)
			return msgs, true, droppedTail
		}
		b.logger.WarnContext(ctx, "history compression failed, trimming instead", "error", err)
	}

	msgs, dropped = b.trimOldest(history, budget, 0)
	return msgs, false, dropped
}

// trimOldest drops whole messages oldest-first until the rest fit.
// The first pinned messages are never dropped. Output stays in
// chronological order.
func (b *Builder) trimOldest(history []llm.Message, budget, pinned int) ([]llm.Message, int) {
	used := 0
	for i := 0; i < pinned && i < len(history); i++ {
		used += b.count(history[i].Content)
	}

	// Walk newest-first over the droppable region, keeping whole
	// messages while they fit.
	keepFrom := len(history)
	for i := len(history) - 1; i >= pinned; i-- {
		c := b.count(history[i].Content)
		if used+c > budget {
			break
		}
		used += c
		keepFrom = i
	}

	dropped := keepFrom - pinned
	out := make([]llm.Message, 0, pinned+len(history)-keepFrom)
	out = append(out, history[:pinned]...)
	out = append(out, history[keepFrom:]...)
	return out, dropped
}
