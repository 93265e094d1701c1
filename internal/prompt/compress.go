package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codetutor/codetutor/internal/llm"
)

// CompressorConfig holds history-compression settings.
type CompressorConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultCompressorConfig returns sensible defaults for compression.
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{
		MaxTokens:   256,
		Temperature: 0.3,
	}
}

// Compressor summarizes older conversation history into a single dense
// block through a non-streaming, schema-validated LLM call.
type Compressor struct {
	provider llm.Provider
	cfg      CompressorConfig
}

// NewCompressor creates a history compressor over the given provider.
func NewCompressor(provider llm.Provider, cfg CompressorConfig) *Compressor {
	return &Compressor{provider: provider, cfg: cfg}
}

const compressionSystemPrompt = `You compress tutoring-conversation history.
Given a transcript, produce a dense factual summary a tutor can rely on in
place of the original messages: which problems came up, what was tried,
what was resolved, and the student's apparent level. No commentary.`

type summaryOutput struct {
	Summary     string   `json:"summary"`
	OpenThreads []string `json:"open_threads"`
}

// Summarize compresses history into one text block. The caller splices
// the result into the prompt as a synthetic leading message.
func (c *Compressor) Summarize(ctx context.Context, history []llm.Message) (string, error) {
	ctx = llm.WithPurpose(ctx, "history-compress")

	req := llm.Request{
		System: compressionSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: transcript(history)},
		},
		Schema:      HistorySummarySchema,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("history compression: %w", err)
	}

	var out summaryOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("parse compression response: %w", err)
	}

	var b strings.Builder
	b.WriteString(out.Summary)
	if len(out.OpenThreads) > 0 {
		b.WriteString("\nUnresolved: ")
		b.WriteString(strings.Join(out.OpenThreads, "; "))
	}
	return b.String(), nil
}

func transcript(history []llm.Message) string {
	var b strings.Builder
	for _, m := range history {
		label := "Student"
		if m.Role == llm.RoleAssistant {
			label = "Tutor"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, m.Content)
	}
	return b.String()
}
