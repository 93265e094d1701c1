package prompt

import "github.com/codetutor/codetutor/internal/llm"

// HistorySummarySchema defines the JSON schema for conversation history
// compression.
var HistorySummarySchema = &llm.Schema{
	Name:        "history-summary",
	Description: "Compressed summary of the older part of a tutoring conversation",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "Dense summary of what was discussed and decided (3-6 sentences)",
			},
			"open_threads": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "string",
				},
				"description": "Problems or questions the student has not resolved yet",
			},
		},
		"required":             []any{"summary", "open_threads"},
		"additionalProperties": false,
	},
}
