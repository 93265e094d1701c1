package llm

import "context"

type contextKey string

const purposeKey contextKey = "llm_purpose"

// WithPurpose tags the context with what this request is for ("chat",
// "history-compress", ...). The tag travels with the request into the
// event log, which keeps per-purpose token usage attributable.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom reads the tag set by WithPurpose. Untagged requests
// report "unknown" rather than an empty string so the event log stays
// filterable.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}
