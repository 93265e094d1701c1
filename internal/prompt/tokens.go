// Package prompt assembles the final LLM request for a chat turn under
// a token budget: system persona plus adapted instructions, the current
// turn with its notebook context, and as much conversation history as
// fits, compressing older history through the LLM when it grows too
// large.
package prompt

import "strings"

// TokenCounter estimates the token count of text. The builder takes it
// as a function so it can share the gateway's estimator and tests can
// substitute exact counts.
type TokenCounter func(text string) int

// truncateToTokens cuts text so its estimate fits within budget,
// preferring a word boundary. Used only as a last resort on the current
// turn; history is dropped whole-message instead.
func truncateToTokens(text string, budget int, count TokenCounter) string {
	if budget <= 0 {
		return ""
	}
	if count(text) <= budget {
		return text
	}
	// The estimator is monotone in length, so binary search the cut.
	lo, hi := 0, len(text)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if count(text[:mid]) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	cut := text[:lo]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}
