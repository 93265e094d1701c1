package pedagogy

import (
	"strings"

	"github.com/codetutor/codetutor/internal/diagnosis"
)

// Difficulty estimation is a cheap deterministic heuristic run once per
// problem, on its first turn. The estimates feed the EMA observation
// when the problem completes, so they only need to be roughly ordered,
// not precise.

var hardProgrammingMarkers = []string{
	"recursion", "recursive", "concurrency", "goroutine", "thread",
	"dynamic programming", "memoiz", "binary tree", "linked list",
	"graph", "backtrack", "regex", "decorator", "generator",
	"async", "pointer",
}

var mathsMarkers = []string{
	"equation", "matrix", "matrices", "vector", "probability",
	"derivative", "integral", "logarithm", "modulo", "prime",
	"factorial", "fibonacci", "gcd", "complexity", "big o",
	"statistics", "mean", "median", "standard deviation",
}

var hardMathsMarkers = []string{
	"derivative", "integral", "matrix", "matrices", "probability",
	"complexity", "big o", "logarithm",
}

// estimateDifficulty scores the first turn of a problem. Programming
// difficulty is 1–5; maths difficulty is 0 when no maths marker fires,
// otherwise 1–5.
func estimateDifficulty(message string, hasTaskContext bool, kind diagnosis.ErrorKind) (programming, maths int) {
	lower := strings.ToLower(message)

	programming = 2
	if len(message) > 400 {
		programming++
	}
	if hasTaskContext || strings.Contains(message, "```") {
		programming++
	}
	if kind == diagnosis.KindRuntime || kind == diagnosis.KindLogic {
		programming++
	}
	for _, m := range hardProgrammingMarkers {
		if strings.Contains(lower, m) {
			programming++
			break
		}
	}

	// maths stays 0 when the problem has no maths content at all, so
	// completing it leaves the maths estimate alone.
	for _, m := range mathsMarkers {
		if strings.Contains(lower, m) {
			maths = 2
			break
		}
	}
	for _, m := range hardMathsMarkers {
		if strings.Contains(lower, m) {
			maths += 2
			break
		}
	}

	if maths > 0 {
		maths = clampDifficulty(maths)
	}
	return clampDifficulty(programming), maths
}

func clampDifficulty(d int) int {
	if d < 1 {
		return 1
	}
	if d > 5 {
		return 5
	}
	return d
}
