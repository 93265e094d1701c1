package classify

import (
	"context"
	"log/slog"
	"math"
)

// Embedder is the slice of the embedding chain the classifier needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Signals are the boolean classification outputs for one message.
type Signals struct {
	Greeting    bool
	OffTopic    bool
	SameProblem bool
	Elaboration bool
}

// Result carries the signals plus the message embedding, which the
// pedagogy engine stores as the next problem fingerprint.
type Result struct {
	Signals   Signals
	Embedding []float32

	// Degraded is set when both embedding providers failed. All signals
	// are false in that case: the message proceeds to the LLM rather
	// than blocking the student.
	Degraded bool
}

// Options tune a single classification call.
type Options struct {
	// SkipTopicFilters suppresses the greeting/off-topic checks. Turns
	// carrying notebook or error context are always task context.
	SkipTopicFilters bool
}

// Classifier compares message embeddings against fixed anchor sets.
// Pure apart from the embedding call: same inputs, same anchors, same
// thresholds always produce the same signals.
type Classifier struct {
	embedder Embedder
	anchors  *Anchors
	logger   *slog.Logger
}

// New creates a Classifier over the given embedder and anchors.
func New(embedder Embedder, anchors *Anchors, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		embedder: embedder,
		anchors:  anchors,
		logger:   logger.With("component", "classify"),
	}
}

// Classify embeds text and evaluates every signal. prevFingerprint is
// the embedding of the previous Q+A pair, or nil when there is no prior
// problem; same-problem is always false in that case.
func (c *Classifier) Classify(ctx context.Context, text string, prevFingerprint []float32, opts Options) Result {
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		// Fail open: no signal fires, the turn proceeds to the LLM.
		c.logger.WarnContext(ctx, "embedding unavailable, classification degraded", "error", err)
		return Result{Degraded: true}
	}

	var sig Signals
	if !opts.SkipTopicFilters {
		sig.Greeting = c.matches(vec, SignalGreeting)
		sig.OffTopic = !sig.Greeting && c.matches(vec, SignalOffTopic)
	}
	sig.Elaboration = c.matches(vec, SignalElaboration)

	if len(prevFingerprint) > 0 {
		sim := Cosine(vec, prevFingerprint)
		sig.SameProblem = sim >= c.anchors.Threshold(SignalSameProblem)
	}

	return Result{Signals: sig, Embedding: vec}
}

// matches reports whether vec clears the threshold for the named anchor
// set. The score is the maximum similarity across the set's phrases.
func (c *Classifier) matches(vec []float32, signal string) bool {
	set, ok := c.anchors.Sets[signal]
	if !ok {
		return false
	}
	best := -1.0
	for _, p := range set {
		if sim := Cosine(vec, p.Vector); sim > best {
			best = sim
		}
	}
	return best >= c.anchors.Threshold(signal)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is
// empty, zero, or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
