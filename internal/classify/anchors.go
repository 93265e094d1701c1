// Package classify implements the embedding-based message classifier:
// cheap cosine-similarity checks against fixed anchor sets, run before
// any LLM call so greetings and off-topic chatter never reach generation.
package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Signal names. Each maps to one anchor set and one threshold in the
// anchor file, except same_problem which compares against the previous
// problem fingerprint instead of a fixed set.
const (
	SignalGreeting    = "greeting"
	SignalOffTopic    = "off_topic"
	SignalSameProblem = "same_problem"
	SignalElaboration = "elaboration"
)

// AnchorPhrase is one reference phrase with its pre-computed embedding.
type AnchorPhrase struct {
	Phrase string    `yaml:"phrase"`
	Vector []float32 `yaml:"vector,flow"`
}

// Anchors holds the full anchor configuration: versioned, loaded once at
// startup, never mutated. Thresholds are calibrated empirically and live
// in the file so recalibration never requires a redeploy.
type Anchors struct {
	Version    int                       `yaml:"version"`
	Thresholds map[string]float64        `yaml:"thresholds"`
	Sets       map[string][]AnchorPhrase `yaml:"anchors"`
}

// LoadAnchors reads and validates an anchor file.
func LoadAnchors(path string) (*Anchors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read anchor file: %w", err)
	}

	var a Anchors
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse anchor file: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("anchor file %s: %w", path, err)
	}
	return &a, nil
}

// Save writes the anchors to path. Used by the anchor precompute command.
func (a *Anchors) Save(path string) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal anchors: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write anchor file: %w", err)
	}
	return nil
}

// Validate checks that every anchor set has vectors and every signal
// that needs a threshold has one.
func (a *Anchors) Validate() error {
	if a.Version < 1 {
		return fmt.Errorf("missing or invalid version")
	}
	for _, signal := range []string{SignalGreeting, SignalOffTopic, SignalSameProblem, SignalElaboration} {
		if _, ok := a.Thresholds[signal]; !ok {
			return fmt.Errorf("missing threshold for %q", signal)
		}
	}
	for name, set := range a.Sets {
		if len(set) == 0 {
			return fmt.Errorf("anchor set %q is empty", name)
		}
		dim := len(set[0].Vector)
		for _, p := range set {
			if len(p.Vector) == 0 {
				return fmt.Errorf("anchor %q/%q has no vector (run the anchors command to embed phrases)", name, p.Phrase)
			}
			if len(p.Vector) != dim {
				return fmt.Errorf("anchor set %q has mixed vector dimensions", name)
			}
		}
	}
	return nil
}

// Threshold returns the calibrated threshold for signal, or 1.1 (never
// matched) when the signal is unknown.
func (a *Anchors) Threshold(signal string) float64 {
	if t, ok := a.Thresholds[signal]; ok {
		return t
	}
	return 1.1
}

// DefaultThresholds are the starting calibration for a fresh anchor file.
func DefaultThresholds() map[string]float64 {
	return map[string]float64{
		SignalGreeting:    0.80,
		SignalOffTopic:    0.74,
		SignalSameProblem: 0.82,
		SignalElaboration: 0.78,
	}
}

// DefaultAnchorPhrases are the seed phrases embedded by the anchors
// command. Editing these (or the thresholds) and re-running the command
// is the whole recalibration workflow.
func DefaultAnchorPhrases() map[string][]string {
	return map[string][]string{
		SignalGreeting: {
			"hi",
			"hello there",
			"hey, how are you?",
			"good morning",
			"thanks, bye!",
		},
		SignalOffTopic: {
			"what's the weather like today?",
			"tell me a joke",
			"who won the football game last night?",
			"what movies should I watch this weekend?",
			"can you write my essay about history for me?",
		},
		SignalElaboration: {
			"can you explain that more?",
			"I don't understand, can you elaborate?",
			"what do you mean by that?",
			"could you go into more detail?",
			"can you give me another example of the same thing?",
		},
	}
}
