package diagnosis

import "strings"

// Classifier is one rule in the classification chain.
// Returns ("", false) if the rule doesn't apply.
type Classifier interface {
	Name() string
	Classify(input *ClassifyInput) (ErrorKind, bool)
}

// DefaultClassifiers returns classifiers in priority order. Syntax runs
// before runtime because a traceback that ends in SyntaxError also
// mentions the file/line markers runtime rules would match.
func DefaultClassifiers() []Classifier {
	return []Classifier{
		&SyntaxClassifier{},
		&RuntimeClassifier{},
		&LogicClassifier{},
	}
}

// Classify maps a turn's error context to exactly one ErrorKind. Total
// and deterministic: every input maps to one kind.
func Classify(input *ClassifyInput) ErrorKind {
	if input == nil {
		return KindNone
	}

	if strings.TrimSpace(input.ErrorText) == "" {
		// No machine error. A wrong-result report is a logic error;
		// otherwise there is nothing to classify.
		if (&LogicClassifier{}).signalsWrongResult(input.Message) {
			return KindLogic
		}
		return KindNone
	}

	for _, c := range DefaultClassifiers() {
		if kind, ok := c.Classify(input); ok {
			return kind
		}
	}
	return KindGeneral
}

// SyntaxClassifier matches parse-time failures.
type SyntaxClassifier struct{}

func (c *SyntaxClassifier) Name() string { return "syntax" }

var syntaxMarkers = []string{
	"SyntaxError",
	"IndentationError",
	"TabError",
	"invalid syntax",
	"unexpected EOF while parsing",
	"unexpected indent",
}

func (c *SyntaxClassifier) Classify(input *ClassifyInput) (ErrorKind, bool) {
	for _, m := range syntaxMarkers {
		if strings.Contains(input.ErrorText, m) {
			return KindSyntax, true
		}
	}
	return "", false
}

// RuntimeClassifier matches exceptions raised by running code.
type RuntimeClassifier struct{}

func (c *RuntimeClassifier) Name() string { return "runtime" }

var runtimeMarkers = []string{
	"NameError",
	"TypeError",
	"ValueError",
	"IndexError",
	"KeyError",
	"AttributeError",
	"ZeroDivisionError",
	"RecursionError",
	"FileNotFoundError",
	"ModuleNotFoundError",
	"ImportError",
	"OverflowError",
	"StopIteration",
	"RuntimeError",
	"MemoryError",
	"Traceback (most recent call last)",
	"panic:",
	"Exception in thread",
	"Segmentation fault",
}

func (c *RuntimeClassifier) Classify(input *ClassifyInput) (ErrorKind, bool) {
	for _, m := range runtimeMarkers {
		if strings.Contains(input.ErrorText, m) {
			return KindRuntime, true
		}
	}
	return "", false
}

// LogicClassifier matches "it runs but the output is wrong" reports.
type LogicClassifier struct{}

func (c *LogicClassifier) Name() string { return "logic" }

var wrongResultMarkers = []string{
	"wrong answer",
	"wrong output",
	"wrong result",
	"incorrect",
	"not what i expected",
	"expected output",
	"should return",
	"should print",
	"but it returns",
	"but it prints",
	"doesn't work",
	"does not work",
}

func (c *LogicClassifier) Classify(input *ClassifyInput) (ErrorKind, bool) {
	if c.signalsWrongResult(input.Message) {
		return KindLogic, true
	}
	return "", false
}

func (c *LogicClassifier) signalsWrongResult(message string) bool {
	lower := strings.ToLower(message)
	for _, m := range wrongResultMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
