// Package diagnosis classifies student-reported errors into coarse
// categories by string pattern matching. No LLM call: the result only
// selects which debugging-guidance instructions join the system prompt.
package diagnosis

// ErrorKind is the coarse category of an error a student ran into.
type ErrorKind string

const (
	KindNone    ErrorKind = "none"    // no error output in the turn
	KindSyntax  ErrorKind = "syntax"  // code does not parse
	KindRuntime ErrorKind = "runtime" // code parses but raises at runtime
	KindLogic   ErrorKind = "logic"   // runs fine, wrong result
	KindGeneral ErrorKind = "general" // unrecognized error output
)

// ClassifyInput holds the context for classification.
type ClassifyInput struct {
	// ErrorText is the raw traceback or error output, empty when the
	// turn carried none.
	ErrorText string

	// Message is the student's message, used to catch "it runs but the
	// answer is wrong" reports that come without machine output.
	Message string
}
