package diagnosis

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		errorText string
		message   string
		want      ErrorKind
	}{
		{
			name: "no error at all",
			want: KindNone,
		},
		{
			name:      "syntax error",
			errorText: "SyntaxError: invalid syntax",
			want:      KindSyntax,
		},
		{
			name:      "indentation error",
			errorText: `File "main.py", line 4\n    print(x)\nIndentationError: unexpected indent`,
			want:      KindSyntax,
		},
		{
			name:      "name error is runtime",
			errorText: "NameError: name 'x' is not defined",
			want:      KindRuntime,
		},
		{
			name:      "full traceback",
			errorText: "Traceback (most recent call last):\n  File \"main.py\", line 2, in <module>\n    print(1/0)\nZeroDivisionError: division by zero",
			want:      KindRuntime,
		},
		{
			name:      "syntax wins over traceback markers",
			errorText: "Traceback (most recent call last):\n  ...\nSyntaxError: invalid syntax",
			want:      KindSyntax,
		},
		{
			name:    "wrong result without machine error",
			message: "my function runs but the answer is incorrect",
			want:    KindLogic,
		},
		{
			name:    "should-return report",
			message: "it should return 10 but it returns 9",
			want:    KindLogic,
		},
		{
			name:      "unrecognized error output",
			errorText: "make: *** [all] Error 2",
			want:      KindGeneral,
		},
		{
			name:    "normal question without error",
			message: "how do I reverse a list?",
			want:    KindNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(&ClassifyInput{ErrorText: tt.errorText, Message: tt.message})
			if got != tt.want {
				t.Fatalf("Classify(%q, %q) = %q, want %q", tt.errorText, tt.message, got, tt.want)
			}
		})
	}
}

func TestClassify_NilInput(t *testing.T) {
	if got := Classify(nil); got != KindNone {
		t.Fatalf("Classify(nil) = %q, want %q", got, KindNone)
	}
}

func TestClassify_Total(t *testing.T) {
	// Every input maps to exactly one of the five kinds.
	inputs := []*ClassifyInput{
		{},
		{ErrorText: "garbage"},
		{ErrorText: "SyntaxError"},
		{ErrorText: "KeyError: 'name'"},
		{Message: "wrong output"},
	}
	valid := map[ErrorKind]bool{
		KindNone: true, KindSyntax: true, KindRuntime: true,
		KindLogic: true, KindGeneral: true,
	}
	for _, in := range inputs {
		if kind := Classify(in); !valid[kind] {
			t.Fatalf("Classify(%+v) produced unknown kind %q", in, kind)
		}
	}
}
