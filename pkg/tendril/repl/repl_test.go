package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sambeau/tendril/pkg/tendril/tendril"
)

func newSession(t *testing.T) (*Session, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	h := tendril.New(tendril.Options{Logger: tendril.WriterLogger(&out)})
	t.Cleanup(h.Close)
	return NewSession(h, &out), &out
}

func TestNeedsMoreInput(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"1 + 2", false},
		{"function f()", true},
		{"function f() return 1 end", false},
		{"for i = 1, 3 do", true},
		{"for i = 1, 3 do\n  print(i)\nend", false},
		{"if x then\n  y = 1\nelseif z then", true},
		{"if x then y = 1 elseif z then y = 2 else y = 3 end", false},
		{"repeat x = x + 1", true},
		{"repeat x = x + 1 until x > 3", false},
		{"t = {", true},
		{"t = {1, 2}", false},
		{`s = "end"`, false},
		{`s = "do`, true},
		{"x = 1 -- do", false},
		{"print(\"(\")", false},
	}
	for _, tt := range tests {
		if got := needsMoreInput(tt.input); got != tt.want {
			t.Errorf("needsMoreInput(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSessionEvaluates(t *testing.T) {
	s, out := newSession(t)

	s.Feed("x = 40")
	s.Feed("x + 2")
	s.Feed(`"hi"`)

	want := "OK\n42\n\"hi\"\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestSessionMultiLine(t *testing.T) {
	s, out := newSession(t)

	if chunk, _ := s.Feed("function double(n)"); chunk != "" {
		t.Fatalf("chunk evaluated early: %q", chunk)
	}
	if s.Prompt() != CONTINUATION_PROMPT {
		t.Errorf("Prompt() = %q during continuation", s.Prompt())
	}
	s.Feed("  return n * 2")
	chunk, _ := s.Feed("end")
	if chunk != "function double(n)\n  return n * 2\nend" {
		t.Errorf("chunk = %q", chunk)
	}

	out.Reset()
	s.Feed("double(21)")
	if out.String() != "42\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestSessionPrintsErrors(t *testing.T) {
	s, out := newSession(t)
	s.Feed("error('boom')")
	if !strings.Contains(out.String(), "Runtime error") || !strings.Contains(out.String(), "boom") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSessionCommands(t *testing.T) {
	s, out := newSession(t)

	s.Feed(":resources")
	if !strings.Contains(out.String(), "lib/page") {
		t.Errorf(":resources output = %q", out.String())
	}

	out.Reset()
	s.Feed(":md *hi*")
	if !strings.Contains(out.String(), "<em>hi</em>") {
		t.Errorf(":md output = %q", out.String())
	}

	out.Reset()
	s.Feed(":bogus")
	if !strings.Contains(out.String(), "Unknown command") {
		t.Errorf(":bogus output = %q", out.String())
	}

	if _, quit := s.Feed("exit"); !quit {
		t.Error("exit did not quit")
	}
}

func TestFormatValue(t *testing.T) {
	s, out := newSession(t)
	s.Feed("{1, 'a', k = true, [5] = 0}")
	if got := out.String(); got != "{1, \"a\", [5] = 0, k = true}\n" {
		t.Errorf("output = %q", got)
	}
}

func TestFilterCompletions(t *testing.T) {
	got := filterCompletions("x = tendril.markdown.c")
	if len(got) != 1 || got[0] != "x = tendril.markdown.convert" {
		t.Errorf("filterCompletions() = %q", got)
	}
	got = filterCompletions("print(ev.ta")
	if len(got) != 1 || got[0] != "print(ev.tag" {
		t.Errorf("event field completions = %q", got)
	}
	if got := filterCompletions("string.ta"); len(got) != 0 {
		t.Errorf("library members completed as event fields: %q", got)
	}
	if filterCompletions("x ") != nil {
		t.Error("expected no completions after a space")
	}
}
