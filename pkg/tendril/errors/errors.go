// Package errors provides structured error types for the tendril host.
//
// This package defines ScriptError, a single error type that represents
// registry misses, compile failures, runtime failures raised by scripts,
// native parser failures and filesystem helper failures, with enough
// metadata for terminal display and programmatic handling.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassNotFound ErrorClass = "notfound" // Resource name absent from the registry
	ClassCompile  ErrorClass = "compile"  // Malformed script source
	ClassRuntime  ErrorClass = "runtime"  // Uncaught failure during script execution
	ClassParse    ErrorClass = "parse"    // Native parser failure or non-textual input
	ClassIO       ErrorClass = "io"       // Filesystem helpers
	ClassType     ErrorClass = "type"     // Wrong argument type crossing the bridge
	ClassState    ErrorClass = "state"    // Use of a finished or invalid handle
)

// Frame is one entry of a runtime stack trace, innermost first.
type Frame struct {
	Source   string `json:"source"`
	Line     int    `json:"line"`
	Function string `json:"function,omitempty"`
}

// String formats the frame the way Lua tracebacks do.
func (f Frame) String() string {
	var sb strings.Builder
	sb.WriteString(f.Source)
	if f.Line > 0 {
		fmt.Fprintf(&sb, ":%d", f.Line)
	}
	sb.WriteString(": in ")
	if f.Function != "" {
		fmt.Fprintf(&sb, "function '%s'", f.Function)
	} else {
		sb.WriteString("main chunk")
	}
	return sb.String()
}

// ScriptError represents any error surfaced by the host or its runtime.
type ScriptError struct {
	Class    ErrorClass     `json:"class"`              // Error category
	Code     string         `json:"code"`               // Error code (e.g., "RES-0001")
	Message  string         `json:"message"`            // Human-readable message
	Hints    []string       `json:"hints,omitempty"`    // Suggestions for fixing
	Resource string         `json:"resource,omitempty"` // Resource or file name (if known)
	Trace    []Frame        `json:"trace,omitempty"`    // Runtime stack, innermost first
	Data     map[string]any `json:"data,omitempty"`     // Template variables

	// Value is the runtime's own error value, kept so it can be re-raised
	// unchanged when the error crosses back into the runtime.
	Value any `json:"-"`
	// Cause is the underlying Go error, if any.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return e.String()
}

// Unwrap exposes the underlying Go error.
func (e *ScriptError) Unwrap() error {
	return e.Cause
}

// Is matches class sentinels such as ErrNotFound. A target with a Code
// only matches errors carrying the same code.
func (e *ScriptError) Is(target error) bool {
	t, ok := target.(*ScriptError)
	if !ok {
		return false
	}
	if t.Code != "" {
		return t.Code == e.Code
	}
	return t.Class == e.Class
}

// String returns a single-line representation of the error.
func (e *ScriptError) String() string {
	var sb strings.Builder

	if e.Resource != "" {
		sb.WriteString(e.Resource)
		sb.WriteString(": ")
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display,
// including the stack trace when one was captured.
func (e *ScriptError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassCompile:
		sb.WriteString("Compile error")
	case ClassNotFound:
		sb.WriteString("Resource error")
	case ClassParse:
		sb.WriteString("Parse error")
	case ClassIO:
		sb.WriteString("I/O error")
	default:
		sb.WriteString("Runtime error")
	}

	if e.Resource != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Resource)
	}
	sb.WriteString(":\n  ")
	sb.WriteString(e.Message)

	for i, hint := range e.Hints {
		sb.WriteString("\n  ")
		if i == 0 {
			sb.WriteString("hint: ")
		} else {
			sb.WriteString("  or: ")
		}
		sb.WriteString(hint)
	}

	if len(e.Trace) > 0 {
		sb.WriteString("\n")
		sb.WriteString(e.TraceString())
	}

	return sb.String()
}

// TraceString renders the captured frames as a traceback block.
func (e *ScriptError) TraceString() string {
	if len(e.Trace) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("stack traceback:")
	for _, f := range e.Trace {
		sb.WriteString("\n\t")
		sb.WriteString(f.String())
	}
	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *ScriptError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithResource returns a copy of the error with the resource name set.
func (e *ScriptError) WithResource(name string) *ScriptError {
	copy := *e
	copy.Resource = name
	return &copy
}

// WithTrace returns a copy of the error carrying the given frames.
func (e *ScriptError) WithTrace(frames []Frame) *ScriptError {
	copy := *e
	copy.Trace = frames
	return &copy
}

// Class sentinels for errors.Is.
var (
	ErrNotFound = &ScriptError{Class: ClassNotFound}
	ErrCompile  = &ScriptError{Class: ClassCompile}
	ErrRuntime  = &ScriptError{Class: ClassRuntime}
	ErrParse    = &ScriptError{Class: ClassParse}
	ErrIO       = &ScriptError{Class: ClassIO}
	ErrType     = &ScriptError{Class: ClassType}
	ErrState    = &ScriptError{Class: ClassState}
)

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass // Error category
	Template string     // Message template with {{.placeholders}}
	Hints    []string   // Hint templates (may use {{.placeholders}})
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Registry
	"RES-0001": {
		Class:    ClassNotFound,
		Template: "resource '{{.Name}}' not found",
	},
	"RES-0002": {
		Class:    ClassState,
		Template: "duplicate resource '{{.Name}}'",
	},

	// Compilation
	"COMP-0001": {
		Class:    ClassCompile,
		Template: "{{.Detail}}",
	},

	// Runtime
	"RUN-0001": {
		Class:    ClassRuntime,
		Template: "{{.Detail}}",
	},

	// Native parsers
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "markdown conversion failed",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "html tokenizer failed: {{.Detail}}",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "invalid frontmatter: {{.Detail}}",
		Hints:    []string{"frontmatter must be a YAML mapping between two '---' lines"},
	},

	// Filesystem helpers
	"IO-0001": {
		Class:    ClassIO,
		Template: "cannot create directory '{{.Path}}': {{.Detail}}",
	},
	"IO-0002": {
		Class:    ClassIO,
		Template: "cannot list directory '{{.Path}}': {{.Detail}}",
	},
	"IO-0003": {
		Class:    ClassIO,
		Template: "cannot read '{{.Path}}': {{.Detail}}",
	},

	// Bridge misuse
	"TYPE-0001": {
		Class:    ClassType,
		Template: "{{.Function}} expects {{.Expected}}, got {{.Got}}",
	},
	"STATE-0001": {
		Class:    ClassState,
		Template: "buffer already finished",
		Hints:    []string{"create a new buffer with tendril.buffer()"},
	},
}

// New creates a ScriptError from the catalog.
// Unknown codes produce a runtime error carrying the code as message.
func New(code string, data map[string]any) *ScriptError {
	def, ok := ErrorCatalog[code]
	if !ok {
		return &ScriptError{
			Class:   ClassRuntime,
			Code:    code,
			Message: "unknown error: " + code,
			Data:    data,
		}
	}

	err := &ScriptError{
		Class:   def.Class,
		Code:    code,
		Message: renderTemplate(def.Template, data),
		Data:    data,
	}
	for _, h := range def.Hints {
		err.Hints = append(err.Hints, renderTemplate(h, data))
	}
	return err
}

// Wrap builds a catalog error whose Detail is the cause's message.
func Wrap(code string, cause error, data map[string]any) *ScriptError {
	if data == nil {
		data = map[string]any{}
	}
	if cause != nil {
		data["Detail"] = cause.Error()
	}
	err := New(code, data)
	err.Cause = cause
	return err
}

// renderTemplate executes a message template, falling back to the raw
// template text if it cannot be parsed or executed.
func renderTemplate(tmplStr string, data map[string]any) string {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr
	}
	tmpl, err := template.New("msg").Option("missingkey=zero").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}
	return strings.ReplaceAll(buf.String(), "<no value>", "")
}

// levenshteinDistance calculates the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// suggestionThreshold is the maximum edit distance accepted for a
// suggestion, scaled by input length.
func suggestionThreshold(input string) int {
	switch {
	case len(input) >= 7:
		return 3
	case len(input) >= 4:
		return 2
	default:
		return 1
	}
}

// FindTopMatches returns up to n candidates within the suggestion
// threshold, closest first.
func FindTopMatches(input string, candidates []string, n int) []string {
	if len(input) == 0 || len(candidates) == 0 || n <= 0 {
		return nil
	}

	type match struct {
		value    string
		distance int
	}

	inputLower := strings.ToLower(input)
	var matches []match
	for _, candidate := range candidates {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if dist > 0 {
			matches = append(matches, match{candidate, dist})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	threshold := suggestionThreshold(input)
	var result []string
	for i := 0; i < len(matches) && len(result) < n; i++ {
		if matches[i].distance <= threshold {
			result = append(result, matches[i].value)
		}
	}
	return result
}

// maxSuggestions caps the "did you mean" hints on a resource miss.
const maxSuggestions = 3

// NewNotFound creates a resource-miss error with "did you mean" hints
// drawn from the available names, closest first.
func NewNotFound(name string, available []string) *ScriptError {
	err := New("RES-0001", map[string]any{"Name": name})
	err.Resource = name
	for i, m := range FindTopMatches(name, available, maxSuggestions) {
		if i == 0 {
			err.Hints = append(err.Hints, "Did you mean `"+m+"`?")
		} else {
			err.Hints = append(err.Hints, "`"+m+"`")
		}
	}
	return err
}
