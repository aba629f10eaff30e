package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	lua "github.com/yuin/gopher-lua"

	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
	"github.com/sambeau/tendril/pkg/tendril/eventview"
	"github.com/sambeau/tendril/pkg/tendril/tendril"
)

const PROMPT = ">> "
const CONTINUATION_PROMPT = ".. "

const LOGO = `
▀█▀ █▀▀ █▄░█ █▀▄ █▀█ █ █░░
░█░ ██▄ █░▀█ █▄▀ █▀▄ █ █▄▄ `

// Lua keywords and tendril module members for tab completion
var completionWords = []string{
	// Keywords
	"and", "break", "do", "else", "elseif", "end", "false", "for", "function",
	"if", "in", "local", "nil", "not", "or", "repeat", "return", "then",
	"true", "until", "while",
	// Builtins
	"print", "pairs", "ipairs", "tostring", "tonumber", "type", "pcall",
	"error", "require", "select", "unpack",
	// tendril module
	"tendril.markdown.convert", "tendril.markdown.document",
	"tendril.html.parse", "tendril.html.unescape", "tendril.resource.read", "tendril.resource.load",
	"tendril.resource.run", "tendril.resource.names", "tendril.fs.isdir",
	"tendril.fs.mkdir", "tendril.fs.list", "tendril.buffer", "tendril.log",
	"tendril.args", "tendril.version",
}

// Start starts the REPL with line editing, history, and tab completion
func Start(out io.Writer, h *tendril.Host, version string) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(filterCompletions)

	historyFile := filepath.Join(os.TempDir(), ".tendril_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintf(out, "%s", LOGO)
	fmt.Fprintln(out, "v", version)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit")
	fmt.Fprintln(out, "Type ':help' for REPL commands")
	fmt.Fprintln(out, "")

	s := NewSession(h, out)
	for {
		input, err := line.Prompt(s.Prompt())
		if err != nil {
			if err == liner.ErrPromptAborted {
				if s.Pending() {
					fmt.Fprintln(out, "^C (cleared)")
				} else {
					fmt.Fprintln(out, "^C")
				}
				s.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		complete, quit := s.Feed(input)
		if quit {
			fmt.Fprintln(out, "Goodbye!")
			return
		}
		if complete != "" {
			line.AppendHistory(complete)
		}
	}
}

// Session accumulates input lines and evaluates each complete chunk
// against a host. It holds no terminal state, so it can be driven from
// tests.
type Session struct {
	host  *tendril.Host
	out   io.Writer
	input strings.Builder
}

// NewSession returns a session writing results to out.
func NewSession(h *tendril.Host, out io.Writer) *Session {
	return &Session{host: h, out: out}
}

// Prompt returns the prompt for the next line.
func (s *Session) Prompt() string {
	if s.Pending() {
		return CONTINUATION_PROMPT
	}
	return PROMPT
}

// Pending reports whether a multi-line chunk is being collected.
func (s *Session) Pending() bool {
	return s.input.Len() > 0
}

// Reset drops any buffered input.
func (s *Session) Reset() {
	s.input.Reset()
}

// Feed consumes one line. It returns the evaluated chunk, if the line
// completed one, and whether the user asked to quit.
func (s *Session) Feed(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if !s.Pending() {
		switch {
		case trimmed == "exit" || trimmed == "quit":
			return "", true
		case strings.HasPrefix(trimmed, ":"):
			s.command(trimmed)
			return "", false
		case trimmed == "":
			return "", false
		}
	}

	if s.Pending() {
		s.input.WriteString("\n")
	}
	s.input.WriteString(input)

	chunk := s.input.String()
	if needsMoreInput(chunk) {
		return "", false
	}
	s.input.Reset()

	s.eval(chunk)
	return chunk, false
}

func (s *Session) eval(chunk string) {
	v, err := s.host.Eval("stdin", chunk)
	if err != nil {
		printError(s.out, err)
		return
	}
	if v == lua.LNil {
		io.WriteString(s.out, "OK\n")
		return
	}
	io.WriteString(s.out, formatValue(v, 1))
	io.WriteString(s.out, "\n")
}

// command handles REPL meta-commands that start with ':'
func (s *Session) command(cmd string) {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":help", ":h", ":?":
		fmt.Fprintln(s.out, "REPL Commands:")
		fmt.Fprintln(s.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(s.out, "  :resources        List embedded resources")
		fmt.Fprintln(s.out, "  :run <name>       Run an embedded resource")
		fmt.Fprintln(s.out, "  :md <markdown>    Convert a line of markdown")
		fmt.Fprintln(s.out, "  exit, quit        Exit the REPL")

	case ":resources":
		for _, n := range s.host.Registry().Names() {
			fmt.Fprintln(s.out, " ", n)
		}

	case ":run":
		if arg == "" {
			fmt.Fprintln(s.out, "usage: :run <name>")
			return
		}
		v, err := s.host.RunResource(arg)
		if err != nil {
			printError(s.out, err)
			return
		}
		if v != lua.LNil {
			fmt.Fprintln(s.out, formatValue(v, 1))
		}

	case ":md":
		html, err := s.host.Bridge().ConvertMarkdown(arg)
		if err != nil {
			printError(s.out, err)
			return
		}
		io.WriteString(s.out, html)

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// formatValue renders a value as a Lua literal, expanding tables to the
// given depth.
func formatValue(v lua.LValue, depth int) string {
	switch v := v.(type) {
	case lua.LString:
		return strconv.Quote(string(v))
	case *lua.LTable:
		if depth <= 0 {
			return "{...}"
		}
		// The sequence runs up to the first nil; later integer keys are
		// printed as keyed entries.
		var parts []string
		n := 0
		for v.RawGetInt(n+1) != lua.LNil {
			n++
			parts = append(parts, formatValue(v.RawGetInt(n), depth-1))
		}
		var keyed []string
		v.ForEach(func(k, val lua.LValue) {
			if num, ok := k.(lua.LNumber); ok && float64(num) >= 1 && float64(num) <= float64(n) && float64(num) == float64(int(num)) {
				return
			}
			keyed = append(keyed, fmt.Sprintf("%s = %s", formatKey(k), formatValue(val, depth-1)))
		})
		sort.Strings(keyed)
		parts = append(parts, keyed...)
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.String()
	}
}

func formatKey(k lua.LValue) string {
	if s, ok := k.(lua.LString); ok && isIdentifier(string(s)) {
		return string(s)
	}
	return "[" + formatValue(k, 0) + "]"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}

func printError(out io.Writer, err error) {
	var se *terrors.ScriptError
	if errors.As(err, &se) {
		io.WriteString(out, se.PrettyString())
		io.WriteString(out, "\n")
		return
	}
	fmt.Fprintf(out, "Error: %v\n", err)
}

// filterCompletions returns completion suggestions based on current input
func filterCompletions(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if line[len(line)-1] == ' ' || line[len(line)-1] == '\t' {
		return nil
	}

	words := strings.Fields(line)
	lastWord := words[len(words)-1]
	prefix := line[:len(line)-len(lastWord)]

	var matches []string
	for _, word := range completionWords {
		if strings.HasPrefix(word, lastWord) {
			matches = append(matches, prefix+word)
		}
	}
	return append(matches, fieldCompletions(prefix, lastWord)...)
}

// Globals whose members are not event fields.
var libraryNames = map[string]bool{
	"tendril": true, "string": true, "table": true, "math": true,
	"os": true, "io": true, "coroutine": true, "package": true, "debug": true,
}

// fieldCompletions completes "ev.ta" to "ev.tag" for any local that
// could hold an event handed to an html.parse handler.
func fieldCompletions(prefix, word string) []string {
	start := len(word)
	for start > 0 && (isWordChar(word[start-1]) || word[start-1] == '.') {
		start--
	}
	prefix, word = prefix+word[:start], word[start:]

	dot := strings.LastIndexByte(word, '.')
	if dot <= 0 {
		return nil
	}
	name, partial := word[:dot], word[dot+1:]
	if !isIdentifier(name) || libraryNames[name] {
		return nil
	}
	var matches []string
	for _, f := range eventview.Fields() {
		if strings.HasPrefix(f, partial) {
			matches = append(matches, prefix+name+"."+f)
		}
	}
	return matches
}

// needsMoreInput reports whether input has an unclosed block, bracket
// or string.
func needsMoreInput(input string) bool {
	depth := 0
	brackets := 0
	var quote byte

	for i := 0; i < len(input); i++ {
		ch := input[i]

		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}

		switch {
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '-' && strings.HasPrefix(input[i:], "--"):
			if end := strings.IndexByte(input[i:], '\n'); end >= 0 {
				i += end
			} else {
				i = len(input)
			}
		case ch == '(' || ch == '{' || ch == '[':
			brackets++
		case ch == ')' || ch == '}' || ch == ']':
			brackets--
		case isWordStart(ch):
			j := i
			for j < len(input) && isWordChar(input[j]) {
				j++
			}
			switch input[i:j] {
			case "function", "do", "if", "repeat":
				depth++
			case "end", "until":
				depth--
			}
			i = j - 1
		}
	}

	return quote != 0 || depth > 0 || brackets > 0
}

func isWordStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isWordChar(ch byte) bool {
	return isWordStart(ch) || (ch >= '0' && ch <= '9')
}
