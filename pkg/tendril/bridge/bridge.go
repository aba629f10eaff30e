// Package bridge connects the Lua runtime to the host's native
// capabilities: markdown conversion, the HTML event stream, the
// embedded resource registry and the filesystem helpers.
//
// Calls from the host into the runtime go through Invoke, which attaches
// a diagnostic handler for the extent of the outermost call. Calls from
// the runtime into the host go through native wrappers that turn Go
// errors into catchable runtime errors.
package bridge

import (
	"errors"
	"strings"

	lua "github.com/yuin/gopher-lua"

	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
	"github.com/sambeau/tendril/pkg/tendril/eventview"
	"github.com/sambeau/tendril/pkg/tendril/markdown"
	"github.com/sambeau/tendril/pkg/tendril/resources"
)

// ModuleName is the name scripts require and the global the module is
// installed under.
const ModuleName = "tendril"

// Logger receives script output from print and tendril.log.
type Logger interface {
	Log(values ...any)
	LogLine(values ...any)
}

// Options configures a Bridge.
type Options struct {
	Registry   *resources.Registry
	Markdown   markdown.Options
	Logger     Logger
	Args       []string
	ScriptName string // arg[0]
	Version    string
}

// Bridge owns the runtime-visible module and the per-runtime state the
// native capabilities share.
type Bridge struct {
	L        *lua.LState
	registry *resources.Registry
	mdOpts   markdown.Options
	md       *markdown.Converter
	log      Logger

	view   *eventview.View
	viewUD *lua.LUserData
	mod    *lua.LTable

	// diag is the diagnostic handler of the running top-level entry.
	diag *Diagnostics
}

// New registers the tendril module, the embedded-module loader, print
// and arg in L.
func New(L *lua.LState, opts Options) *Bridge {
	registry := opts.Registry
	if registry == nil {
		registry, _ = resources.New()
	}
	log := opts.Logger
	if log == nil {
		log = discardLogger{}
	}

	b := &Bridge{
		L:        L,
		registry: registry,
		mdOpts:   opts.Markdown,
		md:       markdown.New(opts.Markdown),
		log:      log,
		view:     eventview.New(),
	}
	b.viewUD = b.newEventView()
	b.registerBuffer()
	b.mod = b.module(opts)

	L.PreloadModule(ModuleName, func(L *lua.LState) int {
		L.Push(b.mod)
		return 1
	})
	L.SetGlobal(ModuleName, b.mod)
	L.SetGlobal("print", L.NewFunction(b.print))
	L.SetGlobal("arg", b.argTable(opts.ScriptName, opts.Args, true))
	b.installLoader()

	return b
}

// Registry returns the registry the bridge serves.
func (b *Bridge) Registry() *resources.Registry {
	return b.registry
}

// View returns the event view cell scripts see as tendril.html.event.
func (b *Bridge) View() *eventview.View {
	return b.view
}

func (b *Bridge) module(opts Options) *lua.LTable {
	L := b.L
	mod := L.NewTable()

	L.SetField(mod, "version", lua.LString(opts.Version))
	L.SetField(mod, "args", b.argTable("", opts.Args, false))
	L.SetField(mod, "log", L.NewFunction(b.luaLog))
	L.SetField(mod, "buffer", L.NewFunction(b.native(b.newBuffer)))

	L.SetField(mod, "markdown", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"convert":  b.native(b.markdownConvert),
		"document": b.native(b.markdownDocument),
	}))

	html := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"parse":    b.native(b.htmlParse),
		"unescape": b.native(b.htmlUnescape),
	})
	L.SetField(html, "event", b.viewUD)
	L.SetField(mod, "html", html)

	L.SetField(mod, "resource", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"read":  b.native(b.resourceRead),
		"load":  b.native(b.resourceLoad),
		"run":   b.native(b.resourceRun),
		"names": b.native(b.resourceNames),
	}))

	L.SetField(mod, "fs", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"isdir": b.native(b.fsIsDir),
		"mkdir": b.native(b.fsMkdir),
		"list":  b.native(b.fsList),
	}))

	return mod
}

// argTable builds the argument sequence; with zero set, index 0 holds
// the script name as in the standalone interpreter.
func (b *Bridge) argTable(name string, args []string, zero bool) *lua.LTable {
	t := b.L.CreateTable(len(args), 1)
	if zero {
		t.RawSetInt(0, lua.LString(name))
	}
	for _, a := range args {
		t.Append(lua.LString(a))
	}
	return t
}

// installLoader lets require resolve embedded modules, ahead of the
// filesystem searcher.
func (b *Bridge) installLoader() {
	pkg, ok := b.L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return
	}
	loaders, ok := pkg.RawGetString("loaders").(*lua.LTable)
	if !ok {
		return
	}
	loaders.Insert(2, b.L.NewFunction(b.native(b.embeddedLoader)))
}

// nativeFunc is a capability implementation. A non-nil error is raised
// in the runtime as a catchable error.
type nativeFunc func(L *lua.LState) (int, error)

func (b *Bridge) native(fn nativeFunc) lua.LGFunction {
	return func(L *lua.LState) int {
		n, err := fn(L)
		if err != nil {
			raise(L, err)
		}
		return n
	}
}

// raise signals err to the runtime. Errors that came out of the runtime
// are re-raised with their original value so handlers see what the
// script threw.
func raise(L *lua.LState, err error) {
	var se *terrors.ScriptError
	if errors.As(err, &se) {
		if lv, ok := se.Value.(lua.LValue); ok && lv != nil {
			L.Error(lv, 0)
		}
		L.RaiseError("%s", se.String())
	}
	L.RaiseError("%s", err.Error())
}

// checkText returns argument n as a string, raising a type error for
// anything that is not already a string.
func checkText(L *lua.LState, n int, fname string) string {
	v := L.Get(n)
	s, ok := v.(lua.LString)
	if !ok {
		L.RaiseError("%s", terrors.New("TYPE-0001", map[string]any{
			"Function": fname,
			"Expected": "string",
			"Got":      v.Type().String(),
		}).Message)
	}
	return string(s)
}

func (b *Bridge) print(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, top)
	for i := 1; i <= top; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	b.log.LogLine(strings.Join(parts, "\t"))
	return 0
}

func (b *Bridge) luaLog(L *lua.LState) int {
	top := L.GetTop()
	values := make([]any, top)
	for i := 1; i <= top; i++ {
		values[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	b.log.LogLine(values...)
	return 0
}

type discardLogger struct{}

func (discardLogger) Log(values ...any)     {}
func (discardLogger) LogLine(values ...any) {}
