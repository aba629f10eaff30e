// Package tendril provides a public API for embedding the tendril host:
// a Lua runtime with native markdown, HTML event and resource
// capabilities.
//
// Basic usage:
//
//	h := tendril.New(tendril.Options{Args: os.Args[1:]})
//	defer h.Close()
//	if _, err := h.RunResource("main"); err != nil {
//		fmt.Fprintln(os.Stderr, err)
//	}
package tendril

import (
	"errors"
	"os"

	lua "github.com/yuin/gopher-lua"

	"github.com/sambeau/tendril/pkg/tendril/bridge"
	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
	"github.com/sambeau/tendril/pkg/tendril/markdown"
	"github.com/sambeau/tendril/pkg/tendril/resources"
)

// Version is the host version reported by --version and tendril.version.
const Version = "0.4.0"

// Options configures a Host.
type Options struct {
	// Registry defaults to the embedded resources.
	Registry *resources.Registry
	// Markdown defaults to markdown.DefaultOptions.
	Markdown *markdown.Options
	// Logger receives print and tendril.log output. Defaults to stdout.
	Logger Logger

	Args       []string
	ScriptName string

	CallStackSize       int
	RegistrySize        int
	IncludeGoStackTrace bool
}

// Host is one runtime with the tendril module installed. It is not safe
// for concurrent use.
type Host struct {
	L      *lua.LState
	bridge *bridge.Bridge
}

// New opens a runtime and registers the tendril module in it.
func New(opts Options) *Host {
	L := lua.NewState(lua.Options{
		CallStackSize:       opts.CallStackSize,
		RegistrySize:        opts.RegistrySize,
		IncludeGoStackTrace: opts.IncludeGoStackTrace,
	})

	registry := opts.Registry
	if registry == nil {
		registry = resources.Embedded()
	}
	md := markdown.DefaultOptions()
	if opts.Markdown != nil {
		md = *opts.Markdown
	}
	log := opts.Logger
	if log == nil {
		log = StdoutLogger()
	}

	b := bridge.New(L, bridge.Options{
		Registry:   registry,
		Markdown:   md,
		Logger:     log,
		Args:       opts.Args,
		ScriptName: opts.ScriptName,
		Version:    Version,
	})
	return &Host{L: L, bridge: b}
}

// Close releases the runtime.
func (h *Host) Close() {
	h.L.Close()
}

// Bridge exposes the host's bridge for direct invocation.
func (h *Host) Bridge() *bridge.Bridge {
	return h.bridge
}

// Registry returns the resources the host serves.
func (h *Host) Registry() *resources.Registry {
	return h.bridge.Registry()
}

// RunResource compiles and runs an embedded resource by name.
func (h *Host) RunResource(name string) (lua.LValue, error) {
	return h.Registry().Run(h.bridge, name)
}

// RunFile compiles and runs a script from disk.
func (h *Host) RunFile(path string) (lua.LValue, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return lua.LNil, readError(path, err)
	}
	return h.Run(path, src)
}

// Run compiles src under name and runs it.
func (h *Host) Run(name string, src []byte) (lua.LValue, error) {
	proto, err := resources.CompileSource(name, src)
	if err != nil {
		return lua.LNil, err
	}
	return h.bridge.Execute(name, proto)
}

// Eval evaluates a line of input, as an expression when it parses as one
// and as a statement block otherwise.
func (h *Host) Eval(name, input string) (lua.LValue, error) {
	if proto, err := resources.CompileSource(name, []byte("return "+input)); err == nil {
		return h.bridge.Execute(name, proto)
	}
	return h.Run(name, []byte(input))
}

// Check compiles src without running it.
func Check(name string, src []byte) error {
	_, err := resources.CompileSource(name, src)
	return err
}

// CheckFile compiles the script at path without running it.
func CheckFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return readError(path, err)
	}
	return Check(path, src)
}

func readError(path string, err error) error {
	cause := err
	var pe *os.PathError
	if errors.As(err, &pe) {
		cause = pe.Err
	}
	se := terrors.Wrap("IO-0003", cause, map[string]any{"Path": path})
	se.Cause = err
	return se
}
