// Package resources holds the scripts and templates compiled into the
// binary and compiles them on demand.
//
// A Registry is built once and never mutated, so it is safe for any
// number of concurrent readers. It performs no I/O after construction.
package resources

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
)

// ScriptExt is stripped from script file names to form resource names.
const ScriptExt = ".lua"

// Entry is one embedded resource. Content has process lifetime and
// must not be modified.
type Entry struct {
	Name    string
	Content []byte
}

// Registry maps logical names to embedded content.
type Registry struct {
	entries map[string]Entry
	names   []string
}

// Executor runs a compiled chunk with the diagnostic handler attached.
type Executor interface {
	Execute(name string, proto *lua.FunctionProto, args ...lua.LValue) (lua.LValue, error)
}

// New builds a registry from a fixed list. Duplicate names are rejected.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if _, dup := r.entries[e.Name]; dup {
			return nil, terrors.New("RES-0002", map[string]any{"Name": e.Name})
		}
		r.entries[e.Name] = e
		r.names = append(r.names, e.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// FromFS builds a registry from every file under root in fsys. Names are
// slash paths relative to root, with ScriptExt removed from scripts.
func FromFS(fsys fs.FS, root string) (*Registry, error) {
	var entries []Entry
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(p, root+"/")
		entries = append(entries, Entry{
			Name:    strings.TrimSuffix(rel, ScriptExt),
			Content: content,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading resources from %s: %w", root, err)
	}
	return New(entries...)
}

//go:embed embedded
var embedded embed.FS

var embeddedRegistry = sync.OnceValue(func() *Registry {
	r, err := FromFS(embedded, "embedded")
	if err != nil {
		panic(err)
	}
	return r
})

// Embedded returns the process-wide registry of compiled-in resources.
// It is built on first use and lives until the process exits.
func Embedded() *Registry {
	return embeddedRegistry()
}

// Names lists every resource name in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Read returns the raw content of name.
func (r *Registry) Read(name string) ([]byte, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, terrors.NewNotFound(name, r.names)
	}
	return e.Content, nil
}

// Compile reads and compiles name. Compiled output is never cached.
func (r *Registry) Compile(name string) (*lua.FunctionProto, error) {
	src, err := r.Read(name)
	if err != nil {
		return nil, err
	}
	return CompileSource(name, src)
}

// Run compiles name and executes it through x.
func (r *Registry) Run(x Executor, name string, args ...lua.LValue) (lua.LValue, error) {
	proto, err := r.Compile(name)
	if err != nil {
		return lua.LNil, err
	}
	return x.Execute(name, proto, args...)
}

// ModuleName maps a require-style module name ("lib.page") to a
// resource name ("lib/page").
func ModuleName(module string) string {
	return path.Clean(strings.ReplaceAll(module, ".", "/"))
}

// CompileSource compiles Lua source under the given chunk name.
func CompileSource(name string, src []byte) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, terrors.Wrap("COMP-0001", err, map[string]any{}).WithResource(name)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, terrors.Wrap("COMP-0001", err, map[string]any{}).WithResource(name)
	}
	return proto, nil
}
