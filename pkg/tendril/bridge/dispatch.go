package bridge

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
)

// Diagnostics is the message handler attached to the outermost
// host-to-runtime call. When a runtime error unwinds it records the
// stack at the point of failure and hands the error value back
// unchanged.
type Diagnostics struct {
	handler *lua.LFunction
	value   lua.LValue
	frames  []terrors.Frame
}

func newDiagnostics(L *lua.LState) *Diagnostics {
	d := &Diagnostics{}
	d.handler = L.NewFunction(d.capture)
	return d
}

func (d *Diagnostics) capture(L *lua.LState) int {
	v := L.Get(1)
	// A value re-raised through an outer call keeps the trace taken
	// where it was first thrown.
	if d.frames == nil || d.value != v {
		d.value = v
		d.frames = stackFrames(L)
	}
	L.Push(v)
	return 1
}

// Trace returns the frames recorded for value, if value is the last
// error the handler saw.
func (d *Diagnostics) Trace(value lua.LValue) []terrors.Frame {
	if d.frames == nil || d.value != value {
		return nil
	}
	out := make([]terrors.Frame, len(d.frames))
	copy(out, d.frames)
	return out
}

// stackFrames walks the runtime stack innermost first, skipping host
// functions.
func stackFrames(L *lua.LState) []terrors.Frame {
	frames := []terrors.Frame{}
	for level := 0; ; level++ {
		dbg, ok := L.GetStack(level)
		if !ok {
			break
		}
		if _, err := L.GetInfo("Sln", dbg, lua.LNil); err != nil {
			continue
		}
		if dbg.What == "G" || dbg.Source == "" {
			continue
		}
		f := terrors.Frame{Source: dbg.Source, Line: dbg.CurrentLine}
		if dbg.What != "main" {
			f.Function = dbg.Name
		}
		frames = append(frames, f)
	}
	return frames
}

// failure converts an error from a protected call into a ScriptError
// carrying the thrown value and its trace.
func (d *Diagnostics) failure(err error) *terrors.ScriptError {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) || apiErr.Object == nil {
		return terrors.Wrap("RUN-0001", err, nil)
	}

	se := terrors.New("RUN-0001", map[string]any{"Detail": apiErr.Object.String()})
	se.Value = apiErr.Object
	se.Cause = err
	return se.WithTrace(d.Trace(apiErr.Object))
}

// attach installs a fresh handler unless one is already attached by an
// enclosing call. The returned func restores the previous state.
func (b *Bridge) attach() (*Diagnostics, func()) {
	if b.diag != nil {
		return b.diag, func() {}
	}
	d := newDiagnostics(b.L)
	b.diag = d
	return d, func() { b.diag = nil }
}

// Attached reports whether a top-level call is in progress.
func (b *Bridge) Attached() bool {
	return b.diag != nil
}

// Invoke calls fn with args under the diagnostic handler and returns its
// first result. A runtime error is returned as a *errors.ScriptError of
// class runtime whose Value is the thrown value.
func (b *Bridge) Invoke(fn lua.LValue, args ...lua.LValue) (lua.LValue, error) {
	d, detach := b.attach()
	defer detach()

	L := b.L
	err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
		Handler: d.handler,
	}, args...)
	if err != nil {
		return lua.LNil, d.failure(err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// Execute runs a compiled chunk. It implements resources.Executor.
func (b *Bridge) Execute(name string, proto *lua.FunctionProto, args ...lua.LValue) (lua.LValue, error) {
	fn := b.L.NewFunctionFromProto(proto)
	ret, err := b.Invoke(fn, args...)
	if err != nil {
		var se *terrors.ScriptError
		if errors.As(err, &se) && se.Resource == "" {
			return lua.LNil, se.WithResource(name)
		}
		return lua.LNil, err
	}
	return ret, nil
}
