// Package eventview exposes the live htmlevents.Event to script code
// without copying it.
//
// A View is either Empty or Live. It is Live only for the extent of
// With, which unbinds on every exit path; a view kept past that extent
// reads as Empty instead of pointing at reused parser memory.
//
// Nested parses bind through their own Scope. A Scope reads only the
// events its own parse bound, so a handle saved inside an inner parse
// reads as Empty once that parse returns, even while the outer parse is
// still Live.
package eventview

import (
	"github.com/sambeau/tendril/pkg/tendril/htmlevents"
)

type binding struct {
	ev    *htmlevents.Event
	scope uint64
}

// View is a reusable reference cell over the current parser event.
// It is not safe for concurrent use.
type View struct {
	stack  []binding
	scopes uint64
}

// New returns an Empty view.
func New() *View {
	return &View{}
}

func (v *View) top() *htmlevents.Event {
	if len(v.stack) == 0 {
		return nil
	}
	return v.stack[len(v.stack)-1].ev
}

// Live reports whether the view is bound to an event.
func (v *View) Live() bool {
	return v.top() != nil
}

// Kind returns the bound event's kind name, or "" when Empty.
func (v *View) Kind() string {
	return kind(v.top())
}

// With binds ev, runs fn and restores the previous binding, whether fn
// returns normally, returns an error or panics.
func (v *View) With(ev *htmlevents.Event, fn func() error) error {
	return v.bind(ev, 0, fn)
}

func (v *View) bind(ev *htmlevents.Event, scope uint64, fn func() error) error {
	v.stack = append(v.stack, binding{ev: ev, scope: scope})
	n := len(v.stack)
	defer func() {
		v.stack[n-1] = binding{}
		v.stack = v.stack[:n-1]
	}()
	return fn()
}

// Field resolves a field of the innermost bound event by name, copying
// only the requested span. Every name is absent while the view is Empty.
func (v *View) Field(name string) (string, bool) {
	return field(v.top(), name)
}

// NewScope opens a scope for one parse. Scopes are never reused.
func (v *View) NewScope() *Scope {
	v.scopes++
	return &Scope{view: v, id: v.scopes}
}

// Scope is the view of a single parse.
type Scope struct {
	view *View
	id   uint64
}

// With binds ev within the scope for the extent of fn.
func (s *Scope) With(ev *htmlevents.Event, fn func() error) error {
	return s.view.bind(ev, s.id, fn)
}

func (s *Scope) event() *htmlevents.Event {
	stack := s.view.stack
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].scope == s.id {
			return stack[i].ev
		}
	}
	return nil
}

// Live reports whether the scope's parse is inside a callback.
func (s *Scope) Live() bool {
	return s.event() != nil
}

// Kind returns the scope's event kind name, or "" when Empty.
func (s *Scope) Kind() string {
	return kind(s.event())
}

// Field resolves a field of the scope's current event.
func (s *Scope) Field(name string) (string, bool) {
	return field(s.event(), name)
}

func kind(ev *htmlevents.Event) string {
	if ev == nil {
		return ""
	}
	return ev.Kind.String()
}

func field(ev *htmlevents.Event, name string) (string, bool) {
	if ev == nil {
		return "", false
	}

	var f htmlevents.Field
	switch name {
	case "type", "event":
		return ev.Kind.String(), true
	case "html":
		f = htmlevents.FieldHTML
	case "tag":
		f = htmlevents.FieldTag
	case "attribute":
		f = htmlevents.FieldAttribute
	case "value":
		f = htmlevents.FieldValue
	default:
		return "", false
	}

	span, ok := ev.Span(f)
	if !ok {
		return "", false
	}
	return string(span), true
}

// Fields lists the names Field understands.
func Fields() []string {
	return []string{"type", "event", "html", "tag", "attribute", "value"}
}
