package bridge

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	xhtml "golang.org/x/net/html"

	"github.com/sambeau/tendril/pkg/tendril/htmlevents"
)

const eventTypeName = "tendril.event"

// eventSource is what an event userdata reads through: the shared view
// or the scope of one parse.
type eventSource interface {
	Live() bool
	Kind() string
	Field(name string) (string, bool)
}

// newEventView registers the event metatable and creates the userdata
// exposed as tendril.html.event, which always reads the innermost
// event. Field reads resolve lazily, so a reference kept after its
// callback returns reads nil.
func (b *Bridge) newEventView() *lua.LUserData {
	L := b.L
	mt := L.NewTypeMetatable(eventTypeName)
	L.SetField(mt, "__index", L.NewFunction(eventIndex))
	L.SetField(mt, "__newindex", L.NewFunction(eventNewIndex))
	L.SetField(mt, "__tostring", L.NewFunction(eventString))
	return b.newEventUD(b.view)
}

func (b *Bridge) newEventUD(src eventSource) *lua.LUserData {
	ud := b.L.NewUserData()
	ud.Value = src
	b.L.SetMetatable(ud, b.L.GetTypeMetatable(eventTypeName))
	return ud
}

func checkView(L *lua.LState) eventSource {
	ud := L.CheckUserData(1)
	v, ok := ud.Value.(eventSource)
	if !ok {
		L.ArgError(1, "event expected")
	}
	return v
}

func eventIndex(L *lua.LState) int {
	v := checkView(L)
	s, ok := v.Field(L.CheckString(2))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(s))
	return 1
}

func eventNewIndex(L *lua.LState) int {
	L.RaiseError("event fields are read-only")
	return 0
}

func eventString(L *lua.LState) int {
	v := checkView(L)
	if !v.Live() {
		L.Push(lua.LString("event(empty)"))
		return 1
	}

	var sb strings.Builder
	sb.WriteString("event(")
	sb.WriteString(v.Kind())
	for _, name := range []string{"tag", "attribute", "value"} {
		if s, ok := v.Field(name); ok {
			sb.WriteString(" ")
			sb.WriteString(name)
			sb.WriteString("=")
			sb.WriteString(s)
		}
	}
	sb.WriteString(")")
	L.Push(lua.LString(sb.String()))
	return 1
}

// htmlParse implements tendril.html.parse(html, handler).
func (b *Bridge) htmlParse(L *lua.LState) (int, error) {
	src := checkText(L, 1, "html.parse")
	handler := L.CheckFunction(2)
	return 0, b.ParseHTML(src, handler)
}

// htmlUnescape implements tendril.html.unescape(text), decoding
// character references such as "&amp;" in text spans.
func (b *Bridge) htmlUnescape(L *lua.LState) (int, error) {
	src := checkText(L, 1, "html.unescape")
	L.Push(lua.LString(xhtml.UnescapeString(src)))
	return 1, nil
}

// ParseHTML streams the events of src to handler, one call per event.
// Each parse gets one event userdata of its own, bound for the extent of
// each call. The first error stops the parse and is returned.
func (b *Bridge) ParseHTML(src string, handler lua.LValue) error {
	scope := b.view.NewScope()
	ud := b.newEventUD(scope)
	return htmlevents.Parse(strings.NewReader(src), func(ev *htmlevents.Event) error {
		return scope.With(ev, func() error {
			_, err := b.Invoke(handler, ud)
			return err
		})
	})
}
