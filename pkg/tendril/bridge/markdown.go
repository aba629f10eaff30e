package bridge

import (
	"fmt"
	"sort"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/sambeau/tendril/pkg/tendril/markdown"
)

// ConvertMarkdown renders src with the bridge's configured flags.
func (b *Bridge) ConvertMarkdown(src string) (string, error) {
	return b.md.Convert([]byte(src))
}

func (b *Bridge) markdownConvert(L *lua.LState) (int, error) {
	src := checkText(L, 1, "markdown.convert")
	conv := b.converter(L.OptTable(2, nil))

	out, err := conv.Convert([]byte(src))
	if err != nil {
		return 0, err
	}
	L.Push(lua.LString(out))
	return 1, nil
}

func (b *Bridge) markdownDocument(L *lua.LState) (int, error) {
	src := checkText(L, 1, "markdown.document")
	conv := b.converter(L.OptTable(2, nil))

	doc, err := conv.Document([]byte(src))
	if err != nil {
		return 0, err
	}

	t := L.NewTable()
	t.RawSetString("html", lua.LString(doc.HTML))
	t.RawSetString("body", lua.LString(doc.Body))
	t.RawSetString("meta", toLua(L, doc.Meta))
	L.Push(t)
	return 1, nil
}

// converter returns the configured converter, or one built from the
// per-call option table. Absent keys keep their configured value.
func (b *Bridge) converter(opts *lua.LTable) *markdown.Converter {
	if opts == nil {
		return b.md
	}

	o := b.mdOpts
	flags := map[string]*bool{
		"tables":        &o.Tables,
		"strikethrough": &o.Strikethrough,
		"linkify":       &o.Linkify,
		"task_list":     &o.TaskList,
		"heading_ids":   &o.HeadingIDs,
		"unsafe":        &o.Unsafe,
	}
	for key, dst := range flags {
		if v := opts.RawGetString(key); v != lua.LNil {
			*dst = lua.LVAsBool(v)
		}
	}

	if fn, ok := opts.RawGetString("links").(*lua.LFunction); ok {
		o.RewriteLink = func(dest string) (string, error) {
			ret, err := b.Invoke(fn, lua.LString(dest))
			if err != nil {
				return "", err
			}
			switch v := ret.(type) {
			case lua.LString:
				return string(v), nil
			case *lua.LNilType:
				return dest, nil
			default:
				return "", fmt.Errorf("links callback returned %s, want string or nil", ret.Type())
			}
		}
	}

	return markdown.New(o)
}

// toLua converts decoded YAML into runtime values.
func toLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(v)
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case uint64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case time.Time:
		return lua.LString(v.Format(time.RFC3339))
	case []any:
		t := L.CreateTable(len(v), 0)
		for _, item := range v {
			t.Append(toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(v))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.RawSetString(k, toLua(L, v[k]))
		}
		return t
	case map[any]any:
		t := L.CreateTable(0, len(v))
		for k, item := range v {
			t.RawSetString(fmt.Sprint(k), toLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(v))
	}
}
