package eventview

import (
	"errors"
	"strings"
	"testing"

	"github.com/sambeau/tendril/pkg/tendril/htmlevents"
)

func TestEmptyViewHasNoFields(t *testing.T) {
	v := New()
	if v.Live() {
		t.Fatal("new view should be Empty")
	}
	for _, name := range Fields() {
		if s, ok := v.Field(name); ok || s != "" {
			t.Errorf("Field(%q) = %q, %v on Empty view", name, s, ok)
		}
	}
}

func TestFieldsWhileLive(t *testing.T) {
	v := New()
	type seen struct{ typ, tag, attr, val string }
	var got []seen

	err := htmlevents.Parse(strings.NewReader(`<a href="/x">t</a>`), func(ev *htmlevents.Event) error {
		return v.With(ev, func() error {
			var s seen
			s.typ, _ = v.Field("type")
			s.tag, _ = v.Field("tag")
			s.attr, _ = v.Field("attribute")
			s.val, _ = v.Field("value")
			got = append(got, s)
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []seen{
		{"enter", "a", "", ""},
		{"attribute", "a", "href", "/x"},
		{"other", "", "", ""},
		{"exit", "a", "", ""},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if v.Live() {
		t.Error("view still Live after parse")
	}
}

func TestUnknownFieldIsAbsent(t *testing.T) {
	v := New()
	ev := &htmlevents.Event{Kind: htmlevents.Other}
	v.With(ev, func() error {
		if _, ok := v.Field("colour"); ok {
			t.Error("unknown field should be absent")
		}
		return nil
	})
}

func TestWithUnbindsOnError(t *testing.T) {
	v := New()
	boom := errors.New("boom")
	err := v.With(&htmlevents.Event{Kind: htmlevents.TagEnter}, func() error {
		if !v.Live() {
			t.Error("expected Live inside With")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("With() = %v, want boom", err)
	}
	if v.Live() {
		t.Error("view still Live after error")
	}
}

func TestWithUnbindsOnPanic(t *testing.T) {
	v := New()
	func() {
		defer func() { recover() }()
		v.With(&htmlevents.Event{Kind: htmlevents.TagEnter}, func() error {
			panic("handler exploded")
		})
	}()
	if v.Live() {
		t.Error("view still Live after panic")
	}
}

func TestNestedWithRestoresOuterBinding(t *testing.T) {
	v := New()
	outer := &htmlevents.Event{Kind: htmlevents.TagEnter}
	inner := &htmlevents.Event{Kind: htmlevents.TagExit}

	v.With(outer, func() error {
		v.With(inner, func() error {
			if v.Kind() != "exit" {
				t.Errorf("inner Kind = %q", v.Kind())
			}
			return nil
		})
		if v.Kind() != "enter" {
			t.Errorf("outer Kind after nested With = %q", v.Kind())
		}
		return nil
	})
	if v.Live() {
		t.Error("view still Live after outer With")
	}
}

func TestScopeReadsOnlyItsOwnParse(t *testing.T) {
	v := New()
	outer := v.NewScope()
	outerEv := &htmlevents.Event{Kind: htmlevents.TagEnter}
	innerEv := &htmlevents.Event{Kind: htmlevents.TagExit}

	var saved *Scope
	outer.With(outerEv, func() error {
		inner := v.NewScope()
		inner.With(innerEv, func() error {
			if inner.Kind() != "exit" || outer.Kind() != "enter" {
				t.Errorf("inner Kind = %q, outer Kind = %q", inner.Kind(), outer.Kind())
			}
			if v.Kind() != "exit" {
				t.Errorf("view Kind = %q, want innermost", v.Kind())
			}
			saved = inner
			return nil
		})
		if saved.Live() {
			t.Error("inner scope still Live after its parse returned")
		}
		if _, ok := saved.Field("type"); ok {
			t.Error("inner scope field readable after its parse returned")
		}
		if !outer.Live() {
			t.Error("outer scope should stay Live during its callback")
		}

		again := v.NewScope()
		again.With(innerEv, func() error {
			if saved.Live() {
				t.Error("stale scope reads a later parse")
			}
			return nil
		})
		return nil
	})
	if outer.Live() || v.Live() {
		t.Error("view still Live after outer parse")
	}
}
