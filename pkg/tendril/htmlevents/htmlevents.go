// Package htmlevents turns an HTML document into a flat stream of
// enter/exit/attribute/other events delivered to a callback.
//
// Events carry borrowed byte spans pointing into the tokenizer's buffer.
// A single Event value is reused for every callback of one Parse call,
// and its spans are only valid until the callback returns.
package htmlevents

import (
	"errors"
	"io"

	"golang.org/x/net/html"

	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
)

// Kind tags an Event.
type Kind uint8

const (
	Other Kind = iota
	TagEnter
	TagExit
	Attribute
)

// String returns the name scripts see for the kind.
func (k Kind) String() string {
	switch k {
	case TagEnter:
		return "enter"
	case TagExit:
		return "exit"
	case Attribute:
		return "attribute"
	default:
		return "other"
	}
}

// Field names one of an Event's optional spans.
type Field uint8

const (
	FieldHTML Field = 1 << iota
	FieldTag
	FieldAttribute
	FieldValue
)

// Event is one parser event. HTML is always present; Tag is present for
// enter, exit and attribute events; Attribute and Value only for
// attribute events.
type Event struct {
	Kind      Kind
	HTML      []byte
	Tag       []byte
	Attribute []byte
	Value     []byte

	present Field
}

// Has reports whether the field is present on this event.
func (e *Event) Has(f Field) bool {
	return e.present&f != 0
}

// Span returns the borrowed bytes for a field and whether it is present.
func (e *Event) Span(f Field) ([]byte, bool) {
	if !e.Has(f) {
		return nil, false
	}
	switch f {
	case FieldHTML:
		return e.HTML, true
	case FieldTag:
		return e.Tag, true
	case FieldAttribute:
		return e.Attribute, true
	case FieldValue:
		return e.Value, true
	}
	return nil, false
}

func (e *Event) reset(kind Kind, raw []byte) {
	*e = Event{Kind: kind, HTML: raw, present: FieldHTML}
}

func (e *Event) setTag(tag []byte) {
	e.Tag = tag
	e.present |= FieldTag
}

func (e *Event) setAttribute(key, val []byte) {
	e.Attribute = key
	e.Value = val
	e.present |= FieldAttribute | FieldValue
}

// Handler receives each event. Returning an error stops the parse.
type Handler func(ev *Event) error

// Parse tokenizes r and calls fn once per event, in document order.
//
// A start tag yields an enter event followed by one attribute event per
// attribute; a self-closing tag additionally yields an exit event; an
// end tag yields an exit event; text, comments and doctypes yield other
// events. Tag names are lower-cased and attribute values unescaped by
// the tokenizer in place, so HTML reflects those rewrites.
func Parse(r io.Reader, fn Handler) error {
	z := html.NewTokenizer(r)
	var ev Event

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return terrors.Wrap("PARSE-0002", err, nil)
			}
			return nil

		case html.StartTagToken, html.SelfClosingTagToken:
			raw := z.Raw()
			name, hasAttr := z.TagName()

			ev.reset(TagEnter, raw)
			ev.setTag(name)
			if err := fn(&ev); err != nil {
				return err
			}

			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				ev.reset(Attribute, raw)
				ev.setTag(name)
				ev.setAttribute(key, val)
				if err := fn(&ev); err != nil {
					return err
				}
			}

			if tt == html.SelfClosingTagToken {
				ev.reset(TagExit, raw)
				ev.setTag(name)
				if err := fn(&ev); err != nil {
					return err
				}
			}

		case html.EndTagToken:
			raw := z.Raw()
			name, _ := z.TagName()
			ev.reset(TagExit, raw)
			ev.setTag(name)
			if err := fn(&ev); err != nil {
				return err
			}

		default:
			ev.reset(Other, z.Raw())
			if err := fn(&ev); err != nil {
				return err
			}
		}
	}
}
