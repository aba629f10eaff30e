// Package runs collects the fragments a push-parser emits and joins them
// once, so assembling N fragments costs O(total length) instead of the
// O(N²) of repeated concatenation.
package runs

import (
	"errors"
	"strings"
)

// ErrFinished is returned when an Accumulator is used after Finish.
var ErrFinished = errors.New("runs: accumulator already finished")

// run is one pushed fragment: either a byte span or an immutable string.
type run struct {
	b []byte
	s string
}

// Accumulator is an ordered, append-only sequence of spans consumed
// exactly once by Finish. The zero value is ready to use.
type Accumulator struct {
	runs  []run
	arena []byte // owned copies made by Write
	size  int
	done  bool
}

// New begins a new accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// Push appends a borrowed span. The caller guarantees span is not
// modified until Finish returns; use Write otherwise.
func (a *Accumulator) Push(span []byte) error {
	if a.done {
		return ErrFinished
	}
	if len(span) == 0 {
		return nil
	}
	a.runs = append(a.runs, run{b: span})
	a.size += len(span)
	return nil
}

// PushString appends a string. Strings are immutable so nothing is copied.
func (a *Accumulator) PushString(s string) error {
	if a.done {
		return ErrFinished
	}
	if s == "" {
		return nil
	}
	a.runs = append(a.runs, run{s: s})
	a.size += len(s)
	return nil
}

// Write appends an owned copy of p, for producers that reuse their
// buffer between calls. It implements io.Writer.
func (a *Accumulator) Write(p []byte) (int, error) {
	if a.done {
		return 0, ErrFinished
	}
	if len(p) == 0 {
		return 0, nil
	}
	// Earlier spans keep pointing at the old backing array when append
	// reallocates; bytes below len(arena) are never rewritten.
	start := len(a.arena)
	a.arena = append(a.arena, p...)
	a.runs = append(a.runs, run{b: a.arena[start:len(a.arena):len(a.arena)]})
	a.size += len(p)
	return len(p), nil
}

// WriteString implements io.StringWriter.
func (a *Accumulator) WriteString(s string) (int, error) {
	if err := a.PushString(s); err != nil {
		return 0, err
	}
	return len(s), nil
}

// Len reports the number of bytes accumulated so far.
func (a *Accumulator) Len() int {
	return a.size
}

// Finish returns the concatenation of every pushed span in push order
// and releases the spans. The accumulator cannot be used afterwards.
func (a *Accumulator) Finish() (string, error) {
	if a.done {
		return "", ErrFinished
	}
	a.done = true

	var sb strings.Builder
	sb.Grow(a.size)
	for _, r := range a.runs {
		if r.b != nil {
			sb.Write(r.b)
		} else {
			sb.WriteString(r.s)
		}
	}

	a.runs = nil
	a.arena = nil
	a.size = 0
	return sb.String(), nil
}

// Discard drops everything accumulated without producing a result.
func (a *Accumulator) Discard() {
	a.done = true
	a.runs = nil
	a.arena = nil
	a.size = 0
}
