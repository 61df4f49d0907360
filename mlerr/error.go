// Package mlerr implements minilang's error value: a short kind, a message
// and an append-only traceback of (source, line) frames.
package mlerr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/minilang/ml/values"
)

// Frame is one entry in an error's traceback, pushed by the VM as the error
// unwinds through call frames.
type Frame struct {
	Source string
	Line   int
}

// Data is the payload stored in an mlerr Value's Data field.
type Data struct {
	mu      sync.Mutex
	Kind    string
	Message string
	Trace   []Frame
}

// Well-known kinds. Scripts and embedders match on these strings; the VM
// itself only ever constructs values of type ErrorT (or, post-catch, a
// caught-error subtype — see Catch below), never branching on Kind itself.
const (
	TypeError     = "TypeError"
	CallError     = "CallError"
	RangeError    = "RangeError"
	NameError     = "NameError"
	MethodError   = "MethodError"
	ValueError    = "ValueError"
	ParseError    = "ParseError"
	InternalError = "InternalError"
)

// ErrorT is the root type of every raised error value.
var ErrorT = values.NewType(values.AnyT, "Error")

// caughtT is the type an error value is retagged to inside a successful
// catch block, so a rethrow doesn't re-trigger outer handlers meant for
// the original raise. It is a subtype of ErrorT so is(err, ErrorT) still
// holds after catch.
var caughtT = values.NewType(ErrorT, "CaughtError")

func init() {
	ErrorT.Hash = func(v *values.Value, _ *values.HashLink) int64 {
		d := v.Data.(*Data)
		var h int64 = 1469598103934665603
		for i := 0; i < len(d.Kind); i++ {
			h ^= int64(d.Kind[i])
			h *= 1099511628211
		}
		return h
	}
	values.RegisterCallErrorFactory(func(v *values.Value) *values.Value {
		return New(CallError, fmt.Sprintf("%s value is not callable", values.TypeOf(v).Name))
	})
}

// New constructs a fresh error value with an empty traceback.
func New(kind, message string) *values.Value {
	return values.NewOfType(ErrorT, &Data{Kind: kind, Message: message})
}

// Newf is New with fmt.Sprintf-style formatting of message.
func Newf(kind, format string, args ...interface{}) *values.Value {
	return New(kind, fmt.Sprintf(format, args...))
}

// payload extracts an error value's Data, or nil if v is not an error value.
func payload(v *values.Value) *Data {
	if v == nil || values.TypeOf(v) == nil {
		return nil
	}
	d, _ := v.Data.(*Data)
	return d
}

// Is reports whether v is an error value (of ErrorT or the post-catch
// CaughtError subtype).
func Is(v *values.Value) bool {
	return values.Is(v, ErrorT)
}

// Kind returns the error's kind string, or "" if v is not an error value.
func Kind(v *values.Value) string {
	if d := payload(v); d != nil {
		return d.Kind
	}
	return ""
}

// Message returns the error's message, or "" if v is not an error value.
func Message(v *values.Value) string {
	if d := payload(v); d != nil {
		return d.Message
	}
	return ""
}

// PushTrace appends a (source, line) frame as the error unwinds through a
// call frame; every frame the error passes through appends its own
// source/line, producing a full traceback by the time a handler catches it.
func PushTrace(v *values.Value, source string, line int) {
	d := payload(v)
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Trace = append(d.Trace, Frame{Source: source, Line: line})
}

// Trace returns a snapshot of the error's traceback, outermost frame last.
func Trace(v *values.Value) []Frame {
	d := payload(v)
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Frame, len(d.Trace))
	copy(out, d.Trace)
	return out
}

// Catch retags err's type to the non-special caught-error subtype, so a
// rethrow from inside the catch body does not trip the handler that was
// just matched. The kind, message and trace are preserved.
func Catch(err *values.Value) *values.Value {
	d := payload(err)
	if d == nil {
		return err
	}
	return values.NewOfType(caughtT, d)
}

// Error renders kind, message and traceback as a human-readable multi-line
// string, outermost (last-pushed) frame first.
func Error(v *values.Value) string {
	d := payload(v)
	if d == nil {
		return "<not an error>"
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", d.Kind, d.Message)
	for i := len(d.Trace) - 1; i >= 0; i-- {
		f := d.Trace[i]
		fmt.Fprintf(&b, "\n\tat %s:%d", f.Source, f.Line)
	}
	return b.String()
}
