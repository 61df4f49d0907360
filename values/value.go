// Package values implements minilang's uniform value representation: every
// runtime value is a (Type, Data) pair that answers to hash, call, deref and
// assign through its type's capability slots.
package values

import (
	"fmt"
	"math"
	"unsafe"
)

// Value is a minilang runtime value, kept as a single boxed
// representation: Go gives no portable way to steal spare pointer bits, so
// there is no tagged-small variant.
type Value struct {
	Type *Value // always a *Type value, wrapped so Type itself is a Value
	Data interface{}
}

// wrapType boxes a *Type as a Value of type TypeT so that typeof(v) is
// itself always a Value, satisfying "a type is itself a value".
func wrapType(t *Type) *Value {
	if t == nil {
		return nil
	}
	if t.selfValue != nil {
		return t.selfValue
	}
	v := &Value{Data: t}
	t.selfValue = v
	if t == TypeT {
		v.Type = v
	} else {
		v.Type = wrapType(TypeT)
	}
	return v
}

// Nil is the single canonical empty/absent value (distinct from a failed
// lookup, which uses an error).
var Nil = &Value{}

// Some is a canonical non-nil marker used where a typed function needs to
// distinguish "empty" from "present but uninteresting" (iterate returning
// Nil vs. a non-nil iterator).
var Some = &Value{}

func init() {
	Nil.Type = wrapType(NilT)
	Some.Type = wrapType(SomeT)
}

// NilT and SomeT are the types of the two sentinel sub-singletons.
var (
	NilT  = NewType(AnyT, "Nil")
	SomeT = NewType(AnyT, "Some")
)

// TypeOf returns v's type, total and never nil.
func TypeOf(v *Value) *Type {
	if v == nil || v.Type == nil {
		return AnyT
	}
	t, _ := v.Type.Data.(*Type)
	if t == nil {
		return AnyT
	}
	return t
}

// NewOfType constructs a value of the given type wrapping data.
func NewOfType(t *Type, data interface{}) *Value {
	return &Value{Type: wrapType(t), Data: data}
}

// TypeValue returns the Value wrapper for a Type (so types can flow through
// the VM as ordinary values, e.g. as CLOSURE_TYPED's popped type operand).
func TypeValue(t *Type) *Value { return wrapType(t) }

// AsType extracts the *Type payload from a value of kind Type, or nil.
func AsType(v *Value) *Type {
	if v == nil {
		return nil
	}
	t, _ := v.Data.(*Type)
	return t
}

// Is reports whether type is in value's type's parent set, or equal to
// it.
func Is(v *Value, t *Type) bool {
	vt := TypeOf(v)
	if vt == t {
		return true
	}
	if len(t.Alternatives) > 0 {
		for _, alt := range t.Alternatives {
			if Is(v, alt) {
				return true
			}
		}
	}
	return vt.HasParent(t)
}

// Deref dereferences v through its type's slot, defaulting to identity.
// Idempotent by construction: a correctly-written Deref slot on a reference
// type returns a non-reference value, so a second call hits the default
// identity branch.
func Deref(v *Value) *Value {
	if v == nil {
		return Nil
	}
	t := TypeOf(v)
	if t.Deref != nil {
		return t.Deref(v)
	}
	return v
}

// notAssignableMsg/notCallableMsg are the messages carried by AssignFailure
// and CallFailure.
const (
	notAssignableMsg = "not assignable"
	notCallableMsg   = "not callable"
)

// AssignFailure is returned by Assign when the target type has no Assign
// slot. The vm/mlerr packages convert this into a proper TypeError value;
// keeping it as a plain Go error here avoids values depending on mlerr.
type AssignFailure struct{ Target *Value }

func (e *AssignFailure) Error() string { return notAssignableMsg }

// CallFailure is a Go error form of the not-callable failure. Call does not
// use it: for a type with no Call slot it raises the value built by the
// registered CallError factory.
type CallFailure struct{ Target *Value }

func (e *CallFailure) Error() string { return notCallableMsg }

// Assign assigns val through ref's type's Assign slot. A value on which
// assign has not been defined fails with kind TypeError.
func Assign(ref *Value, val *Value) (*Value, error) {
	t := TypeOf(ref)
	if t.Assign == nil {
		return nil, &AssignFailure{Target: ref}
	}
	return t.Assign(ref, val)
}

// Call invokes v as a callable, handing caller to the type's Call slot.
// Defaults to raising a CallError value (built by callErrorFactory) via
// caller.Raise unless the type provides a Call slot.
func Call(caller Caller, v *Value, args []*Value) error {
	t := TypeOf(v)
	if t.Call == nil {
		return caller.Raise(callErrorPlaceholder(v))
	}
	return t.Call(caller, v, args)
}

// callErrorFactory is overridden by package mlerr at init time (via
// RegisterCallErrorFactory) so Call can raise a well-formed error value
// without values importing mlerr (which itself depends on values).
var callErrorFactory = func(v *Value) *Value {
	return NewOfType(genericErrorT, fmt.Sprintf("CallError: %s not callable", TypeOf(v).Name))
}

// genericErrorT is a placeholder type used only until mlerr installs the
// real factory; application code never observes it because mlerr's init
// registers the real factory before any script executes.
var genericErrorT = NewType(AnyT, "Error")

// RegisterCallErrorFactory lets package mlerr supply the canonical
// CallError constructor, breaking the values->mlerr import cycle.
func RegisterCallErrorFactory(f func(v *Value) *Value) {
	callErrorFactory = f
}

func callErrorPlaceholder(v *Value) *Value { return callErrorFactory(v) }

// Hash computes v's hash, threading chain through compound values to break
// cycles.
func Hash(v *Value, chain *HashLink) int64 {
	if v == nil {
		return 0
	}
	t := TypeOf(v)
	if t.Hash != nil {
		return t.Hash(v, chain)
	}
	return defaultHash(v)
}

func defaultHash(v *Value) int64 {
	switch d := v.Data.(type) {
	case nil:
		return 0
	case int64:
		return d
	case float64:
		return int64(math.Float64bits(d))
	case string:
		var h int64 = 1469598103934665603
		for i := 0; i < len(d); i++ {
			h ^= int64(d[i])
			h *= 1099511628211
		}
		return h
	case bool:
		if d {
			return 1
		}
		return 0
	default:
		// Identity hash: stable for the lifetime of the process, which is
		// all that is required of values with no declared Hash slot.
		return int64(uintptr(unsafe.Pointer(v)))
	}
}

// String renders v for debugging/trace formatting only; it is not the
// language-level string conversion (that's left to per-type methods).
func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	if v == Nil {
		return "nil"
	}
	return fmt.Sprintf("<%s %v>", TypeOf(v).Name, v.Data)
}
