// Package iter implements minilang's four-function iterator protocol:
// iterate, key, value and next. Dispatch tries each type's typed-function
// table first, falling back to ordinary multi-dispatch on a well-known
// method name of the same spelling.
package iter

import (
	"reflect"

	"github.com/minilang/ml/methods"
	"github.com/minilang/ml/values"
)

// keys used to look a well-known typed function up in a Type's TypedFns
// table; the address of each package-level func value is stable for the
// life of the process and unique per well-known operation.
var (
	iterateKey = funcKey(iterateFallback)
	keyKey     = funcKey(keyFallback)
	valueKey   = funcKey(valueFallback)
	nextKey    = funcKey(nextFallback)
)

func funcKey(f func(values.Caller, *values.Value) error) uintptr {
	return reflect.ValueOf(f).Pointer()
}

// Method names used for the method-dispatch fallback when a type carries
// no typed iterate/key/value/next override.
var (
	MethodIterate = methods.Intern("iterate")
	MethodKey     = methods.Intern("key")
	MethodValue   = methods.Intern("value")
	MethodNext    = methods.Intern("next")
)

// SetTyped installs a typed-function override for one of the four
// operations on t, bypassing method dispatch entirely for values of t.
func SetTyped(t *values.Type, op string, fn *values.Value) {
	switch op {
	case "iterate":
		t.SetTypedFn(iterateKey, fn)
	case "key":
		t.SetTypedFn(keyKey, fn)
	case "value":
		t.SetTypedFn(valueKey, fn)
	case "next":
		t.SetTypedFn(nextKey, fn)
	}
}

// Iterate begins iteration over v, invoking caller.Return with the initial
// iterator state (or Nil if v is empty) or caller.Raise on error.
func Iterate(ctx *methods.Context, caller values.Caller, v *values.Value) error {
	return dispatch(ctx, caller, iterateKey, MethodIterate, v)
}

// Key returns the current iteration state's key via caller.Return/Raise.
func Key(ctx *methods.Context, caller values.Caller, state *values.Value) error {
	return dispatch(ctx, caller, keyKey, MethodKey, state)
}

// Value returns the current iteration state's value via caller.Return/Raise.
func Value(ctx *methods.Context, caller values.Caller, state *values.Value) error {
	return dispatch(ctx, caller, valueKey, MethodValue, state)
}

// Next advances iteration, returning the next state (or Nil when exhausted)
// via caller.Return/Raise.
func Next(ctx *methods.Context, caller values.Caller, state *values.Value) error {
	return dispatch(ctx, caller, nextKey, MethodNext, state)
}

func dispatch(ctx *methods.Context, caller values.Caller, key uintptr, m *methods.Method, v *values.Value) error {
	t := values.TypeOf(values.Deref(v))
	if fn, ok := t.TypedFn(key); ok {
		return values.Call(caller, fn, []*values.Value{v})
	}
	return methods.Call(ctx, caller, m, []*values.Value{v})
}

// The *fallback functions exist only to provide stable, distinct function
// values whose addresses key the typed-function table; they are never
// called directly (a miss in TypedFn falls through to method dispatch, not
// to these).
func iterateFallback(values.Caller, *values.Value) error { panic("iter: fallback called") }
func keyFallback(values.Caller, *values.Value) error     { panic("iter: fallback called") }
func valueFallback(values.Caller, *values.Value) error   { panic("iter: fallback called") }
func nextFallback(values.Caller, *values.Value) error    { panic("iter: fallback called") }
