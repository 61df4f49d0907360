// Package builtins registers the core method rules the VM's own opcodes and
// the embedding surface lean on: arithmetic and comparison over the scalar
// types, range construction, list append, error inspection, and the `all`
// aggregate that drains any sequence into a list. Everything here goes
// through the same multi-dispatch table scripts extend, so a script-level
// redefinition shadows these rules like any other.
package builtins

import (
	"strings"

	"github.com/minilang/ml/compound"
	"github.com/minilang/ml/iter"
	"github.com/minilang/ml/methods"
	"github.com/minilang/ml/mlerr"
	"github.com/minilang/ml/values"
)

// fn2 adapts a dereferencing two-argument builtin to the calling contract.
// Dispatch already proved the argument types, so the callbacks may assert
// payloads directly.
func fn2(f func(caller values.Caller, a, b *values.Value) error) *values.Value {
	return values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		return f(caller, values.Deref(args[0]), values.Deref(args[1]))
	})
}

func define2(name string, a, b *values.Type, fn *values.Value) {
	methods.Intern(name).Define([]*values.Type{a, b}, false, fn)
}

func asReal(v *values.Value) float64 {
	if i, ok := v.Data.(int64); ok {
		return float64(i)
	}
	return v.Data.(float64)
}

func init() {
	intT, realT, strT := values.IntegerT, values.RealT, values.StringT

	// Arithmetic. Integer pairs stay integral except for inexact division;
	// any real operand promotes the result to real (host IEEE-754).
	define2("+", intT, intT, fn2(func(c values.Caller, a, b *values.Value) error {
		return c.Return(values.Int(a.Data.(int64) + b.Data.(int64)))
	}))
	define2("-", intT, intT, fn2(func(c values.Caller, a, b *values.Value) error {
		return c.Return(values.Int(a.Data.(int64) - b.Data.(int64)))
	}))
	define2("*", intT, intT, fn2(func(c values.Caller, a, b *values.Value) error {
		return c.Return(values.Int(a.Data.(int64) * b.Data.(int64)))
	}))
	define2("/", intT, intT, fn2(func(c values.Caller, a, b *values.Value) error {
		bi := b.Data.(int64)
		if bi == 0 {
			return c.Raise(mlerr.New(mlerr.ValueError, "division by zero"))
		}
		ai := a.Data.(int64)
		if ai%bi == 0 {
			return c.Return(values.Int(ai / bi))
		}
		return c.Return(values.Real(float64(ai) / float64(bi)))
	}))

	numPairs := [][2]*values.Type{{intT, realT}, {realT, intT}, {realT, realT}}
	for _, pair := range numPairs {
		a, b := pair[0], pair[1]
		define2("+", a, b, fn2(func(c values.Caller, x, y *values.Value) error {
			return c.Return(values.Real(asReal(x) + asReal(y)))
		}))
		define2("-", a, b, fn2(func(c values.Caller, x, y *values.Value) error {
			return c.Return(values.Real(asReal(x) - asReal(y)))
		}))
		define2("*", a, b, fn2(func(c values.Caller, x, y *values.Value) error {
			return c.Return(values.Real(asReal(x) * asReal(y)))
		}))
		define2("/", a, b, fn2(func(c values.Caller, x, y *values.Value) error {
			d := asReal(y)
			if d == 0 {
				return c.Raise(mlerr.New(mlerr.ValueError, "division by zero"))
			}
			return c.Return(values.Real(asReal(x) / d))
		}))
	}

	define2("+", strT, strT, fn2(func(c values.Caller, a, b *values.Value) error {
		return c.Return(values.Str(a.Data.(string) + b.Data.(string)))
	}))

	// Comparisons return their second argument on success and Nil on
	// failure, so chains like `1 < x < 10` short-circuit through the VM's
	// nil-branching opcodes without a boolean in sight.
	defineCompare := func(name string, holds func(cmp int) bool) {
		for _, pair := range [][2]*values.Type{{intT, intT}, {intT, realT}, {realT, intT}, {realT, realT}} {
			define2(name, pair[0], pair[1], fn2(func(c values.Caller, a, b *values.Value) error {
				if holds(compareReal(asReal(a), asReal(b))) {
					return c.Return(b)
				}
				return c.Return(values.Nil)
			}))
		}
		define2(name, strT, strT, fn2(func(c values.Caller, a, b *values.Value) error {
			if holds(strings.Compare(a.Data.(string), b.Data.(string))) {
				return c.Return(b)
			}
			return c.Return(values.Nil)
		}))
	}
	defineCompare("=", func(cmp int) bool { return cmp == 0 })
	defineCompare("!=", func(cmp int) bool { return cmp != 0 })
	defineCompare("<", func(cmp int) bool { return cmp < 0 })
	defineCompare("<=", func(cmp int) bool { return cmp <= 0 })
	defineCompare(">", func(cmp int) bool { return cmp > 0 })
	defineCompare(">=", func(cmp int) bool { return cmp >= 0 })

	define2("..", intT, intT, fn2(func(c values.Caller, a, b *values.Value) error {
		return c.Return(compound.NewRange(a.Data.(int64), b.Data.(int64), 1))
	}))

	// put appends its arguments to a list and returns the list, so calls
	// chain: L:put(1):put(2).
	methods.Intern("put").Define([]*values.Type{compound.ListT, values.AnyT}, true,
		values.NewFunction(func(caller values.Caller, args []*values.Value) error {
			lv := values.Deref(args[0])
			l := compound.ListData(lv)
			for _, a := range args[1:] {
				l.Append(values.Deref(a))
			}
			return caller.Return(lv)
		}))

	methods.Intern("type").Define([]*values.Type{mlerr.ErrorT}, false,
		values.NewFunction(func(caller values.Caller, args []*values.Value) error {
			return caller.Return(values.Str(mlerr.Kind(values.Deref(args[0]))))
		}))
	methods.Intern("message").Define([]*values.Type{mlerr.ErrorT}, false,
		values.NewFunction(func(caller values.Caller, args []*values.Value) error {
			return caller.Return(values.Str(mlerr.Message(values.Deref(args[0]))))
		}))
}

func compareReal(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Error is the `error(kind, message)` builtin: it raises a fresh error
// value rather than returning one, so the VM's uniform error hook sees it
// like any other failed operation.
var Error = values.NewFunction(func(caller values.Caller, args []*values.Value) error {
	kind, message := "Error", ""
	if len(args) > 0 {
		if s, ok := values.Deref(args[0]).Data.(string); ok {
			kind = s
		}
	}
	if len(args) > 1 {
		if s, ok := values.Deref(args[1]).Data.(string); ok {
			message = s
		}
	}
	return caller.Raise(mlerr.New(kind, message))
})

// All drains a sequence into a fresh list: all([1,2,3]) and all(generator)
// both produce a list of every value the sequence yields, in order.
var All = values.NewFunction(func(caller values.Caller, args []*values.Value) error {
	if len(args) == 0 {
		return caller.Raise(mlerr.New(mlerr.CallError, "all: expected a sequence"))
	}
	ctx := methods.ContextOf(caller)

	out := compound.NewList()
	list := compound.ListData(out)

	state, errVal := step(ctx, func(c values.Caller) error { return iter.Iterate(ctx, c, args[0]) })
	for errVal == nil && state != values.Nil {
		var v *values.Value
		v, errVal = step(ctx, func(c values.Caller) error { return iter.Value(ctx, c, state) })
		if errVal != nil {
			break
		}
		list.Append(values.Deref(v))
		state, errVal = step(ctx, func(c values.Caller) error { return iter.Next(ctx, c, state) })
	}
	if errVal != nil {
		return caller.Raise(errVal)
	}
	return caller.Return(out)
})

// stepCaller captures one synchronous protocol step's outcome while
// carrying the methods context through nested dispatch.
type stepCaller struct {
	ctx    *methods.Context
	result *values.Value
	err    *values.Value
}

func (c *stepCaller) Return(v *values.Value) error     { c.result = v; return nil }
func (c *stepCaller) Raise(v *values.Value) error      { c.err = v; return nil }
func (c *stepCaller) MethodsContext() *methods.Context { return c.ctx }

func step(ctx *methods.Context, f func(values.Caller) error) (*values.Value, *values.Value) {
	c := &stepCaller{ctx: ctx}
	if err := f(c); err != nil {
		return nil, mlerr.New(mlerr.InternalError, err.Error())
	}
	if c.err != nil {
		return nil, c.err
	}
	if c.result == nil {
		return values.Nil, nil
	}
	return c.result, nil
}
