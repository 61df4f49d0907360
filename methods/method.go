// Package methods implements minilang's multi-dispatch method table: named,
// interned methods with argument-type-vector rules, a per-context dispatch
// cache, and a rank-based tie-break.
package methods

import (
	"sync"

	"github.com/minilang/ml/mlerr"
	"github.com/minilang/ml/types"
	"github.com/minilang/ml/values"
)

// Method is an interned callable name: two calls to Intern with the same
// name return the same *Method.
type Method struct {
	Name string

	mu    sync.RWMutex
	rules []*rule

	asValue *values.Value // cached wrapper, see AsValue
}

// values.MethodT is the type of a first-class method value. Its Call slot
// dispatches within the caller's methods context, recovered through the
// ContextCarrier interface the VM's internal callers implement; a caller
// that carries no context gets a fresh, cache-cold one.
func init() {
	values.MethodT.Call = func(caller values.Caller, v *values.Value, args []*values.Value) error {
		return Call(ContextOf(caller), caller, v.Data.(*Method), args)
	}
	values.MethodT.Hash = func(v *values.Value, _ *values.HashLink) int64 {
		m := v.Data.(*Method)
		var h int64 = 1469598103934665603
		for i := 0; i < len(m.Name); i++ {
			h ^= int64(m.Name[i])
			h *= 1099511628211
		}
		return h
	}
}

// AsValue wraps m as a first-class values.Value of type values.MethodT,
// memoising the wrapper so repeated calls return an identical pointer
// (methods are interned, so their value wrapper should be too).
func AsValue(m *Method) *values.Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.asValue == nil {
		m.asValue = values.NewOfType(values.MethodT, m)
	}
	return m.asValue
}

// MethodData extracts the *Method payload from v, or nil.
func MethodData(v *values.Value) *Method {
	d, _ := v.Data.(*Method)
	return d
}

type rule struct {
	sig      []*values.Type
	variadic bool
	order    int
	fn       *values.Value // callable: Call(caller, fn, args)
}

var (
	internMu    sync.Mutex
	internTable = map[string]*Method{}
)

// Intern returns the canonical *Method for name, creating it on first use.
func Intern(name string) *Method {
	internMu.Lock()
	defer internMu.Unlock()
	if m, ok := internTable[name]; ok {
		return m
	}
	m := &Method{Name: name}
	internTable[name] = m
	return m
}

// Define registers a dispatch rule: fn is invoked when the call's argument
// types match sig (each arg's type must satisfy types.IsSubtype against the
// corresponding sig entry); variadic rules match any number of trailing
// arguments of sig's last entry.
func (m *Method) Define(sig []*values.Type, variadic bool, fn *values.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, &rule{sig: sig, variadic: variadic, order: len(m.rules), fn: fn})
}

// DefineAll registers one callback against several signatures in one call.
func (m *Method) DefineAll(fn *values.Value, sigs ...[]*values.Type) {
	for _, sig := range sigs {
		m.Define(sig, false, fn)
	}
}

// Context owns a per-context dispatch cache: results are memoised per
// calling context so that method definitions can be scoped to a dynamic
// extent without invalidating every other context's warm cache.
type Context struct {
	mu    sync.Mutex
	cache map[cacheKey]*rule
}

type cacheKey struct {
	method *Method
	sig    string
}

// NewContext creates a fresh dispatch-cache scope.
func NewContext() *Context {
	return &Context{cache: map[cacheKey]*rule{}}
}

// ContextCarrier is implemented by callers that carry a methods context
// for the dynamic extent they represent. The VM's frame adapters implement
// it; so may an embedder's own top-level caller.
type ContextCarrier interface {
	values.Caller
	MethodsContext() *Context
}

// ContextOf recovers the methods context caller carries, or allocates a
// fresh one. A fresh context is a correctness fallback only: the dispatch
// cache starts cold.
func ContextOf(caller values.Caller) *Context {
	if cc, ok := caller.(ContextCarrier); ok {
		if ctx := cc.MethodsContext(); ctx != nil {
			return ctx
		}
	}
	return NewContext()
}

func sigKey(types []*values.Type) string {
	b := make([]byte, 0, len(types)*8)
	for _, t := range types {
		b = append(b, []byte(t.Name)...)
		b = append(b, 0)
	}
	return string(b)
}

// Call dispatches m against args' dynamic types within ctx and invokes the
// winning rule's callable, or raises MethodError on no match.
func Call(ctx *Context, caller values.Caller, m *Method, args []*values.Value) error {
	argTypes := make([]*values.Type, len(args))
	for i, a := range args {
		argTypes[i] = values.TypeOf(values.Deref(a))
	}

	key := cacheKey{method: m, sig: sigKey(argTypes)}
	ctx.mu.Lock()
	won, ok := ctx.cache[key]
	ctx.mu.Unlock()

	if !ok {
		m.mu.RLock()
		won = selectRule(m.rules, argTypes)
		m.mu.RUnlock()
		if won != nil {
			ctx.mu.Lock()
			ctx.cache[key] = won
			ctx.mu.Unlock()
		}
	}

	if won == nil {
		return caller.Raise(mlerr.Newf(mlerr.MethodError, "no method %q matching the given argument types", m.Name))
	}
	return values.Call(caller, won.fn, args)
}

// selectRule finds the applicable rule with the greatest tie-break tuple:
// every rule whose signature matches is a candidate; among candidates, the
// lowest total rank distance to the actual argument types wins
// (equivalently, the greatest sum of declared ranks, since the actual
// ranks are fixed per call), ties broken by the greatest minimum declared
// rank (the rule whose weakest parameter is still the most specific),
// remaining ties by the latest declaration, so a redefinition shadows what
// it duplicates.
func selectRule(rules []*rule, argTypes []*values.Type) *rule {
	var best *rule
	var bestSum, bestMin int

	for _, r := range rules {
		if !matches(r, argTypes) {
			continue
		}
		sum, min := rankScore(r, argTypes)
		if best == nil ||
			sum < bestSum ||
			(sum == bestSum && min > bestMin) ||
			(sum == bestSum && min == bestMin && r.order > best.order) {
			best, bestSum, bestMin = r, sum, min
		}
	}
	return best
}

func matches(r *rule, argTypes []*values.Type) bool {
	if r.variadic {
		if len(argTypes) < len(r.sig)-1 {
			return false
		}
	} else if len(argTypes) != len(r.sig) {
		return false
	}
	for i, at := range argTypes {
		sigT := lastOrVariadic(r, i)
		if sigT == nil {
			return false
		}
		if !types.IsSubtype(at, sigT) {
			return false
		}
	}
	return true
}

func lastOrVariadic(r *rule, i int) *values.Type {
	if i < len(r.sig) {
		return r.sig[i]
	}
	if r.variadic {
		return r.sig[len(r.sig)-1]
	}
	return nil
}

// rankScore returns the rule's total rank distance to the actual argument
// types and its minimum declared rank. The minimum is taken over the
// declared ranks directly, not over the per-position distances: distance
// does not preserve the ordering of declared ranks when the actual ranks
// differ across positions.
func rankScore(r *rule, argTypes []*values.Type) (sum, min int) {
	min = -1
	for i, at := range argTypes {
		sigT := lastOrVariadic(r, i)
		sum += at.Rank() - sigT.Rank()
		if min == -1 || sigT.Rank() < min {
			min = sigT.Rank()
		}
	}
	return sum, min
}
