package values

// NativeFn is the Go-side shape of a built-in callable: it receives the
// caller and the raw argument vector and must eventually invoke
// caller.Return or caller.Raise (glossary: Callable).
type NativeFn func(caller Caller, args []*Value) error

// FunctionT is the type of a native (Go-implemented) function value. The
// core's own built-ins, iterator typed functions and embedder-supplied
// callables are all values of this type; bytecode closures get their own
// Closure type in package vm with the same calling contract.
var FunctionT = NewType(AnyT, "Function")

func init() {
	FunctionT.Call = func(caller Caller, v *Value, args []*Value) error {
		return v.Data.(NativeFn)(caller, args)
	}
}

// NewFunction wraps fn as a callable value.
func NewFunction(fn NativeFn) *Value {
	return NewOfType(FunctionT, fn)
}
