package vm

import (
	"github.com/minilang/ml/compound"
	"github.com/minilang/ml/debug"
	"github.com/minilang/ml/methods"
	"github.com/minilang/ml/opcodes"
	"github.com/minilang/ml/scheduler"
	"github.com/minilang/ml/values"
)

// Context bundles the per-execution-tree services a frame carries a
// pointer to: the method dispatch cache, the cooperative scheduler, and an
// optional debugger the decode loop reports into. An embedder creates one
// Context per independent logical task; nested calls within one task share
// it.
type Context struct {
	Methods  *methods.Context
	Sched    *scheduler.Scheduler
	Debug    bool            // IF_DEBUG opcode reads this context-wide flag
	Debugger *debug.Debugger // nil disables breakpoints and instruction tracing
}

// NewContext creates a fresh execution context with its own method
// dispatch cache and an inline (single-threaded) scheduler queue.
func NewContext() *Context {
	return &Context{
		Methods: methods.NewContext(),
		Sched:   scheduler.New(scheduler.DefaultQuantum, nil),
	}
}

// ContinuationT is the type of a first-class suspended frame. Calling a
// continuation value resumes it with the call's first argument as the
// seed.
var ContinuationT = values.NewType(values.AnyT, "Continuation")

func init() {
	ContinuationT.Call = func(caller values.Caller, v *values.Value, args []*values.Value) error {
		fr := v.Data.(*Frame)
		seed := values.Nil
		if len(args) > 0 {
			seed = args[0]
		}
		fr.Caller = caller
		return Execute(fr, seed)
	}
}

// handlerSave records an on_error handler so TRY/CATCH can restore the
// enclosing scope's handler once the caught scope is left.
type handlerSave struct {
	handler *opcodes.Instruction
	depth   int
	start   *opcodes.Instruction // TRY body's first instruction, for RETRY
}

// Frame is a call frame / continuation value. It is created on a call to
// a bytecode closure, mutated only by the VM executing its own frame, and
// may be resumed arbitrarily many times after being suspended because it
// is itself a first-class value.
type Frame struct {
	Caller   values.Caller
	Inst     *opcodes.Instruction
	Stack    []*values.Value
	Top      int
	Upvalues []*values.Value
	OnError  *opcodes.Instruction
	Decls    *Decl
	Ctx      *Context
	Info     *ClosureInfo

	// opBase is the boundary between the frame's declared slots (locals,
	// parameters, the variadic collector) and its operand stack: Stack[i]
	// for i < opBase is addressed by LOCAL/VAR/LET slot index, push/pop
	// work at Top >= opBase. Set to the closure info's frame size by
	// Invoke; zero for a hand-built frame with no declared slots.
	opBase int

	handlers    []handlerSave
	pendingErr  *values.Value // the error currently being unwound to OnError, consumed by CATCH
	lastResult  *values.Value // mirrors the last CALL/CONST_CALL/RESOLVE result for PUSH_RESULT
	seed        *values.Value // value a resumed frame was called with, consumed by RESUME
	done        bool          // RETURN already handed the stack to Caller; further Resume calls are a no-op returning Nil
	pendingJump bool          // set by invokeValue/resolve when an inline error hook already repointed fr.Inst
}

// push/pop/peek/popN implement the frame's operand stack.
func (fr *Frame) push(v *values.Value) {
	if fr.Top < len(fr.Stack) {
		fr.Stack[fr.Top] = v
	} else {
		fr.Stack = append(fr.Stack, v)
	}
	fr.Top++
}

func (fr *Frame) pop() *values.Value {
	if fr.Top <= fr.opBase {
		return values.Nil
	}
	fr.Top--
	v := fr.Stack[fr.Top]
	fr.Stack[fr.Top] = nil
	return v
}

func (fr *Frame) peek() *values.Value {
	if fr.Top <= fr.opBase {
		return values.Nil
	}
	return fr.Stack[fr.Top-1]
}

// popN pops n values and returns them in original push order.
func (fr *Frame) popN(n int) []*values.Value {
	out := make([]*values.Value, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = fr.pop()
	}
	return out
}

// frameAdapter is a throwaway values.Caller used for exactly one nested
// call/iterate/resolve dispatch from inside the decode loop. It also
// implements CtxCaller so a nested bytecode closure reached indirectly
// (e.g. through a compound.Partial) still runs under this frame's Context
// rather than a fresh, cache-cold one.
type frameAdapter struct {
	fr          *Frame
	result, err *values.Value
}

func (a *frameAdapter) Return(v *values.Value) error { a.result = v; return nil }
func (a *frameAdapter) Raise(v *values.Value) error  { a.err = v; return nil }
func (a *frameAdapter) VMContext() *Context          { return a.fr.Ctx }

// MethodsContext implements methods.ContextCarrier so that a method value
// invoked through values.Call (CALL/CONST_CALL on a method constant, or a
// partial application over one) dispatches in this frame's scoped cache.
func (a *frameAdapter) MethodsContext() *methods.Context { return a.fr.Ctx.Methods }

// CtxCaller is implemented by callers able to supply the vm.Context a
// nested bytecode closure invocation should share, so method-dispatch
// caches and the scheduler stay scoped to one logical task even when the
// call passes through an intermediate non-VM callable such as a partial
// application.
type CtxCaller interface {
	values.Caller
	VMContext() *Context
}

// ctxFrom recovers the Context a caller can supply, or allocates a fresh
// one. A fresh context is a correctness fallback, not the common case: it
// means the nested call gets a cold method-dispatch cache instead of
// sharing its caller's.
func ctxFrom(caller values.Caller) *Context {
	if cc, ok := caller.(CtxCaller); ok {
		if c := cc.VMContext(); c != nil {
			return c
		}
	}
	return NewContext()
}

// Resume implements scheduler.Runner: re-entering Execute from the saved
// instruction pointer with value as the seed.
func (fr *Frame) Resume(value *values.Value) error {
	return Execute(fr, value)
}

// Value wraps fr as a first-class Continuation value (returned by
// SUSPEND).
func (fr *Frame) Value() *values.Value {
	return values.NewOfType(ContinuationT, fr)
}

// Invoke creates a call frame for closure and begins executing it with a
// Nil seed, running it under ctx (its method-dispatch cache and
// scheduler).
func Invoke(ctx *Context, caller values.Caller, cl *Closure, args []*values.Value) error {
	info := cl.Info
	frame := &Frame{
		Caller:   caller,
		Stack:    make([]*values.Value, info.FrameSize),
		Top:      info.FrameSize,
		opBase:   info.FrameSize,
		Upvalues: cl.Upvalues,
		Inst:     info.Entry,
		OnError:  info.Return,
		Decls:    info.Decls,
		Ctx:      ctx,
		Info:     info,
	}
	bindParams(frame, info, args)
	return Execute(frame, values.Nil)
}

// bindParams populates the positional slots from the actual arguments,
// each boxed in a Ref cell; a variadic closure's extra positional
// arguments collect into a list in the extra slot, and trailing
// Names-tagged arguments are matched against declared parameter names
// instead of position. A partial application's captured prefix is woven in
// upstream by compound.Partial's own Call slot before Invoke ever sees the
// arguments.
func bindParams(frame *Frame, info *ClosureInfo, args []*values.Value) {
	var names *compound.Names
	if n := len(args); n > 0 {
		if nm := compound.NamesData(args[n-1]); nm != nil {
			names = nm
			args = args[:n-1]
		}
	}

	numParams, variadic := info.NumArity()

	for i := 0; i < numParams && i < len(frame.Stack); i++ {
		val := values.Nil
		switch {
		case names != nil:
			if i < len(info.ParamNames) {
				if pos := names.IndexOf(info.ParamNames[i]); pos >= 0 && pos < len(args) {
					val = args[pos]
				}
			}
		case i < len(args):
			val = args[i]
		}
		frame.Stack[i] = NewRef(val)
	}

	if variadic && numParams < len(frame.Stack) {
		extra := compound.NewList()
		if len(args) > numParams {
			ed := compound.ListData(extra)
			for _, a := range args[numParams:] {
				ed.Append(a)
			}
		}
		frame.Stack[numParams] = NewRef(extra)
	}

	for i := numParams; i < len(frame.Stack); i++ {
		if frame.Stack[i] == nil {
			frame.Stack[i] = NewRef(values.Nil)
		}
	}
}
