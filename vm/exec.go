package vm

import (
	"fmt"
	"time"

	"github.com/minilang/ml/compound"
	"github.com/minilang/ml/iter"
	"github.com/minilang/ml/methods"
	"github.com/minilang/ml/mlerr"
	"github.com/minilang/ml/opcodes"
	"github.com/minilang/ml/values"
)

// resolveMethod is the "::" method RESOLVE falls back to when the popped
// module value isn't a values.Type (or the name isn't in its exports),
// e.g. resolving a name against a scripted namespace object.
var resolveMethod = methods.Intern("::")

// Execute is minilang's decode-dispatch loop: it reads
// fr.Inst, dispatches on its opcode, and either loops (purely intra-VM
// work) or tail-invokes another callable's Call slot through a throwaway
// adapter. It returns once fr has handed a result to its Caller (RETURN),
// suspended itself as a continuation (SUSPEND), propagated an uncaught
// error (Caller.Raise), or been swapped out by the scheduler.
func Execute(fr *Frame, seed *values.Value) error {
	if fr.Ctx == nil {
		fr.Ctx = NewContext()
	}
	ctx := fr.Ctx
	fr.seed = seed

	if fr.done {
		return fr.Caller.Return(values.Nil)
	}

	// When a debugger is installed, each loop iteration reports the
	// previous instruction with its measured duration before dispatching
	// the next one, and announces breakpoint hits as they are reached.
	dbg := ctx.Debugger
	var traced *opcodes.Instruction
	var tracedAt time.Time

	for {
		in := fr.Inst
		if in == nil {
			fr.done = true
			return fr.Caller.Return(values.Nil)
		}

		if dbg != nil {
			if traced != nil {
				dbg.Trace(traced, fr.Top, time.Since(tracedAt))
			}
			traced, tracedAt = in, time.Now()
			if dbg.AtBreakpoint(in) {
				fmt.Fprintf(dbg.Output, "[debugger] breakpoint hit at %s line %d\n", in.Op, in.Line)
			}
		}

		if opcodes.PreemptPoints[in.Op] {
			if ctx.Sched.Tick() {
				ctx.Sched.Enqueue(fr, values.Nil)
				return nil
			}
		}

		switch in.Op {

		// --- stack / constants ---
		case opcodes.NIL:
			fr.push(values.Nil)
			fr.Inst = in.Next()
		case opcodes.SOME:
			fr.push(values.Some)
			fr.Inst = in.Next()
		case opcodes.LOAD:
			fr.push(in.Params[0].(*values.Value))
			fr.Inst = in.Next()
		case opcodes.PUSH:
			fr.push(fr.peek())
			fr.Inst = in.Next()
		case opcodes.POP:
			fr.pop()
			fr.Inst = in.Next()
		case opcodes.PUSH_RESULT:
			if fr.lastResult == nil {
				fr.push(values.Nil)
			} else {
				fr.push(fr.lastResult)
			}
			fr.Inst = in.Next()

		// --- locals / upvalues ---
		case opcodes.LOCAL:
			fr.push(fr.Stack[in.Params[0].(int)])
			fr.Inst = in.Next()
		case opcodes.UPVALUE:
			fr.push(fr.Upvalues[in.Params[0].(int)])
			fr.Inst = in.Next()
		case opcodes.ENTER:
			// Params: nVars, nLets, decls (nilable *Decl), next.
			if d, ok := in.Params[2].(*Decl); ok {
				fr.Decls = d
			}
			fr.Inst = in.Next()
		case opcodes.EXIT:
			// Params: count, decls (nilable *Decl), next.
			if d, ok := in.Params[1].(*Decl); ok {
				fr.Decls = d
			}
			fr.Inst = in.Next()
		case opcodes.VAR:
			fr.Stack[in.Params[0].(int)] = NewRef(values.Nil)
			fr.Inst = in.Next()
		case opcodes.VAR_TYPE:
			// Declared type is a hint the emitter may use for static checks;
			// the VM itself does not enforce it at the slot.
			fr.Stack[in.Params[0].(int)] = NewRef(values.Nil)
			fr.Inst = in.Next()
		case opcodes.LET:
			fr.Stack[in.Params[0].(int)] = NewRef(fr.pop())
			fr.Inst = in.Next()
		case opcodes.LETI:
			val := fr.pop()
			values.Assign(fr.Stack[in.Params[0].(int)], val)
			fr.Inst = in.Next()
		case opcodes.REF:
			fr.push(fr.Stack[in.Params[0].(int)])
			fr.Inst = in.Next()
		case opcodes.REFI:
			val := fr.pop()
			values.Assign(fr.Stack[in.Params[0].(int)], val)
			fr.Inst = in.Next()
		case opcodes.REFX:
			count, start := in.Params[0].(int), in.Params[1].(int)
			tp := compound.TupleData(values.Deref(fr.pop()))
			for i := 0; i < count; i++ {
				if tp != nil {
					fr.Stack[start+i] = tp.At(i)
				} else {
					fr.Stack[start+i] = NewRef(values.Nil)
				}
			}
			fr.Inst = in.Next()
		case opcodes.VARX, opcodes.LETX:
			count, start := in.Params[0].(int), in.Params[1].(int)
			tp := compound.TupleData(values.Deref(fr.pop()))
			for i := 0; i < count; i++ {
				elem := values.Nil
				if tp != nil {
					elem = tp.At(i)
				}
				if in.Op == opcodes.LETX {
					values.Assign(fr.Stack[start+i], elem)
				} else {
					fr.Stack[start+i] = NewRef(elem)
				}
			}
			fr.Inst = in.Next()

		// --- control flow ---
		case opcodes.GOTO, opcodes.LINK:
			fr.Inst = in.Params[0].(*opcodes.Instruction)
		case opcodes.IF:
			if values.IsTruthy(fr.pop()) {
				fr.Inst = in.Params[1].(*opcodes.Instruction)
			} else {
				fr.Inst = in.Params[0].(*opcodes.Instruction)
			}
		case opcodes.ELSE:
			if values.IsTruthy(fr.pop()) {
				fr.Inst = in.Params[0].(*opcodes.Instruction)
			} else {
				fr.Inst = in.Params[1].(*opcodes.Instruction)
			}
		case opcodes.IF_VAR, opcodes.IF_LET:
			v := fr.pop()
			if values.IsTruthy(v) {
				fr.Stack[in.Params[2].(int)] = NewRef(v)
				fr.Inst = in.Params[1].(*opcodes.Instruction)
			} else {
				fr.Inst = in.Params[0].(*opcodes.Instruction)
			}
		case opcodes.AND:
			if !values.IsTruthy(fr.peek()) {
				fr.Inst = in.Params[0].(*opcodes.Instruction)
			} else {
				fr.pop()
				fr.Inst = in.Next()
			}
		case opcodes.OR:
			if values.IsTruthy(fr.peek()) {
				fr.Inst = in.Params[0].(*opcodes.Instruction)
			} else {
				fr.pop()
				fr.Inst = in.Next()
			}

		// --- iteration ---
		case opcodes.FOR:
			seq := values.Deref(fr.pop())
			adapter := &frameAdapter{fr: fr}
			if err := iter.Iterate(ctx.Methods, adapter, seq); err != nil {
				return err
			}
			if adapter.err != nil {
				if fr.raiseInline(adapter.err, in.Line) {
					continue
				}
				return fr.finish(adapter.err)
			}
			fr.push(adapter.result)
			fr.Inst = in.Next()
		case opcodes.ITER:
			if fr.peek() == values.Nil {
				fr.pop()
				fr.Inst = in.Params[0].(*opcodes.Instruction)
			} else {
				fr.Inst = in.Next()
			}
		case opcodes.KEY, opcodes.VALUE:
			state := fr.peek()
			adapter := &frameAdapter{fr: fr}
			var err error
			if in.Op == opcodes.KEY {
				err = iter.Key(ctx.Methods, adapter, state)
			} else {
				err = iter.Value(ctx.Methods, adapter, state)
			}
			if err != nil {
				return err
			}
			if adapter.err != nil {
				if fr.raiseInline(adapter.err, in.Line) {
					continue
				}
				return fr.finish(adapter.err)
			}
			fr.Stack[in.Params[0].(int)] = NewRef(adapter.result)
			fr.Inst = in.Next()
		case opcodes.NEXT:
			state := fr.pop()
			adapter := &frameAdapter{fr: fr}
			if err := iter.Next(ctx.Methods, adapter, state); err != nil {
				return err
			}
			if adapter.err != nil {
				if fr.raiseInline(adapter.err, in.Line) {
					continue
				}
				return fr.finish(adapter.err)
			}
			fr.push(adapter.result)
			fr.Inst = in.Params[0].(*opcodes.Instruction)

		// --- calls ---
		case opcodes.CALL:
			argc := in.Params[0].(int)
			fn := values.Deref(fr.pop())
			args := fr.popN(argc)
			if err := fr.invokeValue(fn, args, in.Line); err != nil {
				return err
			}
			if fr.done {
				return nil
			}
			if fr.pendingJump {
				fr.pendingJump = false
				continue
			}
			fr.Inst = in.Next()
		case opcodes.CONST_CALL:
			argc := in.Params[0].(int)
			fn := in.Params[1].(*values.Value)
			args := fr.popN(argc)
			if err := fr.invokeValue(fn, args, in.Line); err != nil {
				return err
			}
			if fr.done {
				return nil
			}
			if fr.pendingJump {
				fr.pendingJump = false
				continue
			}
			fr.Inst = in.Next()
		case opcodes.RESOLVE:
			name := in.Params[0].(string)
			mod := fr.pop()
			result, err := fr.resolve(ctx, mod, name, in.Line)
			if err != nil {
				return err
			}
			if fr.done {
				return nil
			}
			if fr.pendingJump {
				fr.pendingJump = false
				continue
			}
			fr.push(result)
			fr.Inst = in.Next()
		case opcodes.RESULT:
			if mlerr.Is(fr.peek()) {
				err := fr.pop()
				if fr.raiseInline(err, in.Line) {
					continue
				}
				return fr.finish(err)
			}
			fr.Inst = in.Next()
		case opcodes.ASSIGN:
			ref := fr.pop()
			val := fr.pop()
			result, aerr := values.Assign(ref, val)
			if aerr != nil {
				errVal := mlerr.New(mlerr.TypeError, aerr.Error())
				if fr.raiseInline(errVal, in.Line) {
					continue
				}
				return fr.finish(errVal)
			}
			fr.push(result)
			fr.Inst = in.Next()

		// --- exceptions ---
		case opcodes.TRY:
			handler := in.Params[0].(*opcodes.Instruction)
			fr.handlers = append(fr.handlers, handlerSave{handler: fr.OnError, depth: fr.Top, start: in.Next()})
			fr.OnError = handler
			fr.Inst = in.Next()
		case opcodes.RETRY:
			if n := len(fr.handlers); n > 0 {
				fr.Inst = fr.handlers[n-1].start
			} else {
				fr.Inst = in.Next()
			}
		case opcodes.CATCH:
			// Params: depth, decls (nilable *Decl), next.
			depth := in.Params[0].(int)
			if d, ok := in.Params[1].(*Decl); ok {
				fr.Decls = d
			}
			if n := len(fr.handlers); n > 0 {
				fr.OnError = fr.handlers[n-1].handler
				fr.handlers = fr.handlers[:n-1]
			}
			fr.Top = depth
			caught := fr.pendingErr
			if caught == nil {
				caught = mlerr.New(mlerr.InternalError, "catch without a prior error")
			}
			fr.pendingErr = nil
			fr.push(mlerr.Catch(caught))
			fr.Inst = in.Next()
		case opcodes.CATCH_TYPE:
			names := in.Params[0].([]string)
			onMatch := in.Params[1].(*opcodes.Instruction)
			onMiss := in.Params[2].(*opcodes.Instruction)
			kind := mlerr.Kind(fr.peek())
			matched := false
			for _, n := range names {
				if n == kind {
					matched = true
					break
				}
			}
			if matched {
				fr.Inst = onMatch
			} else {
				fr.Inst = onMiss
			}

		// --- suspension ---
		case opcodes.SUSPEND:
			fr.Inst = in.Params[0].(*opcodes.Instruction)
			return fr.Caller.Return(fr.Value())
		case opcodes.RESUME:
			// The continuation's `next` collapsed the suspended key slot
			// into the value slot; RESUME drops that remaining slot and
			// exposes the consumer's seed through PUSH_RESULT.
			fr.pop()
			if fr.seed != nil {
				fr.lastResult = fr.seed
			} else {
				fr.lastResult = values.Nil
			}
			fr.Inst = in.Next()
		case opcodes.RETURN:
			result := fr.pop()
			fr.done = true
			return fr.Caller.Return(result)

		// --- compound construction ---
		case opcodes.TUPLE_NEW:
			count := in.Params[0].(int)
			fr.push(compound.NewTuple(fr.popN(count)))
			fr.Inst = in.Next()
		case opcodes.TUPLE_SET:
			idx := in.Params[0].(int)
			val := fr.pop()
			tp := compound.TupleData(fr.peek())
			if tp != nil && idx >= 0 && idx < len(tp.Elems) {
				tp.Elems[idx] = val
			}
			fr.Inst = in.Next()
		case opcodes.LIST_NEW:
			fr.push(compound.NewList())
			fr.Inst = in.Next()
		case opcodes.LIST_APPEND:
			val := fr.pop()
			compound.ListData(fr.peek()).Append(val)
			fr.Inst = in.Next()
		case opcodes.MAP_NEW:
			fr.push(compound.NewMap())
			fr.Inst = in.Next()
		case opcodes.MAP_INSERT:
			val := fr.pop()
			key := fr.pop()
			compound.MapData(fr.peek()).Insert(key, val)
			fr.Inst = in.Next()
		case opcodes.STRING_NEW:
			fr.push(compound.NewStringBuffer())
			fr.Inst = in.Next()
		case opcodes.STRING_ADDS:
			// Params: count, chars, next.
			chars := in.Params[1].(string)
			compound.StringBufferData(fr.peek()).WriteString(chars)
			fr.Inst = in.Next()
		case opcodes.STRING_ADD:
			argc := in.Params[0].(int)
			parts := fr.popN(argc)
			buf := compound.StringBufferData(fr.peek())
			for _, p := range parts {
				buf.WriteString(toDisplayString(p))
			}
			fr.Inst = in.Next()
		case opcodes.STRING_END:
			buf := compound.StringBufferData(fr.pop())
			fr.push(values.Str(buf.String()))
			fr.Inst = in.Next()
		case opcodes.PARTIAL_NEW:
			count := in.Params[0].(int)
			fn := fr.pop()
			fr.push(compound.NewPartial(fn, make([]*values.Value, count)))
			fr.Inst = in.Next()
		case opcodes.PARTIAL_SET:
			idx := in.Params[0].(int)
			val := fr.pop()
			compound.PartialData(fr.peek()).SetArg(idx, val)
			fr.Inst = in.Next()

		// --- closures ---
		case opcodes.CLOSURE, opcodes.CLOSURE_TYPED:
			var declType *values.Type
			if in.Op == opcodes.CLOSURE_TYPED {
				declType = values.AsType(fr.pop())
			}
			info := in.Params[0].(*ClosureInfo)
			indices := in.Params[1].([]int)
			upvalues := make([]*values.Value, len(indices))
			for i, idx := range indices {
				if idx >= 0 {
					upvalues[i] = fr.Stack[idx]
				} else {
					upvalues[i] = fr.Upvalues[^idx]
				}
			}
			cl := &Closure{Info: info, Upvalues: upvalues, DeclType: declType}
			fr.push(values.NewOfType(ClosureT, cl))
			fr.Inst = in.Next()

		// --- debug ---
		case opcodes.IF_DEBUG:
			if ctx.Debug {
				fr.Inst = in.Params[0].(*opcodes.Instruction)
			} else {
				fr.Inst = in.Next()
			}

		default:
			return fr.finish(mlerr.Newf(mlerr.InternalError, "unhandled opcode %s", in.Op))
		}
	}
}

// finish raises err to fr's caller and marks the frame done, for the
// uncaught-error path out of the decode loop.
func (fr *Frame) finish(err *values.Value) error {
	fr.done = true
	return fr.Caller.Raise(err)
}

// raiseInline is the VM's uniform error hook: push a trace frame and
// either jump to the active try scope's handler (returning true, meaning
// "continue the decode loop") or report that there is none (false, meaning
// the caller should propagate via finish).
func (fr *Frame) raiseInline(err *values.Value, line int) bool {
	mlerr.PushTrace(err, fr.Info.Source, line)
	if fr.OnError == nil {
		return false
	}
	fr.pendingErr = err
	fr.Inst = fr.OnError
	return true
}

// invokeValue calls fn(args) via a throwaway adapter, routing a raised
// error through the inline error hook and otherwise pushing the result.
// Sets fr.pendingJump when the active try scope's handler
// was already set as fr.Inst, so the caller should re-loop instead of
// advancing to in.Next().
func (fr *Frame) invokeValue(fn *values.Value, args []*values.Value, line int) error {
	adapter := &frameAdapter{fr: fr}
	if err := values.Call(adapter, fn, args); err != nil {
		return err
	}
	if adapter.err != nil {
		if fr.raiseInline(adapter.err, line) {
			fr.pendingJump = true
			return nil
		}
		return fr.finish(adapter.err)
	}
	fr.lastResult = adapter.result
	fr.push(adapter.result)
	return nil
}

// resolve implements the RESOLVE opcode: look the name up in mod's
// exports if mod is a Type (types double as modules), falling back to the
// "::" method for non-Type namespace values.
func (fr *Frame) resolve(ctx *Context, mod *values.Value, name string, line int) (*values.Value, error) {
	if t := values.AsType(values.Deref(mod)); t != nil {
		if v, ok := t.Lookup(name); ok {
			return v, nil
		}
	}
	adapter := &frameAdapter{fr: fr}
	if err := methods.Call(ctx.Methods, adapter, resolveMethod, []*values.Value{mod, values.Str(name)}); err != nil {
		return nil, err
	}
	if adapter.err != nil {
		if fr.raiseInline(adapter.err, line) {
			fr.pendingJump = true
			return nil, nil
		}
		return nil, fr.finish(adapter.err)
	}
	return adapter.result, nil
}

// toDisplayString renders v for STRING_ADD's implicit-conversion append,
// handling the scalar kinds directly and falling back to Value.String()
// for everything else.
func toDisplayString(v *values.Value) string {
	d := values.Deref(v)
	switch x := d.Data.(type) {
	case string:
		return x
	case int64:
		return fmt.Sprintf("%d", x)
	case float64:
		return fmt.Sprintf("%g", x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		if d == values.Nil {
			return "nil"
		}
		return d.String()
	}
}
