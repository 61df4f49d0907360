package vm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minilang/ml/builtins"
	"github.com/minilang/ml/compound"
	"github.com/minilang/ml/debug"
	"github.com/minilang/ml/methods"
	"github.com/minilang/ml/mlerr"
	"github.com/minilang/ml/opcodes"
	"github.com/minilang/ml/scheduler"
	"github.com/minilang/ml/values"
	"github.com/minilang/ml/vm"
)

// resultCaller is the embedder-style top caller used by every test: it
// collects the closure's outcome and carries the execution context so
// method dispatch inside the VM shares one cache.
type resultCaller struct {
	ctx    *vm.Context
	result *values.Value
	err    *values.Value
}

func (c *resultCaller) Return(v *values.Value) error     { c.result = v; return nil }
func (c *resultCaller) Raise(v *values.Value) error      { c.err = v; return nil }
func (c *resultCaller) VMContext() *vm.Context           { return c.ctx }
func (c *resultCaller) MethodsContext() *methods.Context { return c.ctx.Methods }

func newCaller() *resultCaller {
	return &resultCaller{ctx: vm.NewContext()}
}

func runClosure(t *testing.T, cl *vm.Closure, args []*values.Value) *resultCaller {
	t.Helper()
	caller := newCaller()
	require.NoError(t, vm.Invoke(caller.ctx, caller, cl, args))
	return caller
}

func closureOf(entry *opcodes.Instruction, frameSize, numParams int) *vm.Closure {
	info := vm.NewClosureInfo("test.ml", entry, frameSize, numParams, nil, 0, nil)
	return vm.ClosureData(vm.NewClosure(info, nil))
}

func intList(ns ...int64) *values.Value {
	lv := compound.NewList()
	ld := compound.ListData(lv)
	for _, n := range ns {
		ld.Append(values.Int(n))
	}
	return lv
}

func plusValue() *values.Value {
	return methods.AsValue(methods.Intern("+"))
}

func TestNilReturnYieldsNil(t *testing.T) {
	ret := opcodes.New(opcodes.RETURN, 1)
	nilIn := opcodes.New(opcodes.NIL, 1, ret)
	caller := runClosure(t, closureOf(nilIn, 0, 0), nil)
	require.Nil(t, caller.err)
	assert.Same(t, values.Nil, caller.result)
}

func TestConstCallAdditionYieldsSeven(t *testing.T) {
	ret := opcodes.New(opcodes.RETURN, 1)
	call := opcodes.New(opcodes.CONST_CALL, 1, 2, plusValue(), ret)
	load4 := opcodes.New(opcodes.LOAD, 1, values.Int(4), call)
	load3 := opcodes.New(opcodes.LOAD, 1, values.Int(3), load4)

	caller := runClosure(t, closureOf(load3, 0, 0), nil)
	require.Nil(t, caller.err)
	assert.Equal(t, int64(7), values.Deref(caller.result).Data)
}

func TestCallOpcodeWithFunctionOnStack(t *testing.T) {
	double := values.NewFunction(func(c values.Caller, args []*values.Value) error {
		return c.Return(values.Int(values.Deref(args[0]).Data.(int64) * 2))
	})

	ret := opcodes.New(opcodes.RETURN, 2)
	call := opcodes.New(opcodes.CALL, 2, 1, ret)
	loadFn := opcodes.New(opcodes.LOAD, 1, double, call)
	loadArg := opcodes.New(opcodes.LOAD, 1, values.Int(21), loadFn)

	caller := runClosure(t, closureOf(loadArg, 0, 0), nil)
	require.Nil(t, caller.err)
	assert.Equal(t, int64(42), values.Deref(caller.result).Data)
}

// Accumulates the sum of [1,2,3] through FOR/ITER/VALUE/NEXT, mirroring the
// loop shape an emitter produces for `for x in L do acc := acc + x end`.
func TestForLoopAccumulates(t *testing.T) {
	ret := opcodes.New(opcodes.RETURN, 9)
	loadAcc := opcodes.New(opcodes.LOCAL, 8, 1, ret)

	iterIn := &opcodes.Instruction{Op: opcodes.ITER, Line: 4}
	next := opcodes.New(opcodes.NEXT, 7, iterIn)
	popped := opcodes.New(opcodes.POP, 7, next)
	assign := opcodes.New(opcodes.ASSIGN, 6, popped)
	refAcc := opcodes.New(opcodes.REF, 6, 1, assign)
	add := opcodes.New(opcodes.CONST_CALL, 6, 2, plusValue(), refAcc)
	loadX := opcodes.New(opcodes.LOCAL, 6, 0, add)
	loadA := opcodes.New(opcodes.LOCAL, 6, 1, loadX)
	value := opcodes.New(opcodes.VALUE, 5, 0, loadA)
	iterIn.Params = []interface{}{loadAcc, value}

	forIn := opcodes.New(opcodes.FOR, 4, iterIn)
	loadList := opcodes.New(opcodes.LOAD, 3, intList(1, 2, 3), forIn)
	letAcc := opcodes.New(opcodes.LET, 2, 1, loadList)
	loadZero := opcodes.New(opcodes.LOAD, 1, values.Int(0), letAcc)

	caller := runClosure(t, closureOf(loadZero, 2, 0), nil)
	require.Nil(t, caller.err)
	assert.Equal(t, int64(6), values.Deref(caller.result).Data)
}

func TestRangeLoopBuildsSquares(t *testing.T) {
	put := methods.AsValue(methods.Intern("put"))
	star := methods.AsValue(methods.Intern("*"))

	ret := opcodes.New(opcodes.RETURN, 9)
	loadOut := opcodes.New(opcodes.LOCAL, 8, 1, ret)

	iterIn := &opcodes.Instruction{Op: opcodes.ITER, Line: 4}
	next := opcodes.New(opcodes.NEXT, 7, iterIn)
	popResult := opcodes.New(opcodes.POP, 7, next)
	callPut := opcodes.New(opcodes.CONST_CALL, 6, 2, put, popResult)
	square := opcodes.New(opcodes.CONST_CALL, 6, 2, star, callPut)
	loadX2 := opcodes.New(opcodes.LOCAL, 6, 0, square)
	loadX1 := opcodes.New(opcodes.LOCAL, 6, 0, loadX2)
	loadL := opcodes.New(opcodes.LOCAL, 6, 1, loadX1)
	value := opcodes.New(opcodes.VALUE, 5, 0, loadL)
	iterIn.Params = []interface{}{loadOut, value}

	forIn := opcodes.New(opcodes.FOR, 4, iterIn)
	loadRange := opcodes.New(opcodes.LOAD, 3, compound.NewRange(1, 5, 1), forIn)
	letOut := opcodes.New(opcodes.LET, 2, 1, loadRange)
	loadList := opcodes.New(opcodes.LOAD, 1, compound.NewList(), letOut)

	caller := runClosure(t, closureOf(loadList, 2, 0), nil)
	require.Nil(t, caller.err)

	out := compound.ListData(values.Deref(caller.result))
	require.NotNil(t, out)
	require.Equal(t, 5, out.Len())
	for i, want := range []int64{1, 4, 9, 16, 25} {
		assert.Equal(t, want, out.At(i).Data)
	}
}

func TestTryCatchYieldsCaughtError(t *testing.T) {
	raiseX := compound.NewPartial(builtins.Error, []*values.Value{values.Str("X"), values.Str("m")})

	ret := opcodes.New(opcodes.RETURN, 4)
	catch := opcodes.New(opcodes.CATCH, 3, 0, nil, ret)
	call := opcodes.New(opcodes.CONST_CALL, 2, 0, raiseX, ret)
	try := opcodes.New(opcodes.TRY, 1, catch, call)

	caller := runClosure(t, closureOf(try, 0, 0), nil)
	require.Nil(t, caller.err, "the error must be caught, not propagated")
	require.NotNil(t, caller.result)
	assert.True(t, mlerr.Is(caller.result))
	assert.Equal(t, "X", mlerr.Kind(caller.result))
	assert.Equal(t, "m", mlerr.Message(caller.result))
	assert.NotEmpty(t, mlerr.Trace(caller.result), "the raise site must have pushed a trace frame")
}

func TestCatchTypeBranchesOnKind(t *testing.T) {
	raiseX := compound.NewPartial(builtins.Error, []*values.Value{values.Str("X"), values.Str("m")})

	retMatch := opcodes.New(opcodes.RETURN, 6)
	loadMatch := opcodes.New(opcodes.LOAD, 6, values.Str("matched X"), retMatch)
	retMiss := opcodes.New(opcodes.RETURN, 7)
	loadMiss := opcodes.New(opcodes.LOAD, 7, values.Str("other"), retMiss)

	catchType := opcodes.New(opcodes.CATCH_TYPE, 5, []string{"X", "Y"}, loadMatch, loadMiss)
	catch := opcodes.New(opcodes.CATCH, 4, 0, nil, catchType)
	call := opcodes.New(opcodes.CONST_CALL, 2, 0, raiseX, nil)
	try := opcodes.New(opcodes.TRY, 1, catch, call)

	caller := runClosure(t, closureOf(try, 0, 0), nil)
	require.Nil(t, caller.err)
	assert.Equal(t, "matched X", values.Deref(caller.result).Data)
}

func TestUncaughtErrorPropagatesWithTrace(t *testing.T) {
	raise := compound.NewPartial(builtins.Error, []*values.Value{values.Str("E"), values.Str("boom")})
	ret := opcodes.New(opcodes.RETURN, 2)
	call := opcodes.New(opcodes.CONST_CALL, 1, 0, raise, ret)

	caller := runClosure(t, closureOf(call, 0, 0), nil)
	require.Nil(t, caller.result)
	require.NotNil(t, caller.err)
	assert.Equal(t, "E", mlerr.Kind(caller.err))
	trace := mlerr.Trace(caller.err)
	require.NotEmpty(t, trace)
	assert.Equal(t, mlerr.Frame{Source: "test.ml", Line: 1}, trace[0])
}

// Builds the generator `fun() for x in [1,2,3] do susp x end`.
func generatorClosure() *values.Value {
	gEnd := opcodes.New(opcodes.RETURN, 5)

	iterIn := &opcodes.Instruction{Op: opcodes.ITER, Line: 2}
	next := opcodes.New(opcodes.NEXT, 4, iterIn)
	resume := opcodes.New(opcodes.RESUME, 3, next)
	suspend := opcodes.New(opcodes.SUSPEND, 3, resume)
	loadVal := opcodes.New(opcodes.LOCAL, 3, 0, suspend)
	loadKey := opcodes.New(opcodes.NIL, 3, loadVal)
	value := opcodes.New(opcodes.VALUE, 2, 0, loadKey)
	iterIn.Params = []interface{}{gEnd, value}

	forIn := opcodes.New(opcodes.FOR, 2, iterIn)
	loadList := opcodes.New(opcodes.LOAD, 1, intList(1, 2, 3), forIn)

	info := vm.NewClosureInfo("gen.ml", loadList, 1, 0, nil, 0, nil)
	return vm.NewClosure(info, nil)
}

func TestGeneratorDrainsThroughAll(t *testing.T) {
	caller := newCaller()
	require.NoError(t, values.Call(caller, builtins.All, []*values.Value{generatorClosure()}))
	require.Nil(t, caller.err)

	out := compound.ListData(values.Deref(caller.result))
	require.NotNil(t, out)
	require.Equal(t, 3, out.Len())
	for i, want := range []int64{1, 2, 3} {
		assert.Equal(t, want, out.At(i).Data)
	}
}

func TestGeneratorSuspendsAsContinuation(t *testing.T) {
	caller := runClosure(t, vm.ClosureData(generatorClosure()), nil)
	require.Nil(t, caller.err)
	require.NotNil(t, caller.result)
	assert.Equal(t, vm.ContinuationT, values.TypeOf(caller.result),
		"a generator's first result is its own suspended frame")
}

func TestPartialApplicationWeavesArguments(t *testing.T) {
	g := compound.NewPartial(plusValue(), []*values.Value{values.Int(10)})
	caller := newCaller()
	require.NoError(t, values.Call(caller, g, []*values.Value{values.Int(5)}))
	require.Nil(t, caller.err)
	assert.Equal(t, int64(15), values.Deref(caller.result).Data)
}

func TestMultiDispatchByArgumentType(t *testing.T) {
	foo := methods.Intern("foo-" + t.Name())
	foo.Define([]*values.Type{values.IntegerT}, false,
		values.NewFunction(func(c values.Caller, args []*values.Value) error {
			return c.Return(values.Int(values.Deref(args[0]).Data.(int64) + 1))
		}))
	foo.Define([]*values.Type{values.StringT}, false,
		values.NewFunction(func(c values.Caller, args []*values.Value) error {
			return c.Return(values.Str(values.Deref(args[0]).Data.(string) + "!"))
		}))

	caller := newCaller()
	require.NoError(t, values.Call(caller, methods.AsValue(foo), []*values.Value{values.Int(3)}))
	assert.Equal(t, int64(4), values.Deref(caller.result).Data)

	caller = newCaller()
	require.NoError(t, values.Call(caller, methods.AsValue(foo), []*values.Value{values.Str("hi")}))
	assert.Equal(t, "hi!", values.Deref(caller.result).Data)
}

func TestClosureCapturesUpvalueCellByReference(t *testing.T) {
	// inner: UPVALUE 0; RETURN - returns whatever the shared cell holds.
	innerRet := opcodes.New(opcodes.RETURN, 2)
	innerUp := opcodes.New(opcodes.UPVALUE, 1, 0, innerRet)
	innerInfo := vm.NewClosureInfo("inner.ml", innerUp, 0, 0, nil, 1, nil)

	// outer: slot 0 := 10; make closure capturing slot 0; slot 0 := 20;
	// call closure; its result reflects the second assignment.
	ret := opcodes.New(opcodes.RETURN, 7)
	call := opcodes.New(opcodes.CALL, 6, 0, ret)
	loadCl := opcodes.New(opcodes.LOCAL, 6, 1, call)
	popA := opcodes.New(opcodes.POP, 5, loadCl)
	assign := opcodes.New(opcodes.ASSIGN, 5, popA)
	refSlot := opcodes.New(opcodes.REF, 5, 0, assign)
	load20 := opcodes.New(opcodes.LOAD, 5, values.Int(20), refSlot)
	letCl := opcodes.New(opcodes.LET, 4, 1, load20)
	mkClosure := opcodes.New(opcodes.CLOSURE, 3, innerInfo, []int{0}, letCl)
	letSlot := opcodes.New(opcodes.LET, 2, 0, mkClosure)
	load10 := opcodes.New(opcodes.LOAD, 1, values.Int(10), letSlot)

	caller := runClosure(t, closureOf(load10, 2, 0), nil)
	require.Nil(t, caller.err)
	assert.Equal(t, int64(20), values.Deref(caller.result).Data,
		"the closure must see mutation through the shared cell, not a snapshot")
}

func TestParameterBindingPositionalAndVariadic(t *testing.T) {
	// fun(a, b...) returns b (the variadic collector list).
	ret := opcodes.New(opcodes.RETURN, 2)
	loadRest := opcodes.New(opcodes.LOCAL, 1, 1, ret)
	info := vm.NewClosureInfo("varargs.ml", loadRest, 2, ^1, []string{"a"}, 0, nil)
	cl := vm.ClosureData(vm.NewClosure(info, nil))

	caller := runClosure(t, cl, []*values.Value{values.Int(1), values.Int(2), values.Int(3)})
	require.Nil(t, caller.err)
	rest := compound.ListData(values.Deref(caller.result))
	require.NotNil(t, rest)
	require.Equal(t, 2, rest.Len())
	assert.Equal(t, int64(2), rest.At(0).Data)
	assert.Equal(t, int64(3), rest.At(1).Data)
}

func TestNamedArgumentsBindByDeclaredName(t *testing.T) {
	// fun(a, b) returns a; called as (b: 1, a: 2) it must return 2.
	ret := opcodes.New(opcodes.RETURN, 2)
	loadA := opcodes.New(opcodes.LOCAL, 1, 0, ret)
	info := vm.NewClosureInfo("named.ml", loadA, 2, 2, []string{"a", "b"}, 0, nil)
	cl := vm.ClosureData(vm.NewClosure(info, nil))

	args := []*values.Value{values.Int(1), values.Int(2), compound.NewNames([]string{"b", "a"})}
	caller := runClosure(t, cl, args)
	require.Nil(t, caller.err)
	assert.Equal(t, int64(2), values.Deref(caller.result).Data)
}

func TestTupleConstructionAndDestructuringAssign(t *testing.T) {
	// (slot0, slot1) := (7, 8) via a tuple of refs and ASSIGN.
	ret := opcodes.New(opcodes.RETURN, 6)
	loadS1 := opcodes.New(opcodes.LOCAL, 5, 1, ret)
	popA := opcodes.New(opcodes.POP, 4, loadS1)
	assign := opcodes.New(opcodes.ASSIGN, 4, popA)
	refTuple := opcodes.New(opcodes.TUPLE_NEW, 4, 2, assign)
	refS1 := opcodes.New(opcodes.REF, 4, 1, refTuple)
	refS0 := opcodes.New(opcodes.REF, 4, 0, refS1)
	srcTuple := opcodes.New(opcodes.TUPLE_NEW, 3, 2, refS0)
	load8 := opcodes.New(opcodes.LOAD, 2, values.Int(8), srcTuple)
	load7 := opcodes.New(opcodes.LOAD, 2, values.Int(7), load8)
	varS1 := opcodes.New(opcodes.VAR, 1, 1, load7)
	varS0 := opcodes.New(opcodes.VAR, 1, 0, varS1)

	caller := runClosure(t, closureOf(varS0, 2, 0), nil)
	require.Nil(t, caller.err)
	assert.Equal(t, int64(8), values.Deref(caller.result).Data)
}

func TestAssignOnPlainValueRaisesTypeError(t *testing.T) {
	ret := opcodes.New(opcodes.RETURN, 3)
	assign := opcodes.New(opcodes.ASSIGN, 2, ret)
	loadTarget := opcodes.New(opcodes.LOAD, 2, values.Int(1), assign)
	loadVal := opcodes.New(opcodes.LOAD, 1, values.Int(2), loadTarget)

	caller := runClosure(t, closureOf(loadVal, 0, 0), nil)
	require.Nil(t, caller.result)
	require.NotNil(t, caller.err)
	assert.Equal(t, mlerr.TypeError, mlerr.Kind(caller.err))
}

func TestResumingAReturnedFrameYieldsNil(t *testing.T) {
	// A single-suspend generator: suspend once, then return.
	ret := opcodes.New(opcodes.RETURN, 3)
	resume := opcodes.New(opcodes.RESUME, 2, ret)
	suspend := opcodes.New(opcodes.SUSPEND, 2, resume)
	loadVal := opcodes.New(opcodes.LOAD, 2, values.Int(5), suspend)
	loadKey := opcodes.New(opcodes.NIL, 1, loadVal)

	caller := runClosure(t, closureOf(loadKey, 0, 0), nil)
	require.Nil(t, caller.err)
	cont := caller.result
	require.Equal(t, vm.ContinuationT, values.TypeOf(cont))

	// First resumption runs to RETURN.
	caller2 := newCaller()
	require.NoError(t, values.Call(caller2, cont, nil))
	require.Nil(t, caller2.err)

	// The frame is spent: every further resumption is a no-op Nil.
	caller3 := newCaller()
	require.NoError(t, values.Call(caller3, cont, nil))
	assert.Same(t, values.Nil, caller3.result)
}

func TestMapConstructionOpcodes(t *testing.T) {
	ret := opcodes.New(opcodes.RETURN, 5)
	mapInsert := opcodes.New(opcodes.MAP_INSERT, 4, ret)
	loadV := opcodes.New(opcodes.LOAD, 4, values.Int(1), mapInsert)
	loadK := opcodes.New(opcodes.LOAD, 4, values.Str("k"), loadV)
	mapNew := opcodes.New(opcodes.MAP_NEW, 3, loadK)

	caller := runClosure(t, closureOf(mapNew, 0, 0), nil)
	require.Nil(t, caller.err)
	md := compound.MapData(values.Deref(caller.result))
	require.NotNil(t, md)
	got, ok := md.Get(values.Str("k"))
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Data)
}

func TestStringBufferOpcodesBuildString(t *testing.T) {
	ret := opcodes.New(opcodes.RETURN, 4)
	end := opcodes.New(opcodes.STRING_END, 3, ret)
	addV := opcodes.New(opcodes.STRING_ADD, 3, 1, end)
	loadN := opcodes.New(opcodes.LOAD, 3, values.Int(42), addV)
	adds := opcodes.New(opcodes.STRING_ADDS, 2, 9, "answer = ", loadN)
	strNew := opcodes.New(opcodes.STRING_NEW, 1, adds)

	caller := runClosure(t, closureOf(strNew, 0, 0), nil)
	require.Nil(t, caller.err)
	assert.Equal(t, "answer = 42", values.Deref(caller.result).Data)
}

func TestResolveLooksUpTypeExports(t *testing.T) {
	mod := values.NewType(values.AnyT, "TestModule")
	mod.Export("answer", values.Int(99))

	ret := opcodes.New(opcodes.RETURN, 3)
	resolve := opcodes.New(opcodes.RESOLVE, 2, "answer", ret)
	loadMod := opcodes.New(opcodes.LOAD, 1, values.TypeValue(mod), resolve)

	caller := runClosure(t, closureOf(loadMod, 0, 0), nil)
	require.Nil(t, caller.err)
	assert.Equal(t, int64(99), values.Deref(caller.result).Data)
}

func TestSchedulerPreemptionSwapsOutAndDrains(t *testing.T) {
	ret := opcodes.New(opcodes.RETURN, 3)
	second := opcodes.New(opcodes.CONST_CALL, 2, 2, plusValue(), ret)
	load2 := opcodes.New(opcodes.LOAD, 2, values.Int(2), second)
	first := opcodes.New(opcodes.CONST_CALL, 1, 2, plusValue(), load2)
	load1b := opcodes.New(opcodes.LOAD, 1, values.Int(1), first)
	load1a := opcodes.New(opcodes.LOAD, 1, values.Int(1), load1b)

	caller := newCaller()
	caller.ctx.Sched = scheduler.New(2, nil)
	require.NoError(t, vm.Invoke(caller.ctx, caller, closureOf(load1a, 0, 0), nil))

	// The second preemption point exhausted the quantum: the frame was
	// swapped out before producing a result.
	require.Nil(t, caller.result)
	require.Nil(t, caller.err)

	require.NoError(t, caller.ctx.Sched.Drain())
	require.NotNil(t, caller.result)
	assert.Equal(t, int64(4), values.Deref(caller.result).Data)
}

func TestDebuggerTracesInstructionsAndHitsBreakpoints(t *testing.T) {
	ret := opcodes.New(opcodes.RETURN, 2)
	call := opcodes.New(opcodes.CONST_CALL, 2, 2, plusValue(), ret)
	load4 := opcodes.New(opcodes.LOAD, 1, values.Int(4), call)
	load3 := opcodes.New(opcodes.LOAD, 1, values.Int(3), load4)

	var out bytes.Buffer
	d := debug.New(debug.LevelDetailed, &out)
	d.BreakOnLines(load3, []int{2})

	caller := newCaller()
	caller.ctx.Debugger = d
	require.NoError(t, vm.Invoke(caller.ctx, caller, closureOf(load3, 0, 0), nil))
	require.Nil(t, caller.err)
	assert.Equal(t, int64(7), values.Deref(caller.result).Data)

	require.NotEmpty(t, d.InstructionLog, "the decode loop must feed the instruction trace")
	assert.Equal(t, "LOAD", d.InstructionLog[0].OpcodeName)
	assert.Contains(t, d.Profile.Report(), "LOAD")
	assert.Contains(t, out.String(), "breakpoint hit", "reaching a marked instruction must be announced")
}

func TestIfBranchesOnNil(t *testing.T) {
	retThen := opcodes.New(opcodes.RETURN, 3)
	loadThen := opcodes.New(opcodes.LOAD, 3, values.Str("then"), retThen)
	retElse := opcodes.New(opcodes.RETURN, 4)
	loadElse := opcodes.New(opcodes.LOAD, 4, values.Str("else"), retElse)

	ifIn := opcodes.New(opcodes.IF, 2, loadElse, loadThen)
	loadCond := opcodes.New(opcodes.LOAD, 1, values.Int(1), ifIn)
	caller := runClosure(t, closureOf(loadCond, 0, 0), nil)
	assert.Equal(t, "then", values.Deref(caller.result).Data)

	ifIn2 := opcodes.New(opcodes.IF, 2, loadElse, loadThen)
	loadNil := opcodes.New(opcodes.NIL, 1, ifIn2)
	caller = runClosure(t, closureOf(loadNil, 0, 0), nil)
	assert.Equal(t, "else", values.Deref(caller.result).Data)
}

func TestPushResultExposesLastCallResult(t *testing.T) {
	ret := opcodes.New(opcodes.RETURN, 4)
	pushRes := opcodes.New(opcodes.PUSH_RESULT, 3, ret)
	pop := opcodes.New(opcodes.POP, 2, pushRes)
	call := opcodes.New(opcodes.CONST_CALL, 2, 2, plusValue(), pop)
	load4 := opcodes.New(opcodes.LOAD, 1, values.Int(4), call)
	load3 := opcodes.New(opcodes.LOAD, 1, values.Int(3), load4)

	caller := runClosure(t, closureOf(load3, 0, 0), nil)
	require.Nil(t, caller.err)
	assert.Equal(t, int64(7), values.Deref(caller.result).Data)
}
