package cborcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minilang/ml/compound"
	"github.com/minilang/ml/methods"
	"github.com/minilang/ml/mlerr"
	"github.com/minilang/ml/opcodes"
	"github.com/minilang/ml/values"
	"github.com/minilang/ml/vm"
)

func roundTrip(t *testing.T, v *values.Value) *values.Value {
	t.Helper()
	data, err := Encode(v)
	require.NoError(t, err)
	out, err := Decode(data)
	require.NoError(t, err)
	return out
}

func TestScalarsRoundTrip(t *testing.T) {
	assert.Equal(t, int64(42), roundTrip(t, values.Int(42)).Data)
	assert.Equal(t, 3.5, roundTrip(t, values.Real(3.5)).Data)
	assert.Equal(t, "hello", roundTrip(t, values.Str("hello")).Data)
	assert.Equal(t, true, roundTrip(t, values.Bool(true)).Data)
	assert.Same(t, values.Nil, roundTrip(t, values.Nil))
}

func TestTupleRoundTrips(t *testing.T) {
	tp := compound.NewTuple([]*values.Value{values.Int(1), values.Str("x")})
	out := roundTrip(t, tp)
	require.Equal(t, compound.TupleT, values.TypeOf(out))
	od := compound.TupleData(out)
	require.Equal(t, 2, od.Len())
	assert.Equal(t, int64(1), od.At(0).Data)
	assert.Equal(t, "x", od.At(1).Data)
}

func TestListRoundTripsPreservingOrder(t *testing.T) {
	lv := compound.NewList()
	ld := compound.ListData(lv)
	ld.Append(values.Int(1))
	ld.Append(values.Int(2))
	ld.Append(values.Int(3))

	out := roundTrip(t, lv)
	od := compound.ListData(out)
	require.Equal(t, 3, od.Len())
	assert.Equal(t, int64(1), od.At(0).Data)
	assert.Equal(t, int64(2), od.At(1).Data)
	assert.Equal(t, int64(3), od.At(2).Data)
}

func TestMapRoundTripsPreservingInsertionOrder(t *testing.T) {
	mv := compound.NewMap()
	md := compound.MapData(mv)
	md.Insert(values.Str("a"), values.Int(1))
	md.Insert(values.Str("b"), values.Int(2))

	out := roundTrip(t, mv)
	od := compound.MapData(out)
	require.Equal(t, 2, od.Len())

	var keys []string
	od.Each(func(k, v *values.Value) bool {
		keys = append(keys, k.Data.(string))
		return true
	})
	assert.Equal(t, []string{"a", "b"}, keys)

	got, ok := od.Get(values.Str("a"))
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Data)
}

func TestStringBufferRoundTrips(t *testing.T) {
	sv := compound.NewStringBuffer()
	compound.StringBufferData(sv).WriteString("assembled")

	out := roundTrip(t, sv)
	assert.Equal(t, "assembled", compound.StringBufferData(out).String())
}

func TestMethodRoundTripsToSameInternedMethod(t *testing.T) {
	m := methods.Intern("cbor-roundtrip-" + t.Name())
	out := roundTrip(t, methods.AsValue(m))
	assert.Same(t, m, methods.MethodData(out))
}

func TestErrorRoundTripsKindMessageAndTrace(t *testing.T) {
	errVal := mlerr.New(mlerr.RangeError, "index out of bounds")
	mlerr.PushTrace(errVal, "inner.ml", 10)
	mlerr.PushTrace(errVal, "outer.ml", 20)

	out := roundTrip(t, errVal)
	assert.Equal(t, mlerr.RangeError, mlerr.Kind(out))
	assert.Equal(t, "index out of bounds", mlerr.Message(out))
	trace := mlerr.Trace(out)
	require.Len(t, trace, 2)
	assert.Equal(t, mlerr.Frame{Source: "inner.ml", Line: 10}, trace[0])
	assert.Equal(t, mlerr.Frame{Source: "outer.ml", Line: 20}, trace[1])
}

func TestNestedCompoundRoundTrips(t *testing.T) {
	inner := compound.NewTuple([]*values.Value{values.Int(1), values.Int(2)})
	lv := compound.NewList()
	compound.ListData(lv).Append(inner)
	compound.ListData(lv).Append(values.Str("tail"))

	out := roundTrip(t, lv)
	od := compound.ListData(out)
	require.Equal(t, 2, od.Len())
	innerOut := compound.TupleData(od.At(0))
	require.NotNil(t, innerOut)
	assert.Equal(t, int64(1), innerOut.At(0).Data)
	assert.Equal(t, "tail", od.At(1).Data)
}

// straightLineClosure builds a closure whose body is a simple linear chain
// (no branches), enough to exercise EncodeClosure/DecodeClosure's
// instruction-graph walk and back-reference resolution.
func straightLineClosure() *vm.Closure {
	ret := opcodes.New(opcodes.RETURN, 3)
	push := opcodes.New(opcodes.PUSH, 2, ret)
	load := opcodes.New(opcodes.LOAD, 1, values.Int(7), push)
	info := vm.NewClosureInfo("roundtrip.ml", load, 2, 1, []string{"x"}, 0, nil)
	return vm.ClosureData(vm.NewClosure(info, nil))
}

func TestClosureRoundTripsStructureAndHash(t *testing.T) {
	cl := straightLineClosure()
	data, err := EncodeClosure(cl)
	require.NoError(t, err)

	out, err := DecodeClosure(data)
	require.NoError(t, err)

	assert.Equal(t, cl.Info.Source, out.Info.Source)
	assert.Equal(t, cl.Info.FrameSize, out.Info.FrameSize)
	assert.Equal(t, cl.Info.NumParams, out.Info.NumParams)
	assert.Equal(t, cl.Info.ParamNames, out.Info.ParamNames)
	assert.Equal(t, cl.Info.Hash, out.Info.Hash, "content hash must match since op/line/params are preserved")

	assert.Equal(t, opcodes.LOAD, out.Info.Entry.Op)
	push := out.Info.Entry.Next()
	require.NotNil(t, push)
	assert.Equal(t, opcodes.PUSH, push.Op)
	ret := push.Next()
	require.NotNil(t, ret)
	assert.Equal(t, opcodes.RETURN, ret.Op)
}

func TestClosureRoundTripsLoopBackEdge(t *testing.T) {
	header := &opcodes.Instruction{Op: opcodes.GOTO, Line: 1}
	body := opcodes.New(opcodes.POP, 2, header)
	header.Params = []interface{}{body}
	info := vm.NewClosureInfo("loop.ml", header, 1, 0, nil, 0, nil)
	cl := vm.ClosureData(vm.NewClosure(info, nil))

	data, err := EncodeClosure(cl)
	require.NoError(t, err)
	out, err := DecodeClosure(data)
	require.NoError(t, err)

	assert.Equal(t, cl.Info.Hash, out.Info.Hash)
	bodyOut := out.Info.Entry.Next()
	require.NotNil(t, bodyOut)
	assert.Same(t, out.Info.Entry, bodyOut.Next(), "back-edge must resolve to the same decoded header instance")
}
