package compound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minilang/ml/iter"
	"github.com/minilang/ml/methods"
	"github.com/minilang/ml/values"
)

// drain walks the four-function protocol over seq, returning every
// (key, value) pair in order.
func drain(t *testing.T, seq *values.Value) (keys, vals []*values.Value) {
	t.Helper()
	ctx := methods.NewContext()

	step := func(f func(values.Caller) error) *values.Value {
		c := &captureCaller{}
		require.NoError(t, f(c))
		require.Nil(t, c.err)
		return c.result
	}

	state := step(func(c values.Caller) error { return iter.Iterate(ctx, c, seq) })
	for state != values.Nil {
		keys = append(keys, step(func(c values.Caller) error { return iter.Key(ctx, c, state) }))
		vals = append(vals, step(func(c values.Caller) error { return iter.Value(ctx, c, state) }))
		state = step(func(c values.Caller) error { return iter.Next(ctx, c, state) })
	}
	return keys, vals
}

func TestListIterationYieldsValuesWithOneBasedKeys(t *testing.T) {
	lv := NewList()
	l := ListData(lv)
	l.Append(values.Str("a"))
	l.Append(values.Str("b"))

	keys, vals := drain(t, lv)
	require.Len(t, vals, 2)
	assert.Equal(t, int64(1), keys[0].Data)
	assert.Equal(t, int64(2), keys[1].Data)
	assert.Equal(t, "a", vals[0].Data)
	assert.Equal(t, "b", vals[1].Data)
}

func TestEmptyContainersIterateToNil(t *testing.T) {
	_, vals := drain(t, NewList())
	assert.Empty(t, vals)
	_, vals = drain(t, NewMap())
	assert.Empty(t, vals)
	_, vals = drain(t, NewTuple(nil))
	assert.Empty(t, vals)
	_, vals = drain(t, NewRange(5, 1, 1))
	assert.Empty(t, vals)
}

func TestMapIterationYieldsEntriesInInsertionOrder(t *testing.T) {
	mv := NewMap()
	m := MapData(mv)
	m.Insert(values.Str("x"), values.Int(10))
	m.Insert(values.Str("y"), values.Int(20))

	keys, vals := drain(t, mv)
	require.Len(t, vals, 2)
	assert.Equal(t, "x", keys[0].Data)
	assert.Equal(t, "y", keys[1].Data)
	assert.Equal(t, int64(10), vals[0].Data)
	assert.Equal(t, int64(20), vals[1].Data)
}

func TestMapIterationSkipsTombstones(t *testing.T) {
	mv := NewMap()
	m := MapData(mv)
	m.Insert(values.Str("a"), values.Int(1))
	m.Insert(values.Str("b"), values.Int(2))
	m.Insert(values.Str("c"), values.Int(3))
	m.Delete(values.Str("b"))

	keys, _ := drain(t, mv)
	require.Len(t, keys, 2)
	assert.Equal(t, "a", keys[0].Data)
	assert.Equal(t, "c", keys[1].Data)
}

func TestTupleIteration(t *testing.T) {
	tp := NewTuple([]*values.Value{values.Int(7), values.Int(8)})
	keys, vals := drain(t, tp)
	require.Len(t, vals, 2)
	assert.Equal(t, int64(1), keys[0].Data)
	assert.Equal(t, int64(7), vals[0].Data)
	assert.Equal(t, int64(8), vals[1].Data)
}

func TestRangeIterationInclusiveOfLimit(t *testing.T) {
	_, vals := drain(t, NewRange(1, 5, 1))
	require.Len(t, vals, 5)
	for i, want := range []int64{1, 2, 3, 4, 5} {
		assert.Equal(t, want, vals[i].Data)
	}

	_, vals = drain(t, NewRange(10, 0, -5))
	require.Len(t, vals, 3)
	assert.Equal(t, int64(10), vals[0].Data)
	assert.Equal(t, int64(5), vals[1].Data)
	assert.Equal(t, int64(0), vals[2].Data)
}

func TestIterationIsFiniteForFiniteSequences(t *testing.T) {
	lv := NewList()
	l := ListData(lv)
	for i := int64(0); i < 1000; i++ {
		l.Append(values.Int(i))
	}
	_, vals := drain(t, lv)
	assert.Len(t, vals, 1000)
}
