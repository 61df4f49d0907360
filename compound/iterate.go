package compound

import (
	"github.com/minilang/ml/iter"
	"github.com/minilang/ml/values"
)

// Iterator states for the built-in containers. Each container's `iterate`
// returns Nil when empty or a fresh iterator value; `next` advances the
// iterator in place and returns it again, or Nil when exhausted.
// Keys are 1-based positions for positional containers and the entry key
// for maps.

var (
	listIterT  = values.NewType(values.AnyT, "ListIter")
	tupleIterT = values.NewType(values.AnyT, "TupleIter")
	mapIterT   = values.NewType(values.AnyT, "MapIter")
	rangeIterT = values.NewType(values.AnyT, "RangeIter")
)

type listIter struct {
	node  *listNode
	index int64
}

type tupleIter struct {
	tuple *Tuple
	index int
}

type mapIter struct {
	m   *Map
	pos int
}

type rangeIter struct {
	r       *Range
	current int64
	index   int64
}

func init() {
	iter.SetTyped(ListT, "iterate", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		l := ListData(values.Deref(args[0]))
		if l == nil || l.head == nil {
			return caller.Return(values.Nil)
		}
		return caller.Return(values.NewOfType(listIterT, &listIter{node: l.head, index: 1}))
	}))
	iter.SetTyped(listIterT, "key", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*listIter)
		return caller.Return(values.Int(it.index))
	}))
	iter.SetTyped(listIterT, "value", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*listIter)
		return caller.Return(it.node.value)
	}))
	iter.SetTyped(listIterT, "next", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*listIter)
		if it.node.next == nil {
			return caller.Return(values.Nil)
		}
		it.node = it.node.next
		it.index++
		return caller.Return(args[0])
	}))

	iter.SetTyped(TupleT, "iterate", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		tp := TupleData(values.Deref(args[0]))
		if tp == nil || len(tp.Elems) == 0 {
			return caller.Return(values.Nil)
		}
		return caller.Return(values.NewOfType(tupleIterT, &tupleIter{tuple: tp}))
	}))
	iter.SetTyped(tupleIterT, "key", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*tupleIter)
		return caller.Return(values.Int(int64(it.index) + 1))
	}))
	iter.SetTyped(tupleIterT, "value", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*tupleIter)
		return caller.Return(it.tuple.At(it.index))
	}))
	iter.SetTyped(tupleIterT, "next", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*tupleIter)
		if it.index+1 >= len(it.tuple.Elems) {
			return caller.Return(values.Nil)
		}
		it.index++
		return caller.Return(args[0])
	}))

	iter.SetTyped(MapT, "iterate", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		m := MapData(values.Deref(args[0]))
		if m == nil {
			return caller.Return(values.Nil)
		}
		pos := nextLive(m, 0)
		if pos < 0 {
			return caller.Return(values.Nil)
		}
		return caller.Return(values.NewOfType(mapIterT, &mapIter{m: m, pos: pos}))
	}))
	iter.SetTyped(mapIterT, "key", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*mapIter)
		return caller.Return(it.m.entries[it.pos].key)
	}))
	iter.SetTyped(mapIterT, "value", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*mapIter)
		return caller.Return(it.m.entries[it.pos].value)
	}))
	iter.SetTyped(mapIterT, "next", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*mapIter)
		pos := nextLive(it.m, it.pos+1)
		if pos < 0 {
			return caller.Return(values.Nil)
		}
		it.pos = pos
		return caller.Return(args[0])
	}))

	iter.SetTyped(RangeT, "iterate", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		r := RangeData(values.Deref(args[0]))
		if r == nil || r.Len() == 0 {
			return caller.Return(values.Nil)
		}
		return caller.Return(values.NewOfType(rangeIterT, &rangeIter{r: r, current: r.Start, index: 1}))
	}))
	iter.SetTyped(rangeIterT, "key", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*rangeIter)
		return caller.Return(values.Int(it.index))
	}))
	iter.SetTyped(rangeIterT, "value", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*rangeIter)
		return caller.Return(values.Int(it.current))
	}))
	iter.SetTyped(rangeIterT, "next", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		it := args[0].Data.(*rangeIter)
		next := it.current + it.r.Step
		if (it.r.Step > 0 && next > it.r.Limit) || (it.r.Step < 0 && next < it.r.Limit) {
			return caller.Return(values.Nil)
		}
		it.current = next
		it.index++
		return caller.Return(args[0])
	}))
}

// nextLive finds the first non-tombstoned entry at or after pos, or -1.
func nextLive(m *Map, pos int) int {
	for ; pos < len(m.entries); pos++ {
		if !m.entries[pos].deleted {
			return pos
		}
	}
	return -1
}
