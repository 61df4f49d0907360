package vm

import (
	"github.com/minilang/ml/iter"
	"github.com/minilang/ml/values"
)

// Generator wiring: a function containing `suspend` is a
// sequence. Iterating a closure calls it with no arguments; the frame runs
// until its first SUSPEND and comes back as a Continuation value, which is
// the iterator state. The suspended frame keeps its current key and value
// as the top two operand-stack slots, so `key`/`value` are plain slot reads
// and `next` collapses one slot before re-entering the decode loop, leaving
// the RESUME opcode to consume the other.
func init() {
	iter.SetTyped(ClosureT, "iterate", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		return values.Call(caller, args[0], nil)
	}))

	iter.SetTyped(ContinuationT, "value", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		fr := args[0].Data.(*Frame)
		if fr.Top-1 < fr.opBase {
			return caller.Return(values.Nil)
		}
		return caller.Return(fr.Stack[fr.Top-1])
	}))
	iter.SetTyped(ContinuationT, "key", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		fr := args[0].Data.(*Frame)
		if fr.Top-2 < fr.opBase {
			return caller.Return(values.Nil)
		}
		return caller.Return(fr.Stack[fr.Top-2])
	}))
	iter.SetTyped(ContinuationT, "next", values.NewFunction(func(caller values.Caller, args []*values.Value) error {
		fr := args[0].Data.(*Frame)
		if fr.done {
			return caller.Return(values.Nil)
		}
		if fr.Top-2 >= fr.opBase {
			fr.Stack[fr.Top-2] = fr.Stack[fr.Top-1]
			fr.Stack[fr.Top-1] = nil
			fr.Top--
		}
		fr.Caller = caller
		return Execute(fr, values.Nil)
	}))
}
