// Package vm implements minilang's bytecode virtual machine: the call
// frame / continuation representation and the decode-dispatch execution
// loop over the emitted instruction graph.
package vm

import "github.com/minilang/ml/values"

// RefT is the type of a mutable reference cell. Every declared frame slot
// is boxed in a cell of this type; LOCAL/UPVALUE access derefs through it,
// and ASSIGN writes through its Assign slot.
//
// This also doubles as the forward-declare sentinel for cyclic references:
// a LET slot is populated with a Ref cell holding Nil
// before its initialiser runs; any closure that captures the slot as an
// upvalue captures the *Ref pointer, not its momentary Value, so LETI's
// later assignment through RefT.Assign is visible to every capturer without
// a separate users-list to patch.
var RefT = values.NewType(values.AnyT, "Ref")

// Ref is the payload of a RefT value.
type Ref struct {
	Value *values.Value
}

func init() {
	RefT.Deref = func(v *values.Value) *values.Value {
		r := v.Data.(*Ref)
		return values.Deref(r.Value)
	}
	RefT.Assign = func(ref *values.Value, val *values.Value) (*values.Value, error) {
		r := ref.Data.(*Ref)
		r.Value = val
		return val, nil
	}
	RefT.Hash = func(v *values.Value, chain *values.HashLink) int64 {
		r := v.Data.(*Ref)
		return values.Hash(r.Value, chain)
	}
}

// NewRef boxes v in a fresh reference cell.
func NewRef(v *values.Value) *values.Value {
	if v == nil {
		v = values.Nil
	}
	return values.NewOfType(RefT, &Ref{Value: v})
}
