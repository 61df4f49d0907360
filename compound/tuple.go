// Package compound implements minilang's built-in structured data: Tuple,
// List, Map, Names, StringBuffer, Range and PartialFunction - the
// containers the VM's construction opcodes produce.
package compound

import (
	"fmt"

	"github.com/minilang/ml/values"
)

// TupleT is the type of fixed-arity immutable tuples.
var TupleT = values.NewType(values.AnyT, "Tuple")

// Tuple is an immutable fixed-size sequence of values. Dereferencing a
// tuple memoizes whether every element already derefs to itself (NoRefs),
// so repeated deref of an all-value tuple is O(1) after the first call.
type Tuple struct {
	Elems  []*values.Value
	NoRefs bool
}

func init() {
	// Dereferencing a tuple never mutates it: when some element's deref
	// differs, a fresh tuple of the dereferenced elements is returned and
	// the original keeps its elements (and hash) intact for any other
	// holder. When nothing changed, the original is returned and the
	// NoRefs result memoised.
	TupleT.Deref = func(v *values.Value) *values.Value {
		tp := v.Data.(*Tuple)
		if tp.NoRefs {
			return v
		}
		var fresh []*values.Value
		for i, e := range tp.Elems {
			d := values.Deref(e)
			if d != e && fresh == nil {
				fresh = make([]*values.Value, len(tp.Elems))
				copy(fresh, tp.Elems[:i])
			}
			if fresh != nil {
				fresh[i] = d
			}
		}
		if fresh == nil {
			tp.NoRefs = true
			return v
		}
		return values.NewOfType(TupleT, &Tuple{Elems: fresh, NoRefs: true})
	}
	// Assigning through a tuple destructures element-wise: each element of
	// the target tuple must itself be assignable (a reference cell), and
	// receives the corresponding element of the source.
	TupleT.Assign = func(ref *values.Value, val *values.Value) (*values.Value, error) {
		target := ref.Data.(*Tuple)
		src := TupleData(values.Deref(val))
		if src == nil {
			return nil, fmt.Errorf("cannot destructure %s into a tuple", values.TypeOf(values.Deref(val)).Name)
		}
		for i, slot := range target.Elems {
			if _, err := values.Assign(slot, src.At(i)); err != nil {
				return nil, fmt.Errorf("tuple element %d: %w", i, err)
			}
		}
		return val, nil
	}
	TupleT.Hash = func(v *values.Value, chain *values.HashLink) int64 {
		tp := v.Data.(*Tuple)
		if idx, seen := chain.Find(v); seen {
			return int64(idx)
		}
		link := &values.HashLink{Value: v, Index: len(tp.Elems), Prev: chain}
		var h int64 = int64(len(tp.Elems))
		for _, e := range tp.Elems {
			h = h*31 + values.Hash(e, link)
		}
		return h
	}
}

// NewTuple constructs a tuple from elems (no copy; caller must not retain
// elems after passing it - tuples are immutable).
func NewTuple(elems []*values.Value) *values.Value {
	return values.NewOfType(TupleT, &Tuple{Elems: elems})
}

// TupleData extracts the *Tuple payload from v, or nil.
func TupleData(v *values.Value) *Tuple {
	d, _ := v.Data.(*Tuple)
	return d
}

// Len returns the tuple's arity.
func (t *Tuple) Len() int { return len(t.Elems) }

// At returns the element at the given 0-based index, or Nil if out of
// range; the VM's tuple-unpacking opcodes (REFX, VARX, LETX) rely on that
// Nil for elements missing from a short tuple.
func (t *Tuple) At(i int) *values.Value {
	if i < 0 || i >= len(t.Elems) {
		return values.Nil
	}
	return t.Elems[i]
}
