package compound

import "github.com/minilang/ml/values"

// PartialT is the type of a partial application: a callable bundled with
// some of its leading argument slots already filled in (the
// `func(1, _, 3)`-style partial application sugar).
var PartialT = values.NewType(values.AnyT, "Partial")

// Partial holds the underlying callable and a fixed-size argument vector
// where nil entries are still-open slots to be filled positionally by the
// eventual call.
type Partial struct {
	Fn   *values.Value
	Args []*values.Value // nil entry = open slot
}

func init() {
	PartialT.Call = func(caller values.Caller, v *values.Value, args []*values.Value) error {
		p := v.Data.(*Partial)
		filled := make([]*values.Value, len(p.Args))
		copy(filled, p.Args)
		next := 0
		for i, a := range filled {
			if a == nil {
				if next < len(args) {
					filled[i] = args[next]
					next++
				} else {
					filled[i] = values.Nil
				}
			}
		}
		filled = append(filled, args[next:]...)
		return values.Call(caller, p.Fn, filled)
	}
}

// NewPartial constructs a partial application over fn with the given
// argument template (nil entries are open slots).
func NewPartial(fn *values.Value, args []*values.Value) *values.Value {
	cp := make([]*values.Value, len(args))
	copy(cp, args)
	return values.NewOfType(PartialT, &Partial{Fn: fn, Args: cp})
}

// PartialData extracts the *Partial payload from v, or nil.
func PartialData(v *values.Value) *Partial {
	d, _ := v.Data.(*Partial)
	return d
}

// SetArg fills the open slot at index i (PARTIAL_SET opcode).
func (p *Partial) SetArg(i int, v *values.Value) {
	if i < 0 || i >= len(p.Args) {
		return
	}
	p.Args[i] = v
}
