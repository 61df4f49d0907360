package compound

import "github.com/minilang/ml/values"

// NamesT is the type of a Names list: an ordered list of identifiers used
// to tag a call's trailing arguments as named rather than positional.
var NamesT = values.NewType(values.AnyT, "Names")

// Names is an ordered, append-only list of identifier strings.
type Names struct {
	Idents []string
}

// NewNames constructs a Names value from idents (copied).
func NewNames(idents []string) *values.Value {
	cp := make([]string, len(idents))
	copy(cp, idents)
	return values.NewOfType(NamesT, &Names{Idents: cp})
}

// NamesData extracts the *Names payload from v, or nil.
func NamesData(v *values.Value) *Names {
	d, _ := v.Data.(*Names)
	return d
}

// IndexOf returns the position of ident in the list, or -1.
func (n *Names) IndexOf(ident string) int {
	for i, s := range n.Idents {
		if s == ident {
			return i
		}
	}
	return -1
}
