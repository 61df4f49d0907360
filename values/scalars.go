package values

import "math"

// Scalar types. Numeric semantics follow host IEEE-754 and host integer
// widths; no bignum support is attempted.
var (
	IntegerT = NewType(AnyT, "Integer")
	RealT    = NewType(AnyT, "Real")
	StringT  = NewType(AnyT, "String")
	BooleanT = NewType(AnyT, "Boolean")
	MethodT  = NewType(AnyT, "Method")
)

func init() {
	IntegerT.Hash = func(v *Value, _ *HashLink) int64 { return v.Data.(int64) }
	RealT.Hash = func(v *Value, _ *HashLink) int64 { return int64(math.Float64bits(v.Data.(float64))) }
	StringT.Hash = func(v *Value, _ *HashLink) int64 {
		s := v.Data.(string)
		var h int64 = 1469598103934665603
		for i := 0; i < len(s); i++ {
			h ^= int64(s[i])
			h *= 1099511628211
		}
		return h
	}
	BooleanT.Hash = func(v *Value, _ *HashLink) int64 {
		if v.Data.(bool) {
			return 1
		}
		return 0
	}
}

func Int(i int64) *Value    { return NewOfType(IntegerT, i) }
func Real(f float64) *Value { return NewOfType(RealT, f) }
func Str(s string) *Value   { return NewOfType(StringT, s) }
func Bool(b bool) *Value {
	if b {
		return trueValue
	}
	return falseValue
}

var (
	trueValue  = NewOfType(BooleanT, true)
	falseValue = NewOfType(BooleanT, false)
)

// IsTruthy reflects minilang's single falsy-besides-Nil rule: only Nil and
// the boolean false are falsy; everything else, including 0 and "", is
// truthy.
func IsTruthy(v *Value) bool {
	d := Deref(v)
	if d == Nil {
		return false
	}
	if b, ok := d.Data.(bool); ok && TypeOf(d) == BooleanT {
		return b
	}
	return true
}
