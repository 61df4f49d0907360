package compound

import "github.com/minilang/ml/values"

// RangeT is the type of an integer range value, produced by the `..` method
// on two integers. A range is a sequence (it answers to the four iterator
// typed functions in iterate.go) but holds no elements itself.
var RangeT = values.NewType(values.AnyT, "Range")

// Range is an inclusive arithmetic progression of integers.
type Range struct {
	Start, Limit, Step int64
}

func init() {
	RangeT.Hash = func(v *values.Value, _ *values.HashLink) int64 {
		r := v.Data.(*Range)
		return r.Start*31*31 + r.Limit*31 + r.Step
	}
}

// NewRange constructs the inclusive range start..limit with the given step.
// A zero step defaults to 1 (or -1 for a descending range).
func NewRange(start, limit, step int64) *values.Value {
	if step == 0 {
		if limit < start {
			step = -1
		} else {
			step = 1
		}
	}
	return values.NewOfType(RangeT, &Range{Start: start, Limit: limit, Step: step})
}

// RangeData extracts the *Range payload from v, or nil.
func RangeData(v *values.Value) *Range {
	d, _ := v.Data.(*Range)
	return d
}

// Len returns the number of values the range produces.
func (r *Range) Len() int {
	if r.Step > 0 {
		if r.Limit < r.Start {
			return 0
		}
		return int((r.Limit-r.Start)/r.Step) + 1
	}
	if r.Limit > r.Start {
		return 0
	}
	return int((r.Start-r.Limit)/(-r.Step)) + 1
}
