// Package types builds on values.Type with the generic-type machinery:
// interning parameterised instances, the subtype algorithm
// and the least-common-supertype meet (TypeMax).
package types

import (
	"strings"
	"sync"

	"github.com/minilang/ml/values"
)

var (
	internMu    sync.Mutex
	internTable = map[string]*values.Type{}
)

// instanceKey builds the intern key for a (base, args) pair. Generic
// instances are interned globally so that `List[Integer] == List[Integer]`
// holds by pointer identity after interning.
func instanceKey(base *values.Type, args []*values.Type) string {
	var b strings.Builder
	b.WriteString(base.Name)
	for _, a := range args {
		b.WriteByte('\x00')
		b.WriteString(a.Name)
	}
	return b.String()
}

// Instantiate returns the interned generic instance base[args...], creating
// it on first request. The instance is a genuine subtype of base (so
// is(v, base) holds for any v of the instance) with Rank = base.Rank + 1.
func Instantiate(base *values.Type, args []*values.Type) *values.Type {
	key := instanceKey(base, args)

	internMu.Lock()
	defer internMu.Unlock()
	if t, ok := internTable[key]; ok {
		return t
	}

	argsCopy := make([]*values.Type, len(args))
	copy(argsCopy, args)

	t := values.NewType(base, base.Name)
	t.GenericBase = base
	t.GenericArgs = argsCopy
	internTable[key] = t
	return t
}

// AddRule attaches a "base[args...] is also a subtype of target[ruleArgs...]"
// declaration to base (e.g. "Map[K,V] is a Sequence[Tuple[K,V]]"). ruleArgs mix concrete types and positional
// references into the instantiating argument vector via values.RuleArg.
func AddRule(base *values.Type, target *values.Type, ruleArgs []values.RuleArg) {
	base.Rules = append(base.Rules, &values.GenericRule{Target: target, Args: ruleArgs})
}

// resolveRuleArgs substitutes positional references in ruleArgs with the
// concrete types from an instantiating argument vector.
func resolveRuleArgs(ruleArgs []values.RuleArg, instArgs []*values.Type) []*values.Type {
	out := make([]*values.Type, len(ruleArgs))
	for i, ra := range ruleArgs {
		if ra.Concrete != nil {
			out[i] = ra.Concrete
			continue
		}
		if ra.Position >= 0 && ra.Position < len(instArgs) {
			out[i] = instArgs[ra.Position]
		} else {
			out[i] = values.AnyT
		}
	}
	return out
}
