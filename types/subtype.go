package types

import "github.com/minilang/ml/values"

// IsSubtype reports whether A <: B, extending values.Type.HasParent's
// flat-set check with generic-instance argument covariance and generic-rule
// instantiation.
//
// Order of checks: identity, Any, B's union alternatives, matching
// generic-base argument
// covariance, A's generic rules (each instantiated against A's own
// argument vector and recursed into), and finally the flat ancestor-set
// fallback.
func IsSubtype(a, b *values.Type) bool {
	if a == b {
		return true
	}
	if b == values.AnyT {
		return true
	}
	for _, alt := range b.Alternatives {
		if IsSubtype(a, alt) {
			return true
		}
	}
	if a.GenericBase != nil && b.GenericBase != nil && a.GenericBase == b.GenericBase {
		if genericArgsSubtype(a.GenericArgs, b.GenericArgs) {
			return true
		}
	}
	ruleOwner := a
	if a.GenericBase != nil {
		ruleOwner = a.GenericBase
	}
	for _, rule := range ruleOwner.Rules {
		instArgs := a.GenericArgs
		targetArgs := resolveRuleArgs(rule.Args, instArgs)
		instantiated := rule.Target
		if len(targetArgs) > 0 {
			instantiated = Instantiate(rule.Target, targetArgs)
		}
		if IsSubtype(instantiated, b) {
			return true
		}
	}
	return a.HasParent(b)
}

// genericArgsSubtype compares two argument vectors positionally and
// covariantly; a shorter vector (B under-specified, e.g. bare `List` used
// where `List[Integer]` is expected) pads its missing trailing positions
// with Any, which is a supertype of everything.
func genericArgsSubtype(a, b []*values.Type) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := values.AnyT
		if i < len(a) {
			ai = a[i]
		}
		bi := values.AnyT
		if i < len(b) {
			bi = b[i]
		}
		if !IsSubtype(ai, bi) {
			return false
		}
	}
	return true
}

// TypeMax computes the least common supertype of a and b (the lattice meet).
// It walks both flat ancestor sets (each includes the type itself and its
// parents, so Any included) and returns whichever common ancestor has the
// highest rank; ties fall back to Any, which is always a valid common
// ancestor.
func TypeMax(a, b *values.Type) *values.Type {
	if a == b {
		return a
	}
	if IsSubtype(a, b) {
		return b
	}
	if IsSubtype(b, a) {
		return a
	}

	candidates := ancestorsOf(a)
	best, tied := values.AnyT, false
	for c := range ancestorsOf(b) {
		if _, ok := candidates[c]; !ok || c == best {
			continue
		}
		if c.Rank() > best.Rank() {
			best, tied = c, false
		} else if c.Rank() == best.Rank() {
			tied = true
		}
	}
	if tied {
		return values.AnyT
	}
	return best
}

func ancestorsOf(t *values.Type) map[*values.Type]struct{} {
	out := map[*values.Type]struct{}{t: {}}
	for _, p := range t.Parents() {
		out[p] = struct{}{}
	}
	return out
}
