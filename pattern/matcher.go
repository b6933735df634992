package pattern

import (
	"fmt"

	"github.com/RelationalFabric/relational-fabric-sub000/bindings"
	"github.com/RelationalFabric/relational-fabric-sub000/chash"
	"github.com/RelationalFabric/relational-fabric-sub000/rferr"
)

// Match unifies pattern against value under the incoming bindings set,
// returning a possibly-larger bindings set (§4.5). An empty result
// means no match under any incoming binding; the matcher never raises
// on semantic failure, only on structurally malformed patterns
// (§4.5.4, rferr.InvalidPattern).
func Match(p any, value any, in *bindings.Bindings) (*bindings.Bindings, error) {
	optimized := Optimize(p)
	out := bindings.New()
	for _, e := range in.Entries() {
		recs, err := matchOne(optimized, value, e.Record)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			out.AddN(r, e.Count)
		}
	}
	return out, nil
}

// matchOne matches p against value starting from a single incoming
// record, returning every extended record that satisfies it (zero,
// one, or many).
func matchOne(p any, value any, rec bindings.Record) ([]bindings.Record, error) {
	switch pat := p.(type) {
	case nil, Null:
		if value == nil {
			return []bindings.Record{rec}, nil
		}
		return nil, nil

	case string:
		return matchScalarOrVariable(pat, value, rec)

	case NamedTest:
		if pat.Fn == nil {
			return nil, rferr.New(rferr.InvalidPattern, "test pattern "+pat.Name+" has no function")
		}
		if pat.Fn(rec.Stripped()) {
			return []bindings.Record{rec}, nil
		}
		return nil, nil

	case Modifier:
		return matchModifier(pat, value, rec)

	case ObjectPattern:
		return matchObjectPattern(pat, value, rec)

	case ArrayPattern:
		return matchArrayPattern(pat, value, rec)

	default:
		// Scalar pattern: retained iff structurally equal to the value.
		if structurallyEqual(pat, value) {
			return []bindings.Record{rec}, nil
		}
		return nil, nil
	}
}

func matchScalarOrVariable(pat string, value any, rec bindings.Record) ([]bindings.Record, error) {
	if !IsVariableKey(pat) {
		if structurallyEqual(pat, value) {
			return []bindings.Record{rec}, nil
		}
		return nil, nil
	}
	v := bindings.Var(pat)
	if bound, ok := rec[v]; ok {
		if structurallyEqual(bound, value) {
			return []bindings.Record{rec}, nil
		}
		return nil, nil
	}
	next := rec.Clone()
	next[v] = value
	return []bindings.Record{next}, nil
}

func matchModifier(m Modifier, value any, rec bindings.Record) ([]bindings.Record, error) {
	switch m.Tag {
	case TagTuple:
		return matchTuple(m.Children, value, rec)

	case TagOr:
		var out []bindings.Record
		for _, child := range m.Children {
			sub, err := matchOne(child, value, rec)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil

	case TagNot:
		if len(m.Children) != 1 {
			return nil, rferr.New(rferr.InvalidPattern, "NOT requires exactly one child")
		}
		if value == nil {
			return []bindings.Record{rec}, nil
		}
		sub, err := matchOne(m.Children[0], value, rec)
		if err != nil {
			return nil, err
		}
		if len(sub) == 0 {
			return []bindings.Record{rec}, nil
		}
		return nil, nil

	case TagMaybe:
		if len(m.Children) != 1 {
			return nil, rferr.New(rferr.InvalidPattern, "MAYBE requires exactly one child")
		}
		sub, err := matchOne(m.Children[0], value, rec)
		if err != nil {
			return nil, err
		}
		if len(sub) > 0 {
			return sub, nil
		}
		return []bindings.Record{rec}, nil

	default:
		return nil, rferr.New(rferr.InvalidPattern, fmt.Sprintf("unknown modifier tag %q", m.Tag))
	}
}

// matchTuple implements §4.5.2's TUPLE semantics: value must be an
// array with len(value) >= len(children); match positionally by
// index; trailing value elements beyond len(children) are ignored.
func matchTuple(children []any, value any, rec bindings.Record) ([]bindings.Record, error) {
	arr, ok := value.([]any)
	if !ok || len(arr) < len(children) {
		return nil, nil
	}
	cur := []bindings.Record{rec}
	for i, child := range children {
		var next []bindings.Record
		for _, r := range cur {
			sub, err := matchOne(child, arr[i], r)
			if err != nil {
				return nil, err
			}
			next = append(next, sub...)
		}
		cur = next
		if len(cur) == 0 {
			return nil, nil
		}
	}
	return cur, nil
}

// matchArrayPattern implements §4.5.2's non-modifier array pattern
// dispatch. Against an array value, the whole pattern is matched
// against each element and the results unioned (so an array pattern
// behaves, by default, as a membership test over a set — consistent
// with §3's "arrays are sets" treatment of entity attributes). Against
// a scalar or object value, the sub-patterns/test-functions are
// applied positionally as a conjunctive chain of constraints against
// that single value, each threading the bindings produced by the one
// before it — e.g. [(> ?x 5) (< ?x 10)] as a two-constraint AND.
func matchArrayPattern(pat ArrayPattern, value any, rec bindings.Record) ([]bindings.Record, error) {
	if arr, ok := value.([]any); ok {
		var out []bindings.Record
		for _, el := range arr {
			sub, err := matchOne(pat, el, rec)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	}

	cur := []bindings.Record{rec}
	for _, sub := range pat {
		var next []bindings.Record
		for _, r := range cur {
			results, err := matchOne(sub, value, r)
			if err != nil {
				return nil, err
			}
			next = append(next, results...)
		}
		cur = next
		if len(cur) == 0 {
			return nil, nil
		}
	}
	return cur, nil
}

// isExemptFromPresence reports whether sub is one of the sub-pattern
// shapes §4.5.2 exempts from requiring the key to be present:
// undefined (nil/Null), MAYBE, NOT, or an empty array pattern.
func isExemptFromPresence(sub any) bool {
	switch v := sub.(type) {
	case nil, Null:
		return true
	case Modifier:
		return v.Tag == TagMaybe || v.Tag == TagNot
	case ArrayPattern:
		return len(v) == 0
	default:
		return false
	}
}

func matchObjectPattern(pat ObjectPattern, value any, rec bindings.Record) ([]bindings.Record, error) {
	// Object pattern vs. array value: match against each element, union.
	if arr, ok := value.([]any); ok {
		var out []bindings.Record
		for _, el := range arr {
			sub, err := matchOne(pat, el, rec)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	}

	cur := []bindings.Record{rec}
	for _, kv := range pat {
		var next []bindings.Record
		for _, r := range cur {
			sub, err := matchObjectKey(kv, value, r)
			if err != nil {
				return nil, err
			}
			next = append(next, sub...)
		}
		cur = next
		if len(cur) == 0 {
			return nil, nil
		}
	}
	return cur, nil
}

func matchObjectKey(kv KV, containing any, rec bindings.Record) ([]bindings.Record, error) {
	switch {
	case IsSpliceKey(kv.Key):
		// The splice's sub-pattern matches the containing value itself.
		return matchOne(kv.Pattern, containing, rec)

	case IsVariableKey(kv.Key):
		m, ok := containing.(map[string]any)
		if !ok {
			return nil, nil
		}
		keyVar := bindings.Var(kv.Key)
		var out []bindings.Record
		for k, v := range m {
			r2, ok := bindLiteral(keyVar, k, rec)
			if !ok {
				continue
			}
			sub, err := matchOne(kv.Pattern, v, r2)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil

	default:
		val, present := lookupKey(containing, kv.Key)
		if !present {
			if isExemptFromPresence(kv.Pattern) {
				// MAYBE/NOT on an absent value are evaluated against
				// nil below so their own "on absence" rules apply
				// uniformly, rather than special-cased here again.
				return matchOne(kv.Pattern, nil, rec)
			}
			return nil, nil
		}
		return matchOne(kv.Pattern, val, rec)
	}
}

func lookupKey(containing any, key string) (any, bool) {
	m, ok := containing.(map[string]any)
	if !ok {
		return nil, false
	}
	v, present := m[key]
	return v, present
}

func bindLiteral(v bindings.Var, value any, rec bindings.Record) (bindings.Record, bool) {
	if bound, ok := rec[v]; ok {
		if structurallyEqual(bound, value) {
			return rec, true
		}
		return nil, false
	}
	next := rec.Clone()
	next[v] = value
	return next, true
}

func structurallyEqual(a, b any) bool {
	ta, err := chash.Hash(a)
	if err != nil {
		return false
	}
	tb, err := chash.Hash(b)
	if err != nil {
		return false
	}
	return ta == tb
}
