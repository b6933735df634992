package pattern

import (
	"golang.org/x/exp/slices"

	"github.com/RelationalFabric/relational-fabric-sub000/ref"
)

// rank implements §4.5.1's fixed priority:
//
//	undefined < boolean < number < symbol < string < variable <
//	NOT < object < TUPLE < OR < array < MAYBE
//
// Go has no "symbol"/"undefined" kind; we map the closest structural
// analogues: ref.Ref (an opaque identifier, like a JS Symbol) takes
// the "symbol" slot, and Null{} (or a literal nil) takes "undefined".
// NamedTest has no slot in the spec's list at all (it is introduced
// for implementer-defined predicates); it sorts last, after MAYBE,
// since a predicate is the least structurally constraining check and
// should run only once everything cheaper has already filtered.
func rank(p any) int {
	switch v := p.(type) {
	case nil, Null:
		return 0 // undefined
	case bool:
		return 1 // boolean
	case int, int32, int64, float32, float64:
		return 2 // number
	case ref.Ref:
		return 3 // symbol
	case string:
		if IsVariableKey(v) {
			return 5 // variable
		}
		return 4 // string
	case Modifier:
		switch v.Tag {
		case TagNot:
			return 6
		case TagTuple:
			return 8
		case TagOr:
			return 9
		case TagMaybe:
			return 11
		}
		return 7
	case ObjectPattern:
		return 7 // object
	case ArrayPattern:
		return 10 // array
	case NamedTest:
		return 12
	default:
		return 12
	}
}

// Optimize reorders every ObjectPattern's keys by §4.5.1's fixed
// priority (cheap/most-constraining sub-patterns first), recursing
// into every nested pattern. This affects matching performance, not
// the result set — Match always produces the same bindings regardless
// of whether Optimize has been applied.
func Optimize(p any) any {
	switch v := p.(type) {
	case ObjectPattern:
		out := make(ObjectPattern, len(v))
		copy(out, v)
		slices.SortStableFunc(out, func(a, b KV) bool {
			ra, rb := rank(a.Pattern), rank(b.Pattern)
			if ra != rb {
				return ra < rb
			}
			return a.Key < b.Key
		})
		for i := range out {
			out[i].Pattern = Optimize(out[i].Pattern)
		}
		return out
	case ArrayPattern:
		out := make(ArrayPattern, len(v))
		for i, el := range v {
			out[i] = Optimize(el)
		}
		return out
	case Modifier:
		children := make([]any, len(v.Children))
		for i, c := range v.Children {
			children[i] = Optimize(c)
		}
		return Modifier{Tag: v.Tag, Children: children}
	default:
		return p
	}
}
