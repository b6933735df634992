// Package inclause destructures a query's input clauses and argument
// values into the initial bindings set a query starts folding over
// (§4.6).
package inclause

import (
	"fmt"

	"github.com/RelationalFabric/relational-fabric-sub000/bindings"
	"github.com/RelationalFabric/relational-fabric-sub000/pattern"
	"github.com/RelationalFabric/relational-fabric-sub000/rferr"
)

// Clause is one element of an in-clause list. It is one of:
//   - a bare pattern.Var: binds the variable to the matching arg.
//   - a Tuple: positionally destructures an array arg.
//   - a Splat: applies the inner clause once per element of an
//     iterable arg, producing one binding per element.
type Clause any

// Tuple is a clause of the form [V1, V2, ...].
type Tuple []pattern.Var

// Splat is a clause of the form [..., clause]: arg must be an array,
// and the inner clause is applied once per element.
type Splat struct {
	Inner Clause
}

// Parse destructures clauses against the parallel args slice, folding
// the cartesian product of every clause's own binding set into a
// single Bindings. len(clauses) must equal len(args); the zero-clause
// case returns a single empty binding (§4.7's "or the single empty
// binding" starting point).
func Parse(clauses []Clause, args []any) (*bindings.Bindings, error) {
	if len(clauses) != len(args) {
		return nil, rferr.New(rferr.InvalidArgument,
			fmt.Sprintf("in-clause count %d does not match argument count %d", len(clauses), len(args)))
	}
	out := bindings.From(bindings.Record{})
	for i, clause := range clauses {
		clauseBindings, err := parseOne(clause, args[i])
		if err != nil {
			return nil, err
		}
		out = cartesianProduct(out, clauseBindings)
	}
	return out, nil
}

func parseOne(clause Clause, arg any) (*bindings.Bindings, error) {
	switch c := clause.(type) {
	case pattern.Var:
		return bindings.From(bindings.Record{c: arg}), nil

	case Tuple:
		arr, ok := arg.([]any)
		if !ok {
			return nil, rferr.New(rferr.ShapeMismatch, "in-clause tuple expects an array argument")
		}
		if len(arr) < len(c) {
			return nil, rferr.New(rferr.ShapeMismatch,
				fmt.Sprintf("in-clause tuple expects at least %d elements, got %d", len(c), len(arr)))
		}
		rec := bindings.Record{}
		for i, v := range c {
			rec[v] = arr[i]
		}
		return bindings.From(rec), nil

	case Splat:
		arr, ok := arg.([]any)
		if !ok {
			return nil, rferr.New(rferr.ShapeMismatch, "in-clause splat expects an array argument")
		}
		out := bindings.New()
		for _, el := range arr {
			sub, err := parseOne(c.Inner, el)
			if err != nil {
				return nil, err
			}
			for _, e := range sub.Entries() {
				out.AddN(e.Record, e.Count)
			}
		}
		return out, nil

	default:
		return nil, rferr.New(rferr.InvalidArgument, fmt.Sprintf("unrecognized in-clause shape %T", clause))
	}
}

// cartesianProduct merges every record of a with every record of b,
// preserving multiplicity (the product of the two counts).
func cartesianProduct(a, b *bindings.Bindings) *bindings.Bindings {
	out := bindings.New()
	for _, ea := range a.Entries() {
		for _, eb := range b.Entries() {
			rec := ea.Record.Clone()
			for k, v := range eb.Record {
				rec[k] = v
			}
			out.AddN(rec, ea.Count*eb.Count)
		}
	}
	return out
}
