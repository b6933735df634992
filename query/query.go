// Package query implements the compiled query and execution engine
// (§4.7): pattern matching folded over an entity list, grouped
// aggregation, deterministic ordering, and offset/limit pagination.
package query

import (
	"fmt"

	"github.com/RelationalFabric/relational-fabric-sub000/bindings"
	"github.com/RelationalFabric/relational-fabric-sub000/inclause"
	"github.com/RelationalFabric/relational-fabric-sub000/pattern"
	"github.com/RelationalFabric/relational-fabric-sub000/rferr"
)

// ReturnTerm is one element of a query's return clause: either a free
// variable or a named aggregate over a variable.
type ReturnTerm interface {
	isReturnTerm()
	IsAggregate() bool
}

// ReturnVar returns the raw, ungrouped value bound to Var.
type ReturnVar struct {
	Var bindings.Var
}

func (ReturnVar) isReturnTerm()     {}
func (ReturnVar) IsAggregate() bool { return false }

// ReturnAgg returns Name(Var) computed over each group (§4.7.1).
type ReturnAgg struct {
	Name string
	Var  bindings.Var
}

func (ReturnAgg) isReturnTerm()     {}
func (ReturnAgg) IsAggregate() bool { return true }

// Query is the uncompiled query structure (§4.7).
type Query struct {
	Return []ReturnTerm
	Where  any
	In     []inclause.Clause
	Limit  int
	Offset int
}

// Compiled is a validated, ready-to-run query. It is immutable and may
// be run repeatedly against different entity lists/args.
type Compiled struct {
	query           Query
	serializedWhere any
}

// Compile validates q and produces a Compiled query. Validation
// covers: variables must precede aggregates in Return (InvalidPattern,
// §7), and Limit/Offset must be non-negative (InvalidArgument, §7).
func Compile(q Query) (*Compiled, error) {
	seenAggregate := false
	for _, term := range q.Return {
		if term.IsAggregate() {
			seenAggregate = true
			continue
		}
		if seenAggregate {
			return nil, rferr.New(rferr.InvalidPattern, "variables must precede aggregates in return")
		}
	}
	if q.Limit < 0 {
		return nil, rferr.New(rferr.InvalidArgument, "limit must be non-negative")
	}
	if q.Offset < 0 {
		return nil, rferr.New(rferr.InvalidArgument, "offset must be non-negative")
	}

	serialized, err := pattern.Serialize(q.Where)
	if err != nil {
		return nil, err
	}

	return &Compiled{query: q, serializedWhere: serialized}, nil
}

// Serialize returns the query's serializable form: a plain value
// sufficient to round-trip through Parse and still execute identically
// (§4.7.2). NamedTest predicates require reg's registry to parse back.
func (c *Compiled) Serialize() any {
	returnTerms := make([]any, 0, len(c.query.Return))
	for _, term := range c.query.Return {
		switch t := term.(type) {
		case ReturnVar:
			returnTerms = append(returnTerms, map[string]any{"var": string(t.Var)})
		case ReturnAgg:
			returnTerms = append(returnTerms, map[string]any{"agg": t.Name, "var": string(t.Var)})
		}
	}
	return map[string]any{
		"return": returnTerms,
		"where":  c.serializedWhere,
		"limit":  c.query.Limit,
		"offset": c.query.Offset,
	}
}

// Parse rebuilds a Compiled query from a value produced by Serialize.
// reg resolves any NamedTest predicates embedded in the pattern; it may
// be nil if the pattern contains none. In clauses are not part of the
// serialized form (they are supplied per-Run, not baked into the
// query) and must be reattached via WithIn after Parse if needed.
func Parse(v any, reg pattern.Registry) (*Compiled, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, rferr.New(rferr.InvalidPattern, fmt.Sprintf("cannot parse compiled query from %T", v))
	}

	where, err := pattern.Parse(m["where"], reg)
	if err != nil {
		return nil, err
	}

	rawReturn, _ := m["return"].([]any)
	returnTerms := make([]ReturnTerm, 0, len(rawReturn))
	for _, rt := range rawReturn {
		rm, ok := rt.(map[string]any)
		if !ok {
			return nil, rferr.New(rferr.InvalidPattern, "malformed return term")
		}
		if aggName, ok := rm["agg"].(string); ok {
			returnTerms = append(returnTerms, ReturnAgg{Name: aggName, Var: bindings.Var(rm["var"].(string))})
			continue
		}
		returnTerms = append(returnTerms, ReturnVar{Var: bindings.Var(rm["var"].(string))})
	}

	// limit/offset arrive as float64 when v was decoded from JSON.
	var limit, offset int
	switch n := m["limit"].(type) {
	case int:
		limit = n
	case float64:
		limit = int(n)
	}
	switch n := m["offset"].(type) {
	case int:
		offset = n
	case float64:
		offset = int(n)
	}

	q := Query{Return: returnTerms, Where: where, Limit: limit, Offset: offset}
	return Compile(q)
}

// WithIn returns a copy of c with its In clauses replaced, used after
// Parse to reattach the in-clause shape a serialized query doesn't
// carry.
func (c *Compiled) WithIn(in []inclause.Clause) *Compiled {
	out := *c
	out.query.In = in
	return &out
}
