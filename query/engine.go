package query

import (
	"sort"

	"github.com/RelationalFabric/relational-fabric-sub000/aggregate"
	"github.com/RelationalFabric/relational-fabric-sub000/bindings"
	"github.com/RelationalFabric/relational-fabric-sub000/chash"
	"github.com/RelationalFabric/relational-fabric-sub000/inclause"
	"github.com/RelationalFabric/relational-fabric-sub000/pattern"
	"github.com/RelationalFabric/relational-fabric-sub000/trace"
)

// ResultSet is the outcome of running a compiled query (§6).
type ResultSet struct {
	// Result is one row ([]any, in Return order) per group, after
	// sorting and offset/limit have been applied.
	Result []Row
	// Size is the total number of groups matched, before offset/limit.
	Size int
	// Count is len(Result): the number of rows actually returned.
	Count int
	// Offset is the offset that was applied.
	Offset int
}

// Row is one result row: one value per Return term, in order.
type Row []any

// ToMaps projects Result into column-named maps, one per row, pairing
// columns[i] with each row's i-th value. Mirrored on the teacher's
// ResultSet.ToMap(row) convenience, generalized to the whole result
// set. columns shorter than a row leaves its trailing values
// unprojected; columns longer than a row are ignored past the row's
// length.
func (rs ResultSet) ToMaps(columns []string) []map[string]any {
	out := make([]map[string]any, 0, len(rs.Result))
	for _, row := range rs.Result {
		m := make(map[string]any, len(columns))
		for i, col := range columns {
			if i >= len(row) {
				break
			}
			m[col] = row[i]
		}
		out = append(out, m)
	}
	return out
}

// Run executes compiled against entities, using args to satisfy the
// query's In clauses (§4.7):
//  1. compute the initial bindings from In (or a single empty binding)
//  2. for each entity, match Where against it starting from the
//     initial bindings, and union every entity's result into the
//     running bindings set
//  3. build the result per §4.7.1's grouping/aggregation rules
//  4. sort rows by canonical hash, then apply offset/limit
//
// tracer (may be nil) receives the query-side trace.QueryMatchBegin/
// QueryMatchComplete/QueryAggregated events the -verbose CLI mode
// surfaces.
func Run(compiled *Compiled, entities []any, args []any, tracer *trace.Collector) (ResultSet, error) {
	q := compiled.query

	initial, err := initialBindings(q.In, args)
	if err != nil {
		return ResultSet{}, err
	}

	tracer.Emit(trace.QueryMatchBegin, map[string]any{"entities": len(entities)})

	accumulated := bindings.New()
	for _, entity := range entities {
		matched, err := pattern.Match(q.Where, entity, initial)
		if err != nil {
			return ResultSet{}, err
		}
		accumulated = accumulated.Merge(matched)
	}

	tracer.Emit(trace.QueryMatchComplete, map[string]any{"bindings": accumulated.Len()})

	rows, err := buildRows(q.Return, accumulated, tracer)
	if err != nil {
		return ResultSet{}, err
	}

	tracer.Emit(trace.QueryAggregated, map[string]any{"rows": len(rows)})

	sort.Slice(rows, func(i, j int) bool {
		return chash.MustHash([]any(rows[i])).Less(chash.MustHash([]any(rows[j])))
	})

	size := len(rows)
	paged := paginate(rows, q.Offset, q.Limit)

	return ResultSet{
		Result: paged,
		Size:   size,
		Count:  len(paged),
		Offset: q.Offset,
	}, nil
}

func initialBindings(in []inclause.Clause, args []any) (*bindings.Bindings, error) {
	if len(in) == 0 {
		return bindings.From(bindings.Record{}), nil
	}
	return inclause.Parse(in, args)
}

// buildRows implements §4.7.1's grouping: groups are keyed by the
// tuple of free-variable values in Return; aggregates are computed per
// group over that group's bindings. If Return has no free variables,
// every binding forms a single group.
func buildRows(returnTerms []ReturnTerm, bound *bindings.Bindings, tracer *trace.Collector) ([]Row, error) {
	freeVars := freeVariables(returnTerms)

	if len(freeVars) == 0 {
		row, err := buildRow(returnTerms, bound, bindings.Record{})
		if err != nil {
			return nil, err
		}
		return []Row{row}, nil
	}

	groups := bound.GroupBy(freeVars, tracer)
	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		row, err := buildRow(returnTerms, g.Bindings, g.Key)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func freeVariables(returnTerms []ReturnTerm) []bindings.Var {
	var vars []bindings.Var
	for _, term := range returnTerms {
		if rv, ok := term.(ReturnVar); ok {
			vars = append(vars, rv.Var)
		}
	}
	return vars
}

func buildRow(returnTerms []ReturnTerm, groupBindings *bindings.Bindings, key bindings.Record) (Row, error) {
	row := make(Row, 0, len(returnTerms))
	for _, term := range returnTerms {
		switch t := term.(type) {
		case ReturnVar:
			row = append(row, key[t.Var])
		case ReturnAgg:
			fn, err := aggregate.New(t.Name, t.Var)
			if err != nil {
				return nil, err
			}
			// RequiresValues is an optimization hint in the teacher's
			// AggregateFunction interface; every aggregate here still
			// reads the same Values() slice, since count also needs
			// multiplicity-aware occurrences, not just a raw tally.
			result, err := fn.Aggregate(groupBindings.Values(t.Var))
			if err != nil {
				return nil, err
			}
			row = append(row, result)
		}
	}
	return row, nil
}

func paginate(rows []Row, offset, limit int) []Row {
	if offset >= len(rows) {
		return []Row{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
