package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RelationalFabric/relational-fabric-sub000/inclause"
	"github.com/RelationalFabric/relational-fabric-sub000/pattern"
	"github.com/RelationalFabric/relational-fabric-sub000/trace"
)

func groupedAggregationEntities() []any {
	return []any{
		map[string]any{"a": 1, "b": 2, "c": 1},
		map[string]any{"a": 1, "b": 2, "c": 1},
		map[string]any{"a": 1, "b": 2, "c": 2},
		map[string]any{"a": 2, "b": 2, "c": 3},
	}
}

func groupedAggregationQuery() Query {
	return Query{
		Return: []ReturnTerm{
			ReturnVar{Var: "?a"},
			ReturnVar{Var: "?b"},
			ReturnAgg{Name: "count", Var: "?c"},
			ReturnAgg{Name: "count-distinct", Var: "?c"},
		},
		Where: pattern.Obj(
			pattern.K("a", "?a"),
			pattern.K("b", "?b"),
			pattern.K("c", "?c"),
		),
	}
}

// Concrete seed scenario 6: grouped aggregation.
func TestGroupedAggregationMatchesSeedScenario(t *testing.T) {
	compiled, err := Compile(groupedAggregationQuery())
	require.NoError(t, err)

	out, err := Run(compiled, groupedAggregationEntities(), nil, nil)
	require.NoError(t, err)

	require.Equal(t, 2, out.Size)
	require.Equal(t, 2, out.Count)

	var rows [][]any
	for _, r := range out.Result {
		rows = append(rows, []any(r))
	}
	assert.ElementsMatch(t, []any{
		[]any{1, 2, int64(3), int64(2)},
		[]any{2, 2, int64(1), int64(1)},
	}, rows)
}

func TestCompileRejectsAggregateBeforeVariable(t *testing.T) {
	_, err := Compile(Query{
		Return: []ReturnTerm{
			ReturnAgg{Name: "count", Var: "?c"},
			ReturnVar{Var: "?a"},
		},
		Where: pattern.Obj(pattern.K("a", "?a")),
	})
	require.Error(t, err)
}

func TestCompileRejectsNegativeLimitOrOffset(t *testing.T) {
	base := Query{Return: []ReturnTerm{ReturnVar{Var: "?a"}}, Where: pattern.Obj(pattern.K("a", "?a"))}

	neg := base
	neg.Limit = -1
	_, err := Compile(neg)
	require.Error(t, err)

	neg2 := base
	neg2.Offset = -1
	_, err = Compile(neg2)
	require.Error(t, err)
}

func TestRunHonorsOffsetAndLimit(t *testing.T) {
	entities := []any{
		map[string]any{"a": 1},
		map[string]any{"a": 2},
		map[string]any{"a": 3},
	}
	compiled, err := Compile(Query{
		Return: []ReturnTerm{ReturnVar{Var: "?a"}},
		Where:  pattern.Obj(pattern.K("a", "?a")),
		Limit:  1,
		Offset: 1,
	})
	require.NoError(t, err)

	out, err := Run(compiled, entities, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Size)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, 1, out.Offset)
}

func TestResultSetToMapsProjectsByColumn(t *testing.T) {
	entities := []any{
		map[string]any{"a": 1, "b": "x"},
		map[string]any{"a": 2, "b": "y"},
	}
	compiled, err := Compile(Query{
		Return: []ReturnTerm{ReturnVar{Var: "?a"}, ReturnVar{Var: "?b"}},
		Where:  pattern.Obj(pattern.K("a", "?a"), pattern.K("b", "?b")),
	})
	require.NoError(t, err)

	out, err := Run(compiled, entities, nil, nil)
	require.NoError(t, err)

	maps := out.ToMaps([]string{"a", "b"})
	require.Len(t, maps, 2)
	assert.ElementsMatch(t, []map[string]any{
		{"a": 1, "b": "x"},
		{"a": 2, "b": "y"},
	}, maps)
}

func TestRunUsesInClauseForInitialBindings(t *testing.T) {
	entities := []any{
		map[string]any{"a": 1},
		map[string]any{"a": 2},
	}
	compiled, err := Compile(Query{
		Return: []ReturnTerm{ReturnVar{Var: "?a"}},
		Where:  pattern.Obj(pattern.K("a", "?a")),
		In:     []inclause.Clause{pattern.Var("?a")},
	})
	require.NoError(t, err)

	out, err := Run(compiled, entities, []any{1}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, len(out.Result))
	assert.Equal(t, 1, out.Result[0][0])
}

// Run emits the query-side trace events a -verbose CLI run surfaces:
// match begin/complete around the fold, and one aggregated event after
// grouping (which itself emits bindings/group.by).
func TestRunEmitsQueryTraceEvents(t *testing.T) {
	compiled, err := Compile(groupedAggregationQuery())
	require.NoError(t, err)

	var names []string
	tracer := trace.NewCollector(func(e trace.Event) { names = append(names, e.Name) })

	_, err = Run(compiled, groupedAggregationEntities(), nil, tracer)
	require.NoError(t, err)

	assert.Equal(t, []string{
		trace.QueryMatchBegin,
		trace.QueryMatchComplete,
		trace.BindingsGroupBy,
		trace.QueryAggregated,
	}, names)
}

// Round-trip: compile, serialize, parse, run equals running the
// uncompiled form directly (§8's round-trip property).
func TestSerializeParseRunRoundTrip(t *testing.T) {
	q := groupedAggregationQuery()
	compiled, err := Compile(q)
	require.NoError(t, err)

	direct, err := Run(compiled, groupedAggregationEntities(), nil, nil)
	require.NoError(t, err)

	serialized := compiled.Serialize()
	reparsed, err := Parse(serialized, nil)
	require.NoError(t, err)

	roundTripped, err := Run(reparsed, groupedAggregationEntities(), nil, nil)
	require.NoError(t, err)

	require.Equal(t, direct.Size, roundTripped.Size)
	var a, b [][]any
	for _, r := range direct.Result {
		a = append(a, []any(r))
	}
	for _, r := range roundTripped.Result {
		b = append(b, []any(r))
	}
	assert.ElementsMatch(t, a, b)
}
