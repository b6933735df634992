package bindings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RelationalFabric/relational-fabric-sub000/trace"
)

func TestAddDedupesByCanonicalHash(t *testing.T) {
	b := New()
	b.Add(Record{"?x": 1, "?y": "a"})
	b.Add(Record{"?y": "a", "?x": 1}) // same record, different key order
	b.Add(Record{"?x": 2, "?y": "a"})

	require.Equal(t, 2, b.Len())
	entries := b.Entries()
	var total int
	for _, e := range entries {
		total += e.Count
	}
	assert.Equal(t, 3, total)
}

func TestMergeSumsCounts(t *testing.T) {
	a := From(Record{"?x": 1})
	a.Add(Record{"?x": 1})
	c := From(Record{"?x": 1})

	merged := a.Merge(c)
	require.Equal(t, 1, merged.Len())
	assert.Equal(t, 3, merged.Entries()[0].Count)

	// originals untouched
	assert.Equal(t, 2, a.Entries()[0].Count)
	assert.Equal(t, 1, c.Entries()[0].Count)
}

func TestWithWithoutAreFunctional(t *testing.T) {
	b := From(Record{"?x": 1})
	b2 := b.With(Record{"?x": 2})

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 2, b2.Len())

	b3 := b2.Without(Record{"?x": 1})
	assert.Equal(t, 1, b3.Len())
	assert.Equal(t, 2, b3.ToArray()[0]["?x"])
}

func TestGroupByPartitionsOnProjectedTuple(t *testing.T) {
	b := New()
	b.Add(Record{"?a": int64(1), "?b": int64(2), "?c": int64(1)})
	b.Add(Record{"?a": int64(1), "?b": int64(2), "?c": int64(1)})
	b.Add(Record{"?a": int64(1), "?b": int64(2), "?c": int64(2)})
	b.Add(Record{"?a": int64(2), "?b": int64(2), "?c": int64(3)})

	var events []trace.Event
	tracer := trace.NewCollector(func(e trace.Event) { events = append(events, e) })

	groups := b.GroupBy([]Var{"?a", "?b"}, tracer)
	require.Len(t, groups, 2)

	require.Len(t, events, 1)
	assert.Equal(t, trace.BindingsGroupBy, events[0].Name)
	assert.Equal(t, 2, events[0].Data["groups"])

	byA := map[int64]*Group{}
	for i := range groups {
		byA[groups[i].Key["?a"].(int64)] = &groups[i]
	}

	g1 := byA[1]
	assert.Equal(t, 2, g1.Bindings.Len()) // two distinct ?c values
	assert.Equal(t, []any{int64(1), int64(1), int64(2)}, g1.Bindings.Values("?c"))
	assert.ElementsMatch(t, []any{int64(1), int64(2)}, g1.Bindings.DistinctValues("?c"))

	g2 := byA[2]
	assert.Equal(t, 1, g2.Bindings.Len())
}

func TestFlatMapPreservesMultiplicity(t *testing.T) {
	b := New()
	b.AddN(Record{"?x": 1}, 3)

	out := b.FlatMap(func(r Record, count int) []Record {
		return []Record{{"?x": r["?x"], "?y": "a"}, {"?x": r["?x"], "?y": "b"}}
	})

	require.Equal(t, 2, out.Len())
	for _, e := range out.Entries() {
		assert.Equal(t, 3, e.Count)
	}
}

func TestStrippedRemovesLeadingQuestionMark(t *testing.T) {
	r := Record{"?x": 1, "?y": 2}
	stripped := r.Stripped()
	assert.Equal(t, 1, stripped["x"])
	assert.Equal(t, 2, stripped["y"])
}
