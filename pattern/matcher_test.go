package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RelationalFabric/relational-fabric-sub000/bindings"
)

func matchFromEmpty(t *testing.T, p any, value any) *bindings.Bindings {
	t.Helper()
	out, err := Match(p, value, bindings.From(bindings.Record{}))
	require.NoError(t, err)
	return out
}

// Concrete seed scenario 5: OR with key binding.
func TestOrWithKeyBinding(t *testing.T) {
	p := Obj(
		K("id", "?id"),
		K("?status", "completed"),
	)
	value := map[string]any{"id": "1", "actionStatus": "completed"}

	out := matchFromEmpty(t, p, value)
	require.Equal(t, 1, out.Len())
	rec := out.ToArray()[0]
	assert.Equal(t, "1", rec["?id"])
	assert.Equal(t, "actionStatus", rec["?status"])
}

func TestVariableBindsThenChecksEquality(t *testing.T) {
	p := TupleOf("?x", "?x")
	ok := matchFromEmpty(t, p, []any{"a", "a"})
	require.Equal(t, 1, ok.Len())

	bad := matchFromEmpty(t, p, []any{"a", "b"})
	assert.True(t, bad.IsEmpty())
}

func TestNotSucceedsIffInnerFails(t *testing.T) {
	p := Not("foo")
	assert.Equal(t, 1, matchFromEmpty(t, p, "bar").Len())
	assert.True(t, matchFromEmpty(t, p, "foo").IsEmpty())
	// NOT unconditionally succeeds against an absent/nil value.
	assert.Equal(t, 1, matchFromEmpty(t, p, nil).Len())
}

func TestMaybeNeverReducesBindings(t *testing.T) {
	p := Maybe("foo")
	assert.Equal(t, 1, matchFromEmpty(t, p, "foo").Len())
	assert.Equal(t, 1, matchFromEmpty(t, p, "bar").Len())
	assert.Equal(t, 1, matchFromEmpty(t, p, nil).Len())
}

func TestTupleRequiresMinimumLengthAndIgnoresTrailing(t *testing.T) {
	p := TupleOf("a", "b")
	assert.Equal(t, 1, matchFromEmpty(t, p, []any{"a", "b", "c"}).Len())
	assert.True(t, matchFromEmpty(t, p, []any{"a"}).IsEmpty())
	assert.True(t, matchFromEmpty(t, p, "not-an-array").IsEmpty())
}

func TestOrUnionsAlternatives(t *testing.T) {
	p := Or("a", "b")
	assert.Equal(t, 1, matchFromEmpty(t, p, "a").Len())
	assert.Equal(t, 1, matchFromEmpty(t, p, "b").Len())
	assert.True(t, matchFromEmpty(t, p, "c").IsEmpty())
}

func TestArrayPatternAgainstArrayValueUnionsCommutatively(t *testing.T) {
	p := ArrayPattern{"?x"}
	out1 := matchFromEmpty(t, p, []any{"a", "b"})
	out2 := matchFromEmpty(t, p, []any{"b", "a"})
	require.Equal(t, out1.Len(), out2.Len())
	assert.Equal(t, 2, out1.Len())
}

func TestArrayPatternAgainstScalarIsConjunctiveChain(t *testing.T) {
	p := ArrayPattern{"?x"}
	out := matchFromEmpty(t, p, 5)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, 5, out.ToArray()[0]["?x"])
}

func TestNamedTestStripsLeadingQuestionMarkFromKeys(t *testing.T) {
	isAdult := Test("adult", func(r map[string]any) bool {
		age, ok := r["age"].(int)
		return ok && age >= 18
	})
	p := Obj(K("age", "?age"), Splice("check", isAdult))

	out := matchFromEmpty(t, p, map[string]any{"age": 21})
	require.Equal(t, 1, out.Len())

	out2 := matchFromEmpty(t, p, map[string]any{"age": 10})
	assert.True(t, out2.IsEmpty())
}

// §9's open question: MAYBE nested directly under a splice key sees
// the containing value the splice itself would see, not a
// (nonexistent) value at the splice's literal key — so it behaves the
// same way NOT does against a splice (TestNamedTestStripsLeading...
// above exercises the same splice-forwards-containing-value path for a
// NamedTest).
func TestMaybeInsideSpliceSeesContainingValue(t *testing.T) {
	p := Obj(K("name", "?name"), Splice("opt", Maybe("anything")))

	out := matchFromEmpty(t, p, map[string]any{"name": "Rex"})
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "Rex", out.ToArray()[0]["?name"])
}

func TestObjectPatternAgainstArrayValueUnions(t *testing.T) {
	p := Obj(K("id", "?id"))
	value := []any{
		map[string]any{"id": "1"},
		map[string]any{"id": "2"},
	}
	out := matchFromEmpty(t, p, value)
	assert.Equal(t, 2, out.Len())
}

func TestLiteralKeyAbsentFailsUnlessExempt(t *testing.T) {
	p := Obj(K("missing", "x"))
	assert.True(t, matchFromEmpty(t, p, map[string]any{}).IsEmpty())

	exempt := Obj(K("missing", Null{}))
	assert.Equal(t, 1, matchFromEmpty(t, exempt, map[string]any{}).Len())

	maybeExempt := Obj(K("missing", Maybe("x")))
	assert.Equal(t, 1, matchFromEmpty(t, maybeExempt, map[string]any{}).Len())
}

func TestVariableKeyBindsEachPropertyName(t *testing.T) {
	p := Obj(K("?k", "?v"))
	value := map[string]any{"a": 1}
	out := matchFromEmpty(t, p, value)
	require.Equal(t, 1, out.Len())
	rec := out.ToArray()[0]
	assert.Equal(t, "a", rec["?k"])
	assert.Equal(t, 1, rec["?v"])
}
