package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeParseRoundTripsStructuralShape(t *testing.T) {
	p := Obj(
		K("id", "?id"),
		K("tags", ArrayPattern{"?tag"}),
		Splice("status-or-missing", Or("active", Not("archived"))),
	)

	serialized, err := Serialize(p)
	require.NoError(t, err)

	parsed, err := Parse(serialized, nil)
	require.NoError(t, err)

	reParsed, ok := parsed.(ObjectPattern)
	require.True(t, ok)
	require.Len(t, reParsed, 3)
	assert.Equal(t, "id", reParsed[0].Key)
	assert.Equal(t, "?id", reParsed[0].Pattern)
	assert.Equal(t, "tags", reParsed[1].Key)
	assert.Equal(t, ArrayPattern{"?tag"}, reParsed[1].Pattern)
	assert.True(t, IsSpliceKey(reParsed[2].Key))
}

func TestNamedTestRoundTripsOnlyWithRegistry(t *testing.T) {
	called := false
	reg := Registry{
		"adult": func(r map[string]any) bool {
			called = true
			age, _ := r["age"].(int)
			return age >= 18
		},
	}
	p := Test("adult", reg["adult"])

	serialized, err := Serialize(p)
	require.NoError(t, err)

	_, err = Parse(serialized, nil)
	assert.Error(t, err)

	parsed, err := Parse(serialized, reg)
	require.NoError(t, err)
	nt, ok := parsed.(NamedTest)
	require.True(t, ok)
	assert.True(t, nt.Fn(map[string]any{"age": 21}))
	assert.True(t, called)
}
