package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAdaptor() *LinearAdaptor {
	a := NewLinearAdaptor()
	_ = a.Index("1", "Person", map[string]any{"name": "Alice Anderson", "city": "Boston"})
	_ = a.Index("2", "Person", map[string]any{"name": "Bob Baker", "city": "Seattle"})
	_ = a.Index("3", "Widget", map[string]any{"name": "Gadget"})
	return a
}

func TestQueryMatchesSubstringAcrossStringAttributes(t *testing.T) {
	a := seedAdaptor()

	hits, err := a.Query("Anderson", Options{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1", hits[0].ID)
}

func TestQueryFiltersByType(t *testing.T) {
	a := seedAdaptor()

	hits, err := a.Query("", Options{Type: "Widget"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "3", hits[0].ID)
}

func TestQueryAppliesCallerFilter(t *testing.T) {
	a := seedAdaptor()

	hits, err := a.Query("", Options{
		Type: "Person",
		Filter: func(attrs map[string]any) bool {
			return attrs["city"] == "Seattle"
		},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2", hits[0].ID)
}

func TestQueryHonorsOffsetAndLimit(t *testing.T) {
	a := seedAdaptor()

	hits, err := a.Query("", Options{Type: "Person", Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRemoveDropsTheEntryFromSubsequentQueries(t *testing.T) {
	a := seedAdaptor()

	require.NoError(t, a.Remove("1", "Person"))

	hits, err := a.Query("Anderson", Options{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
