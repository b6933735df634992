package persist

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTripsThroughJSON(t *testing.T) {
	snap := Snapshot{
		Entity: map[string]map[string]map[string]any{
			"Widget": {"1": {"name": "A"}},
		},
		Version:  map[string]map[string]int{"Widget": {"1": 1}},
		TypeByID: map[string]string{"1": "Widget"},
		BasisT:   3,
	}

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, snap.BasisT, decoded.BasisT)
	assert.Equal(t, snap.TypeByID, decoded.TypeByID)
	assert.Equal(t, "A", decoded.Entity["Widget"]["1"]["name"])
}
