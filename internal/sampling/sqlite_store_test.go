package sampling

import (
	"path/filepath"
	"testing"

	"flowlab.dev/flowlab/internal/flowkey"
	"github.com/stretchr/testify/require"
)

func openTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "samples.db")
	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTripsSample(t *testing.T) {
	store := openTestSQLiteStore(t)

	id, err := store.Add(FlowSample{
		FlowID:     flowkey.ID(42),
		ArrivalNS:  []int64{0, 10, 25},
		Delta:      []int64{0, 10, 15},
		MissMIN:    []int64{1},
		MissSim:    []int64{0, 1},
		DstCountry: "US",
	})
	require.NoError(t, err)

	got, ok := store.Flow(id)
	require.True(t, ok)
	require.Equal(t, flowkey.ID(42), got.FlowID)
	require.Equal(t, []int64{0, 10, 25}, got.ArrivalNS)
	require.Equal(t, []int64{0, 10, 15}, got.Delta)
	require.Equal(t, []int64{1}, got.MissMIN)
	require.Equal(t, []int64{0, 1}, got.MissSim)
	require.Equal(t, "US", got.DstCountry)
}

func TestSQLiteStoreNumFlowsAndFlowIDs(t *testing.T) {
	store := openTestSQLiteStore(t)

	id1, err := store.Add(FlowSample{FlowID: flowkey.ID(1)})
	require.NoError(t, err)
	id2, err := store.Add(FlowSample{FlowID: flowkey.ID(2)})
	require.NoError(t, err)

	require.EqualValues(t, 2, store.NumFlows())
	require.Equal(t, []int64{id1, id2}, store.FlowIDs())
}

func TestSQLiteStoreUnknownFlowMisses(t *testing.T) {
	store := openTestSQLiteStore(t)
	_, ok := store.Flow(999)
	require.False(t, ok)
}

func TestSQLiteStoreClientRoundTrip(t *testing.T) {
	store := openTestSQLiteStore(t)
	id, err := store.Add(FlowSample{FlowID: flowkey.ID(3), Delta: []int64{0, -5}})
	require.NoError(t, err)

	c := NewClient(store)
	require.Equal(t, []int64{0, -5}, c.GetFlowDelta(id))
}
