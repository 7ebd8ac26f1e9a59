package testutil

import (
	"bytes"
	"testing"

	"github.com/hupe1980/relstash/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset(t *testing.T) {
	rng := NewRNG(4711)

	ds := rng.Dataset(DatasetConfig{Nodes: 20, Ways: 10, Relations: 8, MaxMembers: 5})

	assert.Len(t, ds.Nodes, 20)
	assert.Len(t, ds.Ways, 10)
	assert.Len(t, ds.Relations, 8)
	for _, rel := range ds.Relations {
		assert.NotEmpty(t, rel.Members)
		assert.LessOrEqual(t, len(rel.Members), 5)
		_, ok := rel.Tag("type")
		assert.True(t, ok)
	}

	objs := ds.Objects()
	require.Len(t, objs, 38)
	assert.Equal(t, osm.NodeType, objs[0].Type)
	assert.Equal(t, osm.WayType, objs[20].Type)
	assert.Equal(t, osm.RelationType, objs[37].Type)
}

func TestDataset_Deterministic(t *testing.T) {
	cfg := DatasetConfig{Nodes: 10, Ways: 10, Relations: 10, MaxMembers: 3, MissingRate: 0.2}

	rng := NewRNG(4711)
	a, err := rng.Dataset(cfg).NDJSON()
	require.NoError(t, err)

	rng.Reset()
	b, err := rng.Dataset(cfg).NDJSON()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 40, bytes.Count(a, []byte("\n")))
}

func TestDataset_Split(t *testing.T) {
	rng := NewRNG(1)

	all := rng.Dataset(DatasetConfig{Nodes: 5, Ways: 5, Relations: 10, MaxMembers: 3})
	complete, incomplete := all.Split(nil)
	assert.Len(t, complete, 10)
	assert.Empty(t, incomplete)

	none := rng.Dataset(DatasetConfig{Nodes: 5, Ways: 5, Relations: 10, MaxMembers: 3, MissingRate: 1})
	complete, incomplete = none.Split(nil)
	assert.Empty(t, complete)
	assert.Len(t, incomplete, 10)

	complete, incomplete = all.Split(func(*osm.Relation) bool { return false })
	assert.Empty(t, complete)
	assert.Empty(t, incomplete)
}

func TestZipf(t *testing.T) {
	rng := NewRNG(4711)

	counts := make([]int, 10)
	for range 2000 {
		k := rng.Zipf(10, 1.5)
		require.GreaterOrEqual(t, k, 0)
		require.Less(t, k, 10)
		counts[k]++
	}
	assert.Greater(t, counts[0], counts[9])
	assert.Equal(t, 0, rng.Zipf(1, 1.5))
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	assert.Equal(t, int64(4711), rng.Seed())

	a := rng.Bytes(16)
	rng.Reset()
	assert.Equal(t, a, rng.Bytes(16))
}
