package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrtdsii/githierarchy/internal/graph"
	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
	"github.com/kmrtdsii/githierarchy/internal/reftest"
)

// TestDownstream_FindsDependentSegment: given a leaf, report every
// Segment/Sum that transitively depends on it.
func TestDownstream_FindsDependentSegment(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)
	c1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "base", "g": "1"}, "C1")
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, c1))

	c2 := reftest.Commit(t, store, []refstore.OID{c1}, map[string]string{"f": "base", "g": "1", "h": "1"}, "C2")
	require.NoError(t, hierarchy.DefineSegment(store, "stacked", "refs/heads/feature", c1, c2))

	downstreamOfMain, err := graph.Downstream(store, "refs/heads/main")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"feature", "stacked"}, downstreamOfMain)

	downstreamOfFeature, err := graph.Downstream(store, "feature")
	require.NoError(t, err)
	assert.Equal(t, []string{"stacked"}, downstreamOfFeature)
}

func TestDownstream_NoDependentsIsEmpty(t *testing.T) {
	store := reftest.NewMemoryStore(t)
	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)
	c1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "base", "g": "1"}, "C1")
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, c1))

	downstream, err := graph.Downstream(store, "feature")
	require.NoError(t, err)
	assert.Empty(t, downstream)
}
