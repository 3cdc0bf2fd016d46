package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrtdsii/githierarchy/internal/errs"
	"github.com/kmrtdsii/githierarchy/internal/graph"
	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
	"github.com/kmrtdsii/githierarchy/internal/reftest"
)

func TestDiscover_SegmentChainToPlainRef(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)
	c1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "base", "g": "1"}, "C1")
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, c1))

	g, err := graph.Discover(store, "feature")
	require.NoError(t, err)

	assert.Contains(t, g.Nodes, "refs/heads/feature")
	assert.Contains(t, g.Nodes, "refs/heads/main")
	assert.Equal(t, hierarchy.KindSegment, g.Nodes["refs/heads/feature"].Kind)
	assert.Equal(t, hierarchy.KindPlainRef, g.Nodes["refs/heads/main"].Kind)
	assert.Equal(t, []string{"refs/heads/main"}, g.Edges["refs/heads/feature"])
}

// TestDiscover_SumWithMissingSummandTarget confirms discovery tolerates a
// summand whose referenced branch does not exist: it is represented as
// a leaf rather than aborting the walk. Resolving it is deferred to whatever component actually
// needs its OID (preflight/rebase/summerge), not discovery itself.
func TestDiscover_SumWithMissingSummandTarget(t *testing.T) {
	store := reftest.NewMemoryStore(t)
	a := reftest.Commit(t, store, nil, map[string]string{"a": "1"}, "a")
	reftest.CreateDirectRef(t, store, "refs/heads/a", a)
	require.NoError(t, hierarchy.DefineSum(store, "combo", []string{"refs/heads/a", "refs/heads/missing"}, &a))

	g, err := graph.Discover(store, "combo")
	require.NoError(t, err)

	require.Len(t, g.Edges["refs/heads/combo"], 2)
	assert.Equal(t, "refs/heads/missing", g.Edges["refs/heads/combo"][1])
	assert.Equal(t, hierarchy.KindPlainRef, g.Nodes["refs/heads/missing"].Kind)
}

func TestTopoSort_OrdersDependenciesFirst(t *testing.T) {
	store := reftest.NewMemoryStore(t)
	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)
	c1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "base", "g": "1"}, "C1")
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, c1))

	g, err := graph.Discover(store, "feature")
	require.NoError(t, err)
	order, err := graph.TopoSort(g)
	require.NoError(t, err)

	depIdx := indexOf(order, "refs/heads/main")
	depentIdx := indexOf(order, "refs/heads/feature")
	require.GreaterOrEqual(t, depIdx, 0)
	require.GreaterOrEqual(t, depentIdx, 0)
	assert.Less(t, depIdx, depentIdx)
}

// TestTopoSort_MutualBasesAreACycle: Segment A bases on B, and B bases
// on A — a cycle. TopoSort must fail with CycleDetected rather than
// silently emitting a partial order.
func TestTopoSort_MutualBasesAreACycle(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/seed", b0)

	// A depends on B (base/A -> heads/B), B depends on A (base/B -> heads/A).
	require.NoError(t, hierarchy.DefineSegment(store, "A", "refs/heads/B", b0, b0))
	require.NoError(t, hierarchy.DefineSegment(store, "B", "refs/heads/A", b0, b0))

	g, err := graph.Discover(store, "A")
	require.NoError(t, err)

	_, err = graph.TopoSort(g)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrCycleDetected)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
