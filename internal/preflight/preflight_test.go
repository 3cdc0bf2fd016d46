package preflight_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrtdsii/githierarchy/internal/errs"
	"github.com/kmrtdsii/githierarchy/internal/graph"
	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/preflight"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
	"github.com/kmrtdsii/githierarchy/internal/reftest"
)

// TestCheck_MergeInChainIsNonLinear: a Segment whose (start, head]
// chain contains a merge commit fails preflight with NonLinearSegment
// before any mutation.
func TestCheck_MergeInChainIsNonLinear(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)

	side := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"g": "1"}, "side")
	onChain := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"h": "1"}, "on-chain")
	merge := reftest.Commit(t, store, []refstore.OID{onChain, side}, map[string]string{"g": "1", "h": "1"}, "merge commit")

	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, merge))

	g, err := graph.Discover(store, "feature")
	require.NoError(t, err)

	v, err := preflight.Check(store, g, nil)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.ErrorIs(t, v.Err, errs.ErrNonLinearSegment)
}

// TestCheck_SumNotAMerge covers a Sum whose head is not actually a
// merge commit (fewer than two parents).
func TestCheck_SumNotAMerge(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	a := reftest.Commit(t, store, nil, map[string]string{"a": "1"}, "a")
	b := reftest.Commit(t, store, nil, map[string]string{"b": "1"}, "b")
	reftest.CreateDirectRef(t, store, "refs/heads/a", a)
	reftest.CreateDirectRef(t, store, "refs/heads/b", b)

	require.NoError(t, hierarchy.DefineSum(store, "combo", []string{"refs/heads/a", "refs/heads/b"}, &a))

	g, err := graph.Discover(store, "combo")
	require.NoError(t, err)

	v, err := preflight.Check(store, g, nil)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.ErrorIs(t, v.Err, errs.ErrNotAMerge)
}

// TestCheck_PassesForConsistentGraph ensures a clean Segment+Sum graph
// raises no violation.
func TestCheck_PassesForConsistentGraph(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)
	c1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "base", "g": "1"}, "C1")
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, c1))

	g, err := graph.Discover(store, "feature")
	require.NoError(t, err)

	v, err := preflight.Check(store, g, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

// TestCheck_IgnoreSetSkipsVertex confirms a vertex named in the ignore
// set is not checked, even though it would otherwise fail.
func TestCheck_IgnoreSetSkipsVertex(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)
	side := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"g": "1"}, "side")
	onChain := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"h": "1"}, "on-chain")
	merge := reftest.Commit(t, store, []refstore.OID{onChain, side}, map[string]string{"g": "1", "h": "1"}, "merge commit")
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, merge))

	g, err := graph.Discover(store, "feature")
	require.NoError(t, err)

	v, err := preflight.Check(store, g, map[string]bool{"refs/heads/feature": true})
	require.NoError(t, err)
	assert.Nil(t, v)
}
