package hierarchy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/reftest"
)

func TestDefineSegmentAndLoad(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	base := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base commit")
	reftest.CreateDirectRef(t, store, "refs/heads/main", base)

	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", base, base))

	node, err := hierarchy.Load(store, "feature")
	require.NoError(t, err)
	assert.Equal(t, hierarchy.KindSegment, node.Kind)
	assert.Equal(t, "refs/heads/feature", node.FullName())

	empty, err := hierarchy.IsEmpty(store, node)
	require.NoError(t, err)
	assert.True(t, empty)

	upToDate, err := hierarchy.IsUpToDate(store, node)
	require.NoError(t, err)
	assert.True(t, upToDate)
}

func TestSegmentDependsOnItsBaseTarget(t *testing.T) {
	store := reftest.NewMemoryStore(t)
	base := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/main", base)
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", base, base))

	node, err := hierarchy.Load(store, "feature")
	require.NoError(t, err)
	deps, err := node.DependencyNames(store)
	require.NoError(t, err)
	assert.Equal(t, []string{"refs/heads/main"}, deps)
}

func TestDefineSumAndResolvedSummands(t *testing.T) {
	store := reftest.NewMemoryStore(t)
	a := reftest.Commit(t, store, nil, map[string]string{"a": "1"}, "a")
	b := reftest.Commit(t, store, nil, map[string]string{"b": "1"}, "b")
	reftest.CreateDirectRef(t, store, "refs/heads/a", a)
	reftest.CreateDirectRef(t, store, "refs/heads/b", b)

	require.NoError(t, hierarchy.DefineSum(store, "combo", []string{"refs/heads/a", "refs/heads/b"}, nil))

	node, err := hierarchy.Load(store, "combo")
	require.NoError(t, err)
	assert.Equal(t, hierarchy.KindSum, node.Kind)
	assert.Equal(t, []string{"refs/sums/combo/0", "refs/sums/combo/1"}, node.SummandNames)

	summands, err := hierarchy.ResolvedSummands(store, node)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{a, b}, []interface{}{summands[0], summands[1]})
}

func TestDefineSumDanglingSummandDoesNotFailDiscovery(t *testing.T) {
	store := reftest.NewMemoryStore(t)
	a := reftest.Commit(t, store, nil, map[string]string{"a": "1"}, "a")
	reftest.CreateDirectRef(t, store, "refs/heads/a", a)
	require.NoError(t, hierarchy.DefineSum(store, "combo", []string{"refs/heads/a", "refs/heads/missing"}, nil))

	node, err := hierarchy.Load(store, "combo")
	require.NoError(t, err)
	deps, err := node.DependencyNames(store)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.True(t, hierarchy.IsDanglingName(deps[1]))
}

func TestDeleteSegment(t *testing.T) {
	store := reftest.NewMemoryStore(t)
	base := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/main", base)
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", base, base))

	node, err := hierarchy.Load(store, "feature")
	require.NoError(t, err)
	require.NoError(t, hierarchy.Delete(store, node))

	loaded, err := hierarchy.Load(store, "feature")
	require.NoError(t, err)
	assert.Equal(t, hierarchy.KindPlainRef, loaded.Kind)
}

func TestLoadPlainRefForUnknownName(t *testing.T) {
	store := reftest.NewMemoryStore(t)
	node, err := hierarchy.Load(store, "refs/heads/whatever")
	require.NoError(t, err)
	assert.Equal(t, hierarchy.KindPlainRef, node.Kind)
}
