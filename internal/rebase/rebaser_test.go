package rebase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/rebase"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
	"github.com/kmrtdsii/githierarchy/internal/reftest"
)

// TestRebaseSegment_SingleCommitOntoMovedBase: a single-commit segment
// whose base advances by one commit.
func TestRebaseSegment_SingleCommitOntoMovedBase(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base commit")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)

	c1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "base", "g": "feature"}, "C1")
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, c1))

	b1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "base2"}, "B1")
	require.NoError(t, store.SetTarget("refs/heads/main", b1, "advance"))

	node, err := hierarchy.Load(store, "feature")
	require.NoError(t, err)

	result, err := rebase.RebaseSegment(store, node)
	require.NoError(t, err)
	assert.Equal(t, rebase.ResultRebased, result)

	node2, err := hierarchy.Load(store, "feature")
	require.NoError(t, err)
	upToDate, err := hierarchy.IsUpToDate(store, node2)
	require.NoError(t, err)
	assert.True(t, upToDate)

	startRef, err := store.Resolve("refs/start/feature")
	require.NoError(t, err)
	assert.Equal(t, b1, startRef.Hash())

	headRef, err := store.Resolve("refs/heads/feature")
	require.NoError(t, err)
	newCommit, err := store.FindCommit(headRef.Hash())
	require.NoError(t, err)
	assert.Equal(t, "C1", newCommit.Message)
	assert.Equal(t, []refstore.OID{b1}, newCommit.ParentHashes)
	assert.NotEqual(t, c1, newCommit.Hash)
}

// TestRebaseSegment_EmptySegmentAdvancesStart: an empty segment (no
// commits of its own) simply advances start/N and heads/N to the new
// base tip when the base moves, with no new commits created.
func TestRebaseSegment_EmptySegmentAdvancesStart(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base commit")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, b0))

	b1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "base2"}, "B1")
	require.NoError(t, store.SetTarget("refs/heads/main", b1, "advance"))

	node, err := hierarchy.Load(store, "feature")
	require.NoError(t, err)

	result, err := rebase.RebaseSegment(store, node)
	require.NoError(t, err)
	assert.Equal(t, rebase.ResultDone, result)

	startRef, err := store.Resolve("refs/start/feature")
	require.NoError(t, err)
	assert.Equal(t, b1, startRef.Hash())

	headRef, err := store.Resolve("refs/heads/feature")
	require.NoError(t, err)
	assert.Equal(t, b1, headRef.Hash())
}

// TestRebaseSegment_AlreadyUpToDate: rebasing a segment whose base has
// not moved is a no-op, so back-to-back rebases write nothing new.
func TestRebaseSegment_AlreadyUpToDate(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base commit")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)
	c1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "base", "g": "1"}, "C1")
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, c1))

	node, err := hierarchy.Load(store, "feature")
	require.NoError(t, err)

	result, err := rebase.RebaseSegment(store, node)
	require.NoError(t, err)
	assert.Equal(t, rebase.ResultNothing, result)

	headRef, err := store.Resolve("refs/heads/feature")
	require.NoError(t, err)
	assert.Equal(t, c1, headRef.Hash())
}

// TestRebaseSegment_ConflictSuspendsAndResumes: a three-commit segment
// whose second commit conflicts. The first invocation suspends with a
// marker; once the operator stages a resolution in the worktree, Resume
// picks up from C2 and applies C3, landing heads/N and start/N.
func TestRebaseSegment_ConflictSuspendsAndResumes(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)

	// C1 touches only "a"; C2 deletes "f"; C3 only adds "b". The base
	// moves "f" independently, so cherry-picking C2 is a deterministic
	// modify/delete conflict on "f" (one side removed it, the other
	// changed it) rather than depending on textual-merge fuzziness.
	c1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "base", "a": "1"}, "C1")
	c2 := reftest.Commit(t, store, []refstore.OID{c1}, map[string]string{"a": "1"}, "C2")
	c3 := reftest.Commit(t, store, []refstore.OID{c2}, map[string]string{"a": "1", "b": "1"}, "C3")
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, c3))

	b1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "changed-by-base"}, "B1")
	require.NoError(t, store.SetTarget("refs/heads/main", b1, "advance"))

	node, err := hierarchy.Load(store, "feature")
	require.NoError(t, err)

	_, err = rebase.RebaseSegment(store, node)
	require.Error(t, err)
	assert.Equal(t, refstore.StateCherryPick, store.State())

	fs, ok := store.CommonDirFS()
	require.True(t, ok)
	require.True(t, rebase.Exists(fs))

	marker, err := rebase.Read(fs)
	require.NoError(t, err)
	assert.Equal(t, "feature", marker.SegmentName)
	require.Len(t, marker.Entries, 2)
	assert.Equal(t, 0, marker.Entries[0].Status)
	assert.Equal(t, c1, marker.Entries[0].OID)
	assert.Equal(t, 1, marker.Entries[1].Status)
	assert.Equal(t, c2, marker.Entries[1].OID)

	// Operator resolves the conflict the way C2 itself intended: by
	// deleting "f" from the worktree.
	wfs, err := store.WorktreeFS()
	require.NoError(t, err)
	require.NoError(t, wfs.Remove("f"))

	name, result, err := rebase.Resume(store)
	require.NoError(t, err)
	assert.Equal(t, "feature", name)
	assert.Equal(t, rebase.ResultRebased, result)
	assert.False(t, rebase.Exists(fs))

	headRef, err := store.Resolve("refs/heads/feature")
	require.NoError(t, err)
	finalCommit, err := store.FindCommit(headRef.Hash())
	require.NoError(t, err)
	assert.Equal(t, "C3", finalCommit.Message)

	startRef, err := store.Resolve("refs/start/feature")
	require.NoError(t, err)
	assert.Equal(t, b1, startRef.Hash())
}

// TestRebaseSegment_EmptyCherryPickSkippedSilently: a commit whose
// tree delta is already absorbed into the new base is dropped without
// creating a new commit.
func TestRebaseSegment_EmptyCherryPickSkippedSilently(t *testing.T) {
	store := reftest.NewMemoryStore(t)

	b0 := reftest.Commit(t, store, nil, map[string]string{"f": "base"}, "base")
	reftest.CreateDirectRef(t, store, "refs/heads/main", b0)

	c1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "changed"}, "C1")
	require.NoError(t, hierarchy.DefineSegment(store, "feature", "refs/heads/main", b0, c1))

	// Base advances to exactly the same content C1 already carries: the
	// cherry-pick of C1 on top of b1 is a no-op tree-wise.
	b1 := reftest.Commit(t, store, []refstore.OID{b0}, map[string]string{"f": "changed"}, "B1")
	require.NoError(t, store.SetTarget("refs/heads/main", b1, "advance"))

	node, err := hierarchy.Load(store, "feature")
	require.NoError(t, err)

	result, err := rebase.RebaseSegment(store, node)
	require.NoError(t, err)
	assert.Equal(t, rebase.ResultRebased, result)

	headRef, err := store.Resolve("refs/heads/feature")
	require.NoError(t, err)
	// The empty cherry-pick was skipped: heads/feature now points at b1
	// itself, not at a new commit parented on it.
	assert.Equal(t, b1, headRef.Hash())
}
