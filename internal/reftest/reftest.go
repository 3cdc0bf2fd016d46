// Package reftest builds small in-memory repositories for the rest of
// this module's test suites: a disposable sandbox repository over
// memfs, torn down with the test.
package reftest

import (
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/kmrtdsii/githierarchy/internal/refstore"
)

var sig = object.Signature{Name: "test", Email: "test@example.com", When: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

// NewMemoryStore returns a Store over a brand-new repository whose
// object/reference store and worktree both live on memfs. The storage
// layer is filesystem.Storage (over memfs) rather than memory.Storage:
// the resume marker lives in the repository's common directory, so the
// store must actually have one for CommonDirFS to hand out. The memfs
// worktree gives the rebaser and re-merger's checkout and conflict-file
// operations somewhere to write; a bare repository would fail every
// CheckoutTree call.
func NewMemoryStore(t *testing.T) *refstore.Store {
	t.Helper()
	st := filesystem.NewStorage(memfs.New(), cache.NewObjectLRUDefault())
	repo, err := gogit.Init(st, memfs.New())
	require.NoError(t, err)
	log := logrus.NewEntry(logrus.New())
	return refstore.Open(repo, log)
}

// Commit writes files (path -> content, single flat directory for
// simplicity) as a new commit parented at parents, returning its OID.
func Commit(t *testing.T, store *refstore.Store, parents []refstore.OID, files map[string]string, message string) refstore.OID {
	t.Helper()
	treeOID := writeFlatTree(t, store, files)
	oid, err := store.Commit(parents, sig, sig, message, treeOID)
	require.NoError(t, err)
	return oid
}

func writeFlatTree(t *testing.T, store *refstore.Store, files map[string]string) refstore.OID {
	t.Helper()
	tree := &object.Tree{}
	for path, content := range files {
		blobOID := writeBlob(t, store, content)
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: path, Mode: filemode.Regular, Hash: blobOID})
	}
	sort.Slice(tree.Entries, func(i, j int) bool { return tree.Entries[i].Name < tree.Entries[j].Name })
	obj := store.Repository().Storer.NewEncodedObject()
	obj.SetType(plumbing.TreeObject)
	require.NoError(t, tree.Encode(obj))
	oid, err := store.Repository().Storer.SetEncodedObject(obj)
	require.NoError(t, err)
	return oid
}

func writeBlob(t *testing.T, store *refstore.Store, content string) refstore.OID {
	t.Helper()
	obj := store.Repository().Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	oid, err := store.Repository().Storer.SetEncodedObject(obj)
	require.NoError(t, err)
	return oid
}

// CreateDirectRef is a small wrapper so tests read less ceremonially.
func CreateDirectRef(t *testing.T, store *refstore.Store, name string, oid refstore.OID) {
	t.Helper()
	_, err := store.CreateDirect(name, oid, false, "reftest")
	require.NoError(t, err)
}

// CreateSymbolicRef is a small wrapper so tests read less ceremonially.
func CreateSymbolicRef(t *testing.T, store *refstore.Store, name, target string) {
	t.Helper()
	_, err := store.CreateSymbolic(name, target, false, "reftest")
	require.NoError(t, err)
}
