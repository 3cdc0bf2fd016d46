package refstore

import (
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/kmrtdsii/githierarchy/internal/errs"
)

// RepoState is the repository's operation-in-progress marker. Only the
// first three are ever produced by this module; Rebase is kept in the
// enumeration because an operator may be mid native-git-rebase when
// this tool is invoked.
type RepoState int

const (
	StateClean RepoState = iota
	StateCherryPick
	StateMerge
	StateRebase
)

func (s RepoState) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateCherryPick:
		return "cherry-pick"
	case StateMerge:
		return "merge"
	case StateRebase:
		return "rebase"
	default:
		return "unknown"
	}
}

const (
	cherryPickHeadRef = plumbing.ReferenceName("CHERRY_PICK_HEAD")
	mergeHeadRef      = plumbing.ReferenceName("MERGE_HEAD")
)

// State reports the repository's current operation-in-progress marker,
// the same root-level special refs real git uses.
func (s *Store) State() RepoState {
	if _, err := s.repo.Storer.Reference(cherryPickHeadRef); err == nil {
		return StateCherryPick
	}
	if _, err := s.repo.Storer.Reference(mergeHeadRef); err == nil {
		return StateMerge
	}
	return StateClean
}

// CleanupState clears CHERRY_PICK_HEAD/MERGE_HEAD, matching "cleanup_state()".
func (s *Store) CleanupState() {
	_ = s.repo.Storer.RemoveReference(cherryPickHeadRef)
	_ = s.repo.Storer.RemoveReference(mergeHeadRef)
}

// SetCherryPickHead / SetMergeHeads / CherryPickHead expose the
// root-level special refs the resume protocol reads back as plain
// OIDs.
func (s *Store) SetCherryPickHead(oid OID) error {
	return s.repo.Storer.SetReference(plumbing.NewHashReference(cherryPickHeadRef, oid))
}

func (s *Store) CherryPickHead() (OID, error) {
	ref, err := s.repo.Storer.Reference(cherryPickHeadRef)
	if err != nil {
		return ZeroOID, fmt.Errorf("%w: CHERRY_PICK_HEAD", errs.ErrNotFound)
	}
	return ref.Hash(), nil
}

func (s *Store) SetMergeHeads(oids []OID) error {
	if len(oids) == 0 {
		return nil
	}
	return s.repo.Storer.SetReference(plumbing.NewHashReference(mergeHeadRef, oids[0]))
}

// IndexEntry is one staged path.
type IndexEntry struct {
	Path       string
	OID        OID // blob hash; zero when Conflicted.
	Mode       filemode.FileMode
	Conflicted bool
	Content    []byte // conflict-marked content, when Conflicted.
}

// Index is this module's staging-area abstraction: the result of a
// cherry-pick or merge attempt before it has been committed. It is not
// go-git's on-disk index format — go-git does not implement real
// three-way merges with conflict stages, so the adapter models its own
// staging area on top of tree/blob objects (see textmerge.go), keeping
// only what callers need: conflict flags, tree writing, emptiness, and
// entry enumeration.
type Index struct {
	store     *Store
	baseTree  OID // the tree HEAD had before this operation; for is_empty
	entries   map[string]*IndexEntry
	conflicts []string
}

func newIndex(store *Store, baseTree OID) *Index {
	return &Index{store: store, baseTree: baseTree, entries: make(map[string]*IndexEntry)}
}

// HasConflicts reports whether any path failed to merge cleanly.
func (idx *Index) HasConflicts() bool { return len(idx.conflicts) > 0 }

// ConflictedPaths returns the conflicted paths in sorted order.
func (idx *Index) ConflictedPaths() []string {
	out := append([]string(nil), idx.conflicts...)
	sort.Strings(out)
	return out
}

// Entries returns every staged entry, sorted by path.
func (idx *Index) Entries() []*IndexEntry {
	out := make([]*IndexEntry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// IsEmpty reports whether the staged tree would be identical to the
// tree HEAD already has — used by the resume protocol to tell
// "operator resolved the conflict" apart from "operator dropped the
// change entirely".
func (idx *Index) IsEmpty() (bool, error) {
	tree, err := idx.WriteTree()
	if err != nil {
		return false, err
	}
	return tree == idx.baseTree, nil
}

// WriteTree materializes the staged entries as a go-git tree object,
// refusing to proceed while conflicts remain unresolved by the caller
// (callers resolve conflicts by calling Stage to overwrite an entry,
// then WriteTree again).
func (idx *Index) WriteTree() (OID, error) {
	if idx.HasConflicts() {
		return ZeroOID, fmt.Errorf("write tree: %w: conflicted paths %v", errs.ErrMergeConflict, idx.ConflictedPaths())
	}
	tree := &object.Tree{}
	// Flat layout: githierarchy's merge/cherry-pick model operates on
	// the commit trees go-git already gave it, which enumerate full
	// paths; build a single flat tree with full path names, then let
	// nestTree (nest.go) fold it into the nested directory tree objects
	// and write them.
	for _, e := range idx.Entries() {
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: e.Path,
			Mode: e.Mode,
			Hash: e.OID,
		})
	}
	sort.Slice(tree.Entries, func(i, j int) bool { return tree.Entries[i].Name < tree.Entries[j].Name })

	nested, err := nestTree(idx.store, tree)
	if err != nil {
		return ZeroOID, fmt.Errorf("write tree: %w", err)
	}
	return nested, nil
}

// stage records (or overwrites) one path's resolution.
func (idx *Index) stage(path string, mode filemode.FileMode, oid OID) {
	idx.entries[path] = &IndexEntry{Path: path, Mode: mode, OID: oid}
	idx.clearConflict(path)
}

// stageConflict records path as conflicted, with conflict-marked content
// an operator is expected to resolve before WriteTree will succeed.
func (idx *Index) stageConflict(path string, content []byte) {
	idx.entries[path] = &IndexEntry{Path: path, Conflicted: true, Content: content}
	for _, p := range idx.conflicts {
		if p == path {
			return
		}
	}
	idx.conflicts = append(idx.conflicts, path)
}

func (idx *Index) clearConflict(path string) {
	kept := idx.conflicts[:0]
	for _, p := range idx.conflicts {
		if p != path {
			kept = append(kept, p)
		}
	}
	idx.conflicts = kept
}

// Stage lets a caller (the resume protocol, after an operator resolves
// a conflict in the worktree) overwrite one path's staged blob.
func (idx *Index) Stage(path string, mode filemode.FileMode, oid OID) {
	idx.stage(path, mode, oid)
}

// ResolveDeleted clears path's conflict without staging any content,
// the resolution an operator chooses by deleting the file outright.
func (idx *Index) ResolveDeleted(path string) {
	delete(idx.entries, path)
	idx.clearConflict(path)
}
