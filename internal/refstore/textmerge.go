// textmerge implements the adapter's three-way merge. Real conflict
// detection matters here: the segment rebaser and sum re-merger both
// need to know when a path did not merge cleanly so they can suspend
// or fail instead of silently producing a wrong tree.
package refstore

import (
	"bytes"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/kmrtdsii/githierarchy/internal/errs"
)

type fileSide struct {
	oid     OID
	mode    filemode.FileMode
	present bool
}

func treeFiles(tree *object.Tree) (map[string]fileSide, error) {
	out := map[string]fileSide{}
	if tree == nil {
		return out, nil
	}
	err := tree.Files().ForEach(func(f *object.File) error {
		out[f.Name] = fileSide{oid: f.Blob.Hash, mode: f.Mode, present: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// threeWayMergeTrees classifies every path across base/ours/theirs and
// builds an Index: paths only one side touched are taken verbatim,
// paths both sides touched identically are taken once, paths both sides
// touched differently go through a textual three-way merge, and paths
// that still disagree after that are staged as conflicts.
func threeWayMergeTrees(store *Store, headTree OID, base, ours, theirs *object.Tree) (*Index, error) {
	baseFiles, err := treeFiles(base)
	if err != nil {
		return nil, err
	}
	oursFiles, err := treeFiles(ours)
	if err != nil {
		return nil, err
	}
	theirsFiles, err := treeFiles(theirs)
	if err != nil {
		return nil, err
	}

	idx := newIndex(store, headTree)

	paths := make(map[string]struct{})
	for p := range baseFiles {
		paths[p] = struct{}{}
	}
	for p := range oursFiles {
		paths[p] = struct{}{}
	}
	for p := range theirsFiles {
		paths[p] = struct{}{}
	}

	for path := range paths {
		b, bOK := baseFiles[path]
		o, oOK := oursFiles[path]
		t, tOK := theirsFiles[path]

		if !oOK && !tOK {
			continue // deleted (or never present) on both sides
		}
		if oOK && tOK && o.oid == t.oid {
			idx.stage(path, o.mode, o.oid)
			continue
		}

		oursUnchanged := oOK == bOK && (!bOK || o.oid == b.oid)
		theirsUnchanged := tOK == bOK && (!bOK || t.oid == b.oid)

		switch {
		case oursUnchanged && theirsUnchanged:
			// Not reached in practice: both sides equal to the base means
			// they equal each other, which the checks above already
			// handled (and a path absent from all three was skipped). A
			// path one side added with no base version is classified as
			// changed on that side and lands in one of the cases below.
			if tOK {
				idx.stage(path, t.mode, t.oid)
			}
		case oursUnchanged && !theirsUnchanged:
			if tOK {
				idx.stage(path, t.mode, t.oid)
			} // else theirs deleted it: leave unstaged (deleted)
		case theirsUnchanged && !oursUnchanged:
			if oOK {
				idx.stage(path, o.mode, o.oid)
			}
		case !oOK || !tOK:
			// modify/delete conflict: one side removed the file, the
			// other changed its content.
			content, cerr := conflictContent(store, path, b, bOK, o, oOK, t, tOK)
			if cerr != nil {
				return nil, cerr
			}
			idx.stageConflict(path, content)
		default:
			baseText, oursText, theirsText, cerr := loadThreeTexts(store, b, bOK, o, t)
			if cerr != nil {
				return nil, cerr
			}
			merged, ok := threeWayText(baseText, oursText, theirsText)
			if !ok {
				content := markConflict(oursText, theirsText)
				idx.stageConflict(path, content)
				continue
			}
			blobOID, werr := store.writeBlob([]byte(merged))
			if werr != nil {
				return nil, werr
			}
			idx.stage(path, o.mode, blobOID)
		}
	}

	return idx, nil
}

func loadThreeTexts(store *Store, b fileSide, bOK bool, o, t fileSide) (base, ours, theirs string, err error) {
	if bOK {
		base, err = store.blobText(b.oid)
		if err != nil {
			return
		}
	}
	ours, err = store.blobText(o.oid)
	if err != nil {
		return
	}
	theirs, err = store.blobText(t.oid)
	return
}

func conflictContent(store *Store, path string, b fileSide, bOK bool, o fileSide, oOK bool, t fileSide, tOK bool) ([]byte, error) {
	var ours, theirs string
	if oOK {
		txt, err := store.blobText(o.oid)
		if err != nil {
			return nil, err
		}
		ours = txt
	} else {
		ours = "(deleted)"
	}
	if tOK {
		txt, err := store.blobText(t.oid)
		if err != nil {
			return nil, err
		}
		theirs = txt
	} else {
		theirs = "(deleted)"
	}
	return markConflict(ours, theirs), nil
}

func markConflict(ours, theirs string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<<<<<<< ours\n%s\n=======\n%s\n>>>>>>> theirs\n", ours, theirs)
	return buf.Bytes()
}

// threeWayText merges ours and theirs against base by diffing base->ours
// and reapplying that patch set onto theirs. This is a pragmatic,
// patch-based three-way merge (not a full diff3): it succeeds whenever
// the base->ours edits apply cleanly onto theirs' text, which is exactly
// the case a real three-way merge would also resolve without operator
// input; anything that fails to apply is a genuine overlapping edit.
func threeWayText(base, ours, theirs string) (string, bool) {
	if ours == theirs {
		return ours, true
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(base, ours, false)
	patches := dmp.PatchMake(base, diffs)
	merged, applied := dmp.PatchApply(patches, theirs)
	for _, ok := range applied {
		if !ok {
			return "", false
		}
	}
	return merged, true
}

func (s *Store) blobText(oid OID) (string, error) {
	blob, err := s.repo.BlobObject(oid)
	if err != nil {
		return "", fmt.Errorf("read blob %s: %w", oid, err)
	}
	r, err := blob.Reader()
	if err != nil {
		return "", err
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Store) writeBlob(content []byte) (OID, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return ZeroOID, err
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return ZeroOID, err
	}
	if err := w.Close(); err != nil {
		return ZeroOID, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

// CherryPick applies commit's (parent -> commit) delta onto headOID's
// tree, returning an Index describing the result. commit must have
// exactly one parent; the segment rebaser only ever calls this with
// commits from a linear chain (preflight already rejected the rest).
func (s *Store) CherryPick(headOID OID, commit *object.Commit) (*Index, error) {
	if commit.NumParents() != 1 {
		return nil, fmt.Errorf("cherry-pick %s: %w: expected exactly one parent", commit.Hash, errs.ErrNonLinearSegment)
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", commit.Hash, err)
	}
	headCommit, err := s.FindCommit(headOID)
	if err != nil {
		return nil, err
	}
	baseTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, err
	}
	commitTree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	if err := s.SetCherryPickHead(commit.Hash); err != nil {
		return nil, err
	}
	return threeWayMergeTrees(s, headTree.Hash, baseTree, headTree, commitTree)
}

// Merge performs an N-way merge of commits onto the current HEAD
// (headOID). For two commits it is a plain three-way merge; for more
// it applies each remaining commit pairwise against the accumulated
// result, an octopus strategy built from recursive two-way rounds.
func (s *Store) Merge(headOID OID, commits []*object.Commit) (*Index, error) {
	if len(commits) == 0 {
		return nil, fmt.Errorf("merge: %w: no commits given", errs.ErrNotFound)
	}
	headCommit, err := s.FindCommit(headOID)
	if err != nil {
		return nil, err
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, err
	}

	oursTree := headTree
	var finalIdx *Index
	for _, theirCommit := range commits {
		baseCommits, err := headCommit.MergeBase(theirCommit)
		if err != nil {
			return nil, fmt.Errorf("merge base: %w", err)
		}
		var baseTree *object.Tree
		if len(baseCommits) > 0 {
			baseTree, err = baseCommits[0].Tree()
			if err != nil {
				return nil, err
			}
		}
		theirTree, err := theirCommit.Tree()
		if err != nil {
			return nil, err
		}

		idx, err := threeWayMergeTrees(s, headTree.Hash, baseTree, oursTree, theirTree)
		if err != nil {
			return nil, err
		}
		finalIdx = mergeIndexes(finalIdx, idx)

		if idx.HasConflicts() {
			// Still fold remaining summands in for a complete conflict
			// report, but stop advancing "ours" past a conflicted tree.
			continue
		}
		nextTreeOID, err := idx.WriteTree()
		if err != nil {
			return nil, err
		}
		nextTree, err := object.GetTree(s.repo.Storer, nextTreeOID)
		if err != nil {
			return nil, err
		}
		oursTree = nextTree
	}

	if err := s.SetMergeHeads(commitHashes(commits)); err != nil {
		return nil, err
	}
	return finalIdx, nil
}

func mergeIndexes(acc, next *Index) *Index {
	if acc == nil {
		return next
	}
	for path, e := range next.entries {
		if existing, ok := acc.entries[path]; ok && existing.Conflicted {
			// path already conflicted in an earlier round; that round's
			// "ours" tree never advanced past it, so this round's
			// verdict on the same path was computed against the same
			// stale tree and doesn't resolve anything. Keep the
			// original conflict entry instead of letting a later
			// round's clean reclassification wipe its conflict-marked
			// content while acc.conflicts still lists the path.
			continue
		}
		acc.entries[path] = e
	}
	for _, p := range next.conflicts {
		acc.stageConflict(p, next.entries[p].Content)
	}
	return acc
}

func commitHashes(commits []*object.Commit) []OID {
	out := make([]OID, len(commits))
	for i, c := range commits {
		out[i] = c.Hash
	}
	return out
}
