// Package rebase implements the segment rebaser: replaying a Segment's
// linear commit chain on top of its current base, with a resumable
// protocol surviving process exit via the marker file.
package rebase

import (
	"fmt"

	billy "github.com/go-git/go-billy/v5"

	"github.com/kmrtdsii/githierarchy/internal/errs"
	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
)

// scratchBranch holds the in-progress replay; exclusive per
// repository, so two concurrent rebase processes are undefined.
const scratchBranch = "refs/heads/tempSegment"

// Result reports what RebaseSegment/Resume actually did.
type Result int

const (
	ResultNothing    Result = iota // already up to date.
	ResultDone                     // empty segment: start/N and heads/N advanced to the base, no commits.
	ResultRebased                  // commits replayed onto the new base.
	ResultSuspended                // stopped on conflict/failure; marker persisted.
)

func (r Result) String() string {
	switch r {
	case ResultNothing:
		return "nothing"
	case ResultDone:
		return "done"
	case ResultRebased:
		return "rebased"
	case ResultSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// RebaseSegment brings a single Segment node up to date by replaying
// its commit chain onto the base's current commit.
func RebaseSegment(store *refstore.Store, node *hierarchy.Node) (Result, error) {
	upToDate, err := hierarchy.IsUpToDate(store, node)
	if err != nil {
		return 0, err
	}
	if upToDate {
		return ResultNothing, nil
	}

	empty, err := hierarchy.IsEmpty(store, node)
	if err != nil {
		return 0, err
	}
	baseRef, err := store.Resolve(node.BaseName)
	if err != nil {
		return 0, err
	}
	if empty {
		if err := hierarchy.SetStart(store, node, baseRef.Hash()); err != nil {
			return 0, err
		}
		if err := store.SetTarget(node.HeadName, baseRef.Hash(), "Rebased"); err != nil {
			return 0, err
		}
		return ResultDone, nil
	}

	if store.State() != refstore.StateClean {
		return 0, fmt.Errorf("rebase %s: %w", node.Name, errs.ErrWrongState)
	}

	fs, hasFS := store.CommonDirFS()
	startRef, err := store.Resolve(node.StartName)
	if err != nil {
		return 0, err
	}
	baseTargetRef, err := store.ResolveDirect(node.BaseName)
	if err != nil {
		return 0, err
	}
	digest := Digest(startRef.Hash(), baseTargetRef.Target().String())
	if hasFS {
		if err := Write(fs, node.Name, digest); err != nil {
			return 0, err
		}
	}

	baseOID := baseRef.Hash()
	if _, err := store.CreateDirect(scratchBranch, baseOID, true, "segment-rebase"); err != nil {
		return 0, err
	}
	if err := store.CheckoutTree(baseOID, true); err != nil {
		return 0, err
	}
	if err := store.SetHeadDetached(baseOID); err != nil {
		return 0, err
	}

	commits, err := hierarchy.Walk(store, node)
	if err != nil {
		return 0, err
	}

	finalParent, rerr := replayCommits(store, fs, hasFS, commits, 0, baseOID)
	if rerr != nil {
		return ResultSuspended, rerr
	}
	return finish(store, fs, hasFS, node, finalParent)
}

// Resume continues a suspended segment rebase. It reads the marker itself
// (the caller need not know which segment was mid-rebase) and returns
// the segment name alongside the result.
func Resume(store *refstore.Store) (string, Result, error) {
	fs, hasFS := store.CommonDirFS()
	if !hasFS {
		return "", 0, fmt.Errorf("resume: %w: no common directory available", errs.ErrIO)
	}
	if !Exists(fs) {
		return "", 0, fmt.Errorf("resume: %w: no resume marker present", errs.ErrNotFound)
	}
	marker, err := Read(fs)
	if err != nil {
		return "", 0, err
	}

	node, err := hierarchy.Load(store, marker.SegmentName)
	if err != nil {
		return "", 0, err
	}
	if node.Kind != hierarchy.KindSegment {
		return "", 0, fmt.Errorf("resume %s: %w: not a segment", marker.SegmentName, errs.ErrCorruptHierarchy)
	}

	startRef, err := store.Resolve(node.StartName)
	if err != nil {
		return "", 0, err
	}
	baseTargetRef, err := store.ResolveDirect(node.BaseName)
	if err != nil {
		return "", 0, err
	}
	expected := Digest(startRef.Hash(), baseTargetRef.Target().String())
	if expected != marker.Digest {
		return "", 0, fmt.Errorf("resume %s: %w: marker is stale, start or base moved since suspension", node.Name, errs.ErrCorruptHierarchy)
	}

	commits, err := hierarchy.Walk(store, node)
	if err != nil {
		return "", 0, err
	}

	var parent refstore.OID
	var startIdx int

	switch store.State() {
	case refstore.StateCherryPick:
		csOID, err := store.CherryPickHead()
		if err != nil {
			return "", 0, err
		}
		csCommit, err := store.FindCommit(csOID)
		if err != nil {
			return "", 0, err
		}
		headRef, err := store.Resolve("HEAD")
		if err != nil {
			return "", 0, err
		}
		parent = headRef.Hash()

		idx, err := store.CherryPick(parent, csCommit)
		if err != nil {
			return "", 0, err
		}
		if err := store.ResolveConflictsFromWorktree(idx); err != nil {
			return "", 0, err
		}
		empty, err := idx.IsEmpty()
		if err != nil {
			return "", 0, err
		}
		if !empty {
			treeOID, err := idx.WriteTree()
			if err != nil {
				return "", 0, err
			}
			newCommit, err := store.Commit([]refstore.OID{parent}, csCommit.Author, csCommit.Committer, csCommit.Message, treeOID)
			if err != nil {
				return "", 0, err
			}
			if err := store.SetHeadDetached(newCommit); err != nil {
				return "", 0, err
			}
			if err := Append(fs, 0, csOID); err != nil {
				return "", 0, err
			}
			parent = newCommit
		}
		store.CleanupState()

		startIdx = len(commits)
		for i, c := range commits {
			if c == csOID {
				startIdx = i + 1
				break
			}
		}

	case refstore.StateClean:
		if len(marker.Entries) == 0 {
			return "", 0, fmt.Errorf("resume %s: %w: marker has no entries", node.Name, errs.ErrCorruptHierarchy)
		}
		last := marker.Entries[len(marker.Entries)-1]
		headRef, err := store.Resolve("HEAD")
		if err != nil {
			return "", 0, err
		}
		parent = headRef.Hash()

		startIdx = len(commits)
		for i, c := range commits {
			if c == last.OID {
				if last.Status == 0 {
					startIdx = i + 1
				} else {
					startIdx = i
				}
				break
			}
		}

	default:
		return "", 0, fmt.Errorf("resume %s: %w", node.Name, errs.ErrWrongState)
	}

	finalParent, rerr := replayCommits(store, fs, hasFS, commits, startIdx, parent)
	if rerr != nil {
		return node.Name, ResultSuspended, rerr
	}
	result, err := finish(store, fs, hasFS, node, finalParent)
	return node.Name, result, err
}

// replayCommits is the cherry-pick loop shared between a fresh rebase
// and a resumed one.
func replayCommits(store *refstore.Store, fs billy.Filesystem, hasFS bool, commits []refstore.OID, startIdx int, parent refstore.OID) (refstore.OID, error) {
	for i := startIdx; i < len(commits); i++ {
		c := commits[i]
		commit, err := store.FindCommit(c)
		if err != nil {
			return parent, err
		}

		idx, err := store.CherryPick(parent, commit)
		if err != nil {
			if hasFS {
				_ = Append(fs, 1, c)
			}
			return parent, err
		}
		if idx.HasConflicts() {
			if hasFS {
				_ = Append(fs, 1, c)
			}
			if werr := store.WriteConflictFiles(idx); werr != nil {
				return parent, werr
			}
			return parent, fmt.Errorf("cherry-pick %s: %w", c, errs.ErrMergeConflict)
		}

		treeOID, err := idx.WriteTree()
		if err != nil {
			return parent, err
		}
		parentCommit, err := store.FindCommit(parent)
		if err != nil {
			return parent, err
		}
		parentTree, err := parentCommit.Tree()
		if err != nil {
			return parent, err
		}
		if treeOID == parentTree.Hash {
			// Empty cherry-pick: the change is already absorbed by the
			// new base. Dropped silently.
			store.CleanupState()
			if hasFS {
				if err := Append(fs, 0, c); err != nil {
					return parent, err
				}
			}
			continue
		}

		newCommit, err := store.Commit([]refstore.OID{parent}, commit.Author, commit.Committer, commit.Message, treeOID)
		if err != nil {
			return parent, err
		}
		if err := store.SetHeadDetached(newCommit); err != nil {
			return parent, err
		}
		store.CleanupState()
		if hasFS {
			if err := Append(fs, 0, c); err != nil {
				return parent, err
			}
		}
		parent = newCommit
	}
	return parent, nil
}

// finish lands heads/N and start/N, points HEAD back at the branch,
// and cleans up the scratch branch and marker.
func finish(store *refstore.Store, fs billy.Filesystem, hasFS bool, node *hierarchy.Node, finalParent refstore.OID) (Result, error) {
	if err := store.SetTarget(node.HeadName, finalParent, "Rebased"); err != nil {
		return 0, err
	}
	baseRef, err := store.Resolve(node.BaseName)
	if err != nil {
		return 0, err
	}
	if err := store.SetTarget(node.StartName, baseRef.Hash(), "Rebased"); err != nil {
		return 0, err
	}
	if err := store.SetHead(node.HeadName); err != nil {
		return 0, err
	}
	_ = store.Delete(scratchBranch)
	if hasFS {
		if err := Delete(fs); err != nil {
			return 0, err
		}
	}
	return ResultRebased, nil
}
