// Package summerge implements the sum re-merger: producing a fresh
// merge commit for a Sum whose parents are exactly its current
// summand-resolved OIDs, in summand order.
package summerge

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"

	"github.com/kmrtdsii/githierarchy/internal/errs"
	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
)

// Result reports what Reconcile did.
type Result int

const (
	ResultNothing Result = iota
	ResultMerged
)

func (r Result) String() string {
	if r == ResultMerged {
		return "merged"
	}
	return "nothing"
}

// Signature is the identity the re-merger commits as, used for both
// author and committer; the caller supplies one (engine wires it from
// config).
type Signature struct {
	Name  string
	Email string
}

// Reconcile brings Sum node up to date: a no-op when the head's
// parents already equal the resolved summands in order, a fresh merge
// commit otherwise.
func Reconcile(store *refstore.Store, node *hierarchy.Node, sig Signature, log *logrus.Entry) (Result, error) {
	if node.Kind != hierarchy.KindSum {
		return 0, fmt.Errorf("reconcile %s: %w: not a sum", node.Name, errs.ErrNotFound)
	}

	summandOIDs, err := hierarchy.ResolvedSummands(store, node)
	if err != nil {
		return 0, err
	}
	parents, err := hierarchy.ParentOIDs(store, node)
	if err != nil {
		return 0, err
	}

	if sequenceEqual(summandOIDs, parents) {
		return ResultNothing, nil
	}

	if len(summandOIDs) == 0 {
		return 0, fmt.Errorf("reconcile %s: %w: sum has no summands", node.Name, errs.ErrCorruptHierarchy)
	}

	message, err := composeMessage(store, node)
	if err != nil {
		return 0, err
	}

	// A pure reordering of the same summand set leaves nothing to merge:
	// the head's tree already is the merge of these commits. Rewrite the
	// merge commit around the existing tree with the parents permuted
	// into summand order, skipping the checkout and merge entirely.
	if perm, ok := Permutation(parents, summandOIDs); ok {
		if log != nil {
			log.WithField("sum", node.Name).WithField("permutation", perm).
				Debug("summands reordered without membership change; rewriting merge commit parent order")
		}
		reordered := append([]refstore.OID(nil), parents...)
		ReorderByPermutation(reordered, perm)
		headRef, err := store.Resolve(node.HeadName)
		if err != nil {
			return 0, err
		}
		headCommit, err := store.FindCommit(headRef.Hash())
		if err != nil {
			return 0, err
		}
		signature := object.Signature{Name: sig.Name, Email: sig.Email, When: time.Now()}
		newCommit, err := store.Commit(reordered, signature, signature, message, headCommit.TreeHash)
		if err != nil {
			return 0, err
		}
		if err := store.SetTarget(node.HeadName, newCommit, "re-merge"); err != nil {
			return 0, err
		}
		return ResultMerged, nil
	}

	if err := store.CheckoutTree(summandOIDs[0], true); err != nil {
		return 0, err
	}
	if err := store.SetHeadDetached(summandOIDs[0]); err != nil {
		return 0, err
	}

	var theirCommits []*object.Commit
	for _, oid := range summandOIDs[1:] {
		c, err := store.FindCommit(oid)
		if err != nil {
			return 0, err
		}
		theirCommits = append(theirCommits, c)
	}

	idx, err := store.Merge(summandOIDs[0], theirCommits)
	if err != nil {
		return 0, err
	}
	if idx.HasConflicts() {
		_ = store.WriteConflictFiles(idx)
		return 0, fmt.Errorf("reconcile %s: %w: conflicted paths %v", node.Name, errs.ErrMergeConflict, idx.ConflictedPaths())
	}

	treeOID, err := idx.WriteTree()
	if err != nil {
		return 0, err
	}

	signature := object.Signature{Name: sig.Name, Email: sig.Email, When: time.Now()}
	newCommit, err := store.Commit(summandOIDs, signature, signature, message, treeOID)
	if err != nil {
		return 0, err
	}

	if err := store.SetTarget(node.HeadName, newCommit, "re-merge"); err != nil {
		return 0, err
	}
	store.CleanupState()
	return ResultMerged, nil
}

// composeMessage builds "Sum: N\n\n<summand0>\n + <summand1>\n ..." using
// each summand's current target reference name (node.SummandNames holds
// the symbolic "refs/sums/N/i" names; the message shows what each one points
// at, which is what an operator actually recognizes, not a bare OID).
func composeMessage(store *refstore.Store, node *hierarchy.Node) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Sum: %s\n\n", node.Name)
	for i, s := range node.SummandNames {
		ref, err := store.ResolveDirect(s)
		if err != nil {
			return "", err
		}
		target := ref.Target().String()
		if i == 0 {
			fmt.Fprintf(&b, "%s\n", target)
			continue
		}
		fmt.Fprintf(&b, " + %s\n", target)
	}
	return b.String(), nil
}

func sequenceEqual(a, b []refstore.OID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
