// Package hierarchy models Segments and Sums entirely as reference
// names inside a refstore.Store. There is no separate database: the
// reference namespace is the persistence layer.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/kmrtdsii/githierarchy/internal/errs"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
)

// The hierarchy namespaces live under git's refs/ hierarchy so the
// underlying reference machinery (loose-ref files, packed-refs,
// enumeration) treats them as ordinary references: heads/N is the
// branch refs/heads/N, and base/start/sums get their own refs/
// subtrees alongside it.
const (
	nsHeads = "refs/heads/"
	nsBase  = "refs/base/"
	nsStart = "refs/start/"
	nsSums  = "refs/sums/"
)

// Kind distinguishes the four node shapes a name can load into.
type Kind int

const (
	KindSegment Kind = iota
	KindSum
	KindPlainRef
	KindUnresolved
)

func (k Kind) String() string {
	switch k {
	case KindSegment:
		return "segment"
	case KindSum:
		return "sum"
	case KindPlainRef:
		return "plain-ref"
	default:
		return "unresolved"
	}
}

// Node is the in-memory hierarchy node: a Segment, a Sum,
// a PlainRef, or an Unresolved placeholder. Callers switch on Kind and
// read only the fields that kind populates.
type Node struct {
	Kind Kind
	Name string // full reference name this node was loaded from, e.g. "refs/heads/feature-x" or a short hierarchy name.

	// Segment fields.
	HeadName  string // "refs/heads/N"
	BaseName  string // "refs/base/N" (symbolic)
	StartName string // "refs/start/N"

	// Sum fields.
	SummandNames []string // "refs/sums/N/0", "refs/sums/N/1", ...

	// PlainRef field.
	PlainRefName string
}

// DependencyNames returns the full reference names this node directly
// depends on: a Segment's base target, or a Sum's summand targets. Used
// verbatim by graph discovery.
func (n *Node) DependencyNames(store *refstore.Store) ([]string, error) {
	switch n.Kind {
	case KindSegment:
		target, err := symbolicTarget(store, n.BaseName)
		if err != nil {
			return nil, err
		}
		return []string{target}, nil
	case KindSum:
		var out []string
		for _, s := range n.SummandNames {
			target, err := symbolicTarget(store, s)
			if err != nil {
				// Dangling summand: record a missing-leaf marker
				// instead of failing outright; the checker decides
				// whether that is fatal.
				out = append(out, danglingMarker(s))
				continue
			}
			out = append(out, target)
		}
		return out, nil
	default:
		return nil, nil
	}
}

func danglingMarker(summandSymbolicName string) string {
	return "!missing:" + summandSymbolicName
}

// IsDanglingName reports whether a dependency name produced by
// DependencyNames denotes a missing-leaf placeholder rather than a real
// reference.
func IsDanglingName(name string) bool { return strings.HasPrefix(name, "!missing:") }

func symbolicTarget(store *refstore.Store, name string) (string, error) {
	ref, err := store.ResolveDirect(name)
	if err != nil {
		return "", err
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", fmt.Errorf("symbolic target %s: %w: not a symbolic reference", name, errs.ErrCorruptHierarchy)
	}
	return ref.Target().String(), nil
}

// HeadRef, BaseRef, StartRef, and SumRef expose the namespace-prefixing
// convention to callers outside this package that need to construct a
// reference name without first loading a Node (the clone/replace
// transformer, building names for nodes it has not yet created).
func HeadRef(name string) string       { return nsHeads + name }
func BaseRef(name string) string       { return nsBase + name }
func StartRef(name string) string      { return nsStart + name }
func SumRef(name string, i int) string { return fmt.Sprintf("%s%s/%d", nsSums, name, i) }

// FullName returns the canonical full reference name identifying node:
// heads/N for a Segment or Sum, the bare reference name for a PlainRef,
// or the placeholder name for an Unresolved/dangling node.
func (n *Node) FullName() string {
	switch n.Kind {
	case KindSegment, KindSum:
		return n.HeadName
	case KindPlainRef:
		return n.PlainRefName
	default:
		return n.Name
	}
}

// LoadFromFullName resolves a dependency target produced by
// DependencyNames (a full reference name, e.g. "refs/heads/M" or
// "refs/remotes/origin/main") back into a hierarchy node: a name under
// refs/heads/ may denote another hierarchy object, anything else is a
// PlainRef leaf. A refs/heads/ name that turns out to be an ordinary
// branch keeps its full name rather than the short form Load defaulted
// to, so graph vertices stay keyed consistently.
func LoadFromFullName(store *refstore.Store, fullName string) (*Node, error) {
	if strings.HasPrefix(fullName, nsHeads) {
		node, err := Load(store, strings.TrimPrefix(fullName, nsHeads))
		if err != nil {
			return nil, err
		}
		if node.Kind == KindPlainRef {
			node.Name = fullName
			node.PlainRefName = fullName
		}
		return node, nil
	}
	return &Node{Kind: KindPlainRef, Name: fullName, PlainRefName: fullName}, nil
}

// Load resolves name into its hierarchy node shape: Segment when
// base/N exists, Sum when any sums/N/* exist, PlainRef otherwise.
func Load(store *refstore.Store, name string) (*Node, error) {
	baseName := nsBase + name
	startName := nsStart + name

	_, baseErr := store.ResolveDirect(baseName)
	if baseErr == nil {
		if _, startErr := store.ResolveDirect(startName); startErr != nil {
			return nil, fmt.Errorf("load %s: %w: base/%s exists without start/%s", name, errs.ErrCorruptHierarchy, name, name)
		}
		return &Node{
			Kind:      KindSegment,
			Name:      name,
			HeadName:  nsHeads + name,
			BaseName:  baseName,
			StartName: startName,
		}, nil
	}

	summands, err := store.ReferencesMatching(nsSums + name + "/*")
	if err != nil {
		return nil, err
	}
	if len(summands) > 0 {
		names := make([]string, len(summands))
		for i, r := range summands {
			names[i] = r.Name().String()
		}
		sortSummandNames(names)
		return &Node{
			Kind:         KindSum,
			Name:         name,
			HeadName:     nsHeads + name,
			SummandNames: names,
		}, nil
	}

	// Not a Segment or Sum: a plain reference. A short branch name is
	// normalized to its refs/heads/ full name when that branch exists,
	// matching how git itself resolves short names.
	plainName := name
	if _, err := store.ResolveDirect(name); err != nil {
		if _, err := store.ResolveDirect(nsHeads + name); err == nil {
			plainName = nsHeads + name
		}
	}
	return &Node{Kind: KindPlainRef, Name: plainName, PlainRefName: plainName}, nil
}

// sortSummandNames orders sums/N/0, sums/N/1, ... sums/N/10 numerically
// rather than lexicographically; summand order is observable as the
// merge commit's parent order.
func sortSummandNames(names []string) {
	index := func(n string) int {
		i := strings.LastIndex(n, "/")
		var v int
		fmt.Sscanf(n[i+1:], "%d", &v)
		return v
	}
	sort.Slice(names, func(i, j int) bool { return index(names[i]) < index(names[j]) })
}

// DefineSegment creates start/N, base/N, heads/N. All three use
// force=false; any AlreadyExists aborts without partial creation being
// cleaned up. A caller that wants atomicity re-runs Delete on failure.
func DefineSegment(store *refstore.Store, name string, baseRefName string, startOID, headOID refstore.OID) error {
	if _, err := store.CreateDirect(nsStart+name, startOID, false, "define-segment"); err != nil {
		return err
	}
	if _, err := store.CreateSymbolic(nsBase+name, baseRefName, false, "define-segment"); err != nil {
		return err
	}
	if _, err := store.CreateDirect(nsHeads+name, headOID, false, "define-segment"); err != nil {
		return err
	}
	return nil
}

// DefineSum creates sums/N/i for each summand and a placeholder
// heads/N. The placeholder is overwritten the first time the sum is
// re-merged.
func DefineSum(store *refstore.Store, name string, summandRefNames []string, hint *refstore.OID) error {
	if len(summandRefNames) == 0 {
		return fmt.Errorf("define-sum %s: %w: no summands given", name, errs.ErrNotFound)
	}
	for i, s := range summandRefNames {
		sumName := fmt.Sprintf("%s%s/%d", nsSums, name, i)
		if _, err := store.CreateSymbolic(sumName, s, false, "define-sum"); err != nil {
			return err
		}
	}
	var headOID refstore.OID
	if hint != nil {
		headOID = *hint
	} else {
		ref, err := store.Resolve(summandRefNames[0])
		if err != nil {
			return err
		}
		headOID = ref.Hash()
	}
	if _, err := store.CreateDirect(nsHeads+name, headOID, false, "define-sum"); err != nil {
		return err
	}
	return nil
}

// Delete removes every reference belonging to node.
func Delete(store *refstore.Store, node *Node) error {
	switch node.Kind {
	case KindSegment:
		for _, n := range []string{node.HeadName, node.StartName, node.BaseName} {
			if err := store.Delete(n); err != nil {
				return err
			}
		}
	case KindSum:
		if err := store.Delete(node.HeadName); err != nil {
			return err
		}
		for _, n := range node.SummandNames {
			if err := store.Delete(n); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("delete: %w: %s is not a Segment or Sum", errs.ErrNotFound, node.Name)
	}
	return nil
}

// SetStart retargets start/N (set_start).
func SetStart(store *refstore.Store, node *Node, oid refstore.OID) error {
	return store.SetTarget(node.StartName, oid, "set-start")
}

// SetBase retargets base/N symbolically (set_base).
func SetBase(store *refstore.Store, node *Node, newBaseRefName string) error {
	return store.SetSymbolicTarget(node.BaseName, newBaseRefName, "set-base")
}

// RetargetSummand retargets sums/N/i symbolically (retarget_summand).
func RetargetSummand(store *refstore.Store, node *Node, i int, newRefName string) error {
	if i < 0 || i >= len(node.SummandNames) {
		return fmt.Errorf("retarget summand %d: %w", i, errs.ErrNotFound)
	}
	return store.SetSymbolicTarget(node.SummandNames[i], newRefName, "retarget-summand")
}

// IsEmpty reports is_empty(Segment N): start/N and heads/N resolve to
// the same OID.
func IsEmpty(store *refstore.Store, node *Node) (bool, error) {
	start, err := store.Resolve(node.StartName)
	if err != nil {
		return false, err
	}
	head, err := store.Resolve(node.HeadName)
	if err != nil {
		return false, err
	}
	return start.Hash() == head.Hash(), nil
}

// IsUpToDate reports is_up_to_date for a Segment or a Sum. The Sum
// comparison is order-sensitive: parent order is part of a merge
// commit's identity, so a reordered summand list makes the sum stale
// even when membership is unchanged — the same rule the re-merger
// applies when deciding whether to produce a new commit.
func IsUpToDate(store *refstore.Store, node *Node) (bool, error) {
	switch node.Kind {
	case KindSegment:
		base, err := store.Resolve(node.BaseName)
		if err != nil {
			return false, err
		}
		start, err := store.Resolve(node.StartName)
		if err != nil {
			return false, err
		}
		return base.Hash() == start.Hash(), nil
	case KindSum:
		summandOIDs, err := ResolvedSummands(store, node)
		if err != nil {
			return false, err
		}
		parents, err := ParentOIDs(store, node)
		if err != nil {
			return false, err
		}
		if len(parents) != len(summandOIDs) {
			return false, nil
		}
		for i := range parents {
			if parents[i] != summandOIDs[i] {
				return false, nil
			}
		}
		return true, nil
	default:
		return true, nil
	}
}

// ParentOIDs returns parent_oids(Sum N): the parent OIDs of the commit
// at heads/N.
func ParentOIDs(store *refstore.Store, node *Node) ([]refstore.OID, error) {
	head, err := store.Resolve(node.HeadName)
	if err != nil {
		return nil, err
	}
	commit, err := store.FindCommit(head.Hash())
	if err != nil {
		return nil, err
	}
	return append([]refstore.OID(nil), commit.ParentHashes...), nil
}

// ResolvedSummands resolves each sums/N/i to its current OID, in
// summand order.
func ResolvedSummands(store *refstore.Store, node *Node) ([]refstore.OID, error) {
	out := make([]refstore.OID, len(node.SummandNames))
	for i, name := range node.SummandNames {
		ref, err := store.Resolve(name)
		if err != nil {
			return nil, err
		}
		out[i] = ref.Hash()
	}
	return out, nil
}

// Walk returns walk(Segment N): OIDs on (start/N, heads/N] oldest first.
func Walk(store *refstore.Store, node *Node) ([]refstore.OID, error) {
	start, err := store.Resolve(node.StartName)
	if err != nil {
		return nil, err
	}
	head, err := store.Resolve(node.HeadName)
	if err != nil {
		return nil, err
	}
	return store.Walk(head.Hash(), start.Hash(), refstore.SortReverse)
}

