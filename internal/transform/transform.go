// Package transform copies a hierarchy under a name-transform (Clone)
// or retargets bases and summands in place (Replace).
package transform

import (
	"github.com/kmrtdsii/githierarchy/internal/graph"
	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
)

// Replace rewrites every Segment's base and every Sum's summands, under
// root, whose current symbolic target appears in mapping (old full
// reference name -> new full reference name). A node whose own full
// name is a mapping key is left alone — it is a replacement target, not
// a thing being replaced.
func Replace(store *refstore.Store, root string, mapping map[string]string) error {
	g, err := graph.Discover(store, root)
	if err != nil {
		return err
	}
	for _, name := range g.Order {
		node := g.Nodes[name]
		if _, isTarget := mapping[node.FullName()]; isTarget {
			continue
		}
		switch node.Kind {
		case hierarchy.KindSegment:
			if err := replaceOne(store, node.BaseName, mapping); err != nil {
				return err
			}
		case hierarchy.KindSum:
			for _, s := range node.SummandNames {
				if err := replaceOne(store, s, mapping); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func replaceOne(store *refstore.Store, symbolicName string, mapping map[string]string) error {
	ref, err := store.ResolveDirect(symbolicName)
	if err != nil {
		return err
	}
	target := ref.Target().String()
	newTarget, ok := mapping[target]
	if !ok {
		return nil
	}
	return store.SetSymbolicTarget(symbolicName, newTarget, "replace")
}

// Clone visits every node reachable from root in topological order
// (dependencies first) and creates a new Segment or Sum named
// f(original-name). Any dependency
// whose original has already been cloned is substituted with the
// clone's full name, using an accumulating replacement table so later
// nodes see earlier clones. Returns that table (original full name ->
// clone full name) for the caller to inspect or chain into a further
// Replace.
func Clone(store *refstore.Store, root string, f func(name string) string) (map[string]string, error) {
	g, err := graph.Discover(store, root)
	if err != nil {
		return nil, err
	}
	// Visit leaves-first (topological order), not discovery's
	// root-first BFS order: a node's dependencies must already be
	// cloned by the time the node itself is cloned, so the replacement
	// table has an entry for them to substitute.
	order, err := graph.TopoSort(g)
	if err != nil {
		return nil, err
	}

	replacement := make(map[string]string)
	for _, name := range order {
		node := g.Nodes[name]
		switch node.Kind {
		case hierarchy.KindSegment:
			newName := f(node.Name)
			baseTarget, err := resolveSymbolicTarget(store, node.BaseName, replacement)
			if err != nil {
				return nil, err
			}
			startRef, err := store.Resolve(node.StartName)
			if err != nil {
				return nil, err
			}
			headRef, err := store.Resolve(node.HeadName)
			if err != nil {
				return nil, err
			}
			if err := hierarchy.DefineSegment(store, newName, baseTarget, startRef.Hash(), headRef.Hash()); err != nil {
				return nil, err
			}
			replacement[node.FullName()] = hierarchy.HeadRef(newName)

		case hierarchy.KindSum:
			newName := f(node.Name)
			newSummands := make([]string, len(node.SummandNames))
			for i, s := range node.SummandNames {
				target, err := resolveSymbolicTarget(store, s, replacement)
				if err != nil {
					return nil, err
				}
				newSummands[i] = target
			}
			headRef, err := store.Resolve(node.HeadName)
			if err != nil {
				return nil, err
			}
			hint := headRef.Hash()
			if err := hierarchy.DefineSum(store, newName, newSummands, &hint); err != nil {
				return nil, err
			}
			replacement[node.FullName()] = hierarchy.HeadRef(newName)
		}
		// PlainRef and Unresolved leaves are never cloned; dependents
		// that reference one keep pointing at the original.
	}
	return replacement, nil
}

func resolveSymbolicTarget(store *refstore.Store, symbolicName string, replacement map[string]string) (string, error) {
	ref, err := store.ResolveDirect(symbolicName)
	if err != nil {
		return "", err
	}
	target := ref.Target().String()
	if cloned, ok := replacement[target]; ok {
		return cloned, nil
	}
	return target, nil
}
