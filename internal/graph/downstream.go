package graph

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/sets/linkedhashset"

	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
)

// Downstream returns every hierarchy node name (short form) that
// transitively depends on target, in the order discovered by a
// breadth-first walk over the whole repository's hierarchy graph.
//
// This supplements describe's single-node view: an operator deciding
// whether it is safe to retarget or delete target needs to know what
// else would be affected before committing to a destructive change.
func Downstream(store *refstore.Store, target string) ([]string, error) {
	allNames, err := AllNodeNames(store)
	if err != nil {
		return nil, err
	}

	full := newGraph()
	for _, name := range allNames {
		g, err := Discover(store, name)
		if err != nil {
			return nil, err
		}
		full.merge(g)
	}

	reverse := linkedhashmap.New() // full name -> *linkedhashset.Set of dependents
	for _, name := range full.Order {
		for _, dep := range full.Edges[name] {
			var set *linkedhashset.Set
			if v, found := reverse.Get(dep); found {
				set = v.(*linkedhashset.Set)
			} else {
				set = linkedhashset.New()
				reverse.Put(dep, set)
			}
			set.Add(name)
		}
	}

	targetNode, err := hierarchy.Load(store, target)
	if err != nil {
		return nil, err
	}
	targetFull := targetNode.FullName()

	visited := linkedhashset.New()
	queue := []string{targetFull}
	var order []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		v, found := reverse.Get(cur)
		if !found {
			continue
		}
		for _, dependent := range v.(*linkedhashset.Set).Values() {
			name := dependent.(string)
			if visited.Contains(name) {
				continue
			}
			visited.Add(name)
			order = append(order, shortName(full.Nodes[name]))
			queue = append(queue, name)
		}
	}
	return order, nil
}

func shortName(node *hierarchy.Node) string {
	if node == nil {
		return ""
	}
	if node.Kind == hierarchy.KindSegment || node.Kind == hierarchy.KindSum {
		return node.Name
	}
	return node.FullName()
}
