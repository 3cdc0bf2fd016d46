package graph

import (
	"fmt"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/kmrtdsii/githierarchy/internal/errs"
)

// TopoSort produces a total order over g's vertices such that every
// vertex appears after all its dependencies, using Kahn's algorithm.
// Ties among simultaneously-ready vertices are broken by discovery
// order; linkedhashmap gives the reverse-adjacency structure stable
// iteration so the tie-break is reproducible run to run.
func TopoSort(g *Graph) ([]string, error) {
	reverse := linkedhashmap.New() // name -> *arraylist.List of dependents
	inDegree := make(map[string]int, len(g.Nodes))

	for _, name := range g.Order {
		inDegree[name] = 0
	}
	for _, name := range g.Order {
		for _, dep := range g.Edges[name] {
			if _, ok := g.Nodes[dep]; !ok {
				continue // dangling/unresolved target carries no ordering edge
			}
			inDegree[name]++
			var deps *arraylist.List
			if v, found := reverse.Get(dep); found {
				deps = v.(*arraylist.List)
			} else {
				deps = arraylist.New()
				reverse.Put(dep, deps)
			}
			deps.Add(name)
		}
	}

	var ready []string
	for _, name := range g.Order {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	var order []string
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		if v, found := reverse.Get(name); found {
			v.(*arraylist.List).Each(func(_ int, dependent interface{}) {
				d := dependent.(string)
				inDegree[d]--
				if inDegree[d] == 0 {
					ready = append(ready, d)
				}
			})
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, fmt.Errorf("topological sort: %w", errs.ErrCycleDetected)
	}
	return order, nil
}
