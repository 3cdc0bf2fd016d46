// Package graph builds the dependency DAG over hierarchy nodes and
// produces a deterministic topological order for the rebase engine to
// process vertices in.
package graph

import (
	"sort"
	"strings"

	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
)

// Graph is the discovered DAG: every vertex keyed by its full reference
// name, plus the order vertices were first seen (the scheduler's
// tie-break seed) and the dependency edges gathered along the way.
type Graph struct {
	Nodes map[string]*hierarchy.Node
	Order []string
	Edges map[string][]string // name -> full names of direct dependencies
}

func newGraph() *Graph {
	return &Graph{Nodes: map[string]*hierarchy.Node{}, Edges: map[string][]string{}}
}

// Discover builds the DAG reachable from root (a short hierarchy name).
// Dangling summands are recorded as Unresolved nodes rather than
// failing outright.
func Discover(store *refstore.Store, root string) (*Graph, error) {
	g := newGraph()

	rootNode, err := hierarchy.Load(store, root)
	if err != nil {
		return nil, err
	}

	type queued struct {
		name string
		node *hierarchy.Node
	}
	queue := []queued{{name: rootNode.FullName(), node: rootNode}}
	visited := map[string]bool{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.name] {
			continue
		}
		visited[cur.name] = true
		g.Nodes[cur.name] = cur.node
		g.Order = append(g.Order, cur.name)

		if cur.node.Kind == hierarchy.KindUnresolved {
			continue
		}

		deps, err := cur.node.DependencyNames(store)
		if err != nil {
			return nil, err
		}
		g.Edges[cur.name] = deps

		for _, dep := range deps {
			if visited[dep] {
				continue
			}
			if hierarchy.IsDanglingName(dep) {
				queue = append(queue, queued{name: dep, node: &hierarchy.Node{Kind: hierarchy.KindUnresolved, Name: dep}})
				continue
			}
			depNode, err := hierarchy.LoadFromFullName(store, dep)
			if err != nil {
				return nil, err
			}
			queue = append(queue, queued{name: dep, node: depNode})
		}
	}

	return g, nil
}

// SegmentNames scans the refs/base/* namespace directly (bypassing
// Load/Discover) and returns every Segment's short name.
func SegmentNames(store *refstore.Store) ([]string, error) {
	baseRefs, err := store.ReferencesMatching("refs/base/*")
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(baseRefs))
	for _, r := range baseRefs {
		names[strings.TrimPrefix(r.Name().String(), "refs/base/")] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// SumNames scans the refs/sums/*/* namespace directly and returns every
// Sum's short name.
func SumNames(store *refstore.Store) ([]string, error) {
	sumRefs, err := store.ReferencesMatching("refs/sums/*/*")
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(sumRefs))
	for _, r := range sumRefs {
		rest := strings.TrimPrefix(r.Name().String(), "refs/sums/")
		idx := strings.LastIndex(rest, "/")
		if idx < 0 {
			continue
		}
		names[rest[:idx]] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// AllNodeNames returns every Segment and Sum short name in the
// repository, used to seed a whole-repository walk such as Downstream.
func AllNodeNames(store *refstore.Store) ([]string, error) {
	segments, err := SegmentNames(store)
	if err != nil {
		return nil, err
	}
	sums, err := SumNames(store)
	if err != nil {
		return nil, err
	}
	out := append(segments, sums...)
	sort.Strings(out)
	return out, nil
}

// merge folds other into g, keeping g's existing entries for any name
// both graphs already visited (their dependency sets are identical by
// construction, since both were derived by the same Discover logic).
func (g *Graph) merge(other *Graph) {
	for _, name := range other.Order {
		if _, ok := g.Nodes[name]; ok {
			continue
		}
		g.Nodes[name] = other.Nodes[name]
		g.Edges[name] = other.Edges[name]
		g.Order = append(g.Order, name)
	}
}
