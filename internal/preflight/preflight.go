// Package preflight runs the structural checks required before any
// mutation: a Segment's chain must be purely linear, a Sum's head must
// actually be a merge commit. Validation happens as one whole-graph
// pass so nothing is touched when any vertex is broken.
package preflight

import (
	"fmt"

	"github.com/kmrtdsii/githierarchy/internal/errs"
	"github.com/kmrtdsii/githierarchy/internal/graph"
	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
)

// Violation is one failed check, identified by the full reference name
// of the offending vertex and the error kind it maps to.
type Violation struct {
	Name string
	Err  error
}

// Check runs every vertex in g through the rules above, skipping any
// vertex whose full name appears in ignore. It returns the first
// violation found (vertex order is g.Order, i.e. discovery order) or
// nil if the whole graph passes.
func Check(store *refstore.Store, g *graph.Graph, ignore map[string]bool) (*Violation, error) {
	for _, name := range g.Order {
		if ignore[name] {
			continue
		}
		node := g.Nodes[name]
		switch node.Kind {
		case hierarchy.KindSegment:
			if v, err := checkSegment(store, node); err != nil {
				return nil, err
			} else if v != nil {
				return v, nil
			}
		case hierarchy.KindSum:
			if v, err := checkSum(store, node); err != nil {
				return nil, err
			} else if v != nil {
				return v, nil
			}
		}
	}
	return nil, nil
}

func checkSegment(store *refstore.Store, node *hierarchy.Node) (*Violation, error) {
	start, err := store.Resolve(node.StartName)
	if err != nil {
		return nil, err
	}
	head, err := store.Resolve(node.HeadName)
	if err != nil {
		return nil, err
	}
	linear, _, err := store.IsLinearAncestor(start.Hash(), head.Hash())
	if err != nil {
		return nil, err
	}
	if !linear {
		return &Violation{Name: node.FullName(), Err: fmt.Errorf("segment %s: %w", node.Name, errs.ErrNonLinearSegment)}, nil
	}
	return nil, nil
}

func checkSum(store *refstore.Store, node *hierarchy.Node) (*Violation, error) {
	parents, err := hierarchy.ParentOIDs(store, node)
	if err != nil {
		return nil, err
	}
	if len(parents) < 2 {
		return &Violation{Name: node.FullName(), Err: fmt.Errorf("sum %s: %w", node.Name, errs.ErrNotAMerge)}, nil
	}
	return nil, nil
}
