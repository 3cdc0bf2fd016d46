// Package engine is the top-level orchestrator wiring discovery,
// scheduling, preflight, the rebaser, the re-merger, and the fetch
// coordinator into the command surface the CLI exposes: one owning
// type holding the repository handle for the process's lifetime.
package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kmrtdsii/githierarchy/internal/config"
	"github.com/kmrtdsii/githierarchy/internal/errs"
	"github.com/kmrtdsii/githierarchy/internal/fetchcoord"
	"github.com/kmrtdsii/githierarchy/internal/graph"
	"github.com/kmrtdsii/githierarchy/internal/hierarchy"
	"github.com/kmrtdsii/githierarchy/internal/preflight"
	"github.com/kmrtdsii/githierarchy/internal/rebase"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
	"github.com/kmrtdsii/githierarchy/internal/summerge"
	"github.com/kmrtdsii/githierarchy/internal/transform"
)

// Engine carries the repository for the lifetime of one invocation and
// exposes the command surface as methods, rather than through any
// ambient process-wide slot.
type Engine struct {
	store *refstore.Store
	cfg   *config.Config
	log   *logrus.Entry
}

// New builds an Engine around an already-opened Store.
func New(store *refstore.Store, cfg *config.Config, log *logrus.Entry) *Engine {
	return &Engine{store: store, cfg: cfg, log: log}
}

// DefineSegment implements "define-segment(name, base, start?, head?)".
func (e *Engine) DefineSegment(name, baseRefName string, start, head refstore.OID) error {
	return hierarchy.DefineSegment(e.store, name, baseRefName, start, head)
}

// DefineSum implements "define-sum(name, summands…, hint?)".
func (e *Engine) DefineSum(name string, summandRefNames []string, hint *refstore.OID) error {
	return hierarchy.DefineSum(e.store, name, summandRefNames, hint)
}

// Delete implements "delete(name)".
func (e *Engine) Delete(name string) error {
	node, err := hierarchy.Load(e.store, name)
	if err != nil {
		return err
	}
	return hierarchy.Delete(e.store, node)
}

// Description is the shape "describe(name)" returns: the in-memory node
// kind plus an up-to-date flag.
type Description struct {
	Name     string
	Kind     string
	UpToDate bool
}

// Describe implements "describe(name)".
func (e *Engine) Describe(name string) (*Description, error) {
	node, err := hierarchy.Load(e.store, name)
	if err != nil {
		return nil, err
	}
	upToDate := true
	if node.Kind == hierarchy.KindSegment || node.Kind == hierarchy.KindSum {
		upToDate, err = hierarchy.IsUpToDate(e.store, node)
		if err != nil {
			return nil, err
		}
	}
	return &Description{Name: name, Kind: node.Kind.String(), UpToDate: upToDate}, nil
}

// ListSegments implements "list-segments". Each entry carries the
// up-to-date flag, since computing it is already a byproduct of
// Load + IsUpToDate.
func (e *Engine) ListSegments() ([]*Description, error) {
	return e.describeAll(graph.SegmentNames)
}

// ListSums implements "list-sums", extended the same way as
// ListSegments.
func (e *Engine) ListSums() ([]*Description, error) {
	return e.describeAll(graph.SumNames)
}

func (e *Engine) describeAll(names func(*refstore.Store) ([]string, error)) ([]*Description, error) {
	rawNames, err := names(e.store)
	if err != nil {
		return nil, err
	}
	out := make([]*Description, 0, len(rawNames))
	for _, name := range rawNames {
		d, err := e.Describe(name)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Downstream reports every node that transitively depends on name, for
// an operator checking blast radius before a retarget or delete.
func (e *Engine) Downstream(name string) ([]string, error) {
	return graph.Downstream(e.store, name)
}

// Walk implements "walk(root?)": discovery plus topological ordering,
// with no mutation.
func (e *Engine) Walk(root string) ([]string, error) {
	g, err := graph.Discover(e.store, root)
	if err != nil {
		return nil, err
	}
	return graph.TopoSort(g)
}

// DryRun runs discovery, scheduling, and
// preflight exactly as Rebase would, returning the order rebase would
// process vertices in, without mutating anything. Lets an operator
// preview a rebase (including catching NonLinearSegment/NotAMerge
// failures) before committing to it.
func (e *Engine) DryRun(root string, ignore map[string]bool) ([]string, error) {
	g, err := graph.Discover(e.store, root)
	if err != nil {
		return nil, err
	}
	if v, err := preflight.Check(e.store, g, ignore); err != nil {
		return nil, err
	} else if v != nil {
		return nil, v.Err
	}
	return graph.TopoSort(g)
}

// RebaseReport records, per vertex, what Rebase actually did.
type RebaseReport struct {
	Order   []string
	Results map[string]string
}

// Rebase implements "rebase(root?, fetch?, ignore-set, skip-set)":
// discovery, preflight, then driving the rebaser/re-merger/fetch
// coordinator in topological order.
func (e *Engine) Rebase(root string, fetch bool, ignore, skip map[string]bool) (*RebaseReport, error) {
	g, err := graph.Discover(e.store, root)
	if err != nil {
		return nil, err
	}
	if v, err := preflight.Check(e.store, g, ignore); err != nil {
		return nil, err
	} else if v != nil {
		return nil, v.Err
	}
	order, err := graph.TopoSort(g)
	if err != nil {
		return nil, err
	}

	report := &RebaseReport{Order: order, Results: map[string]string{}}
	for _, name := range order {
		if skip[name] {
			report.Results[name] = "skipped"
			continue
		}
		node := g.Nodes[name]
		switch node.Kind {
		case hierarchy.KindSegment:
			result, err := rebase.RebaseSegment(e.store, node)
			report.Results[name] = result.String()
			if err != nil {
				return report, err
			}
		case hierarchy.KindSum:
			sig := summerge.Signature{Name: e.cfg.CommitterName, Email: e.cfg.CommitterEmail}
			result, err := summerge.Reconcile(e.store, node, sig, e.log)
			report.Results[name] = result.String()
			if err != nil {
				return report, err
			}
		case hierarchy.KindPlainRef:
			if !fetch {
				continue
			}
			// Fetch errors are per-leaf and do not abort sibling
			// leaves or the rest of the rebase.
			if err := fetchcoord.Coordinate(e.store, node.FullName()); err != nil {
				e.log.WithField("leaf", name).WithError(err).Warn("fetch coordinator failed for leaf")
				report.Results[name] = fmt.Sprintf("fetch-failed: %v", err)
				continue
			}
			report.Results[name] = "fetched"
		}
	}
	return report, nil
}

// Resume implements "resume", reading the marker itself to determine
// which segment was suspended.
func (e *Engine) Resume() (string, string, error) {
	name, result, err := rebase.Resume(e.store)
	return name, result.String(), err
}

// Clone implements "clone(root, rename-fn)".
func (e *Engine) Clone(root string, rename func(string) string) (map[string]string, error) {
	return transform.Clone(e.store, root, rename)
}

// Replace implements "replace(root, old→new)".
func (e *Engine) Replace(root string, mapping map[string]string) error {
	return transform.Replace(e.store, root, mapping)
}

// Verify checks that e was constructed against a usable repository
// state, surfaced so a command layer can fail fast with a clear error
// rather than an opaque nil-pointer panic deep in refstore.
func (e *Engine) Verify() error {
	if e.store == nil {
		return fmt.Errorf("engine: %w: no repository store configured", errs.ErrIO)
	}
	return nil
}
