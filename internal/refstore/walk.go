package refstore

import "fmt"

// WalkSort selects the order Walk emits OIDs in.
type WalkSort int

const (
	// SortTopological emits descendants before their ancestors
	// (newest-first, matching "git log"'s default).
	SortTopological WalkSort = iota
	// SortReverse emits ancestors before their descendants
	// (oldest-first; what the segment rebaser replays commits in).
	SortReverse
)

// Walk returns every OID reachable from push that is not reachable from
// hide (including hide itself), in the requested order. hide may be the
// zero OID to mean "nothing hidden".
func (s *Store) Walk(push, hide OID, sort WalkSort) ([]OID, error) {
	hidden, err := s.ancestorSet(hide)
	if err != nil {
		return nil, err
	}

	visited := make(map[OID]bool)
	var oldestFirst []OID

	var visit func(oid OID) error
	visit = func(oid OID) error {
		if oid == ZeroOID || visited[oid] || hidden[oid] {
			return nil
		}
		visited[oid] = true
		commit, err := s.FindCommit(oid)
		if err != nil {
			return err
		}
		for _, p := range commit.ParentHashes {
			if err := visit(p); err != nil {
				return err
			}
		}
		oldestFirst = append(oldestFirst, oid)
		return nil
	}
	if err := visit(push); err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}

	switch sort {
	case SortReverse:
		return oldestFirst, nil
	case SortTopological:
		out := make([]OID, len(oldestFirst))
		for i, oid := range oldestFirst {
			out[len(oldestFirst)-1-i] = oid
		}
		return out, nil
	default:
		return nil, fmt.Errorf("walk: unknown sort %d", sort)
	}
}

// ancestorSet returns {oid} union all of its ancestors, or the empty set
// if oid is the zero OID.
func (s *Store) ancestorSet(oid OID) (map[OID]bool, error) {
	set := make(map[OID]bool)
	if oid == ZeroOID {
		return set, nil
	}
	queue := []OID{oid}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if set[cur] {
			continue
		}
		set[cur] = true
		commit, err := s.FindCommit(cur)
		if err != nil {
			return nil, err
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return set, nil
}

// IsLinearAncestor reports whether start is an ancestor of head via a
// strictly linear chain (no commit in (start, head] has more than one
// parent), used by the preflight checker. It also returns the
// chain itself, oldest first, excluding start.
func (s *Store) IsLinearAncestor(start, head OID) (linear bool, chain []OID, err error) {
	cur := head
	for cur != start {
		commit, err := s.FindCommit(cur)
		if err != nil {
			return false, nil, err
		}
		if commit.NumParents() > 1 {
			return false, nil, nil
		}
		chain = append(chain, cur)
		if commit.NumParents() == 0 {
			return false, nil, nil
		}
		cur = commit.ParentHashes[0]
	}
	// reverse chain to oldest-first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return true, chain, nil
}
