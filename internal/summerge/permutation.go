package summerge

import "github.com/kmrtdsii/githierarchy/internal/refstore"

// ReorderByPermutation applies permutation to s in place via cycle
// swaps, where permutation[i] gives the index that should end up at
// position i. Cycle swaps avoid allocating a second slice.
func ReorderByPermutation[T any](s []T, permutation []int) {
	if len(s) != len(permutation) {
		panic("summerge: slice and permutation must have the same length")
	}
	visited := make([]bool, len(s))
	for start := range s {
		if visited[start] {
			continue
		}
		current := start
		next := permutation[current]
		for next != start {
			s[current], s[next] = s[next], s[current]
			visited[current] = true
			current = next
			next = permutation[current]
		}
		visited[current] = true
	}
}

// Permutation reports, when b is a reordering of a (same multiset of
// OIDs, no additions or removals), the index permutation taking a to b:
// perm[i] is the position in a that b's i-th element came from. ok is
// false when b is not a pure reordering of a.
func Permutation(a, b []refstore.OID) (perm []int, ok bool) {
	if len(a) != len(b) {
		return nil, false
	}
	remaining := make(map[refstore.OID][]int, len(a))
	for i, oid := range a {
		remaining[oid] = append(remaining[oid], i)
	}
	perm = make([]int, len(b))
	for i, oid := range b {
		idxs, found := remaining[oid]
		if !found || len(idxs) == 0 {
			return nil, false
		}
		perm[i] = idxs[0]
		remaining[oid] = idxs[1:]
	}
	return perm, true
}
