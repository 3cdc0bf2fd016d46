// Package errs defines the closed error taxonomy used across the
// hierarchy engine. Every component wraps one of these
// sentinels with fmt.Errorf("...: %w", ...) so callers can branch on
// errors.Is without string matching, the same pattern go-git itself
// uses for plumbing.ErrReferenceNotFound and friends.
package errs

import "errors"

var (
	// ErrNotFound: a named reference, commit, or summand is missing.
	ErrNotFound = errors.New("not found")

	// ErrCorruptHierarchy: a Segment has base/N but not start/N, or
	// vice versa, or a resume marker's digest no longer matches the
	// segment it claims to belong to.
	ErrCorruptHierarchy = errors.New("corrupt hierarchy")

	// ErrNonLinearSegment: a Segment's commit chain contains a merge.
	ErrNonLinearSegment = errors.New("segment is not linear")

	// ErrNotAMerge: a Sum's head has fewer than two parents.
	ErrNotAMerge = errors.New("sum head is not a merge commit")

	// ErrCycleDetected: topological sort could not emit all vertices.
	ErrCycleDetected = errors.New("dependency cycle detected")

	// ErrWrongState: repository state is not Clean when an operation
	// requires it, or not CherryPick|Clean during resume.
	ErrWrongState = errors.New("wrong repository state")

	// ErrMergeConflict: index has conflicts after cherry-pick or merge.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrUpstreamDiverged: a local branch does not match its upstream
	// and cannot be auto-fast-forwarded.
	ErrUpstreamDiverged = errors.New("upstream diverged")

	// ErrAlreadyExists: define operation targets an existing reference.
	ErrAlreadyExists = errors.New("already exists")

	// ErrIO: a persistent file operation (marker read/write) failed.
	ErrIO = errors.New("io error")
)
