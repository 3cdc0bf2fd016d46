// Package refstore is the narrow facade over go-git: references,
// commits, walks, merges, cherry-picks, and the staging index. Other
// packages perform repository operations through the Store and Index
// types defined here; they import go-git only for its value types
// (hashes, reference names, commit objects) or, in cmd/githier, to
// open the repository.
package refstore

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/sirupsen/logrus"

	"github.com/kmrtdsii/githierarchy/internal/errs"
)

// OID is the opaque content hash the rest of the module deals in.
type OID = plumbing.Hash

// ZeroOID is the nil hash, used as a sentinel for "no parent"/"no commit".
var ZeroOID OID

// Store wraps a single *gogit.Repository handle. It is stateless beyond
// that handle and a best-effort commit cache; callers are expected to
// hold it for the lifetime of one invocation.
type Store struct {
	repo  *gogit.Repository
	cache *commitCache
	log   *logrus.Entry
}

// Open adapts an already-opened go-git repository. log may be nil, in
// which case a new logrus logger writing to stderr is used.
func Open(repo *gogit.Repository, log *logrus.Entry) *Store {
	if log == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		log = logrus.NewEntry(l)
	}
	return &Store{repo: repo, cache: newCommitCache(), log: log}
}

// Repository exposes the underlying handle for components that need
// go-git functionality this facade does not (yet) cover, e.g. branch
// upstream configuration lookups.
func (s *Store) Repository() *gogit.Repository { return s.repo }

// Resolve follows symbolic references to their final direct reference,
// matching go-git's repo.Reference(name, true).
func (s *Store) Resolve(name string) (*plumbing.Reference, error) {
	ref, err := s.repo.Reference(plumbing.ReferenceName(name), true)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w: %v", name, errs.ErrNotFound, err)
	}
	return ref, nil
}

// ResolveDirect returns the raw reference without following symbolic
// targets, used by the hierarchy model to read base/N's literal target.
func (s *Store) ResolveDirect(name string) (*plumbing.Reference, error) {
	ref, err := s.repo.Reference(plumbing.ReferenceName(name), false)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w: %v", name, errs.ErrNotFound, err)
	}
	return ref, nil
}

// FindCommit decodes a commit object, consulting the ristretto-backed
// cache first (see cache.go).
func (s *Store) FindCommit(oid OID) (*object.Commit, error) {
	if c, ok := s.cache.get(oid); ok {
		return c, nil
	}
	c, err := s.repo.CommitObject(oid)
	if err != nil {
		return nil, fmt.Errorf("find commit %s: %w: %v", oid, errs.ErrNotFound, err)
	}
	s.cache.put(oid, c)
	return c, nil
}

// ReferencesMatching returns every reference whose name matches glob
// (a path.Match-style pattern evaluated against the full reference
// name, e.g. "refs/sums/N/*"). go-git's reference iterator is lazy; we
// filter it rather than materialize every reference up front.
func (s *Store) ReferencesMatching(glob string) ([]*plumbing.Reference, error) {
	iter, err := s.repo.Storer.IterReferences()
	if err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	defer iter.Close()

	var out []*plumbing.Reference
	for {
		ref, err := iter.Next()
		if err != nil {
			break
		}
		ok, matchErr := path.Match(glob, ref.Name().String())
		if matchErr != nil {
			return nil, matchErr
		}
		if ok {
			out = append(out, ref)
		}
	}
	return out, nil
}

// CreateDirect creates name -> oid. force=false makes an existing
// reference at name fail with ErrAlreadyExists.
func (s *Store) CreateDirect(name string, oid OID, force bool, reflogMsg string) (*plumbing.Reference, error) {
	refName := plumbing.ReferenceName(name)
	if !force {
		if _, err := s.repo.Storer.Reference(refName); err == nil {
			return nil, fmt.Errorf("create %s: %w", name, errs.ErrAlreadyExists)
		}
	}
	ref := plumbing.NewHashReference(refName, oid)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return nil, fmt.Errorf("create %s: %w: %v", name, errs.ErrIO, err)
	}
	s.appendReflog(refName, ZeroOID, oid, reflogMsg)
	return ref, nil
}

// CreateSymbolic creates name as a symbolic reference to targetName.
func (s *Store) CreateSymbolic(name, targetName string, force bool, reflogMsg string) (*plumbing.Reference, error) {
	refName := plumbing.ReferenceName(name)
	if !force {
		if _, err := s.repo.Storer.Reference(refName); err == nil {
			return nil, fmt.Errorf("create %s: %w", name, errs.ErrAlreadyExists)
		}
	}
	ref := plumbing.NewSymbolicReference(refName, plumbing.ReferenceName(targetName))
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return nil, fmt.Errorf("create %s: %w: %v", name, errs.ErrIO, err)
	}
	s.appendReflog(refName, ZeroOID, ZeroOID, reflogMsg)
	return ref, nil
}

// SetTarget retargets an existing direct reference to a new OID.
func (s *Store) SetTarget(name string, oid OID, reflogMsg string) error {
	refName := plumbing.ReferenceName(name)
	old, _ := s.repo.Storer.Reference(refName)
	ref := plumbing.NewHashReference(refName, oid)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("set target %s: %w: %v", name, errs.ErrIO, err)
	}
	oldOID := ZeroOID
	if old != nil {
		oldOID = old.Hash()
	}
	s.appendReflog(refName, oldOID, oid, reflogMsg)
	return nil
}

// SetSymbolicTarget retargets an existing symbolic reference.
func (s *Store) SetSymbolicTarget(name, targetName string, reflogMsg string) error {
	refName := plumbing.ReferenceName(name)
	ref := plumbing.NewSymbolicReference(refName, plumbing.ReferenceName(targetName))
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("set symbolic target %s: %w: %v", name, errs.ErrIO, err)
	}
	s.appendReflog(refName, ZeroOID, ZeroOID, reflogMsg)
	return nil
}

// Delete removes a reference outright.
func (s *Store) Delete(name string) error {
	refName := plumbing.ReferenceName(name)
	if err := s.repo.Storer.RemoveReference(refName); err != nil {
		return fmt.Errorf("delete %s: %w: %v", name, errs.ErrIO, err)
	}
	return nil
}

// SetHead points HEAD at a branch reference, as "git symbolic-ref HEAD".
func (s *Store) SetHead(name string) error {
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.ReferenceName(name))
	if err := s.repo.Storer.SetReference(head); err != nil {
		return fmt.Errorf("set head %s: %w: %v", name, errs.ErrIO, err)
	}
	return nil
}

// SetHeadDetached points HEAD directly at a commit.
func (s *Store) SetHeadDetached(oid OID) error {
	head := plumbing.NewHashReference(plumbing.HEAD, oid)
	if err := s.repo.Storer.SetReference(head); err != nil {
		return fmt.Errorf("detach head: %w: %v", errs.ErrIO, err)
	}
	return nil
}

// CheckoutTree materializes commit's tree into the worktree, forcing
// over local modifications when force is set.
func (s *Store) CheckoutTree(commit OID, force bool) error {
	w, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("checkout tree: %w", err)
	}
	opts := &gogit.CheckoutOptions{Hash: commit, Force: force}
	if err := w.Checkout(opts); err != nil {
		return fmt.Errorf("checkout tree: %w: %v", errs.ErrIO, err)
	}
	return nil
}

// Commit creates a new commit object from an already-written tree,
// parented at parents, carrying author/committer/message verbatim
// (used by the segment rebaser to preserve a cherry-picked commit's
// metadata).
func (s *Store) Commit(parents []OID, author, committer object.Signature, message string, tree OID) (OID, error) {
	commit := &object.Commit{
		Author:       author,
		Committer:    committer,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.CommitObject)
	if err := commit.Encode(obj); err != nil {
		return ZeroOID, fmt.Errorf("encode commit: %w", err)
	}
	oid, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return ZeroOID, fmt.Errorf("store commit: %w: %v", errs.ErrIO, err)
	}
	return oid, nil
}

// Fetch invokes the underlying library's fetch for the given remote
// and refspecs.
func (s *Store) Fetch(remote string, refspecs []string, reflogMsg string) error {
	opts := &gogit.FetchOptions{RemoteName: remote}
	for _, rs := range refspecs {
		opts.RefSpecs = append(opts.RefSpecs, gogitRefSpec(rs))
	}
	err := s.repo.Fetch(opts)
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return fmt.Errorf("fetch %s: %w: %v", remote, errs.ErrIO, err)
	}
	return nil
}

// appendReflog best-effort appends a reflog line. Only filesystem-backed
// repositories have a logs/ directory to write into; in-memory test
// repositories silently skip this, matching the fact that git itself
// only writes reflogs when core.logAllRefUpdates (or an existing logs/
// file) calls for it.
func (s *Store) appendReflog(name plumbing.ReferenceName, oldOID, newOID OID, message string) {
	fsStorer, ok := s.repo.Storer.(*filesystem.Storage)
	if !ok {
		return
	}
	fs := fsStorer.Filesystem()
	logPath := path.Join("logs", name.String())
	if err := fs.MkdirAll(path.Dir(logPath), 0o755); err != nil {
		s.log.WithError(err).Debug("reflog: mkdir failed")
		return
	}
	f, err := fs.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.WithError(err).Debug("reflog: open failed")
		return
	}
	defer f.Close()
	sig := object.Signature{Name: "githierarchy", Email: "githierarchy@localhost", When: time.Now()}
	line := fmt.Sprintf("%s %s %s\t%s\n", oldOID, newOID, sig.String(), message)
	if _, err := f.Write([]byte(line)); err != nil {
		s.log.WithError(err).Debug("reflog: write failed")
	}
}

func gogitRefSpec(rs string) config.RefSpec {
	return config.RefSpec(strings.TrimSpace(rs))
}

// CommonDirFS returns the filesystem backing the repository's common
// (.git) directory, for callers that need to read or write a file
// alongside the object/reference stores themselves — the resume marker
// is the one case in this module. ok is false for in-memory repos,
// which have no common directory to speak of.
func (s *Store) CommonDirFS() (fs billy.Filesystem, ok bool) {
	fsStorer, ok := s.repo.Storer.(*filesystem.Storage)
	if !ok {
		return nil, false
	}
	return fsStorer.Filesystem(), true
}

// WorktreeFS returns the worktree's filesystem, for materializing
// conflicted file content so an operator can resolve it by hand.
func (s *Store) WorktreeFS() (billy.Filesystem, error) {
	w, err := s.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w: %v", errs.ErrIO, err)
	}
	return w.Filesystem, nil
}
