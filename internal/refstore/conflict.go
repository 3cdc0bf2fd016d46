package refstore

import (
	"io"
	"path"

	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// WriteConflictFiles materializes every conflicted entry's marked
// content into the worktree so an operator can resolve it the ordinary
// way (open the file, remove the markers, save).
func (s *Store) WriteConflictFiles(idx *Index) error {
	fs, err := s.WorktreeFS()
	if err != nil {
		return err
	}
	for _, p := range idx.ConflictedPaths() {
		entry := idx.entries[p]
		if err := fs.MkdirAll(path.Dir(p), 0o755); err != nil {
			return err
		}
		f, err := fs.Create(p)
		if err != nil {
			return err
		}
		_, werr := f.Write(entry.Content)
		cerr := f.Close()
		if werr != nil {
			return werr
		}
		if cerr != nil {
			return cerr
		}
	}
	return nil
}

// ResolveConflictsFromWorktree re-reads each conflicted path's current
// worktree content and stages it, the git-cherry-pick---continue
// convention: the operator edited the file in place to remove the
// conflict markers, and whatever is there now is the resolution. A path
// that no longer exists on disk resolves to "deleted".
func (s *Store) ResolveConflictsFromWorktree(idx *Index) error {
	fs, err := s.WorktreeFS()
	if err != nil {
		return err
	}
	for _, p := range idx.ConflictedPaths() {
		f, err := fs.Open(p)
		if err != nil {
			idx.ResolveDeleted(p)
			continue
		}
		content, rerr := io.ReadAll(f)
		_ = f.Close()
		if rerr != nil {
			return rerr
		}
		blobOID, werr := s.writeBlob(content)
		if werr != nil {
			return werr
		}
		idx.Stage(p, filemode.Regular, blobOID)
	}
	return nil
}
