package rebase

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/zeebo/blake3"

	"github.com/kmrtdsii/githierarchy/internal/errs"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
)

// MarkerFileName is the resume marker's name inside the repository's
// common directory.
const MarkerFileName = ".segment-cherry-pick"

// MarkerEntry is one `(<status>\n<oid>\n)` pair.
type MarkerEntry struct {
	Status int // 0 = applied, 1 = failed and caused suspension.
	OID    refstore.OID
}

// Marker is the parsed resume marker. Digest is a blake3 hash of the
// segment's start OID and base reference name at the moment the marker
// was written, so resume can detect that start/N or base/N moved out
// from under a suspended rebase instead of silently continuing against
// stale state. It is the line after the segment name, before the
// entries.
type Marker struct {
	SegmentName string
	Digest      string
	Entries     []MarkerEntry
}

// Digest computes the staleness digest for a given start OID and base
// reference name.
func Digest(startOID refstore.OID, baseRefName string) string {
	sum := blake3.Sum256([]byte(startOID.String() + "\x00" + baseRefName))
	return hex.EncodeToString(sum[:])
}

func markerPath() string { return MarkerFileName }

// Exists reports whether a resume marker is present, the authoritative
// signal that a resume is available.
func Exists(fs billy.Filesystem) bool {
	_, err := fs.Stat(markerPath())
	return err == nil
}

// Write truncates (or creates) the marker file with segment name and
// digest, and no entries yet.
func Write(fs billy.Filesystem, segmentName, digest string) error {
	f, err := fs.Create(markerPath())
	if err != nil {
		return fmt.Errorf("write marker: %w: %v", errs.ErrIO, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s\n%s\n", segmentName, digest); err != nil {
		return fmt.Errorf("write marker: %w: %v", errs.ErrIO, err)
	}
	return nil
}

// Append adds one (status, oid) record to the marker, the per-commit
// bookkeeping the replay loop writes as it goes.
func Append(fs billy.Filesystem, status int, oid refstore.OID) error {
	f, err := fs.OpenFile(markerPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append marker: %w: %v", errs.ErrIO, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%d\n%s\n", status, oid.String()); err != nil {
		return fmt.Errorf("append marker: %w: %v", errs.ErrIO, err)
	}
	return nil
}

// Read parses the marker file.
func Read(fs billy.Filesystem) (*Marker, error) {
	f, err := fs.Open(markerPath())
	if err != nil {
		return nil, fmt.Errorf("read marker: %w: %v", errs.ErrNotFound, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read marker: %w: %v", errs.ErrIO, err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("read marker: %w: truncated marker file", errs.ErrCorruptHierarchy)
	}
	m := &Marker{SegmentName: lines[0], Digest: lines[1]}
	rest := lines[2:]
	if len(rest) == 1 && rest[0] == "" {
		rest = nil
	}
	if len(rest)%2 != 0 {
		return nil, fmt.Errorf("read marker: %w: odd number of entry lines", errs.ErrCorruptHierarchy)
	}
	for i := 0; i < len(rest); i += 2 {
		status, serr := strconv.Atoi(rest[i])
		if serr != nil {
			return nil, fmt.Errorf("read marker: %w: bad status %q", errs.ErrCorruptHierarchy, rest[i])
		}
		m.Entries = append(m.Entries, MarkerEntry{Status: status, OID: plumbing.NewHash(rest[i+1])})
	}
	return m, nil
}

// Delete removes the marker file after the final reference updates
// have landed.
func Delete(fs billy.Filesystem) error {
	if err := fs.Remove(markerPath()); err != nil {
		return fmt.Errorf("delete marker: %w: %v", errs.ErrIO, err)
	}
	return nil
}
