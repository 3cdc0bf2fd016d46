package rebase_test

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrtdsii/githierarchy/internal/errs"
	"github.com/kmrtdsii/githierarchy/internal/rebase"
)

func TestMarker_WriteAppendReadRoundTrip(t *testing.T) {
	fs := memfs.New()
	assert.False(t, rebase.Exists(fs))

	c1 := plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	c2 := plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	digest := rebase.Digest(c1, "refs/heads/main")

	require.NoError(t, rebase.Write(fs, "feature", digest))
	assert.True(t, rebase.Exists(fs))

	require.NoError(t, rebase.Append(fs, 0, c1))
	require.NoError(t, rebase.Append(fs, 1, c2))

	m, err := rebase.Read(fs)
	require.NoError(t, err)
	assert.Equal(t, "feature", m.SegmentName)
	assert.Equal(t, digest, m.Digest)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, rebase.MarkerEntry{Status: 0, OID: c1}, m.Entries[0])
	assert.Equal(t, rebase.MarkerEntry{Status: 1, OID: c2}, m.Entries[1])

	require.NoError(t, rebase.Delete(fs))
	assert.False(t, rebase.Exists(fs))
}

func TestMarker_ReadWithoutEntries(t *testing.T) {
	fs := memfs.New()
	digest := rebase.Digest(plumbing.ZeroHash, "refs/heads/main")
	require.NoError(t, rebase.Write(fs, "feature", digest))

	m, err := rebase.Read(fs)
	require.NoError(t, err)
	assert.Equal(t, "feature", m.SegmentName)
	assert.Empty(t, m.Entries)
}

func TestMarker_TruncatedFileIsCorrupt(t *testing.T) {
	fs := memfs.New()
	f, err := fs.Create(rebase.MarkerFileName)
	require.NoError(t, err)
	_, err = f.Write([]byte("feature\n"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = rebase.Read(fs)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrCorruptHierarchy)
}

func TestDigest_DistinguishesStartAndBase(t *testing.T) {
	a := plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	assert.Equal(t, rebase.Digest(a, "refs/heads/main"), rebase.Digest(a, "refs/heads/main"))
	assert.NotEqual(t, rebase.Digest(a, "refs/heads/main"), rebase.Digest(b, "refs/heads/main"))
	assert.NotEqual(t, rebase.Digest(a, "refs/heads/main"), rebase.Digest(a, "refs/heads/other"))
}
