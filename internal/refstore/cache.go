package refstore

import (
	"github.com/dgraph-io/ristretto/v2"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// commitCache memoizes FindCommit lookups. Discovery, preflight, and
// rebase all re-resolve the same handful of OIDs repeatedly while
// walking a large hierarchy; decoding a commit object from the pack
// store every time is pure overhead ristretto removes cheaply.
type commitCache struct {
	c *ristretto.Cache[string, *object.Commit]
}

func newCommitCache() *commitCache {
	c, err := ristretto.NewCache(&ristretto.Config[string, *object.Commit]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		// ristretto only fails to construct on invalid config; the
		// values above are fixed and known-valid, so fall back to an
		// always-miss cache rather than propagating a config error
		// through every Store constructor.
		return &commitCache{c: nil}
	}
	return &commitCache{c: c}
}

func (cc *commitCache) get(oid OID) (*object.Commit, bool) {
	if cc.c == nil {
		return nil, false
	}
	return cc.c.Get(oid.String())
}

func (cc *commitCache) put(oid OID, commit *object.Commit) {
	if cc.c == nil {
		return
	}
	cc.c.Set(oid.String(), commit, 1)
}
