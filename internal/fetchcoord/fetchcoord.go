// Package fetchcoord updates a single plain-ref leaf from its remote
// without ever mutating a Segment or Sum reference.
package fetchcoord

import (
	"fmt"
	"strings"

	"github.com/kmrtdsii/githierarchy/internal/errs"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
)

const remotesNamespace = "refs/remotes/"

// Coordinate updates refName (a plain-ref leaf's full name).
// refName is either under the remote-tracking namespace
// ("refs/remotes/<remote>/<branch>") or a local branch
// ("refs/heads/<name>").
func Coordinate(store *refstore.Store, refName string) error {
	if strings.HasPrefix(refName, remotesNamespace) {
		return fetchRemoteTracking(store, refName)
	}
	return fetchLocalBranch(store, refName)
}

func fetchRemoteTracking(store *refstore.Store, refName string) error {
	rest := strings.TrimPrefix(refName, remotesNamespace)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return fmt.Errorf("fetch %s: %w: malformed remote-tracking name", refName, errs.ErrNotFound)
	}
	remote, branch := parts[0], parts[1]
	refspec := fmt.Sprintf("+refs/heads/%s:%s", branch, refName)
	return store.Fetch(remote, []string{refspec}, "fetch")
}

func fetchLocalBranch(store *refstore.Store, refName string) error {
	branchName := strings.TrimPrefix(refName, "refs/heads/")
	cfg, err := store.Repository().Config()
	if err != nil {
		return fmt.Errorf("fetch %s: %w: %v", refName, errs.ErrIO, err)
	}
	branchCfg, ok := cfg.Branches[branchName]
	if !ok || branchCfg.Remote == "" {
		return nil // no upstream configured: nothing for the fetch coordinator to do.
	}

	localRef, err := store.Resolve(refName)
	if err != nil {
		return err
	}
	mergeShort := strings.TrimPrefix(branchCfg.Merge.String(), "refs/heads/")
	trackingName := fmt.Sprintf("refs/remotes/%s/%s", branchCfg.Remote, mergeShort)

	var priorUpstream refstore.OID
	if trackingRef, err := store.Resolve(trackingName); err == nil {
		priorUpstream = trackingRef.Hash()
	}
	if priorUpstream != refstore.ZeroOID && priorUpstream != localRef.Hash() {
		return fmt.Errorf("fetch %s: %w", refName, errs.ErrUpstreamDiverged)
	}

	refspec := fmt.Sprintf("+refs/heads/%s:%s", mergeShort, trackingName)
	if err := store.Fetch(branchCfg.Remote, []string{refspec}, "fetch"); err != nil {
		return err
	}

	newUpstream, err := store.Resolve(trackingName)
	if err != nil {
		return err
	}
	if newUpstream.Hash() != localRef.Hash() {
		return store.SetTarget(refName, newUpstream.Hash(), "fast-forward")
	}
	return nil
}
