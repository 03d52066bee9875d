// Package resolver reconciles divergent local and remote copies of the
// same record using last-write-wins on recency timestamps.
//
// Reconciliation is a sweep, not a live merge protocol: it runs once per
// collection on startup and on reconnect, compares whole records, and
// replaces the stale side. Field-level merging is out of scope.
package resolver

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Awaneesh03/digital-life-dashboard/internal/collections"
	"github.com/Awaneesh03/digital-life-dashboard/internal/identity"
	"github.com/Awaneesh03/digital-life-dashboard/internal/localstore"
	"github.com/Awaneesh03/digital-life-dashboard/internal/remote"
)

// Tolerance is the recency window inside which two copies are considered
// the same write. It absorbs clock skew and serialization noise between
// the local store and the backend.
const Tolerance = time.Second

// Resolver scans collections for divergent record pairs and resolves
// them deterministically.
type Resolver struct {
	local     *localstore.Store
	remote    remote.Store
	identity  identity.Provider
	tolerance time.Duration
	logger    *log.Logger
}

// New creates a resolver. If logger is nil, a default stderr logger is
// used. A zero tolerance falls back to the Tolerance constant.
func New(local *localstore.Store, rs remote.Store, id identity.Provider, tolerance time.Duration, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(os.Stderr, "[resolver] ", log.LstdFlags)
	}
	if tolerance <= 0 {
		tolerance = Tolerance
	}
	return &Resolver{
		local:     local,
		remote:    rs,
		identity:  id,
		tolerance: tolerance,
		logger:    logger,
	}
}

// Reconcile sweeps one collection and returns how many conflicts it
// resolved. A missing user short-circuits with no side effect.
//
// For each local record with a remote counterpart whose recency differs
// by more than the tolerance: if local is strictly newer the full local
// record is pushed remote; otherwise the local copy is overwritten with
// the remote record. Ties within tolerance are left untouched.
//
// A failed remote push leaves that pair unresolved; the next sweep
// retries it. Local state is never changed before the remote call that
// justifies the change has succeeded.
func (r *Resolver) Reconcile(ctx context.Context, collection string) (int, error) {
	user, err := r.identity.CurrentUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve current user: %w", err)
	}
	if user == nil {
		return 0, nil
	}

	local, err := r.local.GetAllContext(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to read local %s: %w", collection, err)
	}
	if len(local) == 0 {
		return 0, nil
	}

	remoteRecs, err := r.remote.SelectAll(ctx, collection, user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch remote %s: %w", collection, err)
	}

	byID := make(map[string]int, len(remoteRecs))
	for i, rec := range remoteRecs {
		byID[rec.ID()] = i
	}

	resolved := 0
	for _, loc := range local {
		idx, ok := byID[loc.ID()]
		if !ok {
			continue
		}
		rem := remoteRecs[idx]

		diff := loc.Recency().Sub(rem.Recency())
		if diff.Abs() <= r.tolerance {
			continue
		}

		if diff > 0 {
			// Local wins: push the whole record. On failure the pair
			// stays divergent and the next sweep retries.
			if err := r.remote.Update(ctx, collection, loc.ID(), loc); err != nil && !remote.IsNotFound(err) {
				r.logger.Printf("Warning: failed to push %s/%s: %v", collection, loc.ID(), err)
				continue
			}
		} else {
			if err := r.local.PutContext(ctx, collection, rem); err != nil {
				return resolved, fmt.Errorf("failed to apply remote copy of %s/%s: %w", collection, loc.ID(), err)
			}
		}

		resolved++
	}

	if resolved > 0 {
		r.logger.Printf("Reconciled %s: %d conflict(s) resolved", collection, resolved)
	}
	return resolved, nil
}

// ReconcileAll sweeps every syncable collection and returns the total
// number of conflicts resolved. Collection sweeps are independent; a
// failing collection is logged and the rest still run.
func (r *Resolver) ReconcileAll(ctx context.Context) int {
	total := 0
	for _, collection := range collections.Syncable() {
		n, err := r.Reconcile(ctx, collection)
		if err != nil {
			r.logger.Printf("Warning: reconcile %s failed: %v", collection, err)
			continue
		}
		total += n
	}
	return total
}
