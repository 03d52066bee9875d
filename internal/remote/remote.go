// Package remote defines the boundary to the hosted backend's table
// primitives and provides an HTTP client speaking its REST dialect.
//
// The sync engine and the conflict resolver only ever touch the four
// primitives in Store; any transport or policy failure is treated
// uniformly as "not yet applied" and retried through the outbox.
package remote

import (
	"context"
	"errors"

	"github.com/Awaneesh03/digital-life-dashboard/internal/record"
)

// ErrNotFound is returned when an update or delete targets a record the
// remote store does not have. Replay logic treats it as success: the
// record already reached the desired state through another path.
var ErrNotFound = errors.New("remote record not found")

// Store is the set of remote table primitives the sync core consumes.
// Every operation is scoped to the owning user by the backend's row
// policies; SelectAll additionally filters explicitly.
type Store interface {
	// Insert creates a record and returns the stored copy carrying the
	// remote-issued id.
	Insert(ctx context.Context, collection string, rec record.Record) (record.Record, error)

	// Update overwrites the record with the given id. Returns
	// ErrNotFound when no such record exists.
	Update(ctx context.Context, collection, id string, patch record.Record) error

	// Delete removes the record with the given id. Returns ErrNotFound
	// when no such record exists.
	Delete(ctx context.Context, collection, id string) error

	// SelectAll returns every record in the collection owned by ownerID.
	SelectAll(ctx context.Context, collection, ownerID string) ([]record.Record, error)
}

// IsNotFound reports whether err means the target record is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
