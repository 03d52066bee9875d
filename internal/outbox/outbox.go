// Package outbox implements the durable queue of pending remote mutations.
//
// An entry exists if and only if its mutation has not yet been confirmed
// applied to the remote store. Entries are identified by an auto-assigned
// sequence number distinct from the payload's own id, and are replayed in
// enqueue order. The only mutation an entry ever sees is a retry-count
// increment after a failed replay; it is otherwise deleted on success or
// discarded once the retry ceiling is exceeded.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/Awaneesh03/digital-life-dashboard/internal/localstore"
	"github.com/Awaneesh03/digital-life-dashboard/internal/record"
)

// Op is the kind of remote mutation an entry carries.
type Op int

const (
	// OpCreate indicates a new record must be inserted remotely.
	OpCreate Op = iota
	// OpUpdate indicates an existing record must be updated by id.
	OpUpdate
	// OpDelete indicates a record must be deleted by id.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ParseOp converts a stored operation name back to an Op.
func ParseOp(s string) (Op, error) {
	switch s {
	case "create":
		return OpCreate, nil
	case "update":
		return OpUpdate, nil
	case "delete":
		return OpDelete, nil
	default:
		return 0, fmt.Errorf("unknown outbox operation %q", s)
	}
}

// Entry is a single pending mutation.
type Entry struct {
	// Seq is the auto-assigned queue identity, not the record id.
	Seq int64
	// Op is the mutation kind.
	Op Op
	// Collection names the entity type the mutation targets.
	Collection string
	// Record is the entity snapshot taken at enqueue time.
	Record record.Record
	// EnqueuedAt is when the mutation entered the queue.
	EnqueuedAt time.Time
	// RetryCount is how many replay attempts have failed so far.
	RetryCount int
}

// Queue is the durable outbox, stored in the same database file as the
// local collections so a crash cannot separate them.
type Queue struct {
	store *localstore.Store
}

// NewQueue creates a queue backed by the given store. The store's schema
// must already be initialized.
func NewQueue(store *localstore.Store) *Queue {
	return &Queue{store: store}
}

// Enqueue appends a mutation with a zero retry count and returns the
// stored entry. Triggering a drain is the sync engine's job, not ours.
func (q *Queue) Enqueue(ctx context.Context, op Op, collection string, rec record.Record) (Entry, error) {
	snapshot := rec.Clone()
	payload, err := snapshot.Marshal()
	if err != nil {
		return Entry{}, err
	}

	enqueuedAt := time.Now().UTC()
	res, err := q.store.RawDB().ExecContext(ctx, `
		INSERT INTO outbox (op, collection, payload, enqueued_at, retry_count)
		VALUES (?, ?, ?, ?, 0)`,
		op.String(), collection, string(payload), enqueuedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Entry{}, fmt.Errorf("failed to enqueue %s: %w: %w", op, localstore.ErrStorageUnavailable, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read outbox sequence: %w", err)
	}

	return Entry{
		Seq:        seq,
		Op:         op,
		Collection: collection,
		Record:     snapshot,
		EnqueuedAt: enqueuedAt,
	}, nil
}

// Pending returns all entries in enqueue order.
func (q *Queue) Pending(ctx context.Context) ([]Entry, error) {
	rows, err := q.store.RawDB().QueryContext(ctx, `
		SELECT seq, op, collection, payload, enqueued_at, retry_count
		FROM outbox ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w: %w", localstore.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			opName     string
			payload    string
			enqueuedAt string
		)
		if err := rows.Scan(&e.Seq, &opName, &e.Collection, &payload, &enqueuedAt, &e.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}

		e.Op, err = ParseOp(opName)
		if err != nil {
			return nil, err
		}
		e.Record, err = record.Unmarshal([]byte(payload))
		if err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, enqueuedAt); err == nil {
			e.EnqueuedAt = t
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox: %w", err)
	}

	return entries, nil
}

// Delete removes an entry after its mutation is confirmed applied, or
// when it is discarded after exhausting its retries.
func (q *Queue) Delete(ctx context.Context, seq int64) error {
	if _, err := q.store.RawDB().ExecContext(ctx,
		"DELETE FROM outbox WHERE seq = ?", seq); err != nil {
		return fmt.Errorf("failed to delete outbox entry %d: %w", seq, err)
	}
	return nil
}

// Bump increments an entry's retry count after a failed replay and
// returns the new count.
func (q *Queue) Bump(ctx context.Context, seq int64) (int, error) {
	if _, err := q.store.RawDB().ExecContext(ctx,
		"UPDATE outbox SET retry_count = retry_count + 1 WHERE seq = ?", seq); err != nil {
		return 0, fmt.Errorf("failed to bump outbox entry %d: %w", seq, err)
	}

	var n int
	err := q.store.RawDB().QueryRowContext(ctx,
		"SELECT retry_count FROM outbox WHERE seq = ?", seq).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to read retry count for entry %d: %w", seq, err)
	}
	return n, nil
}

// Size returns the number of pending entries.
func (q *Queue) Size(ctx context.Context) (int, error) {
	var n int
	err := q.store.RawDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM outbox").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w: %w", localstore.ErrStorageUnavailable, err)
	}
	return n, nil
}
