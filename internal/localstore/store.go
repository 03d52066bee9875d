// Package localstore provides the durable local persistence layer for the
// offline-sync core.
//
// The store is an embedded SQLite database with one table per collection
// (tasks, expenses, habits, notes, goals, drafts) plus the outbox table of
// pending remote mutations. It runs with WAL enabled so status readers can
// query while a drain pass writes.
//
// The store is pure storage: it has no network awareness and no knowledge
// of sync state beyond holding the outbox rows.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/Awaneesh03/digital-life-dashboard/internal/collections"
	"github.com/Awaneesh03/digital-life-dashboard/internal/record"
)

// ErrStorageUnavailable wraps storage-layer failures (quota, corruption,
// closed database). Callers must surface it rather than claim success.
var ErrStorageUnavailable = errors.New("local storage unavailable")

// ErrUnknownCollection is returned for collection names outside the fixed
// set created at initialization.
var ErrUnknownCollection = errors.New("unknown collection")

// Store wraps the SQLite connection holding all local collections.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new store at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// Missing parent directories are created. The caller MUST call Close()
// when done.
//
// Example:
//
//	store, err := localstore.Open(filepath.Join(dir, "lifedash.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping local store: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection. The outbox queue shares
// this connection so entries persist in the same database file.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close local store: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the collection tables and the outbox table if they
// don't exist. Idempotent; there is no versioned migration beyond
// "create missing tables on first run".
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	for _, name := range append(collections.Syncable(), collections.Drafts) {
		stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT ''
		)`, name)
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s table: %w", name, err)
		}
	}

	outbox := `
	CREATE TABLE IF NOT EXISTS outbox (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		op TEXT NOT NULL,
		collection TEXT NOT NULL,
		payload TEXT NOT NULL,
		enqueued_at TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_outbox_enqueued ON outbox(enqueued_at);
	`
	if _, err := s.conn.ExecContext(ctx, outbox); err != nil {
		return fmt.Errorf("failed to create outbox table: %w", err)
	}

	return nil
}

// Put upserts a record into the collection, keyed by the record's id.
func (s *Store) Put(collection string, rec record.Record) error {
	return s.PutContext(context.Background(), collection, rec)
}

// PutContext upserts a record with context support.
func (s *Store) PutContext(ctx context.Context, collection string, rec record.Record) error {
	if !collections.Valid(collection) {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if rec.ID() == "" {
		return fmt.Errorf("record has no id")
	}

	payload, err := rec.Marshal()
	if err != nil {
		return err
	}

	query := `
	INSERT INTO ` + collection + ` (id, payload, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		payload = excluded.payload,
		updated_at = excluded.updated_at
	`

	updatedAt := ""
	if t := rec.Recency(); !t.IsZero() {
		updatedAt = t.UTC().Format(time.RFC3339Nano)
	}

	if _, err := s.conn.ExecContext(ctx, query, rec.ID(), string(payload), updatedAt); err != nil {
		return storageErr("failed to persist record", err)
	}
	return nil
}

// Get returns the record with the given id, or (nil, nil) when absent.
func (s *Store) Get(collection, id string) (record.Record, error) {
	return s.GetContext(context.Background(), collection, id)
}

// GetContext returns a single record with context support.
func (s *Store) GetContext(ctx context.Context, collection, id string) (record.Record, error) {
	if !collections.Valid(collection) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	var payload string
	err := s.conn.QueryRowContext(ctx,
		"SELECT payload FROM "+collection+" WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("failed to read record", err)
	}

	return record.Unmarshal([]byte(payload))
}

// GetAll returns every record in the collection. An empty collection
// yields an empty slice, not an error.
func (s *Store) GetAll(collection string) ([]record.Record, error) {
	return s.GetAllContext(context.Background(), collection)
}

// GetAllContext returns all records with context support.
func (s *Store) GetAllContext(ctx context.Context, collection string) ([]record.Record, error) {
	if !collections.Valid(collection) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	rows, err := s.conn.QueryContext(ctx,
		"SELECT payload FROM "+collection+" ORDER BY id")
	if err != nil {
		return nil, storageErr("failed to scan collection", err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, storageErr("failed to scan record", err)
		}
		rec, err := record.Unmarshal([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to iterate collection", err)
	}

	return out, nil
}

// Delete removes the record if present. Deleting an absent record is a
// no-op, not an error.
func (s *Store) Delete(collection, id string) error {
	return s.DeleteContext(context.Background(), collection, id)
}

// DeleteContext removes a record with context support.
func (s *Store) DeleteContext(ctx context.Context, collection, id string) error {
	if !collections.Valid(collection) {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	if _, err := s.conn.ExecContext(ctx,
		"DELETE FROM "+collection+" WHERE id = ?", id); err != nil {
		return storageErr("failed to delete record", err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	if !collections.Valid(collection) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	var n int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+collection).Scan(&n)
	if err != nil {
		return 0, storageErr("failed to count collection", err)
	}
	return n, nil
}

func storageErr(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, ErrStorageUnavailable, err)
}
