package resolver

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Awaneesh03/digital-life-dashboard/internal/collections"
	"github.com/Awaneesh03/digital-life-dashboard/internal/identity"
	"github.com/Awaneesh03/digital-life-dashboard/internal/localstore"
	"github.com/Awaneesh03/digital-life-dashboard/internal/record"
	"github.com/Awaneesh03/digital-life-dashboard/internal/remote"
)

// fakeRemote is an in-memory remote store with failure injection.
type fakeRemote struct {
	mu      sync.Mutex
	rows    map[string]map[string]record.Record // collection -> id -> record
	updates []string                            // "collection/id" push log
	failAll bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: make(map[string]map[string]record.Record)}
}

func (f *fakeRemote) seed(collection string, rec record.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[collection] == nil {
		f.rows[collection] = make(map[string]record.Record)
	}
	f.rows[collection][rec.ID()] = rec.Clone()
}

func (f *fakeRemote) Insert(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	return nil, errors.New("not used in resolver tests")
}

func (f *fakeRemote) Update(ctx context.Context, collection, id string, patch record.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("injected network failure")
	}
	if f.rows[collection] == nil || f.rows[collection][id] == nil {
		return remote.ErrNotFound
	}
	f.rows[collection][id] = patch.Clone()
	f.updates = append(f.updates, collection+"/"+id)
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, collection, id string) error {
	return errors.New("not used in resolver tests")
}

func (f *fakeRemote) SelectAll(ctx context.Context, collection, ownerID string) ([]record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("injected network failure")
	}
	var out []record.Record
	for _, rec := range f.rows[collection] {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func setupResolver(t *testing.T) (*Resolver, *localstore.Store, *fakeRemote) {
	t.Helper()

	store, err := localstore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	rem := newFakeRemote()
	id := identity.Static{User: &identity.User{ID: "user-1", Email: "u@example.com"}}
	r := New(store, rem, id, 0, log.New(os.Stderr, "[test] ", 0))

	return r, store, rem
}

func note(id, updatedAt, content string) record.Record {
	return record.Record{
		"id":         id,
		"user_id":    "user-1",
		"content":    content,
		"updated_at": updatedAt,
	}
}

func TestLocalNewerPushesToRemote(t *testing.T) {
	r, store, rem := setupResolver(t)
	ctx := context.Background()

	// Scenario: local copy is 5s newer than remote.
	local := note("n1", "2024-01-01T00:00:05Z", "local edit")
	if err := store.Put(collections.Notes, local); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rem.seed(collections.Notes, note("n1", "2024-01-01T00:00:00Z", "stale"))

	n, err := r.Reconcile(ctx, collections.Notes)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("resolved = %d, want 1", n)
	}

	if len(rem.updates) != 1 || rem.updates[0] != "notes/n1" {
		t.Errorf("expected one remote push for notes/n1, got %v", rem.updates)
	}
	if rem.rows[collections.Notes]["n1"]["content"] != "local edit" {
		t.Error("remote copy was not overwritten with local content")
	}

	// Local side stays as it was.
	got, err := store.Get(collections.Notes, "n1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got["content"] != "local edit" {
		t.Errorf("local content = %v, want unchanged", got["content"])
	}
}

func TestRemoteNewerOverwritesLocal(t *testing.T) {
	r, store, rem := setupResolver(t)
	ctx := context.Background()

	if err := store.Put(collections.Notes, note("n1", "2024-01-01T00:00:00Z", "stale")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rem.seed(collections.Notes, note("n1", "2024-01-01T00:00:05Z", "remote edit"))

	if _, err := r.Reconcile(ctx, collections.Notes); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	got, err := store.Get(collections.Notes, "n1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got["content"] != "remote edit" {
		t.Errorf("local content = %v, want remote edit", got["content"])
	}
	if len(rem.updates) != 0 {
		t.Errorf("remote must not be touched when it wins, got pushes %v", rem.updates)
	}
}

func TestTiesWithinToleranceUntouched(t *testing.T) {
	r, store, rem := setupResolver(t)
	ctx := context.Background()

	// 800ms apart: inside the 1s window, not a conflict.
	if err := store.Put(collections.Notes, note("n1", "2024-01-01T00:00:00.800Z", "local")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rem.seed(collections.Notes, note("n1", "2024-01-01T00:00:00Z", "remote"))

	n, err := r.Reconcile(ctx, collections.Notes)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if n != 0 {
		t.Errorf("resolved = %d, want 0", n)
	}

	got, _ := store.Get(collections.Notes, "n1")
	if got["content"] != "local" {
		t.Error("tie mutated the local copy")
	}
}

func TestOutcomeSymmetricAroundTolerance(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		localOffset time.Duration
		wantContent string
	}{
		{"local 2s ahead", 2 * time.Second, "local"},
		{"local 2s behind", -2 * time.Second, "remote"},
		{"local 1s ahead exactly", time.Second, "local-untouched"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, store, rem := setupResolver(t)
			ctx := context.Background()

			localTime := base.Add(tc.localOffset).Format(time.RFC3339Nano)
			remoteTime := base.Format(time.RFC3339Nano)

			if err := store.Put(collections.Notes, note("n1", localTime, "local")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			rem.seed(collections.Notes, note("n1", remoteTime, "remote"))

			if _, err := r.Reconcile(ctx, collections.Notes); err != nil {
				t.Fatalf("Reconcile failed: %v", err)
			}

			got, _ := store.Get(collections.Notes, "n1")
			switch tc.wantContent {
			case "local", "local-untouched":
				if got["content"] != "local" {
					t.Errorf("local content = %v, want local", got["content"])
				}
			case "remote":
				if got["content"] != "remote" {
					t.Errorf("local content = %v, want remote", got["content"])
				}
			}

			if tc.wantContent == "local-untouched" && len(rem.updates) != 0 {
				t.Error("difference of exactly the tolerance must not resolve")
			}
		})
	}
}

func TestFailedPushLeavesBothSidesAlone(t *testing.T) {
	r, store, rem := setupResolver(t)
	ctx := context.Background()

	if err := store.Put(collections.Notes, note("n1", "2024-01-01T00:00:05Z", "local")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rem.seed(collections.Notes, note("n1", "2024-01-01T00:00:00Z", "remote"))
	rem.failAll = true

	// SelectAll fails: sweep errors out, nothing changes.
	if _, err := r.Reconcile(ctx, collections.Notes); err == nil {
		t.Fatal("expected error when remote is unreachable")
	}

	got, _ := store.Get(collections.Notes, "n1")
	if got["content"] != "local" {
		t.Error("failed sweep mutated local state")
	}
}

func TestMissingUserIsNoOp(t *testing.T) {
	store, err := localstore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	defer store.Close()
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	if err := store.Put(collections.Notes, note("n1", "2024-01-01T00:00:05Z", "local")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rem := newFakeRemote()
	r := New(store, rem, identity.Static{}, 0, log.New(os.Stderr, "[test] ", 0))

	n, err := r.Reconcile(context.Background(), collections.Notes)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if n != 0 {
		t.Errorf("resolved = %d, want 0 with no user", n)
	}
}
