package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Awaneesh03/digital-life-dashboard/internal/record"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestInsertReturnsIssuedID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/v1/tasks" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "test-key" {
			t.Error("missing apikey header")
		}

		var rec record.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Fatalf("bad insert body: %v", err)
		}

		rec["id"] = "srv-42"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]record.Record{rec})
	})

	got, err := client.Insert(context.Background(), "tasks", record.Record{"title": "Buy milk"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if got.ID() != "srv-42" {
		t.Errorf("id = %q, want srv-42", got.ID())
	}
	if got["title"] != "Buy milk" {
		t.Errorf("title = %v, want Buy milk", got["title"])
	}
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("unexpected method %s", r.Method)
		}
		// Filter matched nothing: empty representation.
		w.Write([]byte("[]"))
	})

	err := client.Update(context.Background(), "notes", "n1", record.Record{"title": "x"})
	if !IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeletePassesIDFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "eq.n1" {
			t.Errorf("id filter = %q, want eq.n1", got)
		}
		json.NewEncoder(w).Encode([]record.Record{{"id": "n1"}})
	})

	if err := client.Delete(context.Background(), "notes", "n1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}

func TestSelectAllScopedToOwner(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_id"); got != "eq.user-1" {
			t.Errorf("owner filter = %q, want eq.user-1", got)
		}
		json.NewEncoder(w).Encode([]record.Record{
			{"id": "a", "user_id": "user-1"},
			{"id": "b", "user_id": "user-1"},
		})
	})

	rows, err := client.SelectAll(context.Background(), "expenses", "user-1")
	if err != nil {
		t.Fatalf("SelectAll failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	})

	_, err := client.Insert(context.Background(), "tasks", record.Record{"title": "x"})
	if err == nil {
		t.Fatal("expected error on 502")
	}
	if IsNotFound(err) {
		t.Error("transport failure must not look like a missing record")
	}
}
