package record

import (
	"testing"
	"time"
)

func TestRecencyPrefersUpdatedAt(t *testing.T) {
	r := Record{
		"id":         "n1",
		"created_at": "2024-01-01T00:00:00Z",
		"updated_at": "2024-01-02T12:30:00Z",
	}

	want := time.Date(2024, 1, 2, 12, 30, 0, 0, time.UTC)
	if got := r.Recency(); !got.Equal(want) {
		t.Errorf("Recency() = %v, want %v", got, want)
	}
}

func TestRecencyFallsBackToCreatedAt(t *testing.T) {
	r := Record{
		"id":         "n1",
		"created_at": "2024-01-01T00:00:00Z",
	}

	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := r.Recency(); !got.Equal(want) {
		t.Errorf("Recency() = %v, want %v", got, want)
	}
}

func TestRecencyZeroWhenAbsent(t *testing.T) {
	r := Record{"id": "n1"}
	if got := r.Recency(); !got.IsZero() {
		t.Errorf("Recency() = %v, want zero time", got)
	}
}

func TestRecencyAcceptsTimeValues(t *testing.T) {
	want := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	r := Record{"id": "n1", "updated_at": want}
	if got := r.Recency(); !got.Equal(want) {
		t.Errorf("Recency() = %v, want %v", got, want)
	}
}

func TestCloneIsolatesSnapshot(t *testing.T) {
	r := Record{"id": "t1", "title": "Buy milk"}
	snapshot := r.Clone()

	r["title"] = "Buy oat milk"

	if snapshot["title"] != "Buy milk" {
		t.Errorf("clone mutated: got %v", snapshot["title"])
	}
}

func TestTempIDs(t *testing.T) {
	id := NewTempID()
	if !IsTempID(id) {
		t.Errorf("NewTempID() = %q, not recognized as temp", id)
	}
	if IsTempID("a3f1c9e2-real-id") {
		t.Error("remote-style id misclassified as temp")
	}

	other := NewTempID()
	if id == other {
		t.Error("consecutive temp ids collided")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	r := Record{"id": "e1", "amount": "12.50", "updated_at": "2024-01-01T00:00:00Z"}

	data, err := r.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.ID() != "e1" || got["amount"] != "12.50" {
		t.Errorf("round trip lost fields: %v", got)
	}
}
