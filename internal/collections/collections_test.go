package collections

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSyncableExcludesDrafts(t *testing.T) {
	for _, name := range Syncable() {
		if name == Drafts {
			t.Fatal("drafts must not be a syncable collection")
		}
	}

	if !Valid(Drafts) {
		t.Error("drafts should still be a valid collection")
	}
	if Valid("budgets_v2") {
		t.Error("unknown collection accepted")
	}
}

func TestExpenseAmountRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("149.99")
	r := Expense{
		Description: "Groceries",
		Category:    "food",
		Amount:      amount,
		SpentAt:     "2024-03-10",
	}.Record("user-1")

	got, err := Amount(r)
	if err != nil {
		t.Fatalf("Amount failed: %v", err)
	}
	if !got.Equal(amount) {
		t.Errorf("amount = %s, want %s", got, amount)
	}
}

func TestRecordsStampRecency(t *testing.T) {
	r := Task{Title: "Water plants"}.Record("user-1")

	if r.Recency().IsZero() {
		t.Error("task record has no recency timestamp")
	}
	if r["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", r["user_id"])
	}
}
