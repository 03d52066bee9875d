// Package collections fixes the set of local collections and provides
// typed payload helpers for the domain modules that call into the sync
// core. Collection names double as local table names and remote table
// names, so they are validated here once.
package collections

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Awaneesh03/digital-life-dashboard/internal/record"
)

// Collection names. Drafts and the outbox live alongside the syncable
// collections in local storage but never sync as entities themselves.
const (
	Tasks    = "tasks"
	Expenses = "expenses"
	Habits   = "habits"
	Notes    = "notes"
	Goals    = "goals"
	Drafts   = "drafts"
)

// Syncable returns the collections that participate in outbox replay and
// reconciliation sweeps, in a stable order.
func Syncable() []string {
	return []string{Tasks, Expenses, Habits, Notes, Goals}
}

// IsSyncable reports whether name is a syncable entity collection.
func IsSyncable(name string) bool {
	for _, c := range Syncable() {
		if c == name {
			return true
		}
	}
	return false
}

// Valid reports whether name is any known collection, drafts included.
func Valid(name string) bool {
	return name == Drafts || IsSyncable(name)
}

// Task is the payload of a task record.
type Task struct {
	Title    string
	Notes    string
	Priority string
	DueDate  string
	Done     bool
}

// Record builds an entity record for the task, stamping created_at and
// updated_at for recency comparisons.
func (t Task) Record(userID string) record.Record {
	r := baseRecord(userID)
	r["title"] = t.Title
	r["notes"] = t.Notes
	r["priority"] = t.Priority
	r["due_date"] = t.DueDate
	r["completed"] = t.Done
	return r
}

// Expense is the payload of an expense record. Amounts are decimal to
// avoid float drift in budget math.
type Expense struct {
	Description string
	Category    string
	Amount      decimal.Decimal
	SpentAt     string
}

// Record builds an entity record for the expense. The amount travels as
// its exact string form.
func (e Expense) Record(userID string) record.Record {
	r := baseRecord(userID)
	r["description"] = e.Description
	r["category"] = e.Category
	r["amount"] = e.Amount.String()
	r["spent_at"] = e.SpentAt
	return r
}

// Amount parses the "amount" field of an expense record.
func Amount(r record.Record) (decimal.Decimal, error) {
	raw, _ := r["amount"].(string)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse expense amount %q: %w", raw, err)
	}
	return d, nil
}

// Habit is the payload of a habit record.
type Habit struct {
	Name      string
	Frequency string
	Streak    int
}

func (h Habit) Record(userID string) record.Record {
	r := baseRecord(userID)
	r["name"] = h.Name
	r["frequency"] = h.Frequency
	r["streak"] = h.Streak
	return r
}

// Note is the payload of a note record.
type Note struct {
	Title   string
	Content string
	Pinned  bool
}

func (n Note) Record(userID string) record.Record {
	r := baseRecord(userID)
	r["title"] = n.Title
	r["content"] = n.Content
	r["pinned"] = n.Pinned
	return r
}

// Goal is the payload of a savings-goal record.
type Goal struct {
	Name    string
	Target  decimal.Decimal
	Saved   decimal.Decimal
	DueDate string
}

func (g Goal) Record(userID string) record.Record {
	r := baseRecord(userID)
	r["name"] = g.Name
	r["target_amount"] = g.Target.String()
	r["saved_amount"] = g.Saved.String()
	r["due_date"] = g.DueDate
	return r
}

func baseRecord(userID string) record.Record {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return record.Record{
		"user_id":    userID,
		"created_at": now,
		"updated_at": now,
	}
}
