// Package record defines the generic entity record shared by the local
// store, the outbox, and the remote store client.
//
// A record is a field→value mapping, always carrying a unique "id" and,
// for syncable entities, an "updated_at" timestamp used for recency
// comparisons (falling back to "created_at" when absent).
package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// tempIDPrefix marks locally generated placeholder ids. Remote-issued ids
// never carry this prefix, so a temp id cannot collide with a real one.
const tempIDPrefix = "temp_"

// Record is a single entity record: a mapping of field name to value.
type Record map[string]any

// ID returns the record's "id" field, or "" when missing or not a string.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// SetID sets the record's "id" field.
func (r Record) SetID(id string) {
	r["id"] = id
}

// Recency returns the timestamp used for last-write-wins comparisons:
// "updated_at" when present, otherwise "created_at". Returns the zero
// time when neither field is set or parseable.
func (r Record) Recency() time.Time {
	if t, ok := r.timeField("updated_at"); ok {
		return t
	}
	if t, ok := r.timeField("created_at"); ok {
		return t
	}
	return time.Time{}
}

// Touch stamps "updated_at" with the current UTC time.
func (r Record) Touch() {
	r["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
}

// Clone returns a copy of the record. Field values are copied by
// assignment; records hold scalar JSON values, so this is sufficient to
// keep an outbox snapshot isolated from later edits.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// timeField parses the named field as a timestamp. Accepts time.Time
// values and RFC 3339 strings (what the remote store returns).
func (r Record) timeField(name string) (time.Time, bool) {
	switch v := r[name].(type) {
	case time.Time:
		return v, true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Marshal serializes the record to JSON for storage.
func (r Record) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}

// Unmarshal parses a stored JSON payload into a Record.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return r, nil
}

// NewTempID generates a placeholder id for records created while offline.
// The id is superseded by the remote-issued id once the create syncs.
func NewTempID() string {
	return tempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id is a locally generated placeholder.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}
