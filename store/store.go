// Package store defines the backing store interface and implementations.
package store

import (
	"encoding/json"
	"errors"
	"time"
)

// Record is a single stored entity: an arbitrary JSON object. Once
// stored it carries an "id" field; everything else is whatever the
// client supplied.
type Record = map[string]any

var (
	// ErrCollectionNotFound reports a collection name absent from the
	// loaded document. Collections are never created on demand.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrItemNotFound reports that no record in an existing collection
	// matched the requested id.
	ErrItemNotFound = errors.New("item not found")
)

// Store is the interface that all backing stores must implement.
// It operates on named collections, where each collection is an
// ordered sequence of records looked up by numeric id.
type Store interface {
	// Collections returns the names of all collections, sorted.
	Collections() ([]string, error)

	// List returns every record in a collection, order preserved.
	List(collection string) ([]Record, error)

	// Create appends a new record built from the caller's fields and a
	// generated id, and returns it.
	Create(collection string, fields Record) (Record, error)

	// Update shallow-merges fields over the first record whose id
	// matches, in place, and returns the merged record.
	Update(collection string, id float64, fields Record) (Record, error)

	// Delete removes the first record whose id matches.
	Delete(collection string, id float64) error
}

// newRecord builds a record for Create: the generated id is assigned
// first and the caller's fields are copied over it afterwards, so a
// caller-supplied "id" wins over the generated one. Ids are the current
// Unix time in milliseconds and can collide under rapid creates.
func newRecord(fields Record) Record {
	rec := make(Record, len(fields)+1)
	rec["id"] = float64(time.Now().UnixMilli())
	for k, v := range fields {
		rec[k] = v
	}
	return rec
}

// mergeRecord shallow-merges fields over existing; caller fields win,
// including "id" if supplied.
func mergeRecord(existing, fields Record) Record {
	merged := make(Record, len(existing)+len(fields))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

// recordID extracts a record's id as a float64. JSON decoding yields
// float64; msgpack yields int64 or uint64 for integers.
func recordID(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// findIndex returns the position of the first record whose id equals
// id, or -1. A NaN id matches nothing.
func findIndex(records []Record, id float64) int {
	for i, rec := range records {
		if v, ok := recordID(rec["id"]); ok && v == id {
			return i
		}
	}
	return -1
}

// deepCopy returns a deep copy of a record by round-tripping through JSON.
func deepCopy(src Record) Record {
	if src == nil {
		return nil
	}
	b, _ := json.Marshal(src)
	var dst Record
	_ = json.Unmarshal(b, &dst)
	return dst
}

// defaultDocument is the seed state used when a backend has no usable
// data: three sample collections with a few records each.
func defaultDocument() map[string][]Record {
	return map[string][]Record{
		"users": {
			{"id": float64(1), "name": "Alice Freeman", "email": "alice@example.com"},
			{"id": float64(2), "name": "Bob Tanner", "email": "bob@example.com"},
		},
		"posts": {
			{"id": float64(1), "title": "Hello world", "author": "Alice Freeman"},
			{"id": float64(2), "title": "Second post", "author": "Bob Tanner"},
		},
		"products": {
			{"id": float64(1), "name": "Widget", "price": float64(9.99)},
			{"id": float64(2), "name": "Gadget", "price": float64(24.5)},
		},
	}
}
