package store

import (
	"path/filepath"
)

// New creates a Store for the given data path, choosing the backend by
// extension:
//
//	":memory:"                  - in-memory (ephemeral)
//	".db", ".sqlite", ".sqlite3" - SQLite database
//	".bolt"                     - bbolt database
//	anything else               - single JSON document file (default)
func New(path string) (Store, error) {
	if path == ":memory:" {
		return NewMemoryStore(), nil
	}
	switch filepath.Ext(path) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSqliteStore(path)
	case ".bolt":
		return NewBoltStore(path)
	default:
		return NewDocumentStore(path), nil
	}
}
