package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// SqliteStore keeps all collections in a single SQLite database.
//
// Tables:
//
//	collections(name)              PRIMARY KEY (name)
//	records(collection, data)      insertion order preserved via rowid
//
// Collections exist as rows in the collections table even when empty,
// matching the document store's "collection must be present to accept
// records" rule. An empty database is seeded with the sample document.
type SqliteStore struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL REFERENCES collections(name),
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	s := &SqliteStore{db: db}
	if err := s.seedIfEmpty(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) seedIfEmpty() error {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM collections").Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	doc := defaultDocument()
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, name := range names {
		if _, err := tx.Exec("INSERT INTO collections (name) VALUES (?)", name); err != nil {
			return err
		}
		for _, rec := range doc[name] {
			b, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if _, err := tx.Exec("INSERT INTO records (collection, data) VALUES (?, ?)", name, string(b)); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SqliteStore) hasCollection(collection string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM collections WHERE name = ?", collection).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// rowRecords returns every record in a collection along with its rowid,
// in insertion order.
func (s *SqliteStore) rowRecords(collection string) ([]int64, []Record, error) {
	rows, err := s.db.Query("SELECT rowid, data FROM records WHERE collection = ? ORDER BY rowid", collection)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var ids []int64
	var records []Record
	for rows.Next() {
		var rowid int64
		var raw string
		if err := rows.Scan(&rowid, &raw); err != nil {
			return nil, nil, err
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, nil, fmt.Errorf("corrupt record in %s: %w", collection, err)
		}
		ids = append(ids, rowid)
		records = append(records, rec)
	}
	return ids, records, rows.Err()
}

func (s *SqliteStore) Collections() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT name FROM collections ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SqliteStore) List(collection string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.hasCollection(collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCollectionNotFound
	}
	_, records, err := s.rowRecords(collection)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (s *SqliteStore) Create(collection string, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.hasCollection(collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCollectionNotFound
	}
	rec := newRecord(fields)
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec("INSERT INTO records (collection, data) VALUES (?, ?)", collection, string(b)); err != nil {
		return nil, err
	}
	return deepCopy(rec), nil
}

func (s *SqliteStore) Update(collection string, id float64, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.hasCollection(collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCollectionNotFound
	}
	rowids, records, err := s.rowRecords(collection)
	if err != nil {
		return nil, err
	}
	i := findIndex(records, id)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	merged := mergeRecord(records[i], fields)
	b, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec("UPDATE records SET data = ? WHERE rowid = ?", string(b), rowids[i]); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *SqliteStore) Delete(collection string, id float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.hasCollection(collection)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCollectionNotFound
	}
	rowids, records, err := s.rowRecords(collection)
	if err != nil {
		return err
	}
	i := findIndex(records, id)
	if i < 0 {
		return ErrItemNotFound
	}
	_, err = s.db.Exec("DELETE FROM records WHERE rowid = ?", rowids[i])
	return err
}
