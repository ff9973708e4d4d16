package store

import (
	"encoding/json"
	"log"
	"os"
	"sort"
	"sync"
)

// DocumentStore keeps every collection in a single JSON file: one
// top-level object whose keys are collection names and whose values are
// arrays of records.
//
// The whole document lives in memory; every mutation rewrites the full
// file. That is O(document size) per single-record change and is the
// scalability ceiling of this backend.
type DocumentStore struct {
	mu   sync.Mutex
	path string
	doc  map[string][]Record
}

// NewDocumentStore loads the document at path. A missing or unparsable
// file is not an error: the store starts from the built-in sample
// document and logs a warning.
func NewDocumentStore(path string) *DocumentStore {
	s := &DocumentStore{path: path}
	s.doc = s.load()
	return s
}

func (s *DocumentStore) load() map[string][]Record {
	b, err := os.ReadFile(s.path)
	if err != nil {
		log.Printf("no data file at %s, starting with sample data: %v", s.path, err)
		return defaultDocument()
	}
	var doc map[string][]Record
	if err := json.Unmarshal(b, &doc); err != nil {
		log.Printf("could not parse %s, starting with sample data: %v", s.path, err)
		return defaultDocument()
	}
	return doc
}

// save rewrites the backing file from the in-memory document. A write
// failure is logged and absorbed: the in-memory mutation stands and the
// divergence from disk is never reconciled. Callers must hold mu.
func (s *DocumentStore) save() {
	b, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		log.Printf("could not serialize document: %v", err)
		return
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		log.Printf("could not persist document to %s: %v", s.path, err)
	}
}

func (s *DocumentStore) Collections() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.doc))
	for name := range s.doc {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *DocumentStore) List(collection string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.doc[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = deepCopy(rec)
	}
	return out, nil
}

func (s *DocumentStore) Create(collection string, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.doc[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	rec := newRecord(fields)
	s.doc[collection] = append(records, rec)
	s.save()
	return deepCopy(rec), nil
}

func (s *DocumentStore) Update(collection string, id float64, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.doc[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	i := findIndex(records, id)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	merged := mergeRecord(records[i], fields)
	records[i] = merged
	s.save()
	return deepCopy(merged), nil
}

func (s *DocumentStore) Delete(collection string, id float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.doc[collection]
	if !ok {
		return ErrCollectionNotFound
	}
	i := findIndex(records, id)
	if i < 0 {
		return ErrItemNotFound
	}
	s.doc[collection] = append(records[:i], records[i+1:]...)
	s.save()
	return nil
}
