package store

import (
	"sort"
	"sync"
)

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use. Starts seeded with the sample document so it
// behaves like a freshly created file-backed store.
type MemoryStore struct {
	mu  sync.Mutex
	doc map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{doc: defaultDocument()}
}

func (m *MemoryStore) Collections() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.doc))
	for name := range m.doc {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) List(collection string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records, ok := m.doc[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = deepCopy(rec)
	}
	return out, nil
}

func (m *MemoryStore) Create(collection string, fields Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records, ok := m.doc[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	rec := newRecord(fields)
	m.doc[collection] = append(records, rec)
	return deepCopy(rec), nil
}

func (m *MemoryStore) Update(collection string, id float64, fields Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records, ok := m.doc[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	i := findIndex(records, id)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	merged := mergeRecord(records[i], fields)
	records[i] = merged
	return deepCopy(merged), nil
}

func (m *MemoryStore) Delete(collection string, id float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	records, ok := m.doc[collection]
	if !ok {
		return ErrCollectionNotFound
	}
	i := findIndex(records, id)
	if i < 0 {
		return ErrItemNotFound
	}
	m.doc[collection] = append(records[:i], records[i+1:]...)
	return nil
}
