package store

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

// BoltStore keeps each collection in its own bbolt bucket. Record keys
// are 8-byte big-endian bucket sequence numbers, so cursor order is
// insertion order. Values are msgpack-encoded records. An empty
// database is seeded with the sample document.
type BoltStore struct {
	mu sync.Mutex
	db *bolt.DB
}

func NewBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(dbPath, 0o644, nil)
	if err != nil {
		return nil, err
	}
	s := &BoltStore{db: db}
	if err := s.seedIfEmpty(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

func (s *BoltStore) seedIfEmpty() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		empty := true
		if err := tx.ForEach(func(_ []byte, _ *bolt.Bucket) error {
			empty = false
			return nil
		}); err != nil {
			return err
		}
		if !empty {
			return nil
		}
		for name, records := range defaultDocument() {
			b, err := tx.CreateBucket([]byte(name))
			if err != nil {
				return err
			}
			for _, rec := range records {
				if err := putRecord(b, rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func putRecord(b *bolt.Bucket, rec Record) error {
	enc, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	return b.Put(seqKey(seq), enc)
}

// bucketRecords decodes every record in a bucket in key order, keeping
// the keys for in-place rewrites.
func bucketRecords(b *bolt.Bucket) ([][]byte, []Record, error) {
	var keys [][]byte
	var records []Record
	err := b.ForEach(func(k, v []byte) error {
		var rec Record
		if err := msgpack.Unmarshal(v, &rec); err != nil {
			return err
		}
		key := make([]byte, len(k))
		copy(key, k)
		keys = append(keys, key)
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return keys, records, nil
}

func (s *BoltStore) Collections() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s *BoltStore) List(collection string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrCollectionNotFound
		}
		var err error
		_, records, err = bucketRecords(b)
		return err
	})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (s *BoltStore) Create(collection string, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := newRecord(fields)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrCollectionNotFound
		}
		return putRecord(b, rec)
	})
	if err != nil {
		return nil, err
	}
	return deepCopy(rec), nil
}

func (s *BoltStore) Update(collection string, id float64, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var merged Record
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrCollectionNotFound
		}
		keys, records, err := bucketRecords(b)
		if err != nil {
			return err
		}
		i := findIndex(records, id)
		if i < 0 {
			return ErrItemNotFound
		}
		merged = mergeRecord(records[i], fields)
		enc, err := msgpack.Marshal(merged)
		if err != nil {
			return err
		}
		return b.Put(keys[i], enc)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *BoltStore) Delete(collection string, id float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrCollectionNotFound
		}
		keys, records, err := bucketRecords(b)
		if err != nil {
			return err
		}
		i := findIndex(records, id)
		if i < 0 {
			return ErrItemNotFound
		}
		return b.Delete(keys[i])
	})
}
