package store_test

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"jsonmock/store"
)

// asFloat normalizes the numeric representations the backends can
// produce for ids (float64 from JSON, int64/uint64 from msgpack).
func asFloat(t *testing.T, v any) float64 {
	t.Helper()
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case int:
		return float64(n)
	}
	t.Fatalf("expected numeric id, got %T (%v)", v, v)
	return 0
}

// runStoreTests runs a common test suite against any freshly seeded
// Store implementation.
func runStoreTests(t *testing.T, s store.Store) {
	t.Helper()

	t.Run("Collections seeded", func(t *testing.T) {
		names, err := s.Collections()
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"posts", "products", "users"}
		if !reflect.DeepEqual(names, want) {
			t.Fatalf("expected %v, got %v", want, names)
		}
	})

	t.Run("List preserves order", func(t *testing.T) {
		records, err := s.List("users")
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 users, got %d", len(records))
		}
		if asFloat(t, records[0]["id"]) != 1 || asFloat(t, records[1]["id"]) != 2 {
			t.Fatalf("expected ids [1 2], got %v, %v", records[0]["id"], records[1]["id"])
		}
	})

	t.Run("List unknown collection", func(t *testing.T) {
		if _, err := s.List("ghosts"); err != store.ErrCollectionNotFound {
			t.Fatalf("expected ErrCollectionNotFound, got %v", err)
		}
	})

	t.Run("Create assigns time-derived id and appends", func(t *testing.T) {
		before := time.Now().Add(-time.Minute).UnixMilli()
		rec, err := s.Create("users", store.Record{"name": "Carol"})
		if err != nil {
			t.Fatal(err)
		}
		if rec["name"] != "Carol" {
			t.Fatalf("expected name=Carol, got %v", rec["name"])
		}
		if id := asFloat(t, rec["id"]); id < float64(before) {
			t.Fatalf("expected recent millisecond id, got %v", id)
		}
		records, err := s.List("users")
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 3 {
			t.Fatalf("expected 3 users, got %d", len(records))
		}
		if records[2]["name"] != "Carol" {
			t.Fatalf("expected Carol appended last, got %v", records[2]["name"])
		}
	})

	t.Run("Create caller-supplied id wins", func(t *testing.T) {
		rec, err := s.Create("posts", store.Record{"id": float64(999), "title": "Pinned"})
		if err != nil {
			t.Fatal(err)
		}
		if asFloat(t, rec["id"]) != 999 {
			t.Fatalf("expected id=999, got %v", rec["id"])
		}
	})

	t.Run("Create returns a detached copy", func(t *testing.T) {
		rec, err := s.Create("posts", store.Record{"title": "Draft"})
		if err != nil {
			t.Fatal(err)
		}
		rec["title"] = "Mutated"
		records, err := s.List("posts")
		if err != nil {
			t.Fatal(err)
		}
		if last := records[len(records)-1]; last["title"] != "Draft" {
			t.Fatalf("expected stored record unaffected, got %v", last["title"])
		}
	})

	t.Run("Create unknown collection", func(t *testing.T) {
		if _, err := s.Create("ghosts", store.Record{"name": "nope"}); err != store.ErrCollectionNotFound {
			t.Fatalf("expected ErrCollectionNotFound, got %v", err)
		}
	})

	t.Run("Update merges in place", func(t *testing.T) {
		rec, err := s.Update("users", 1, store.Record{"name": "Alice Updated"})
		if err != nil {
			t.Fatal(err)
		}
		if rec["name"] != "Alice Updated" {
			t.Fatalf("expected merged name, got %v", rec["name"])
		}
		if rec["email"] != "alice@example.com" {
			t.Fatalf("expected original email retained, got %v", rec["email"])
		}
		if asFloat(t, rec["id"]) != 1 {
			t.Fatalf("expected id unchanged, got %v", rec["id"])
		}
		records, err := s.List("users")
		if err != nil {
			t.Fatal(err)
		}
		if records[0]["name"] != "Alice Updated" {
			t.Fatalf("expected update at position 0, got %v", records[0]["name"])
		}
	})

	t.Run("Update missing id", func(t *testing.T) {
		if _, err := s.Update("users", 12345, store.Record{"name": "x"}); err != store.ErrItemNotFound {
			t.Fatalf("expected ErrItemNotFound, got %v", err)
		}
	})

	t.Run("Update NaN id matches nothing", func(t *testing.T) {
		if _, err := s.Update("users", math.NaN(), store.Record{"name": "x"}); err != store.ErrItemNotFound {
			t.Fatalf("expected ErrItemNotFound, got %v", err)
		}
	})

	t.Run("Update unknown collection", func(t *testing.T) {
		if _, err := s.Update("ghosts", 1, store.Record{}); err != store.ErrCollectionNotFound {
			t.Fatalf("expected ErrCollectionNotFound, got %v", err)
		}
	})

	t.Run("Delete removes exactly one", func(t *testing.T) {
		if err := s.Delete("products", 1); err != nil {
			t.Fatal(err)
		}
		records, err := s.List("products")
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 1 {
			t.Fatalf("expected 1 product left, got %d", len(records))
		}
		if asFloat(t, records[0]["id"]) != 2 {
			t.Fatalf("expected remaining id=2, got %v", records[0]["id"])
		}
	})

	t.Run("Delete is not idempotent", func(t *testing.T) {
		if err := s.Delete("products", 1); err != store.ErrItemNotFound {
			t.Fatalf("expected ErrItemNotFound on second delete, got %v", err)
		}
	})

	t.Run("Delete unknown collection", func(t *testing.T) {
		if err := s.Delete("ghosts", 1); err != store.ErrCollectionNotFound {
			t.Fatalf("expected ErrCollectionNotFound, got %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, store.NewMemoryStore())
}

func TestDocumentStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	runStoreTests(t, store.NewDocumentStore(path))
}

func TestSqliteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	s, err := store.NewSqliteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runStoreTests(t, s)
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bolt")
	s, err := store.NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runStoreTests(t, s)
}

func TestDocumentStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s := store.NewDocumentStore(path)

	rec, err := s.Create("users", store.Record{"name": "Dana"})
	if err != nil {
		t.Fatal(err)
	}

	// A fresh store over the same file sees the mutation.
	reloaded := store.NewDocumentStore(path)
	records, err := reloaded.List("users")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 users after reload, got %d", len(records))
	}
	last := records[len(records)-1]
	if last["name"] != "Dana" || asFloat(t, last["id"]) != asFloat(t, rec["id"]) {
		t.Fatalf("expected Dana persisted, got %v", last)
	}

	if err := reloaded.Delete("users", asFloat(t, rec["id"])); err != nil {
		t.Fatal(err)
	}
	again := store.NewDocumentStore(path)
	records, err = again.List("users")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected delete persisted, got %d users", len(records))
	}
}

func TestDocumentStoreSaveFailureKeepsMemoryState(t *testing.T) {
	// A directory at the data path makes every write fail, while load
	// falls back to the sample document as for any unreadable file.
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	s := store.NewDocumentStore(path)

	rec, err := s.Create("users", store.Record{"name": "Frank"})
	if err != nil {
		t.Fatal(err)
	}
	if rec["name"] != "Frank" {
		t.Fatalf("expected record back despite failed save, got %v", rec)
	}

	// The in-memory mutation stands even though persistence failed.
	records, err := s.List("users")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[2]["name"] != "Frank" {
		t.Fatalf("expected in-memory mutation retained, got %v", records)
	}

	// Nothing reached the disk: the path is still an empty directory.
	entries, err := os.ReadDir(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no file written, found %v", entries)
	}
}

func TestDocumentStoreCorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := store.NewDocumentStore(path)
	names, err := s.Collections()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"posts", "products", "users"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected seeded collections %v, got %v", want, names)
	}
}

func TestDocumentStoreFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s := store.NewDocumentStore(path)
	if _, err := s.Create("users", store.Record{"name": "Eve"}); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "\n  \"") {
		t.Fatal("expected two-space indented output")
	}
	var doc map[string][]map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("backing file is not valid JSON: %v", err)
	}
	if len(doc["users"]) != 3 {
		t.Fatalf("expected 3 users on disk, got %d", len(doc["users"]))
	}
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		file string
		want string
	}{
		{"data.json", "*store.DocumentStore"},
		{"data.db", "*store.SqliteStore"},
		{"data.sqlite", "*store.SqliteStore"},
		{"data.bolt", "*store.BoltStore"},
		{":memory:", "*store.MemoryStore"},
		{"plainfile", "*store.DocumentStore"},
	}
	for _, tc := range tests {
		t.Run(tc.file, func(t *testing.T) {
			path := tc.file
			if path != ":memory:" {
				path = filepath.Join(dir, tc.file)
			}
			s, err := store.New(path)
			if err != nil {
				t.Fatal(err)
			}
			if got := reflect.TypeOf(s).String(); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
