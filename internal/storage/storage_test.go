package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func backends(t *testing.T) map[string]SlotStore {
	t.Helper()
	dir := t.TempDir()

	fileStore, err := NewFileStore(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "db", "test.db"))
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]SlotStore{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqliteStore,
	}
}

func TestSlotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, found, err := s.Load(ctx, "heat-meters-v1"); err != nil || found {
				t.Fatalf("empty store: found=%v err=%v", found, err)
			}
			if err := s.Save(ctx, "heat-meters-v1", []byte(`[1]`)); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := s.Save(ctx, "heat-meters-v1", []byte(`[2]`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			v, found, err := s.Load(ctx, "heat-meters-v1")
			if err != nil || !found || string(v) != `[2]` {
				t.Fatalf("load: %q found=%v err=%v", v, found, err)
			}
			if err := s.Delete(ctx, "heat-meters-v1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, found, _ := s.Load(ctx, "heat-meters-v1"); found {
				t.Fatalf("slot still present after delete")
			}
			if err := s.Delete(ctx, "heat-meters-v1"); err != nil {
				t.Fatalf("deleting a missing slot should succeed: %v", err)
			}
			if err := s.Save(ctx, "", []byte("x")); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("expected ErrInvalidKey, got %v", err)
			}
			if p, ok := s.(Pinger); !ok || p.Ping(ctx) != nil {
				t.Fatalf("backend should be reachable")
			}
		})
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.Save(ctx, "a", []byte("A"))
			_ = s.Save(ctx, "b", []byte("B"))
			_ = s.Delete(ctx, "a")
			if v, found, _ := s.Load(ctx, "b"); !found || string(v) != "B" {
				t.Fatalf("slot b affected by delete of a: %q", v)
			}
		})
	}
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"../escape", "a/b", `a\b`, ".."} {
		if err := s.Save(context.Background(), key, []byte("x")); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("%q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Save(context.Background(), "heat-meters-v1", []byte("[]")); err != nil {
			t.Fatal(err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "heat-meters-v1.json" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Fatalf("unexpected files: %v", names)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letture.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(context.Background(), "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if v, found, _ := s.Load(context.Background(), "k"); !found || string(v) != "v" {
		t.Fatalf("value lost across reopen: %q", v)
	}
}
