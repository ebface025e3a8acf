package storage

import (
	"errors"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	if _, err := store.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store error = %v", err)
	}

	value := []byte("v1")
	if err := store.Set("k", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value[0] = 'x'

	got, _ := store.Get("k")
	if string(got) != "v1" {
		t.Errorf("store aliased caller buffer, got %q", got)
	}

	batch := NewBatch()
	batch.Put("a", []byte("1"))
	batch.Delete("a")
	batch.Put("b", []byte("2"))
	batch.Delete("k")
	if err := store.Commit(batch); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	keys, _ := store.Keys("")
	if len(keys) != 1 || keys[0] != "b" {
		t.Errorf("Keys = %v, want [b]", keys)
	}
}

func TestBatch_PutAfterDelete(t *testing.T) {
	batch := NewBatch()
	batch.Delete("a")
	batch.Delete("a")
	if len(batch.Remove) != 1 {
		t.Errorf("duplicate removal queued: %v", batch.Remove)
	}

	batch.Put("a", []byte("1"))
	if len(batch.Remove) != 0 || batch.Len() != 1 {
		t.Errorf("Put did not cancel queued removal: %+v", batch)
	}
}
