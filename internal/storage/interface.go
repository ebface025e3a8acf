package storage

import "errors"

var (
	// ErrNotFound is returned by Get when the key is absent
	ErrNotFound = errors.New("key not found")
	// ErrNotLoaded is returned by reads and writes before Init or Load
	ErrNotLoaded = errors.New("storage not loaded")
	// ErrNotInitialized is returned by Load when no store exists yet
	ErrNotInitialized = errors.New("storage not initialized, run 'tickup init' first")
)

// Batch is a set of writes and removals applied all-or-nothing.
type Batch struct {
	Set    map[string][]byte
	Remove []string
}

// NewBatch returns an empty batch
func NewBatch() *Batch {
	return &Batch{Set: map[string][]byte{}}
}

// Put queues a write and cancels any queued removal of the same key
func (b *Batch) Put(key string, value []byte) {
	for i, k := range b.Remove {
		if k == key {
			b.Remove = append(b.Remove[:i], b.Remove[i+1:]...)
			break
		}
	}
	b.Set[key] = value
}

// Delete queues a removal and drops any queued write of the same key
func (b *Batch) Delete(key string) {
	delete(b.Set, key)
	for _, k := range b.Remove {
		if k == key {
			return
		}
	}
	b.Remove = append(b.Remove, key)
}

// Len returns the number of queued operations
func (b *Batch) Len() int {
	return len(b.Set) + len(b.Remove)
}

// Store is a durable key/value byte store.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	// Remove deletes key; removing an absent key is not an error
	Remove(key string) error
	// Keys returns every key starting with prefix, sorted
	Keys(prefix string) ([]string, error)
	Commit(batch *Batch) error
	Close() error
}

// Provider is a Store with a storage lifecycle.
type Provider interface {
	Store

	// Init creates the storage and applies migrations
	Init() error
	// Load opens existing storage and validates its schema version
	Load() error
	GetConfigPath() string
}
