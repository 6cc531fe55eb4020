package datastore

import (
	"sync"

	"github.com/flagcore/flagcore/interfaces"
)

// InMemoryStore is the default DataStore implementation: a plain mutex-guarded map of maps. It
// never fails and never blocks on I/O, so the only thing that can make a read slow is lock
// contention during a concurrent Init/Upsert.
type InMemoryStore struct {
	mu          sync.RWMutex
	items       map[interfaces.DataKind]map[string]interfaces.ItemDescriptor
	initialized bool
}

// NewInMemoryStore constructs an empty, uninitialized InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[interfaces.DataKind]map[string]interfaces.ItemDescriptor)}
}

// Get returns the stored item for kind/key. The second return value is false only if the key has
// never been seen; a tombstone (deleted item) is still returned with ok=true and Item==nil.
func (s *InMemoryStore) Get(kind interfaces.DataKind, key string) (interfaces.ItemDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[kind][key]
	return item, ok
}

// All returns every non-deleted item of the given kind.
func (s *InMemoryStore) All(kind interfaces.DataKind) map[string]interfaces.ItemDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interfaces.ItemDescriptor)
	for k, v := range s.items[kind] {
		if !v.Deleted() {
			out[k] = v
		}
	}
	return out
}

// Init replaces the store's entire contents and marks it initialized.
func (s *InMemoryStore) Init(allData map[interfaces.DataKind]map[string]interfaces.ItemDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	newItems := make(map[interfaces.DataKind]map[string]interfaces.ItemDescriptor, len(allData))
	for kind, items := range allData {
		kindItems := make(map[string]interfaces.ItemDescriptor, len(items))
		for k, v := range items {
			kindItems[k] = v
		}
		newItems[kind] = kindItems
	}
	s.items = newItems
	s.initialized = true
	return nil
}

// Upsert stores item under key unless the current item has a version greater than or equal to
// item.Version, in which case it reports updated=false and leaves the store unchanged. A missing
// current item is treated as having version negative infinity, so any Upsert succeeds.
func (s *InMemoryStore) Upsert(kind interfaces.DataKind, key string, item interfaces.ItemDescriptor) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kindItems, ok := s.items[kind]
	if !ok {
		kindItems = make(map[string]interfaces.ItemDescriptor)
		s.items[kind] = kindItems
	}
	if existing, ok := kindItems[key]; ok && existing.Version >= item.Version {
		return false, nil
	}
	kindItems[key] = item
	return true, nil
}

// IsInitialized reports whether Init has ever succeeded.
func (s *InMemoryStore) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Close is a no-op; the in-memory store holds no external resources.
func (s *InMemoryStore) Close() error { return nil }

var _ interfaces.DataStore = (*InMemoryStore)(nil)
