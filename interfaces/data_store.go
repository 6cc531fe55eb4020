package interfaces

// DataStore is the contract the evaluator and update processor use to read and write flag and
// segment data. The SDK ships an in-memory implementation and a caching wrapper around a
// PersistentDataStore; both live in internal/datastore.
type DataStore interface {
	// Get returns the current item of the given kind and key. A nil Item (ok still true) means a
	// tombstone: the item existed and was deleted. A false ok means the key was never seen.
	Get(kind DataKind, key string) (item ItemDescriptor, ok bool)
	// All returns every non-deleted item of the given kind, keyed by item key.
	All(kind DataKind) map[string]ItemDescriptor
	// Init replaces the entire contents of the store with the given data set, and marks the store
	// as initialized.
	Init(allData map[DataKind]map[string]ItemDescriptor) error
	// Upsert stores item under key if item.Version is greater than the version currently stored
	// (or if there is no current item), and reports whether the write took effect.
	Upsert(kind DataKind, key string, item ItemDescriptor) (updated bool, err error)
	// IsInitialized returns true once Init has succeeded at least once.
	IsInitialized() bool
	// Close releases any resources held by the store.
	Close() error
}

// PersistentDataStore is the contract a durable backend (see flagstore) must satisfy to be used
// underneath the caching wrapper in internal/datastore. Unlike DataStore, every method may need to
// perform I/O, and errors are expected in normal operation (network blips, etc.).
type PersistentDataStore interface {
	// Init replaces the entire contents of the store with the given data set.
	Init(allData map[DataKind]map[string]ItemDescriptor) error
	// Get returns the item of the given kind and key, or ok=false if it has never been stored.
	Get(kind DataKind, key string) (item ItemDescriptor, ok bool, err error)
	// GetAll returns every item of the given kind, including tombstones (the caching wrapper
	// filters those out before exposing them to the evaluator).
	GetAll(kind DataKind) (map[string]ItemDescriptor, error)
	// Upsert stores item under key if item.Version is greater than the version currently stored.
	Upsert(kind DataKind, key string, item ItemDescriptor) (updated bool, err error)
	// IsInitialized reports whether Init has ever succeeded, even in another process sharing the
	// same backing store.
	IsInitialized() (bool, error)
	// IsStoreAvailable reports whether the backend can currently be reached.
	IsStoreAvailable() bool
	// Close releases any resources (connections, file handles) held by the backend.
	Close() error
}
