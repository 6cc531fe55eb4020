package datastore

import (
	"fmt"
	"time"

	"github.com/go-errors/errors"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/flagcore/flagcore/interfaces"
	"github.com/flagcore/flagcore/internal/ldlog"
)

// CachingStore wraps a PersistentDataStore with a read-through/write-through cache, so a durable
// backend (Redis, etc.) only needs to implement the simple PersistentDataStore contract and still
// gets the read latency of an in-memory store once warm. Concurrent cache misses for the same key
// are collapsed into a single backend fetch via singleflight.
type CachingStore struct {
	backend     interfaces.PersistentDataStore
	itemCache   *gocache.Cache // keyed by "<kind>:<key>" -> interfaces.ItemDescriptor (negative results cached too, as a tombstone-shaped miss)
	allCache    *gocache.Cache // keyed by kind name -> map[string]interfaces.ItemDescriptor
	group       singleflight.Group
	ttl         time.Duration
	loggers     ldlog.Loggers
	initialized bool
}

// NewCachingStore constructs a CachingStore in front of backend. A ttl of zero disables caching
// entirely: every read goes straight to the backend (useful for tests, or backends that already
// cache internally).
func NewCachingStore(backend interfaces.PersistentDataStore, ttl time.Duration, loggers ldlog.Loggers) *CachingStore {
	return &CachingStore{
		backend:   backend,
		itemCache: gocache.New(ttl, ttl*2),
		allCache:  gocache.New(ttl, ttl*2),
		ttl:       ttl,
		loggers:   loggers,
	}
}

func itemCacheKey(kind interfaces.DataKind, key string) string {
	return fmt.Sprintf("%s:%s", kind, key)
}

// Get returns the item for kind/key, preferring the cache. A negative result (key not found) is
// cached too, so a flood of lookups for a nonexistent key doesn't repeatedly hit the backend.
func (c *CachingStore) Get(kind interfaces.DataKind, key string) (interfaces.ItemDescriptor, bool) {
	cacheKey := itemCacheKey(kind, key)
	if c.ttl > 0 {
		if cached, found := c.itemCache.Get(cacheKey); found {
			entry := cached.(cachedItem)
			return entry.item, entry.ok
		}
	}

	result, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		item, ok, err := c.backend.Get(kind, key)
		if err != nil {
			return nil, errors.WrapPrefix(err, "reading from persistent store", 0)
		}
		return cachedItem{item: item, ok: ok}, nil
	})
	if err != nil {
		c.loggers.Errorf("data store: %s", err)
		return interfaces.ItemDescriptor{}, false
	}
	entry := result.(cachedItem)
	if c.ttl > 0 {
		c.itemCache.SetDefault(cacheKey, entry)
	}
	return entry.item, entry.ok
}

type cachedItem struct {
	item interfaces.ItemDescriptor
	ok   bool
}

// All returns every non-deleted item of the given kind, preferring the cache.
func (c *CachingStore) All(kind interfaces.DataKind) map[string]interfaces.ItemDescriptor {
	cacheKey := kind.String()
	if c.ttl > 0 {
		if cached, found := c.allCache.Get(cacheKey); found {
			return cloneItemMap(cached.(map[string]interfaces.ItemDescriptor))
		}
	}

	result, err, _ := c.group.Do("all:"+cacheKey, func() (interface{}, error) {
		items, err := c.backend.GetAll(kind)
		if err != nil {
			return nil, errors.WrapPrefix(err, "reading from persistent store", 0)
		}
		filtered := make(map[string]interfaces.ItemDescriptor, len(items))
		for k, v := range items {
			if !v.Deleted() {
				filtered[k] = v
			}
		}
		return filtered, nil
	})
	if err != nil {
		c.loggers.Errorf("data store: %s", err)
		return map[string]interfaces.ItemDescriptor{}
	}
	items := result.(map[string]interfaces.ItemDescriptor)
	if c.ttl > 0 {
		c.allCache.SetDefault(cacheKey, items)
	}
	return cloneItemMap(items)
}

func cloneItemMap(m map[string]interfaces.ItemDescriptor) map[string]interfaces.ItemDescriptor {
	out := make(map[string]interfaces.ItemDescriptor, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Init replaces the backend's entire contents, then seeds both caches from the same data so reads
// immediately following Init don't need to hit the backend again.
func (c *CachingStore) Init(allData map[interfaces.DataKind]map[string]interfaces.ItemDescriptor) error {
	if err := c.backend.Init(allData); err != nil {
		return errors.WrapPrefix(err, "initializing persistent store", 0)
	}

	c.itemCache.Flush()
	c.allCache.Flush()
	if c.ttl > 0 {
		for kind, items := range allData {
			filtered := make(map[string]interfaces.ItemDescriptor, len(items))
			for key, item := range items {
				c.itemCache.SetDefault(itemCacheKey(kind, key), cachedItem{item: item, ok: true})
				if !item.Deleted() {
					filtered[key] = item
				}
			}
			c.allCache.SetDefault(kind.String(), filtered)
		}
	}
	c.initialized = true
	return nil
}

// Upsert writes through to the backend, then updates the item cache and invalidates the per-kind
// All cache (recomputing it lazily on the next All call, since it would otherwise need a full
// re-read to know whether this key is new).
func (c *CachingStore) Upsert(kind interfaces.DataKind, key string, item interfaces.ItemDescriptor) (bool, error) {
	updated, err := c.backend.Upsert(kind, key, item)
	if err != nil {
		return false, errors.WrapPrefix(err, "writing to persistent store", 0)
	}
	if c.ttl > 0 {
		if updated {
			c.itemCache.SetDefault(itemCacheKey(kind, key), cachedItem{item: item, ok: true})
		}
		c.allCache.Delete(kind.String())
	}
	return updated, nil
}

// IsInitialized reports whether Init has succeeded, either in this process or another one sharing
// the backend; once true it is remembered and never re-checked, since this may be called during
// flag evaluation and must be fast.
func (c *CachingStore) IsInitialized() bool {
	if c.initialized {
		return true
	}
	initialized, err := c.backend.IsInitialized()
	if err != nil {
		c.loggers.Errorf("data store: checking initialization: %s", err)
		return false
	}
	c.initialized = initialized
	return initialized
}

// Close shuts down the backend.
func (c *CachingStore) Close() error {
	return c.backend.Close()
}

var _ interfaces.DataStore = (*CachingStore)(nil)
