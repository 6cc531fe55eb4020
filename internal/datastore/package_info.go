// Package datastore holds the data store implementations: an in-memory store, and a caching
// wrapper that fronts any persistent backend (see flagstore) with a read-through/write-through
// cache. Concrete persistent backends live under flagstore, not here.
package datastore
