// Package bigsegments consults an external big-segment store for user membership, caching the
// result per user key and tracking whether the store's own synchronization has gone stale.
//
// It does not implement any specific store backend; those live behind the
// interfaces.BigSegmentStore contract and are supplied by the host application.
package bigsegments
