// Package flagstore holds the interfaces.PersistentDataStore contract's concrete backend
// implementations. Each subpackage wraps one storage system; see flagstore/redisstore.
package flagstore
