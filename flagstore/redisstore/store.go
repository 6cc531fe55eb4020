// Package redisstore implements interfaces.PersistentDataStore on top of Redis, storing each
// data kind as a hash keyed by item key, with item payloads JSON-encoded.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flagcore/flagcore/interfaces"
	"github.com/flagcore/flagcore/internal/ldlog"
	"github.com/flagcore/flagcore/ldmodel"
)

const initedMarkerKey = "$inited"

// Store is a Redis-backed PersistentDataStore.
type Store struct {
	client  *goredis.Client
	prefix  string
	loggers ldlog.Loggers
}

// New constructs a Store from an already-configured go-redis client. prefix namespaces every key
// this store touches, so multiple environments can share one Redis instance.
func New(client *goredis.Client, prefix string, loggers ldlog.Loggers) *Store {
	if prefix == "" {
		prefix = "flagcore"
	}
	return &Store{client: client, prefix: prefix, loggers: loggers}
}

func (s *Store) hashKey(kind interfaces.DataKind) string {
	return fmt.Sprintf("%s:%s", s.prefix, kind.String())
}

func (s *Store) initedKey() string {
	return fmt.Sprintf("%s:%s", s.prefix, initedMarkerKey)
}

type storedItem struct {
	Version int             `json:"version"`
	Deleted bool            `json:"deleted"`
	Item    json.RawMessage `json:"item,omitempty"`
}

func marshalItem(kind interfaces.DataKind, item interfaces.ItemDescriptor) ([]byte, error) {
	si := storedItem{Version: item.Version, Deleted: item.Deleted()}
	if !si.Deleted {
		raw, err := json.Marshal(item.Item)
		if err != nil {
			return nil, err
		}
		si.Item = raw
	}
	return json.Marshal(si)
}

func unmarshalItem(kind interfaces.DataKind, data []byte) (interfaces.ItemDescriptor, error) {
	var si storedItem
	if err := json.Unmarshal(data, &si); err != nil {
		return interfaces.ItemDescriptor{}, err
	}
	if si.Deleted {
		return interfaces.ItemDescriptor{Version: si.Version}, nil
	}
	switch kind {
	case interfaces.Features:
		var flag ldmodel.FeatureFlag
		if err := json.Unmarshal(si.Item, &flag); err != nil {
			return interfaces.ItemDescriptor{}, err
		}
		return interfaces.ItemDescriptor{Version: si.Version, Item: &flag}, nil
	case interfaces.Segments:
		var segment ldmodel.Segment
		if err := json.Unmarshal(si.Item, &segment); err != nil {
			return interfaces.ItemDescriptor{}, err
		}
		return interfaces.ItemDescriptor{Version: si.Version, Item: &segment}, nil
	default:
		return interfaces.ItemDescriptor{}, fmt.Errorf("redisstore: unrecognized data kind %q", kind)
	}
}

// Init replaces the entire contents of the store with allData, within a single pipeline.
func (s *Store) Init(allData map[interfaces.DataKind]map[string]interfaces.ItemDescriptor) error {
	ctx := context.Background()
	pipe := s.client.TxPipeline()
	for kind, items := range allData {
		pipe.Del(ctx, s.hashKey(kind))
		fields := make(map[string]interface{}, len(items))
		for key, item := range items {
			raw, err := marshalItem(kind, item)
			if err != nil {
				return err
			}
			fields[key] = raw
		}
		if len(fields) > 0 {
			pipe.HSet(ctx, s.hashKey(kind), fields)
		}
	}
	pipe.Set(ctx, s.initedKey(), "true", 0)
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns the item of the given kind and key, or ok=false if it has never been stored.
func (s *Store) Get(kind interfaces.DataKind, key string) (interfaces.ItemDescriptor, bool, error) {
	ctx := context.Background()
	raw, err := s.client.HGet(ctx, s.hashKey(kind), key).Bytes()
	if err == goredis.Nil {
		return interfaces.ItemDescriptor{}, false, nil
	}
	if err != nil {
		return interfaces.ItemDescriptor{}, false, err
	}
	item, err := unmarshalItem(kind, raw)
	if err != nil {
		return interfaces.ItemDescriptor{}, false, err
	}
	return item, true, nil
}

// GetAll returns every item of the given kind, including tombstones.
func (s *Store) GetAll(kind interfaces.DataKind) (map[string]interfaces.ItemDescriptor, error) {
	ctx := context.Background()
	raw, err := s.client.HGetAll(ctx, s.hashKey(kind)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]interfaces.ItemDescriptor, len(raw))
	for key, value := range raw {
		item, err := unmarshalItem(kind, []byte(value))
		if err != nil {
			return nil, err
		}
		out[key] = item
	}
	return out, nil
}

// Upsert stores item under key if item.Version is greater than the version currently stored,
// using WATCH/MULTI to avoid a lost update against a concurrent writer.
func (s *Store) Upsert(kind interfaces.DataKind, key string, item interfaces.ItemDescriptor) (bool, error) {
	ctx := context.Background()
	hashKey := s.hashKey(kind)

	var updated bool
	txf := func(tx *goredis.Tx) error {
		existingRaw, err := tx.HGet(ctx, hashKey, key).Bytes()
		if err != nil && err != goredis.Nil {
			return err
		}
		if err == nil {
			existing, err := unmarshalItem(kind, existingRaw)
			if err != nil {
				return err
			}
			if existing.Version >= item.Version {
				updated = false
				return nil
			}
		}
		raw, err := marshalItem(kind, item)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, hashKey, key, raw)
			return nil
		})
		if err != nil {
			return err
		}
		updated = true
		return nil
	}

	err := s.client.Watch(ctx, txf, hashKey)
	return updated, err
}

// IsInitialized reports whether Init has ever succeeded, even in another process.
func (s *Store) IsInitialized() (bool, error) {
	ctx := context.Background()
	exists, err := s.client.Exists(ctx, s.initedKey()).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

// IsStoreAvailable reports whether Redis can currently be reached.
func (s *Store) IsStoreAvailable() bool {
	ctx := context.Background()
	return s.client.Ping(ctx).Err() == nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

var _ interfaces.PersistentDataStore = (*Store)(nil)
