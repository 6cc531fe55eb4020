package datasource

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flagcore/flagcore/interfaces"
	"github.com/flagcore/flagcore/ldmodel"
)

// AllData is the full data set carried by a streaming "put" event or a polling snapshot.
type AllData struct {
	Flags    map[string]*ldmodel.FeatureFlag `json:"flags"`
	Segments map[string]*ldmodel.Segment     `json:"segments"`
}

// ToStoreData converts a full snapshot into the shape DataStore.Init expects.
func (d AllData) ToStoreData() map[interfaces.DataKind]map[string]interfaces.ItemDescriptor {
	flags := make(map[string]interfaces.ItemDescriptor, len(d.Flags))
	for k, f := range d.Flags {
		flags[k] = interfaces.ItemDescriptor{Version: f.Version, Item: f}
	}
	segments := make(map[string]interfaces.ItemDescriptor, len(d.Segments))
	for k, s := range d.Segments {
		segments[k] = interfaces.ItemDescriptor{Version: s.Version, Item: s}
	}
	return map[interfaces.DataKind]map[string]interfaces.ItemDescriptor{
		interfaces.Features: flags,
		interfaces.Segments: segments,
	}
}

// patchData is the payload of a streaming "patch" event: an upsert of a single flag or segment.
type patchData struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// deleteData is the payload of a streaming "delete" event: a tombstone for a single key.
type deleteData struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

// parsePath splits a wire path like "/flags/my-flag" or "/segments/my-segment" into a DataKind
// and key. The legacy wire format for flags omits the plural and uses "/my-flag" with an implicit
// "flags" kind is not supported here; both streaming and polling payloads in this protocol always
// carry the explicit "/flags/" or "/segments/" prefix.
func parsePath(path string) (interfaces.DataKind, string, bool) {
	switch {
	case strings.HasPrefix(path, "/flags/"):
		return interfaces.Features, strings.TrimPrefix(path, "/flags/"), true
	case strings.HasPrefix(path, "/segments/"):
		return interfaces.Segments, strings.TrimPrefix(path, "/segments/"), true
	default:
		return interfaces.DataKind{}, "", false
	}
}

func parsePatch(raw []byte) (interfaces.DataKind, string, interfaces.ItemDescriptor, error) {
	var p patchData
	if err := json.Unmarshal(raw, &p); err != nil {
		return interfaces.DataKind{}, "", interfaces.ItemDescriptor{}, fmt.Errorf("parsing patch event: %w", err)
	}
	kind, key, ok := parsePath(p.Path)
	if !ok {
		return interfaces.DataKind{}, "", interfaces.ItemDescriptor{}, fmt.Errorf("patch event had unrecognized path %q", p.Path)
	}
	item, err := parseItem(kind, p.Data)
	if err != nil {
		return interfaces.DataKind{}, "", interfaces.ItemDescriptor{}, err
	}
	return kind, key, item, nil
}

func parseDelete(raw []byte) (interfaces.DataKind, string, interfaces.ItemDescriptor, error) {
	var d deleteData
	if err := json.Unmarshal(raw, &d); err != nil {
		return interfaces.DataKind{}, "", interfaces.ItemDescriptor{}, fmt.Errorf("parsing delete event: %w", err)
	}
	kind, key, ok := parsePath(d.Path)
	if !ok {
		return interfaces.DataKind{}, "", interfaces.ItemDescriptor{}, fmt.Errorf("delete event had unrecognized path %q", d.Path)
	}
	return kind, key, interfaces.ItemDescriptor{Version: d.Version, Item: nil}, nil
}

func parseItem(kind interfaces.DataKind, raw json.RawMessage) (interfaces.ItemDescriptor, error) {
	switch kind {
	case interfaces.Features:
		var f ldmodel.FeatureFlag
		if err := json.Unmarshal(raw, &f); err != nil {
			return interfaces.ItemDescriptor{}, fmt.Errorf("parsing flag: %w", err)
		}
		return interfaces.ItemDescriptor{Version: f.Version, Item: &f}, nil
	case interfaces.Segments:
		var s ldmodel.Segment
		if err := json.Unmarshal(raw, &s); err != nil {
			return interfaces.ItemDescriptor{}, fmt.Errorf("parsing segment: %w", err)
		}
		return interfaces.ItemDescriptor{Version: s.Version, Item: &s}, nil
	default:
		return interfaces.ItemDescriptor{}, fmt.Errorf("unrecognized data kind %q", kind)
	}
}
