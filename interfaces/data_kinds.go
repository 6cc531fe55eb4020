package interfaces

// DataKind identifies one of the two collections a data store holds.
type DataKind struct {
	name string
}

// Features identifies the feature flag collection.
var Features = DataKind{name: "features"}

// Segments identifies the segment collection.
var Segments = DataKind{name: "segments"}

// String returns the kind's name, as used in wire payloads ("features"/"segments").
func (k DataKind) String() string { return k.name }

// ItemDescriptor wraps a single stored item (a *ldmodel.FeatureFlag or *ldmodel.Segment) together
// with its version. Item is nil for a tombstone: a deletion that must still be recorded with a
// version, so that an older update arriving later does not resurrect the deleted item.
type ItemDescriptor struct {
	Version int
	Item    interface{}
}

// Deleted returns true if this descriptor represents a tombstone rather than live data.
func (d ItemDescriptor) Deleted() bool { return d.Item == nil }
