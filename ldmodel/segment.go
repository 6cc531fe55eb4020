package ldmodel

// Segment is a named group of user/context keys, assembled either by explicit listing
// (Included/Excluded) or by rules, or — for a big (unbounded) segment — by an external store
// queried at evaluation time.
type Segment struct {
	Key           string        `json:"key"`
	Version       int           `json:"version"`
	Deleted       bool          `json:"deleted"`
	Included      []string      `json:"included"`
	Excluded      []string      `json:"excluded"`
	Rules         []SegmentRule `json:"rules"`
	Salt          string        `json:"salt"`
	Unbounded     bool          `json:"unbounded"`
	Generation    *int          `json:"generation"`
}

// SegmentRule is a set of clauses, all of which must match, optionally narrowed by a percentage
// rollout within the matching population.
type SegmentRule struct {
	ID       string   `json:"id"`
	Clauses  []Clause `json:"clauses"`
	Weight   *int     `json:"weight"`
	BucketBy string   `json:"bucketBy"`
}

// IsExplicitIncludeExclude returns true if the segment is evaluated solely by Included/Excluded/Rules
// rather than by consulting a big-segment store.
func (s Segment) IsExplicitIncludeExclude() bool {
	return !s.Unbounded
}
