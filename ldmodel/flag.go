// Package ldmodel defines the data model for feature flags and segments: the representation the
// data store holds, the update processor parses wire payloads into, and the evaluator consumes.
package ldmodel

import "github.com/flagcore/flagcore/ldvalue"

// FeatureFlag describes a feature flag and all the rules that can be used to evaluate it.
type FeatureFlag struct {
	Key                    string                `json:"key"`
	Version                int                   `json:"version"`
	Deleted                bool                   `json:"deleted"`
	On                     bool                  `json:"on"`
	Prerequisites          []Prerequisite        `json:"prerequisites"`
	Targets                []Target              `json:"targets"`
	ContextTargets         []Target              `json:"contextTargets"`
	Rules                  []FlagRule            `json:"rules"`
	Fallthrough            VariationOrRollout     `json:"fallthrough"`
	OffVariation           *int                  `json:"offVariation"`
	Variations             []ldvalue.Value       `json:"variations"`
	Salt                   string                `json:"salt"`
	TrackEvents            bool                  `json:"trackEvents"`
	TrackEventsFallthrough bool                  `json:"trackEventsFallthrough"`
	DebugEventsUntilDate   *uint64               `json:"debugEventsUntilDate"`
	ClientSide             bool                  `json:"clientSide"`
}

// Prerequisite describes a flag that must also evaluate to a specific variation for this flag to
// be considered on.
type Prerequisite struct {
	Key       string `json:"key"`
	Variation int    `json:"variation"`
}

// Target is a set of user/context keys that are explicitly assigned a variation, bypassing rules.
type Target struct {
	ContextKind string   `json:"contextKind"`
	Values      []string `json:"values"`
	Variation   int      `json:"variation"`
}

// FlagRule describes a single rule within a flag: a set of clauses, all of which must match, and
// the variation or rollout to apply when they do.
type FlagRule struct {
	ID                   string             `json:"id"`
	Clauses              []Clause           `json:"clauses"`
	TrackEvents          bool               `json:"trackEvents"`
	VariationOrRollout
}

// VariationOrRollout specifies either a fixed variation index or a percentage rollout.
type VariationOrRollout struct {
	Variation *int     `json:"variation"`
	Rollout   *Rollout `json:"rollout"`
}

// RolloutKind distinguishes a standard percentage rollout from an experiment.
type RolloutKind string

const (
	// RolloutKindRollout is an ordinary percentage rollout.
	RolloutKindRollout RolloutKind = "rollout"
	// RolloutKindExperiment is a rollout that also generates experimentation events.
	RolloutKindExperiment RolloutKind = "experiment"
)

// Rollout assigns users/contexts to variations by weighted percentage, using consistent hashing.
type Rollout struct {
	Variations []WeightedVariation `json:"variations"`
	BucketBy   string              `json:"bucketBy"`
	Kind       RolloutKind         `json:"kind"`
	Seed       *int                `json:"seed"`
}

// WeightedVariation is one entry in a Rollout: a variation index and its weight out of 100000.
type WeightedVariation struct {
	Variation  int  `json:"variation"`
	Weight     int  `json:"weight"`
	Untracked  bool `json:"untracked"`
}

// Clause is a single test against a user/context attribute, combined with AND semantics within a rule.
type Clause struct {
	ContextKind string          `json:"contextKind"`
	Attribute   string          `json:"attribute"`
	Op          Operator        `json:"op"`
	Values      []ldvalue.Value `json:"values"`
	Negate      bool            `json:"negate"`
}

// Operator identifies the comparison a Clause performs.
type Operator string

// All supported clause operators.
const (
	OperatorIn                 Operator = "in"
	OperatorEndsWith           Operator = "endsWith"
	OperatorStartsWith         Operator = "startsWith"
	OperatorMatches            Operator = "matches"
	OperatorContains           Operator = "contains"
	OperatorLessThan           Operator = "lessThan"
	OperatorLessThanOrEqual    Operator = "lessThanOrEqual"
	OperatorGreaterThan        Operator = "greaterThan"
	OperatorGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OperatorBefore             Operator = "before"
	OperatorAfter              Operator = "after"
	OperatorSemVerEqual        Operator = "semVerEqual"
	OperatorSemVerLessThan     Operator = "semVerLessThan"
	OperatorSemVerGreaterThan  Operator = "semVerGreaterThan"
	OperatorSegmentMatch       Operator = "segmentMatch"
)
