package evaluation

import (
	"testing"

	"github.com/flagcore/flagcore/ldmodel"
	"github.com/flagcore/flagcore/ldreason"
	"github.com/flagcore/flagcore/lduser"
	"github.com/flagcore/flagcore/ldvalue"
	"github.com/stretchr/testify/assert"
)

type mapProvider struct {
	flags    map[string]*ldmodel.FeatureFlag
	segments map[string]*ldmodel.Segment
}

func newMapProvider() *mapProvider {
	return &mapProvider{flags: map[string]*ldmodel.FeatureFlag{}, segments: map[string]*ldmodel.Segment{}}
}

func (p *mapProvider) GetFlag(key string) (*ldmodel.FeatureFlag, bool) {
	f, ok := p.flags[key]
	return f, ok
}

func (p *mapProvider) GetSegment(key string) (*ldmodel.Segment, bool) {
	s, ok := p.segments[key]
	return s, ok
}

func boolFlag(key string, on bool) *ldmodel.FeatureFlag {
	off := 0
	return &ldmodel.FeatureFlag{
		Key:          key,
		On:           on,
		OffVariation: &off,
		Variations:   []ldvalue.Value{ldvalue.Bool(false), ldvalue.Bool(true)},
		Fallthrough:  ldmodel.VariationOrRollout{Variation: intPtr(1)},
	}
}

func intPtr(i int) *int { return &i }

func TestOffFlagReturnsOffVariation(t *testing.T) {
	p := newMapProvider()
	flag := boolFlag("f", false)
	e := NewEvaluator(p, nil)
	detail, events := e.Evaluate(flag, lduser.NewUser("u"))
	assert.Empty(t, events)
	assert.Equal(t, ldreason.EvalReasonOff, detail.Reason.Kind())
	assert.Equal(t, 0, detail.VariationIndex)
	assert.False(t, detail.Value.Bool())
}

func TestFallthroughWhenNoRulesMatch(t *testing.T) {
	p := newMapProvider()
	flag := boolFlag("f", true)
	e := NewEvaluator(p, nil)
	detail, _ := e.Evaluate(flag, lduser.NewUser("u"))
	assert.Equal(t, ldreason.EvalReasonFallthrough, detail.Reason.Kind())
	assert.True(t, detail.Value.Bool())
}

func TestTargetMatchBeatsFallthrough(t *testing.T) {
	p := newMapProvider()
	flag := boolFlag("f", true)
	flag.Targets = []ldmodel.Target{{Values: []string{"u1"}, Variation: 0}}
	e := NewEvaluator(p, nil)
	detail, _ := e.Evaluate(flag, lduser.NewUser("u1"))
	assert.Equal(t, ldreason.EvalReasonTargetMatch, detail.Reason.Kind())
	assert.False(t, detail.Value.Bool())
}

func TestRuleMatchWithInOperator(t *testing.T) {
	p := newMapProvider()
	flag := boolFlag("f", true)
	flag.Rules = []ldmodel.FlagRule{
		{
			ID: "rule1",
			Clauses: []ldmodel.Clause{
				{Attribute: "country", Op: ldmodel.OperatorIn, Values: []ldvalue.Value{ldvalue.String("fr")}},
			},
			VariationOrRollout: ldmodel.VariationOrRollout{Variation: intPtr(0)},
		},
	}
	user := lduser.NewUserBuilder("u").Custom("country", ldvalue.String("fr")).Build()
	e := NewEvaluator(p, nil)
	detail, _ := e.Evaluate(flag, user)
	assert.Equal(t, ldreason.EvalReasonRuleMatch, detail.Reason.Kind())
	assert.Equal(t, 0, detail.Reason.RuleIndex())
	assert.Equal(t, "rule1", detail.Reason.RuleID())
}

func TestPrerequisiteFailureForcesOffVariation(t *testing.T) {
	p := newMapProvider()
	prereq := boolFlag("prereq", true)
	prereq.Fallthrough = ldmodel.VariationOrRollout{Variation: intPtr(0)} // prereq evaluates to false
	p.flags["prereq"] = prereq

	flag := boolFlag("f", true)
	flag.Prerequisites = []ldmodel.Prerequisite{{Key: "prereq", Variation: 1}}

	e := NewEvaluator(p, nil)
	detail, events := e.Evaluate(flag, lduser.NewUser("u"))
	assert.Equal(t, ldreason.EvalReasonPrerequisiteFailed, detail.Reason.Kind())
	assert.Equal(t, "prereq", detail.Reason.PrerequisiteKey())
	assert.Len(t, events, 1)
	assert.Equal(t, "prereq", events[0].PrerequisiteKey)
}

func TestPrerequisiteCycleIsMalformed(t *testing.T) {
	p := newMapProvider()
	a := boolFlag("a", true)
	a.Prerequisites = []ldmodel.Prerequisite{{Key: "b", Variation: 1}}
	b := boolFlag("b", true)
	b.Prerequisites = []ldmodel.Prerequisite{{Key: "a", Variation: 1}}
	p.flags["a"] = a
	p.flags["b"] = b

	e := NewEvaluator(p, nil)
	detail, _ := e.Evaluate(a, lduser.NewUser("u"))
	assert.Equal(t, ldreason.EvalReasonError, detail.Reason.Kind())
	assert.Equal(t, ldreason.EvalErrorMalformedFlag, detail.Reason.ErrorKind())
}

func TestSegmentMatchClauseWithExplicitInclude(t *testing.T) {
	p := newMapProvider()
	p.segments["seg1"] = &ldmodel.Segment{Key: "seg1", Included: []string{"u1"}}
	flag := boolFlag("f", true)
	flag.Rules = []ldmodel.FlagRule{
		{
			ID: "rule1",
			Clauses: []ldmodel.Clause{
				{Op: ldmodel.OperatorSegmentMatch, Values: []ldvalue.Value{ldvalue.String("seg1")}},
			},
			VariationOrRollout: ldmodel.VariationOrRollout{Variation: intPtr(0)},
		},
	}
	e := NewEvaluator(p, nil)
	detail, _ := e.Evaluate(flag, lduser.NewUser("u1"))
	assert.Equal(t, ldreason.EvalReasonRuleMatch, detail.Reason.Kind())
	assert.False(t, detail.Value.Bool())
}

func TestUnknownAttributeNeverMatches(t *testing.T) {
	p := newMapProvider()
	flag := boolFlag("f", true)
	flag.Rules = []ldmodel.FlagRule{
		{
			ID: "rule1",
			Clauses: []ldmodel.Clause{
				{Attribute: "nonexistent", Op: ldmodel.OperatorIn, Values: []ldvalue.Value{ldvalue.String("x")}},
			},
			VariationOrRollout: ldmodel.VariationOrRollout{Variation: intPtr(0)},
		},
	}
	e := NewEvaluator(p, nil)
	detail, _ := e.Evaluate(flag, lduser.NewUser("u"))
	assert.Equal(t, ldreason.EvalReasonFallthrough, detail.Reason.Kind())
}

func TestTypeMismatchIsNoMatchNotError(t *testing.T) {
	p := newMapProvider()
	flag := boolFlag("f", true)
	flag.Rules = []ldmodel.FlagRule{
		{
			ID: "rule1",
			Clauses: []ldmodel.Clause{
				{Attribute: "age", Op: ldmodel.OperatorLessThan, Values: []ldvalue.Value{ldvalue.Int(30)}},
			},
			VariationOrRollout: ldmodel.VariationOrRollout{Variation: intPtr(0)},
		},
	}
	user := lduser.NewUserBuilder("u").Custom("age", ldvalue.String("young")).Build()
	e := NewEvaluator(p, nil)
	detail, _ := e.Evaluate(flag, user)
	assert.Equal(t, ldreason.EvalReasonFallthrough, detail.Reason.Kind())
}

type fakeMembership struct {
	included map[string]bool
}

func (m fakeMembership) CheckMembership(segmentKey string) *bool {
	v, ok := m.included[segmentKey]
	if !ok {
		return nil
	}
	return &v
}

type fakeBigSegmentProvider struct {
	membership fakeMembership
	status     ldreason.BigSegmentsStatus
}

func (f fakeBigSegmentProvider) GetUserMembership(string) (BigSegmentMembership, ldreason.BigSegmentsStatus) {
	return f.membership, f.status
}

func TestBigSegmentStaleStatusIsAttachedToReason(t *testing.T) {
	p := newMapProvider()
	p.segments["big1"] = &ldmodel.Segment{Key: "big1", Unbounded: true}
	flag := boolFlag("f", true)
	flag.Rules = []ldmodel.FlagRule{
		{
			ID: "rule1",
			Clauses: []ldmodel.Clause{
				{Op: ldmodel.OperatorSegmentMatch, Values: []ldvalue.Value{ldvalue.String("big1")}},
			},
			VariationOrRollout: ldmodel.VariationOrRollout{Variation: intPtr(0)},
		},
	}
	provider := fakeBigSegmentProvider{
		membership: fakeMembership{included: map[string]bool{"big1": true}},
		status:     ldreason.BigSegmentsStatusStale,
	}
	e := NewEvaluator(p, provider)
	detail, _ := e.Evaluate(flag, lduser.NewUser("u"))
	assert.Equal(t, ldreason.EvalReasonRuleMatch, detail.Reason.Kind())
	assert.Equal(t, ldreason.BigSegmentsStatusStale, detail.Reason.BigSegmentsStatus())
}

func TestRuleRolloutResidualWeightFallsThroughToNextRule(t *testing.T) {
	p := newMapProvider()
	flag := boolFlag("f", true)
	flag.Rules = []ldmodel.FlagRule{
		{
			ID: "zero-weight-rule",
			Clauses: []ldmodel.Clause{
				{Attribute: "key", Op: ldmodel.OperatorIn, Values: []ldvalue.Value{ldvalue.String("u")}},
			},
			// A rollout whose weights never reach the user's bucket: every lookup is residual.
			VariationOrRollout: ldmodel.VariationOrRollout{
				Rollout: &ldmodel.Rollout{Variations: []ldmodel.WeightedVariation{{Variation: 0, Weight: 0}}},
			},
		},
		{
			ID: "fixed-rule",
			Clauses: []ldmodel.Clause{
				{Attribute: "key", Op: ldmodel.OperatorIn, Values: []ldvalue.Value{ldvalue.String("u")}},
			},
			VariationOrRollout: ldmodel.VariationOrRollout{Variation: intPtr(1)},
		},
	}
	e := NewEvaluator(p, nil)
	detail, _ := e.Evaluate(flag, lduser.NewUser("u"))
	assert.Equal(t, ldreason.EvalReasonRuleMatch, detail.Reason.Kind())
	assert.Equal(t, 1, detail.Reason.RuleIndex())
	assert.Equal(t, "fixed-rule", detail.Reason.RuleID())
	assert.True(t, detail.Value.Bool())
}

func TestFallthroughRolloutResidualWeightIsMalformed(t *testing.T) {
	p := newMapProvider()
	flag := boolFlag("f", true)
	flag.Fallthrough = ldmodel.VariationOrRollout{
		Rollout: &ldmodel.Rollout{Variations: []ldmodel.WeightedVariation{{Variation: 0, Weight: 0}}},
	}
	e := NewEvaluator(p, nil)
	detail, _ := e.Evaluate(flag, lduser.NewUser("u"))
	assert.Equal(t, ldreason.EvalReasonError, detail.Reason.Kind())
	assert.Equal(t, ldreason.EvalErrorMalformedFlag, detail.Reason.ErrorKind())
}
