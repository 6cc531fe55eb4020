// Package evaluation implements the pure evaluation function that turns a flag, a user/context,
// and a data provider into an evaluation result. It never mutates the data store and never
// performs I/O directly; big-segment lookups go through the BigSegmentProvider capability so this
// package stays agnostic of how that data is fetched or cached.
package evaluation

import (
	"github.com/flagcore/flagcore/internal/bucketing"
	"github.com/flagcore/flagcore/ldmodel"
	"github.com/flagcore/flagcore/ldreason"
	"github.com/flagcore/flagcore/lduser"
	"github.com/flagcore/flagcore/ldvalue"
)

// DataProvider supplies the flags and segments the evaluator needs to look up, e.g. for
// prerequisites and segmentMatch clauses. Implementations must be safe for concurrent use.
type DataProvider interface {
	GetFlag(key string) (*ldmodel.FeatureFlag, bool)
	GetSegment(key string) (*ldmodel.Segment, bool)
}

// BigSegmentMembership reports whether a user belongs to a given big segment. A nil result from
// CheckMembership means "unknown"; the evaluator treats that as the user not matching the
// segment, and does not consult the segment's Included/Excluded lists or rules.
type BigSegmentMembership interface {
	CheckMembership(segmentKey string) *bool
}

// BigSegmentProvider resolves big-segment membership for a user key, returning the status of the
// underlying store alongside the membership so the evaluator can attach it to the reason.
type BigSegmentProvider interface {
	GetUserMembership(userKey string) (BigSegmentMembership, ldreason.BigSegmentsStatus)
}

// PrerequisiteEvent records that a prerequisite flag was evaluated as a side effect of evaluating
// some other flag, so the caller can generate a feature-request event for it.
type PrerequisiteEvent struct {
	FlagKey         string
	PrerequisiteKey string
	Detail          ldreason.EvaluationDetail
}

// Evaluator evaluates flags against a DataProvider and optional BigSegmentProvider.
type Evaluator struct {
	data        DataProvider
	bigSegments BigSegmentProvider
}

// NewEvaluator constructs an Evaluator. bigSegments may be nil if the host has not configured big
// segment support; clauses that need it will then report BigSegmentsStatusNotConfigured.
func NewEvaluator(data DataProvider, bigSegments BigSegmentProvider) *Evaluator {
	return &Evaluator{data: data, bigSegments: bigSegments}
}

type evalState struct {
	events []PrerequisiteEvent
	// visiting tracks prerequisite keys currently on the call stack, to detect cycles.
	visiting map[string]bool
}

// Evaluate computes the EvaluationDetail for flag against user, along with any prerequisite
// events generated by recursively evaluating its prerequisites.
func (e *Evaluator) Evaluate(flag *ldmodel.FeatureFlag, user lduser.User) (ldreason.EvaluationDetail, []PrerequisiteEvent) {
	state := &evalState{visiting: map[string]bool{flag.Key: true}}
	detail := e.evaluate(flag, user, state)
	return detail, state.events
}

func (e *Evaluator) evaluate(flag *ldmodel.FeatureFlag, user lduser.User, state *evalState) ldreason.EvaluationDetail {
	if !flag.On {
		return e.offResult(flag)
	}

	prereqFailed, malformed := e.checkPrerequisites(flag, user, state)
	if malformed {
		return ldreason.NewEvaluationError(ldvalue.Null(), ldreason.EvalErrorMalformedFlag)
	}
	if prereqFailed != "" {
		return e.variationOrError(flag, flag.OffVariation, ldreason.NewEvalReasonPrerequisiteFailed(prereqFailed))
	}

	for _, target := range flag.Targets {
		for _, v := range target.Values {
			if v == user.Key() {
				return e.variationOrError(flag, &target.Variation, ldreason.NewEvalReasonTargetMatch())
			}
		}
	}

	for i, rule := range flag.Rules {
		status := e.ruleMatches(rule.Clauses, user, state)
		if status.malformed {
			return ldreason.NewEvaluationError(ldvalue.Null(), ldreason.EvalErrorMalformedFlag)
		}
		if !status.matched {
			continue
		}
		detail, outcome := e.resolveVariationOrRollout(flag, rule.VariationOrRollout, user, rule.ID)
		switch outcome {
		case rolloutResultMalformed:
			return ldreason.NewEvaluationError(ldvalue.Null(), ldreason.EvalErrorMalformedFlag)
		case rolloutResultNoMatch:
			// Residual bucketing weight: this rule is treated as not having matched at all, so
			// scanning continues with the next rule.
			continue
		}
		detail.Reason = ldreason.NewEvalReasonRuleMatch(i, rule.ID, detail.Reason.InExperiment()).
			WithBigSegmentsStatus(status.bigSegmentsStatus)
		return detail
	}

	detail, outcome := e.resolveVariationOrRollout(flag, flag.Fallthrough, user, "")
	if outcome != rolloutResultMatched {
		// Fallthrough has no further step to fall through to; residual bucketing weight here
		// means the rollout's weights are themselves malformed.
		return ldreason.NewEvaluationError(ldvalue.Null(), ldreason.EvalErrorMalformedFlag)
	}
	detail.Reason = ldreason.NewEvalReasonFallthrough(detail.Reason.InExperiment())
	return detail
}

func (e *Evaluator) offResult(flag *ldmodel.FeatureFlag) ldreason.EvaluationDetail {
	return e.variationOrError(flag, flag.OffVariation, ldreason.NewEvalReasonOff())
}

// checkPrerequisites recursively evaluates each prerequisite. It returns the key of the first
// prerequisite that failed (empty string if all passed), and a malformed flag indicating a
// dependency cycle or a prerequisite that itself evaluated to MALFORMED_FLAG (e.g. a nonexistent
// variation). A prerequisite flag that does not exist counts as failed, not malformed.
func (e *Evaluator) checkPrerequisites(flag *ldmodel.FeatureFlag, user lduser.User, state *evalState) (string, bool) {
	for _, p := range flag.Prerequisites {
		if state.visiting[p.Key] {
			return "", true // cycle
		}
		prereqFlag, ok := e.data.GetFlag(p.Key)
		if !ok || prereqFlag == nil {
			return p.Key, false
		}

		state.visiting[p.Key] = true
		prereqDetail := e.evaluate(prereqFlag, user, state)
		delete(state.visiting, p.Key)

		state.events = append(state.events, PrerequisiteEvent{
			FlagKey:         flag.Key,
			PrerequisiteKey: p.Key,
			Detail:          prereqDetail,
		})

		if prereqDetail.Reason.Kind() == ldreason.EvalReasonError &&
			prereqDetail.Reason.ErrorKind() == ldreason.EvalErrorMalformedFlag {
			return "", true
		}
		if !prereqFlag.On || prereqDetail.VariationIndex != p.Variation {
			return p.Key, false
		}
	}
	return "", false
}

type ruleMatchStatus struct {
	matched           bool
	malformed         bool
	bigSegmentsStatus ldreason.BigSegmentsStatus
}

func (e *Evaluator) ruleMatches(clauses []ldmodel.Clause, user lduser.User, state *evalState) ruleMatchStatus {
	status := ruleMatchStatus{matched: true}
	for _, clause := range clauses {
		result := e.clauseMatches(clause, user, state)
		status.bigSegmentsStatus = ldreason.Worse(status.bigSegmentsStatus, result.bigSegmentsStatus)
		if result.malformed {
			status.malformed = true
			return status
		}
		if !result.matched {
			status.matched = false
			return status
		}
	}
	return status
}

type clauseMatchResult struct {
	matched           bool
	malformed         bool
	bigSegmentsStatus ldreason.BigSegmentsStatus
}

func (e *Evaluator) clauseMatches(clause ldmodel.Clause, user lduser.User, state *evalState) clauseMatchResult {
	if clause.Op == ldmodel.OperatorSegmentMatch {
		return e.segmentMatchClause(clause, user, state)
	}

	fn, ok := operatorFns[clause.Op]
	if !ok {
		return clauseMatchResult{malformed: true}
	}

	matched := e.matchAttribute(clause, user, fn)
	if clause.Negate {
		matched = !matched
	}
	return clauseMatchResult{matched: matched}
}

// matchAttribute implements the existential-match rule: if the attribute resolves to an array,
// the clause matches if any element matches any clause value; for a scalar attribute, the clause
// matches if the attribute matches any clause value. An unknown attribute never matches.
func (e *Evaluator) matchAttribute(clause ldmodel.Clause, user lduser.User, fn opFn) bool {
	value, ok := user.GetAttribute(clause.Attribute)
	if !ok {
		return false
	}
	if value.Type() == ldvalue.ArrayType {
		for i := 0; i < value.Count(); i++ {
			element := value.GetByIndex(i)
			for _, cv := range clause.Values {
				if fn(element, cv) {
					return true
				}
			}
		}
		return false
	}
	for _, cv := range clause.Values {
		if fn(value, cv) {
			return true
		}
	}
	return false
}

func (e *Evaluator) segmentMatchClause(clause ldmodel.Clause, user lduser.User, state *evalState) clauseMatchResult {
	matched := false
	var status ldreason.BigSegmentsStatus
	for _, cv := range clause.Values {
		if cv.Type() != ldvalue.StringType {
			continue
		}
		segment, ok := e.data.GetSegment(cv.String())
		if !ok || segment == nil {
			continue
		}
		segMatched, segStatus := e.evaluateSegment(segment, user, state)
		status = ldreason.Worse(status, segStatus)
		if segMatched {
			matched = true
		}
	}
	if clause.Negate {
		matched = !matched
	}
	return clauseMatchResult{matched: matched, bigSegmentsStatus: status}
}

func (e *Evaluator) evaluateSegment(segment *ldmodel.Segment, user lduser.User, state *evalState) (bool, ldreason.BigSegmentsStatus) {
	if segment.Unbounded {
		return e.evaluateBigSegment(segment, user)
	}

	for _, k := range segment.Excluded {
		if k == user.Key() {
			return false, ldreason.BigSegmentsStatusNotRequested
		}
	}
	for _, k := range segment.Included {
		if k == user.Key() {
			return true, ldreason.BigSegmentsStatusNotRequested
		}
	}
	for _, rule := range segment.Rules {
		if e.segmentRuleMatches(rule, segment, user) {
			return true, ldreason.BigSegmentsStatusNotRequested
		}
	}
	return false, ldreason.BigSegmentsStatusNotRequested
}

func (e *Evaluator) segmentRuleMatches(rule ldmodel.SegmentRule, segment *ldmodel.Segment, user lduser.User) bool {
	for _, clause := range rule.Clauses {
		fn, ok := operatorFns[clause.Op]
		if clause.Op == ldmodel.OperatorSegmentMatch || !ok {
			return false
		}
		matched := e.matchAttribute(clause, user, fn)
		if clause.Negate {
			matched = !matched
		}
		if !matched {
			return false
		}
	}
	if rule.Weight == nil {
		return true
	}
	bucketBy := rule.BucketBy
	if bucketBy == "" {
		bucketBy = "key"
	}
	bucketByValue, ok := user.GetAttribute(bucketBy)
	if !ok {
		return false
	}
	secondary := ""
	if s, ok := user.Secondary(); ok {
		secondary = s.String()
	}
	bucket, ok := bucketing.Bucket(bucketByValue, segment.Key, segment.Salt, nil, secondary)
	if !ok {
		return false
	}
	return bucket*100000 < float64(*rule.Weight)
}

func (e *Evaluator) evaluateBigSegment(segment *ldmodel.Segment, user lduser.User) (bool, ldreason.BigSegmentsStatus) {
	if e.bigSegments == nil {
		return false, ldreason.BigSegmentsStatusNotConfigured
	}
	membership, status := e.bigSegments.GetUserMembership(user.Key())
	if membership == nil {
		return false, status
	}
	included := membership.CheckMembership(segment.Key)
	if included == nil {
		return false, status
	}
	return *included, status
}

// rolloutResult distinguishes the three outcomes of resolving a VariationOrRollout.
type rolloutResult int

const (
	// rolloutResultMatched means detail holds a usable evaluation result.
	rolloutResultMatched rolloutResult = iota
	// rolloutResultNoMatch means the rollout's accumulated weight never reached the user's
	// bucket (residual weight); the caller's rule (or fallthrough) did not match the rollout.
	rolloutResultNoMatch
	// rolloutResultMalformed means the flag data itself is invalid (no rollout and no fixed
	// variation, a rollout with no variations, or a variation index outside flag.Variations).
	rolloutResultMalformed
)

// resolveVariationOrRollout picks a variation index for the given VariationOrRollout, either
// fixed or via bucketing, and returns the corresponding EvaluationDetail alongside the outcome.
func (e *Evaluator) resolveVariationOrRollout(
	flag *ldmodel.FeatureFlag, vr ldmodel.VariationOrRollout, user lduser.User, ruleID string,
) (ldreason.EvaluationDetail, rolloutResult) {
	if vr.Variation != nil {
		detail := e.variationOrError(flag, vr.Variation, ldreason.EvaluationReason{})
		if detail.Reason.Kind() == ldreason.EvalReasonError {
			return ldreason.EvaluationDetail{}, rolloutResultMalformed
		}
		return detail, rolloutResultMatched
	}
	if vr.Rollout == nil || len(vr.Rollout.Variations) == 0 {
		return ldreason.EvaluationDetail{}, rolloutResultMalformed
	}

	rollout := vr.Rollout
	bucketBy := rollout.BucketBy
	if bucketBy == "" {
		bucketBy = "key"
	}
	bucketByValue, haveAttr := user.GetAttribute(bucketBy)
	var bucket float64
	if haveAttr {
		secondary := ""
		if s, ok := user.Secondary(); ok {
			secondary = s.String()
		}
		salt := flag.Salt
		b, ok := bucketing.Bucket(bucketByValue, flag.Key, salt, rollout.Seed, secondary)
		if ok {
			bucket = b
		}
	}

	var sum int
	var chosen ldmodel.WeightedVariation
	matched := false
	for _, wv := range rollout.Variations {
		sum += wv.Weight
		if bucket*100000 < float64(sum) {
			chosen = wv
			matched = true
			break
		}
	}
	if !matched {
		return ldreason.EvaluationDetail{}, rolloutResultNoMatch
	}

	detail := e.variationOrError(flag, &chosen.Variation, ldreason.EvaluationReason{})
	if detail.Reason.Kind() == ldreason.EvalReasonError {
		return ldreason.EvaluationDetail{}, rolloutResultMalformed
	}
	if rollout.Kind == ldmodel.RolloutKindExperiment && !chosen.Untracked {
		detail.Reason = ldreason.NewEvalReasonFallthrough(true)
	}
	return detail, rolloutResultMatched
}

func (e *Evaluator) variationOrError(flag *ldmodel.FeatureFlag, variation *int, reason ldreason.EvaluationReason) ldreason.EvaluationDetail {
	if variation == nil {
		return ldreason.EvaluationDetail{Value: ldvalue.Null(), VariationIndex: -1, Reason: reason}
	}
	idx := *variation
	if idx < 0 || idx >= len(flag.Variations) {
		return ldreason.NewEvaluationError(ldvalue.Null(), ldreason.EvalErrorMalformedFlag)
	}
	return ldreason.EvaluationDetail{Value: flag.Variations[idx], VariationIndex: idx, Reason: reason}
}
