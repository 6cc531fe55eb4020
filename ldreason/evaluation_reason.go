// Package ldreason defines the result types produced by a flag evaluation: the value plus the
// reason the evaluator arrived at that value, and the error kinds used when evaluation cannot
// proceed normally.
package ldreason

import (
	"encoding/json"
	"fmt"
)

// EvalReasonKind describes the general category of an EvaluationReason.
type EvalReasonKind string

const (
	// EvalReasonOff indicates that the flag was off and therefore returned its off variation.
	EvalReasonOff EvalReasonKind = "OFF"
	// EvalReasonTargetMatch indicates that the user/context key was specifically targeted for a variation.
	EvalReasonTargetMatch EvalReasonKind = "TARGET_MATCH"
	// EvalReasonRuleMatch indicates that the user/context matched one of the flag's rules.
	EvalReasonRuleMatch EvalReasonKind = "RULE_MATCH"
	// EvalReasonPrerequisiteFailed indicates that the flag was considered off because it had at
	// least one prerequisite flag that either was off or did not return the variation required by
	// that prerequisite.
	EvalReasonPrerequisiteFailed EvalReasonKind = "PREREQUISITE_FAILED"
	// EvalReasonFallthrough indicates that the flag was on but the user/context did not match any
	// targets or rules, so it returned the value from the fallthrough configuration.
	EvalReasonFallthrough EvalReasonKind = "FALLTHROUGH"
	// EvalReasonError indicates that the flag could not be evaluated, e.g. because it does not
	// exist or due to an unexpected error, and the default value was returned.
	EvalReasonError EvalReasonKind = "ERROR"
)

// EvalErrorKind describes the general category of the error that caused EvalReasonError.
type EvalErrorKind string

const (
	// EvalErrorClientNotReady means the caller tried to evaluate a flag before the client had
	// successfully initialized.
	EvalErrorClientNotReady EvalErrorKind = "CLIENT_NOT_READY"
	// EvalErrorFlagNotFound means the caller provided a flag key that did not match any known flag.
	EvalErrorFlagNotFound EvalErrorKind = "FLAG_NOT_FOUND"
	// EvalErrorUserNotSpecified means the user/context object or its key was not provided.
	EvalErrorUserNotSpecified EvalErrorKind = "USER_NOT_SPECIFIED"
	// EvalErrorWrongType means the result value was not of the requested type.
	EvalErrorWrongType EvalErrorKind = "WRONG_TYPE"
	// EvalErrorMalformedFlag means the flag data was malformed, such as a rule referring to a
	// nonexistent variation or a dependency cycle among prerequisites.
	EvalErrorMalformedFlag EvalErrorKind = "MALFORMED_FLAG"
	// EvalErrorException means an unexpected error occurred while evaluating.
	EvalErrorException EvalErrorKind = "EXCEPTION"
)

// EvaluationReason describes the way a flag evaluation result was computed.
type EvaluationReason struct {
	kind                                      EvalReasonKind
	ruleIndex                                 int
	ruleID                                    string
	prerequisiteKey                           string
	errorKind                                 EvalErrorKind
	inExperiment                              bool
	bigSegmentsStatus                         BigSegmentsStatus
}

// NewEvalReasonOff returns an EvaluationReason of kind OFF.
func NewEvalReasonOff() EvaluationReason {
	return EvaluationReason{kind: EvalReasonOff}
}

// NewEvalReasonFallthrough returns an EvaluationReason of kind FALLTHROUGH.
func NewEvalReasonFallthrough(inExperiment bool) EvaluationReason {
	return EvaluationReason{kind: EvalReasonFallthrough, inExperiment: inExperiment}
}

// NewEvalReasonTargetMatch returns an EvaluationReason of kind TARGET_MATCH.
func NewEvalReasonTargetMatch() EvaluationReason {
	return EvaluationReason{kind: EvalReasonTargetMatch}
}

// NewEvalReasonRuleMatch returns an EvaluationReason of kind RULE_MATCH.
func NewEvalReasonRuleMatch(ruleIndex int, ruleID string, inExperiment bool) EvaluationReason {
	return EvaluationReason{kind: EvalReasonRuleMatch, ruleIndex: ruleIndex, ruleID: ruleID, inExperiment: inExperiment}
}

// NewEvalReasonPrerequisiteFailed returns an EvaluationReason of kind PREREQUISITE_FAILED.
func NewEvalReasonPrerequisiteFailed(prereqKey string) EvaluationReason {
	return EvaluationReason{kind: EvalReasonPrerequisiteFailed, prerequisiteKey: prereqKey}
}

// NewEvalReasonError returns an EvaluationReason of kind ERROR.
func NewEvalReasonError(errorKind EvalErrorKind) EvaluationReason {
	return EvaluationReason{kind: EvalReasonError, errorKind: errorKind}
}

// Kind returns the general category of the reason.
func (r EvaluationReason) Kind() EvalReasonKind { return r.kind }

// RuleIndex returns the positional index of the matched rule, for RULE_MATCH reasons.
func (r EvaluationReason) RuleIndex() int { return r.ruleIndex }

// RuleID returns the unique identifier of the matched rule, for RULE_MATCH reasons.
func (r EvaluationReason) RuleID() string { return r.ruleID }

// PrerequisiteKey returns the key of the prerequisite flag that failed, for PREREQUISITE_FAILED reasons.
func (r EvaluationReason) PrerequisiteKey() string { return r.prerequisiteKey }

// ErrorKind returns the kind of error that occurred, for ERROR reasons.
func (r EvaluationReason) ErrorKind() EvalErrorKind { return r.errorKind }

// InExperiment returns true if the evaluation was part of an experiment, meaning event generation
// should not be suppressed by TrackEvents for the variation/rule encountered.
func (r EvaluationReason) InExperiment() bool { return r.inExperiment }

// BigSegmentsStatus returns the status of any big-segment query performed while evaluating this
// reason. It is BigSegmentsStatusNotRequested if no big segment was consulted.
func (r EvaluationReason) BigSegmentsStatus() BigSegmentsStatus { return r.bigSegmentsStatus }

// WithBigSegmentsStatus returns a copy of the reason with the given big-segments status attached.
// A NotRequested status leaves the reason unchanged; any other status replaces the one already
// present.
func (r EvaluationReason) WithBigSegmentsStatus(status BigSegmentsStatus) EvaluationReason {
	if status == BigSegmentsStatusNotRequested {
		return r
	}
	r.bigSegmentsStatus = status
	return r
}

// evaluationReasonJSON mirrors the wire shape of an EvaluationReason: kind is always present, the
// rest are included only when relevant to that kind (omitempty).
type evaluationReasonJSON struct {
	Kind               EvalReasonKind     `json:"kind"`
	RuleIndex          *int               `json:"ruleIndex,omitempty"`
	RuleID             string             `json:"ruleId,omitempty"`
	PrerequisiteKey    string             `json:"prerequisiteKey,omitempty"`
	ErrorKind          EvalErrorKind      `json:"errorKind,omitempty"`
	InExperiment       bool               `json:"inExperiment,omitempty"`
	BigSegmentsStatus  BigSegmentsStatus  `json:"bigSegmentsStatus,omitempty"`
}

// MarshalJSON encodes the reason in the wire format consumed by client-side SDKs and diagnostic
// tooling: {"kind":"OFF"}, {"kind":"RULE_MATCH","ruleIndex":0,"ruleId":"..."}, and so on.
func (r EvaluationReason) MarshalJSON() ([]byte, error) {
	out := evaluationReasonJSON{Kind: r.kind, InExperiment: r.inExperiment, BigSegmentsStatus: r.bigSegmentsStatus}
	switch r.kind {
	case EvalReasonRuleMatch:
		out.RuleIndex = &r.ruleIndex
		out.RuleID = r.ruleID
	case EvalReasonPrerequisiteFailed:
		out.PrerequisiteKey = r.prerequisiteKey
	case EvalReasonError:
		out.ErrorKind = r.errorKind
	}
	return json.Marshal(out)
}

func (r EvaluationReason) String() string {
	switch r.kind {
	case EvalReasonRuleMatch:
		return fmt.Sprintf("%s(%d,%s)", r.kind, r.ruleIndex, r.ruleID)
	case EvalReasonPrerequisiteFailed:
		return fmt.Sprintf("%s(%s)", r.kind, r.prerequisiteKey)
	case EvalReasonError:
		return fmt.Sprintf("%s(%s)", r.kind, r.errorKind)
	default:
		return string(r.kind)
	}
}

// BigSegmentsStatus describes the outcome of evaluating a big segment during a flag evaluation.
type BigSegmentsStatus string

const (
	// BigSegmentsStatusNotRequested means the flag evaluation did not query any big segment.
	BigSegmentsStatusNotRequested BigSegmentsStatus = ""
	// BigSegmentsStatusHealthy means big segment data was available and known to be up to date.
	BigSegmentsStatusHealthy BigSegmentsStatus = "HEALTHY"
	// BigSegmentsStatusStale means big segment data was available but the source of the data was
	// not able to confirm that it was up to date.
	BigSegmentsStatusStale BigSegmentsStatus = "STALE"
	// BigSegmentsStatusNotConfigured means big segments were referenced in a flag or segment rule,
	// but the evaluator has not been configured to be able to query them.
	BigSegmentsStatusNotConfigured BigSegmentsStatus = "NOT_CONFIGURED"
	// BigSegmentsStatusStoreError means the big segment store returned an error when queried.
	BigSegmentsStatusStoreError BigSegmentsStatus = "STORE_ERROR"
)

// worse returns whichever of a and b is the more severe status (a on a tie), used when multiple segments are
// consulted in one evaluation and the final reported status should reflect the worst one seen.
func worse(a, b BigSegmentsStatus) BigSegmentsStatus {
	rank := map[BigSegmentsStatus]int{
		BigSegmentsStatusNotRequested:  0,
		BigSegmentsStatusHealthy:       1,
		BigSegmentsStatusStale:         2,
		BigSegmentsStatusNotConfigured: 3,
		BigSegmentsStatusStoreError:    4,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Worse returns whichever of the two statuses is more severe.
func Worse(a, b BigSegmentsStatus) BigSegmentsStatus { return worse(a, b) }
