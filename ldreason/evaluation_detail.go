package ldreason

import "github.com/flagcore/flagcore/ldvalue"

// EvaluationDetail is the value and metadata produced by evaluating a flag for a user/context.
type EvaluationDetail struct {
	// Value is the result of the flag evaluation. It is the default value if VariationIndex is -1.
	Value ldvalue.Value
	// VariationIndex is the index of the returned value within the flag's variation list, or -1 if
	// the default value was returned instead (e.g. because of an error, or the flag was not found).
	VariationIndex int
	// Reason describes how the value was computed.
	Reason EvaluationReason
}

// IsDefaultValue returns true if the evaluation returned the default value, due to an error or the
// flag being unavailable, rather than a variation from the flag itself.
func (d EvaluationDetail) IsDefaultValue() bool {
	return d.VariationIndex == -1
}

// NewEvaluationError constructs an EvaluationDetail representing an evaluation failure: the given
// default value, variation index -1, and an ERROR reason with the given error kind.
func NewEvaluationError(defaultValue ldvalue.Value, errorKind EvalErrorKind) EvaluationDetail {
	return EvaluationDetail{
		Value:          defaultValue,
		VariationIndex: -1,
		Reason:         NewEvalReasonError(errorKind),
	}
}
