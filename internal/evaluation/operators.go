package evaluation

import (
	"regexp"
	"strings"
	"time"

	"github.com/launchdarkly/go-semver"

	"github.com/flagcore/flagcore/ldmodel"
	"github.com/flagcore/flagcore/ldvalue"
)

// opFn compares a context attribute value against one clause value. A type mismatch between the
// two is "no match", never an error: the evaluator treats clause matching as a pure boolean test.
type opFn func(contextValue, clauseValue ldvalue.Value) bool

var operatorFns = map[ldmodel.Operator]opFn{
	ldmodel.OperatorIn:                 operatorIn,
	ldmodel.OperatorEndsWith:           stringOp(strings.HasSuffix),
	ldmodel.OperatorStartsWith:         stringOp(strings.HasPrefix),
	ldmodel.OperatorContains:           stringOp(strings.Contains),
	ldmodel.OperatorMatches:            operatorMatches,
	ldmodel.OperatorLessThan:           numericOp(func(a, b float64) bool { return a < b }),
	ldmodel.OperatorLessThanOrEqual:    numericOp(func(a, b float64) bool { return a <= b }),
	ldmodel.OperatorGreaterThan:        numericOp(func(a, b float64) bool { return a > b }),
	ldmodel.OperatorGreaterThanOrEqual: numericOp(func(a, b float64) bool { return a >= b }),
	ldmodel.OperatorBefore:             dateOp(func(a, b time.Time) bool { return a.Before(b) }),
	ldmodel.OperatorAfter:              dateOp(func(a, b time.Time) bool { return a.After(b) }),
	ldmodel.OperatorSemVerEqual:        semVerOp(func(c int) bool { return c == 0 }),
	ldmodel.OperatorSemVerLessThan:     semVerOp(func(c int) bool { return c < 0 }),
	ldmodel.OperatorSemVerGreaterThan:  semVerOp(func(c int) bool { return c > 0 }),
}

// operatorIn implements the "in" operator: exact equality, with numbers compared as floats per
// the JSON data model (there is no separate int/float distinction on the wire).
func operatorIn(contextValue, clauseValue ldvalue.Value) bool {
	if contextValue.Type() != clauseValue.Type() {
		return false
	}
	switch contextValue.Type() {
	case ldvalue.NumberType:
		return contextValue.Float64() == clauseValue.Float64()
	case ldvalue.StringType:
		return contextValue.String() == clauseValue.String()
	case ldvalue.BoolType:
		return contextValue.Bool() == clauseValue.Bool()
	default:
		return false
	}
}

func stringOp(fn func(s, suffix string) bool) opFn {
	return func(contextValue, clauseValue ldvalue.Value) bool {
		if contextValue.Type() != ldvalue.StringType || clauseValue.Type() != ldvalue.StringType {
			return false
		}
		return fn(contextValue.String(), clauseValue.String())
	}
}

func operatorMatches(contextValue, clauseValue ldvalue.Value) bool {
	if contextValue.Type() != ldvalue.StringType || clauseValue.Type() != ldvalue.StringType {
		return false
	}
	re, err := regexp.Compile(clauseValue.String())
	if err != nil {
		return false
	}
	return re.MatchString(contextValue.String())
}

func numericOp(cmp func(a, b float64) bool) opFn {
	return func(contextValue, clauseValue ldvalue.Value) bool {
		if contextValue.Type() != ldvalue.NumberType || clauseValue.Type() != ldvalue.NumberType {
			return false
		}
		return cmp(contextValue.Float64(), clauseValue.Float64())
	}
}

func dateOp(cmp func(a, b time.Time) bool) opFn {
	return func(contextValue, clauseValue ldvalue.Value) bool {
		a, ok1 := parseDate(contextValue)
		b, ok2 := parseDate(clauseValue)
		if !ok1 || !ok2 {
			return false
		}
		return cmp(a, b)
	}
}

// parseDate accepts either an RFC3339 string or a unix-epoch-milliseconds number, matching the
// two date representations the wire format allows.
func parseDate(v ldvalue.Value) (time.Time, bool) {
	switch v.Type() {
	case ldvalue.StringType:
		t, err := time.Parse(time.RFC3339Nano, v.String())
		if err != nil {
			t, err = time.Parse(time.RFC3339, v.String())
			if err != nil {
				return time.Time{}, false
			}
		}
		return t.UTC(), true
	case ldvalue.NumberType:
		ms := v.Float64()
		return time.UnixMilli(int64(ms)).UTC(), true
	default:
		return time.Time{}, false
	}
}

// semVerOp parses both sides as semver, tolerating a missing minor and/or patch component (they
// default to zero), and compares by precedence per semver 2.0.0 (major, minor, patch, then
// per-identifier prerelease comparison) via github.com/launchdarkly/go-semver.
func semVerOp(accept func(cmp int) bool) opFn {
	return func(contextValue, clauseValue ldvalue.Value) bool {
		if contextValue.Type() != ldvalue.StringType || clauseValue.Type() != ldvalue.StringType {
			return false
		}
		a, err := semver.ParseAs(contextValue.String(), semver.ParseModeAllowMissingMinorAndPatch)
		if err != nil {
			return false
		}
		b, err := semver.ParseAs(clauseValue.String(), semver.ParseModeAllowMissingMinorAndPatch)
		if err != nil {
			return false
		}
		return accept(a.ComparePrecedence(b))
	}
}
