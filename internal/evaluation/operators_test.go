package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagcore/flagcore/ldmodel"
	"github.com/flagcore/flagcore/ldvalue"
)

func TestSemVerLessThanIsNumericAwareForPrereleaseIdentifiers(t *testing.T) {
	lessThan := operatorFns[ldmodel.OperatorSemVerLessThan]

	// A whole-string compare would put "1.0.0-rc.10" before "1.0.0-rc.9" (lexical "1" < "9");
	// per semver 2.0.0 numeric identifiers compare numerically, so rc.9 < rc.10.
	assert.True(t, lessThan(ldvalue.String("1.0.0-rc.9"), ldvalue.String("1.0.0-rc.10")))
	assert.False(t, lessThan(ldvalue.String("1.0.0-rc.10"), ldvalue.String("1.0.0-rc.9")))
}

func TestSemVerEqualToleratesMissingMinorAndPatch(t *testing.T) {
	equal := operatorFns[ldmodel.OperatorSemVerEqual]

	assert.True(t, equal(ldvalue.String("2"), ldvalue.String("2.0.0")))
	assert.True(t, equal(ldvalue.String("2.1"), ldvalue.String("2.1.0")))
}

func TestSemVerGreaterThanNoPrereleaseOutranksAnyPrerelease(t *testing.T) {
	greaterThan := operatorFns[ldmodel.OperatorSemVerGreaterThan]

	assert.True(t, greaterThan(ldvalue.String("1.0.0"), ldvalue.String("1.0.0-beta")))
}

func TestSemVerOperatorsReturnFalseOnUnparsableVersion(t *testing.T) {
	equal := operatorFns[ldmodel.OperatorSemVerEqual]

	assert.False(t, equal(ldvalue.String("not-a-version"), ldvalue.String("1.0.0")))
}
