package bucketing

import (
	"testing"

	"github.com/flagcore/flagcore/ldvalue"
	"github.com/stretchr/testify/assert"
)

func TestBucketReferenceVector(t *testing.T) {
	result, ok := Bucket(ldvalue.String("userKeyA"), "hashKey", "saltyA", nil, "")
	assert.True(t, ok)
	assert.InDelta(t, 0.42157587, result, 0.0000001)
}

func TestBucketIsDeterministic(t *testing.T) {
	a, _ := Bucket(ldvalue.String("userKeyA"), "hashKey", "saltyA", nil, "")
	b, _ := Bucket(ldvalue.String("userKeyA"), "hashKey", "saltyA", nil, "")
	assert.Equal(t, a, b)
}

func TestBucketBySeedIgnoresKeyAndSalt(t *testing.T) {
	seed := 42
	a, _ := Bucket(ldvalue.String("userKeyA"), "hashKey", "saltyA", &seed, "")
	b, _ := Bucket(ldvalue.String("userKeyA"), "differentKey", "differentSalt", &seed, "")
	assert.Equal(t, a, b)
}

func TestBucketByIntegerAttribute(t *testing.T) {
	_, ok := Bucket(ldvalue.Int(33), "hashKey", "saltyA", nil, "")
	assert.True(t, ok)
}

func TestBucketByNonIntegralFloatFails(t *testing.T) {
	_, ok := Bucket(ldvalue.Float64(33.5), "hashKey", "saltyA", nil, "")
	assert.False(t, ok)
}

func TestBucketByBoolFails(t *testing.T) {
	_, ok := Bucket(ldvalue.Bool(true), "hashKey", "saltyA", nil, "")
	assert.False(t, ok)
}

func TestBucketWithSecondaryKeyDiffersFromWithout(t *testing.T) {
	plain, _ := Bucket(ldvalue.String("userKeyA"), "hashKey", "saltyA", nil, "")
	withSecondary, _ := Bucket(ldvalue.String("userKeyA"), "hashKey", "saltyA", nil, "other")
	assert.NotEqual(t, plain, withSecondary)
}
