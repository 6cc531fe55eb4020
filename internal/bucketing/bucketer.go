// Package bucketing implements the deterministic hash used to assign a user/context to one of a
// flag's percentage-rollout buckets.
package bucketing

import (
	"crypto/sha1" //nolint:gosec // not used for security, only for deterministic bucket assignment
	"encoding/hex"
	"strconv"

	"github.com/flagcore/flagcore/ldvalue"
)

const (
	longScale = float64(0xFFFFFFFFFFFFFFF)
)

// Bucket computes a pseudo-random number in [0, 1) for the given bucketing value, flag/segment
// key, and salt, optionally scoped to a rollout's seed instead of the key+salt. The same inputs
// always produce the same output, and the distribution is uniform over many users.
//
// bucketByValue is the raw attribute value used for bucketing (usually the user key). Only strings
// and integral numbers are bucketable (see bucketableStringValue); for any other value Bucket
// returns (0, false).
func Bucket(bucketByValue ldvalue.Value, key string, salt string, seed *int, secondary string) (float64, bool) {
	bucketableStr, ok := bucketableStringValue(bucketByValue)
	if !ok {
		return 0, false
	}

	var prefix string
	if seed != nil {
		prefix = strconv.Itoa(*seed)
	} else {
		prefix = key + "." + salt
	}

	idHash := bucketableStr
	if secondary != "" {
		idHash = idHash + "." + secondary
	}

	hash := sha1Hex(prefix + "." + idHash)
	hash15 := hash[:15]

	intVal, err := strconv.ParseUint(hash15, 16, 64)
	if err != nil {
		return 0, false
	}
	return float64(intVal) / longScale, true
}

func sha1Hex(s string) string {
	h := sha1.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(h[:])
}

// bucketableStringValue converts a bucketing attribute value to the string form used for hashing.
// Only strings and integral numbers can be used to bucket; everything else (bool, array, object,
// non-integral float) fails with ok=false. The evaluator then uses a bucket of 0 for a flag
// rollout, and treats a weighted segment rule as not matching.
func bucketableStringValue(value ldvalue.Value) (string, bool) {
	switch value.Type() {
	case ldvalue.StringType:
		return value.String(), true
	case ldvalue.NumberType:
		if value.IsInt() {
			return strconv.Itoa(value.Int()), true
		}
		return "", false
	default:
		return "", false
	}
}
