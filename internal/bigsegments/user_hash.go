package bigsegments

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashForUserKey computes the hash under which a user's membership is stored in the big segment
// store. Exported for use by tests that need to seed a fake store.
func HashForUserKey(key string) string {
	hashBytes := sha256.Sum256([]byte(key))
	return base64.StdEncoding.EncodeToString(hashBytes[:])
}
