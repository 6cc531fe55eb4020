package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffWithJitterStaysUnderCeiling(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := backoffWithJitter(attempt, time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, maxReconnectDelay)
	}
}

func TestBackoffWithJitterGrowsWithAttempts(t *testing.T) {
	// Not strictly monotonic due to jitter, but the ceiling used for attempt 5 must be higher
	// than for attempt 0 once it hasn't yet saturated at the max.
	earlyCeiling := ceilingForAttempt(0, time.Second)
	laterCeiling := ceilingForAttempt(5, time.Second)
	assert.Greater(t, laterCeiling, earlyCeiling)
}

func ceilingForAttempt(attempt int, initialDelay time.Duration) time.Duration {
	ceiling := initialDelay
	for i := 0; i < attempt && ceiling < maxReconnectDelay; i++ {
		ceiling *= 2
	}
	if ceiling > maxReconnectDelay {
		ceiling = maxReconnectDelay
	}
	return ceiling
}
