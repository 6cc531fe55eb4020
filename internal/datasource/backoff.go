package datasource

import (
	"math/rand"
	"time"
)

const (
	defaultInitialReconnectDelay = time.Second
	maxReconnectDelay            = 30 * time.Second
	// resetIntervalForBackoff is how long a connection must stay up before the backoff counter
	// resets to the initial delay, so a brief flap doesn't leave us permanently at the ceiling.
	resetIntervalForBackoff = 60 * time.Second
)

// backoffWithJitter computes the next reconnect delay using exponential backoff with "full
// jitter": the result is a uniformly random duration between zero and the computed ceiling for
// this attempt, which avoids every disconnected client reconnecting in lockstep.
func backoffWithJitter(attempt int, initialDelay time.Duration) time.Duration {
	if initialDelay <= 0 {
		initialDelay = defaultInitialReconnectDelay
	}
	ceiling := initialDelay
	for i := 0; i < attempt && ceiling < maxReconnectDelay; i++ {
		ceiling *= 2
	}
	if ceiling > maxReconnectDelay {
		ceiling = maxReconnectDelay
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling))) //nolint:gosec // jitter does not need CSPRNG
}
