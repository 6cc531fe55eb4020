package flagcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigStreamsAndSendsEvents(t *testing.T) {
	assert.True(t, DefaultConfig.Stream)
	assert.True(t, DefaultConfig.SendEvents)
	assert.False(t, DefaultConfig.Offline)
	assert.Equal(t, MinimumPollInterval, DefaultConfig.PollInterval)
}

func TestMinimumPollIntervalIsThirtySeconds(t *testing.T) {
	assert.Equal(t, 30*time.Second, MinimumPollInterval)
}

func TestZeroValueConfigIsSafeToEvaluateWith(t *testing.T) {
	var config Config
	assert.False(t, config.Offline)
	assert.False(t, config.Stream)
	assert.Nil(t, config.DataStore)
	assert.Nil(t, config.Loggers)
}
