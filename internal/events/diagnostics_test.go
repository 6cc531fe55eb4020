package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnosticsManagerInitEventIncludesPlatform(t *testing.T) {
	m := NewDiagnosticsManager("sdk-key-123456", map[string]interface{}{"streaming": true}, 1000)
	event := m.CreateInitEvent().(diagnosticInitEvent)
	assert.Equal(t, "diagnostic-init", event.Kind)
	assert.Equal(t, "Go", event.Platform.Name)
	assert.Equal(t, "123456", event.ID.SDKKeySuffix)
}

func TestDiagnosticsManagerStatsEventResetsCounters(t *testing.T) {
	m := NewDiagnosticsManager("sdk-key", nil, 1000)
	first := m.CreateStatsEventAndReset(3, 2, 5).(diagnosticPeriodicEvent)
	assert.Equal(t, 3, first.DroppedEvents)
	assert.Equal(t, uint64(1000), first.DataSinceDate)

	second := m.CreateStatsEventAndReset(0, 0, 0).(diagnosticPeriodicEvent)
	assert.Equal(t, first.CreationDate, second.DataSinceDate)
}
