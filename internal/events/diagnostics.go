package events

import (
	"runtime"
	"sync"

	"github.com/google/uuid"
)

type diagnosticID struct {
	DiagnosticID string `json:"diagnosticId"`
	SDKKeySuffix string `json:"sdkKeySuffix,omitempty"`
}

func newDiagnosticID(sdkKey string) diagnosticID {
	id, _ := uuid.NewRandom()
	suffix := sdkKey
	if len(sdkKey) > 6 {
		suffix = sdkKey[len(sdkKey)-6:]
	}
	return diagnosticID{DiagnosticID: id.String(), SDKKeySuffix: suffix}
}

type diagnosticPlatformData struct {
	Name      string `json:"name"`
	GoVersion string `json:"goVersion"`
	OSArch    string `json:"osArch"`
	OSName    string `json:"osName"`
}

type diagnosticInitEvent struct {
	Kind          string                 `json:"kind"`
	ID            diagnosticID           `json:"id"`
	CreationDate  uint64                 `json:"creationDate"`
	Configuration map[string]interface{} `json:"configuration"`
	Platform      diagnosticPlatformData `json:"platform"`
}

type diagnosticPeriodicEvent struct {
	Kind              string `json:"kind"`
	ID                diagnosticID `json:"id"`
	CreationDate      uint64 `json:"creationDate"`
	DataSinceDate     uint64 `json:"dataSinceDate"`
	DroppedEvents     int    `json:"droppedEvents"`
	DeduplicatedUsers int    `json:"deduplicatedUsers"`
	EventsInLastBatch int    `json:"eventsInLastBatch"`
}

// DiagnosticsManager builds the periodic diagnostic-event payloads the host sends to the
// diagnostic endpoint, tracking counters the dispatcher resets on every send.
type DiagnosticsManager struct {
	id            diagnosticID
	configData    map[string]interface{}
	startTime     uint64
	dataSinceTime uint64
	mu            sync.Mutex
}

// NewDiagnosticsManager constructs a manager; configData is an arbitrary description of the
// effective configuration to include in the init event.
func NewDiagnosticsManager(sdkKey string, configData map[string]interface{}, startTime uint64) *DiagnosticsManager {
	return &DiagnosticsManager{
		id:            newDiagnosticID(sdkKey),
		configData:    configData,
		startTime:     startTime,
		dataSinceTime: startTime,
	}
}

// CreateInitEvent builds the one-time diagnostic-init payload sent at startup.
func (m *DiagnosticsManager) CreateInitEvent() interface{} {
	return diagnosticInitEvent{
		Kind:          "diagnostic-init",
		ID:            m.id,
		CreationDate:  m.startTime,
		Configuration: m.configData,
		Platform: diagnosticPlatformData{
			Name:      "Go",
			GoVersion: runtime.Version(),
			OSArch:    runtime.GOARCH,
			OSName:    normalizeOSName(runtime.GOOS),
		},
	}
}

// CreateStatsEventAndReset builds a periodic diagnostic payload and resets the counters it
// covers, so the next interval starts fresh.
func (m *DiagnosticsManager) CreateStatsEventAndReset(droppedEvents, deduplicatedUsers, eventsInLastBatch int) interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := nowMillis()
	event := diagnosticPeriodicEvent{
		Kind:              "diagnostic",
		ID:                m.id,
		CreationDate:      now,
		DataSinceDate:     m.dataSinceTime,
		DroppedEvents:     droppedEvents,
		DeduplicatedUsers: deduplicatedUsers,
		EventsInLastBatch: eventsInLastBatch,
	}
	m.dataSinceTime = now
	return event
}

func normalizeOSName(osName string) string {
	switch osName {
	case "darwin":
		return "MacOS"
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	}
	return osName
}
