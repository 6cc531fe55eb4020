package events

import (
	"net/http"
	"time"
)

// Default tunables used when the corresponding Config field is left at its zero value.
const (
	DefaultCapacity              = 10000
	DefaultFlushInterval         = 5 * time.Second
	DefaultUserKeysCapacity      = 1000
	DefaultUserKeysFlushInterval = 5 * time.Minute
	DefaultDiagnosticInterval    = 15 * time.Minute
)

// Config controls the behavior of the event processor.
type Config struct {
	// EventsURI is the full bulk-ingestion endpoint, e.g. https://events.launchdarkly.com/bulk.
	EventsURI string
	// DiagnosticURI is the full diagnostic-event endpoint.
	DiagnosticURI string
	// SDKKey is sent as the Authorization header on every request.
	SDKKey string
	// HTTPClient is used to deliver event payloads. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Capacity bounds the number of not-yet-flushed events held in memory.
	Capacity int
	// FlushInterval is how often buffered events are flushed automatically.
	FlushInterval time.Duration
	// UserKeysCapacity bounds the user-deduplication cache.
	UserKeysCapacity int
	// UserKeysFlushInterval is how often the user-deduplication cache is cleared.
	UserKeysFlushInterval time.Duration

	// AllAttributesPrivate, if true, redacts every custom user attribute from outbound events
	// regardless of per-user Private() markings.
	AllAttributesPrivate bool
	// GlobalPrivateAttributes redacts the named attributes from every user in every event.
	GlobalPrivateAttributes []string
	// InlineUsersInEvents includes the full user object on every feature/custom event instead of
	// relying on a separate index event.
	InlineUsersInEvents bool

	// DiagnosticsManager computes and formats diagnostic event data. Leave nil to disable
	// diagnostic event delivery entirely.
	DiagnosticsManager *DiagnosticsManager
	// DiagnosticRecordingInterval is how often periodic diagnostic events are sent.
	DiagnosticRecordingInterval time.Duration
}
