// Package flagcore is the client facade for the feature-flag evaluation core. It wires together
// the data store, update processor, event processor, and big-segment wrapper, and exposes the
// typed Variation methods applications call to evaluate flags.
package flagcore

import (
	"net/http"
	"time"

	"github.com/flagcore/flagcore/interfaces"
	"github.com/flagcore/flagcore/internal/ldlog"
)

// MinimumPollInterval is the lowest PollInterval the client will honor; anything lower is clamped
// up to this value so a misconfigured host cannot hammer the polling endpoint.
const MinimumPollInterval = 30 * time.Second

// Config exposes the tunables for a Client. All fields are optional; the zero value of Config
// matches DefaultConfig's intent except where noted below, so it is always safe to evaluate flags
// even before an application has thought about tuning anything.
type Config struct {
	// StreamURI/PollURI/EventsURI override the corresponding base URI. Any left empty fall back
	// to the production endpoints (see internal/endpoints).
	StreamURI string
	PollURI   string
	EventsURI string

	// Stream selects the streaming update processor when true (the default via DefaultConfig);
	// otherwise the polling processor is used.
	Stream       bool
	PollInterval time.Duration

	// Offline puts the client into a mode that never makes network calls: DataSource and Events
	// are both ignored, and every Variation call returns its default value.
	Offline bool

	// SendEvents controls whether analytics events are generated at all. When false, a
	// NullProcessor discards everything, same as Offline but without disabling the data source.
	SendEvents bool

	// DataStore, if non-nil, overrides the default in-memory store. Use flagstore/redisstore (or
	// another PersistentDataStore implementation) wrapped in internal/datastore.NewCachingStore to
	// plug in a durable backend.
	DataStore interfaces.DataStore

	// BigSegments configures the big-segment consultation wrapper. A zero value (Store == nil)
	// disables big-segment support entirely.
	BigSegments interfaces.BigSegmentsConfig

	// HTTPClient is used for every outbound request (streaming, polling, events). Defaults to a
	// client with a 10 second timeout.
	HTTPClient *http.Client

	// Event pipeline tunables; zero values fall back to the internal/events package defaults.
	Capacity                    int
	FlushInterval               time.Duration
	UserKeysCapacity            int
	UserKeysFlushInterval       time.Duration
	AllAttributesPrivate        bool
	GlobalPrivateAttributes     []string
	InlineUsersInEvents         bool
	DiagnosticOptOut            bool
	DiagnosticRecordingInterval time.Duration

	// LogEvaluationErrors, if true, logs a warning every time a flag evaluation falls back to an
	// error result. Off by default to avoid flooding logs for applications that expect occasional
	// unknown-flag lookups.
	LogEvaluationErrors bool

	// Loggers is used for every log message the client and its components emit. A nil value (the
	// zero value of Config) falls back to ldlog.NewDefaultLoggers().
	Loggers *ldlog.Loggers
}

// DefaultConfig is the configuration used by MakeClient. It streams, sends events, and logs at
// Info level and above.
var DefaultConfig = Config{
	Stream:        true,
	SendEvents:    true,
	PollInterval:  MinimumPollInterval,
	FlushInterval: 0, // resolved to events.DefaultFlushInterval by the event processor
}
