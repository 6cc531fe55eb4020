package events

import (
	"github.com/flagcore/flagcore/ldreason"
	"github.com/flagcore/flagcore/lduser"
	"github.com/flagcore/flagcore/ldvalue"
)

// Event kind discriminators, matching the wire format's "kind" field.
const (
	KindFeature      = "feature"
	KindDebug        = "debug"
	KindIdentify     = "identify"
	KindCustom       = "custom"
	KindIndex        = "index"
	KindSummary      = "summary"
	KindPrerequisite = "prerequisite"
)

// Event is implemented by every analytics event kind the pipeline accepts.
type Event interface {
	GetBase() BaseEvent
}

// BaseEvent holds the fields common to every event kind.
type BaseEvent struct {
	CreationDate uint64
	User         lduser.User
}

func (b BaseEvent) GetBase() BaseEvent { return b }

// FeatureRequestEvent records a single flag evaluation.
type FeatureRequestEvent struct {
	BaseEvent
	FlagKey              string
	Value                ldvalue.Value
	Default              ldvalue.Value
	Variation            *int
	Version              *int
	Reason               ldreason.EvaluationReason
	TrackEvents          bool
	DebugEventsUntilDate *uint64
	Debug                bool
	PrereqOf             string
}

// IdentifyEvent records that a user was seen, independent of any flag evaluation.
type IdentifyEvent struct {
	BaseEvent
}

// CustomEvent records an application-triggered custom event, optionally carrying a numeric
// metric value and/or a JSON data payload.
type CustomEvent struct {
	BaseEvent
	Key         string
	Data        ldvalue.Value
	HasMetric   bool
	MetricValue float64
}

// IndexEvent notifies the events service of a user it has not seen before, so that later events
// referencing only the user's key can be resolved without inlining the full user.
type IndexEvent struct {
	BaseEvent
}

// SummaryEvent is a synthetic event type constructed at flush time from the outbox's running
// counters; it is never sent to SendEvent directly.
type SummaryEvent struct {
	StartDate uint64
	EndDate   uint64
	Counters  []CounterData
}

// CounterData is one row of a SummaryEvent: how many times a flag was evaluated to a particular
// variation (or fell back to default) over the summarized interval.
type CounterData struct {
	Key       string
	Version   *int
	Variation *int
	Value     ldvalue.Value
	Default   ldvalue.Value
	Count     int
	Unknown   bool
}
