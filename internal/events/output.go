package events

import "github.com/flagcore/flagcore/ldreason"

// outputEvent is the wire shape shared by feature, debug, identify, custom, and index events.
type outputEvent struct {
	Kind         string                     `json:"kind"`
	CreationDate uint64                     `json:"creationDate"`
	Key          string                     `json:"key,omitempty"`
	User         *outUser                   `json:"user,omitempty"`
	UserKey      string                     `json:"userKey,omitempty"`
	Value        interface{}                `json:"value,omitempty"`
	Default      interface{}                `json:"default,omitempty"`
	Variation    *int                       `json:"variation,omitempty"`
	Version      *int                       `json:"version,omitempty"`
	Reason       *ldreason.EvaluationReason `json:"reason,omitempty"`
	PrereqOf     string                     `json:"prereqOf,omitempty"`
	Data         interface{}                `json:"data,omitempty"`
	MetricValue  *float64                   `json:"metricValue,omitempty"`
}

type outputSummary struct {
	Kind      string                   `json:"kind"`
	StartDate uint64                   `json:"startDate"`
	EndDate   uint64                   `json:"endDate"`
	Features  map[string]outputCounter `json:"features"`
}

type outputCounter struct {
	Default  interface{}        `json:"default,omitempty"`
	Counters []outputCounterRow `json:"counters"`
}

type outputCounterRow struct {
	Value     interface{} `json:"value"`
	Version   *int        `json:"version,omitempty"`
	Variation *int        `json:"variation,omitempty"`
	Count     int         `json:"count"`
	Unknown   bool        `json:"unknown,omitempty"`
}

type eventOutputFormatter struct {
	filter              userFilter
	inlineUsersInEvents bool
}

func newEventOutputFormatter(config Config) eventOutputFormatter {
	return eventOutputFormatter{filter: newUserFilter(config), inlineUsersInEvents: config.InlineUsersInEvents}
}

func (f eventOutputFormatter) makeOutputEvents(events []Event, summary eventSummarizer) []interface{} {
	out := make([]interface{}, 0, len(events)+1)
	for _, e := range events {
		out = append(out, f.makeOutputEvent(e))
	}
	if !summary.isEmpty() {
		out = append(out, f.makeSummaryEvent(summary.toSummaryEvent()))
	}
	return out
}

func (f eventOutputFormatter) makeOutputEvent(e Event) outputEvent {
	switch evt := e.(type) {
	case FeatureRequestEvent:
		kind := KindFeature
		if evt.Debug {
			kind = KindDebug
		}
		out := outputEvent{
			Kind:         kind,
			CreationDate: evt.CreationDate,
			Key:          evt.FlagKey,
			Value:        evt.Value.InnerValue(),
			Default:      evt.Default.InnerValue(),
			Variation:    evt.Variation,
			Version:      evt.Version,
			PrereqOf:     evt.PrereqOf,
		}
		if evt.Reason.Kind() != "" {
			r := evt.Reason
			out.Reason = &r
		}
		if evt.Debug || f.inlineUsersInEvents {
			u := f.filter.filter(evt.User)
			out.User = &u
		} else {
			out.UserKey = evt.User.Key()
		}
		return out
	case IdentifyEvent:
		u := f.filter.filter(evt.User)
		return outputEvent{Kind: KindIdentify, CreationDate: evt.CreationDate, Key: evt.User.Key(), User: &u}
	case CustomEvent:
		out := outputEvent{Kind: KindCustom, CreationDate: evt.CreationDate, Key: evt.Key}
		if !evt.Data.IsNull() {
			out.Data = evt.Data.InnerValue()
		}
		if evt.HasMetric {
			mv := evt.MetricValue
			out.MetricValue = &mv
		}
		if f.inlineUsersInEvents {
			u := f.filter.filter(evt.User)
			out.User = &u
		} else {
			out.UserKey = evt.User.Key()
		}
		return out
	case IndexEvent:
		u := f.filter.filter(evt.User)
		return outputEvent{Kind: KindIndex, CreationDate: evt.CreationDate, User: &u}
	default:
		return outputEvent{Kind: "unknown", CreationDate: e.GetBase().CreationDate}
	}
}

func (f eventOutputFormatter) makeSummaryEvent(s SummaryEvent) outputSummary {
	out := outputSummary{Kind: KindSummary, StartDate: s.StartDate, EndDate: s.EndDate, Features: make(map[string]outputCounter)}
	for _, c := range s.Counters {
		feature, ok := out.Features[c.Key]
		if !ok {
			feature = outputCounter{Default: c.Default.InnerValue()}
		}
		feature.Counters = append(feature.Counters, outputCounterRow{
			Value:     c.Value.InnerValue(),
			Version:   c.Version,
			Variation: c.Variation,
			Count:     c.Count,
			Unknown:   c.Unknown,
		})
		out.Features[c.Key] = feature
	}
	return out
}
