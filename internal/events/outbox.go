package events

// eventsOutbox buffers not-yet-flushed events and running evaluation counters between flushes.
type eventsOutbox struct {
	capacity      int
	events        []Event
	summary       eventSummarizer
	droppedEvents int
}

func newEventsOutbox(capacity int) *eventsOutbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &eventsOutbox{capacity: capacity, summary: newEventSummarizer()}
}

func (o *eventsOutbox) addEvent(e Event) {
	if len(o.events) >= o.capacity {
		o.droppedEvents++
		return
	}
	o.events = append(o.events, e)
}

func (o *eventsOutbox) addToSummary(e Event) {
	if fe, ok := e.(FeatureRequestEvent); ok {
		o.summary.noteFeatureRequest(fe)
	}
}

type flushPayload struct {
	events  []Event
	summary eventSummarizer
}

func (o *eventsOutbox) getPayload() flushPayload {
	return flushPayload{events: o.events, summary: o.summary}
}

func (o *eventsOutbox) clear() {
	o.events = nil
	o.summary = newEventSummarizer()
}

// eventSummarizer accumulates per-flag-per-variation counters for every evaluation, tracked or
// not, so a single summary event can represent a large volume of evaluations.
type eventSummarizer struct {
	startDate uint64
	endDate   uint64
	counters  map[counterKey]*CounterData
}

type counterKey struct {
	flagKey   string
	version   int
	hasVer    bool
	variation int
	hasVar    bool
}

func newEventSummarizer() eventSummarizer {
	return eventSummarizer{counters: make(map[counterKey]*CounterData)}
}

func (s *eventSummarizer) noteFeatureRequest(e FeatureRequestEvent) {
	if s.startDate == 0 || e.CreationDate < s.startDate {
		s.startDate = e.CreationDate
	}
	if e.CreationDate > s.endDate {
		s.endDate = e.CreationDate
	}

	key := counterKey{flagKey: e.FlagKey}
	if e.Version != nil {
		key.version, key.hasVer = *e.Version, true
	}
	if e.Variation != nil {
		key.variation, key.hasVar = *e.Variation, true
	}

	if existing, ok := s.counters[key]; ok {
		existing.Count++
		return
	}
	s.counters[key] = &CounterData{
		Key:       e.FlagKey,
		Version:   e.Version,
		Variation: e.Variation,
		Value:     e.Value,
		Default:   e.Default,
		Count:     1,
		Unknown:   e.Version == nil,
	}
}

func (s *eventSummarizer) isEmpty() bool {
	return len(s.counters) == 0
}

func (s *eventSummarizer) toSummaryEvent() SummaryEvent {
	out := SummaryEvent{StartDate: s.startDate, EndDate: s.endDate}
	for _, c := range s.counters {
		out.Counters = append(out.Counters, *c)
	}
	return out
}
