package events

// NullProcessor discards every event. It is used when the host disables analytics events
// entirely.
type NullProcessor struct{}

func (NullProcessor) SendEvent(Event) {}
func (NullProcessor) Flush()          {}
func (NullProcessor) Close() error    { return nil }

var _ Processor = NullProcessor{}
