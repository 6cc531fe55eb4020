package events

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flagcore/flagcore/internal/ldlog"
)

const (
	maxFlushWorkers    = 5
	eventSchemaHeader  = "X-LaunchDarkly-Event-Schema"
	payloadIDHeader    = "X-LaunchDarkly-Payload-ID"
	currentEventSchema = "3"
)

// Processor is the public interface the client facade sends analytics events through.
type Processor interface {
	SendEvent(Event)
	Flush()
	Close() error
}

// DefaultProcessor is the queue-backed implementation of Processor: SendEvent and Flush are
// non-blocking calls that hand off to a background dispatcher goroutine.
type DefaultProcessor struct {
	inboxCh       chan interface{}
	inboxFullOnce sync.Once
	closeOnce     sync.Once
	loggers       ldlog.Loggers
}

type sendEventMessage struct{ event Event }
type flushEventsMessage struct{}
type shutdownMessage struct{ replyCh chan struct{} }

// NewDefaultProcessor constructs and starts a DefaultProcessor.
func NewDefaultProcessor(config Config, loggers ldlog.Loggers) *DefaultProcessor {
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	inboxCh := make(chan interface{}, capacity)
	startDispatcher(config, loggers, inboxCh)
	return &DefaultProcessor{inboxCh: inboxCh, loggers: loggers}
}

var _ Processor = (*DefaultProcessor)(nil)

func (p *DefaultProcessor) SendEvent(e Event) {
	p.postNonBlocking(sendEventMessage{event: e})
}

func (p *DefaultProcessor) Flush() {
	p.postNonBlocking(flushEventsMessage{})
}

func (p *DefaultProcessor) postNonBlocking(m interface{}) {
	select {
	case p.inboxCh <- m:
	default:
		p.inboxFullOnce.Do(func() {
			p.loggers.Warn("events are being produced faster than they can be processed; some events will be dropped")
		})
	}
}

// Close flushes any buffered events and blocks until they have been delivered or permanently
// dropped, then stops the dispatcher.
func (p *DefaultProcessor) Close() error {
	p.closeOnce.Do(func() {
		p.inboxCh <- flushEventsMessage{}
		m := shutdownMessage{replyCh: make(chan struct{})}
		p.inboxCh <- m
		<-m.replyCh
	})
	return nil
}

type dispatcher struct {
	config    Config
	loggers   ldlog.Loggers
	formatter eventOutputFormatter
	disabled  bool
	mu        sync.Mutex
}

func startDispatcher(config Config, loggers ldlog.Loggers, inboxCh <-chan interface{}) {
	d := &dispatcher{config: config, loggers: loggers, formatter: newEventOutputFormatter(config)}

	flushCh := make(chan flushPayload, 1)
	diagnosticCh := make(chan interface{}, 1)
	var workers sync.WaitGroup
	for i := 0; i < maxFlushWorkers; i++ {
		startFlushWorker(config, loggers, d.formatter, flushCh, &workers, d.handleResponse)
	}
	if config.DiagnosticsManager != nil {
		go postDiagnosticPayloads(config, loggers, diagnosticCh)
		diagnosticCh <- config.DiagnosticsManager.CreateInitEvent()
	}

	go d.run(inboxCh, flushCh, diagnosticCh, &workers)
}

func postDiagnosticPayloads(config Config, loggers ldlog.Loggers, diagnosticCh <-chan interface{}) {
	for event := range diagnosticCh {
		_, _ = postEvents(config, loggers, config.DiagnosticURI, event)
	}
}

func (d *dispatcher) run(
	inboxCh <-chan interface{}, flushCh chan flushPayload, diagnosticCh chan interface{}, workers *sync.WaitGroup,
) {
	defer func() {
		if err := recover(); err != nil {
			d.loggers.Errorf("unexpected panic in event dispatcher: %+v", err)
		}
	}()

	outbox := newEventsOutbox(d.config.Capacity)
	userKeys := newLRUCache(d.config.UserKeysCapacity)
	var deduplicatedUsers, eventsInLastBatch int

	flushInterval := d.config.FlushInterval
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	userKeysFlushInterval := d.config.UserKeysFlushInterval
	if userKeysFlushInterval <= 0 {
		userKeysFlushInterval = DefaultUserKeysFlushInterval
	}

	flushTicker := time.NewTicker(flushInterval)
	defer flushTicker.Stop()
	usersTicker := time.NewTicker(userKeysFlushInterval)
	defer usersTicker.Stop()

	var diagnosticsTicker *time.Ticker
	var diagnosticsTickerCh <-chan time.Time
	if d.config.DiagnosticsManager != nil {
		interval := d.config.DiagnosticRecordingInterval
		if interval <= 0 {
			interval = DefaultDiagnosticInterval
		}
		diagnosticsTicker = time.NewTicker(interval)
		diagnosticsTickerCh = diagnosticsTicker.C
		defer diagnosticsTicker.Stop()
	}

	for {
		select {
		case message := <-inboxCh:
			switch m := message.(type) {
			case sendEventMessage:
				deduped := d.processEvent(m.event, outbox, &userKeys)
				if deduped {
					deduplicatedUsers++
				}
			case flushEventsMessage:
				if n := d.triggerFlush(outbox, flushCh, workers); n > 0 {
					eventsInLastBatch = n
				}
			case shutdownMessage:
				workers.Wait()
				close(flushCh)
				if diagnosticCh != nil {
					close(diagnosticCh)
				}
				m.replyCh <- struct{}{}
				return
			}
		case <-flushTicker.C:
			if n := d.triggerFlush(outbox, flushCh, workers); n > 0 {
				eventsInLastBatch = n
			}
		case <-usersTicker.C:
			userKeys.clear()
		case <-diagnosticsTickerCh:
			event := d.config.DiagnosticsManager.CreateStatsEventAndReset(outbox.droppedEvents, deduplicatedUsers, eventsInLastBatch)
			outbox.droppedEvents = 0
			deduplicatedUsers = 0
			eventsInLastBatch = 0
			select {
			case diagnosticCh <- event:
			default:
			}
		}
	}
}

// processEvent folds evt into outbox, emitting an index event for any not-yet-seen user. It
// returns true if the event's user had already been noticed, meaning no index event was needed.
func (d *dispatcher) processEvent(evt Event, outbox *eventsOutbox, userKeys *lruCache) bool {
	outbox.addToSummary(evt)

	willAddFullEvent := true
	var debugEvent Event
	if fe, ok := evt.(FeatureRequestEvent); ok {
		willAddFullEvent = fe.TrackEvents
		if d.shouldDebugEvent(&fe) {
			de := fe
			de.Debug = true
			debugEvent = de
		}
	}

	alreadyKnown := false
	if !(willAddFullEvent && d.config.InlineUsersInEvents) {
		user := evt.GetBase().User
		alreadyKnown = userKeys.add(user.Key())
		if !alreadyKnown {
			if _, ok := evt.(IdentifyEvent); !ok {
				outbox.addEvent(IndexEvent{BaseEvent{CreationDate: evt.GetBase().CreationDate, User: user}})
			}
		}
	}
	if willAddFullEvent {
		outbox.addEvent(evt)
	}
	if debugEvent != nil {
		outbox.addEvent(debugEvent)
	}
	return alreadyKnown
}

func (d *dispatcher) shouldDebugEvent(evt *FeatureRequestEvent) bool {
	if evt.DebugEventsUntilDate == nil {
		return false
	}
	return *evt.DebugEventsUntilDate > nowMillis()
}

func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// triggerFlush hands the outbox's contents to a waiting flush worker, if any is free, and
// returns the number of events included in the payload (0 if nothing was flushed).
func (d *dispatcher) triggerFlush(outbox *eventsOutbox, flushCh chan<- flushPayload, workers *sync.WaitGroup) int {
	d.mu.Lock()
	disabled := d.disabled
	d.mu.Unlock()
	if disabled {
		outbox.clear()
		return 0
	}

	payload := outbox.getPayload()
	count := len(payload.events)
	if !payload.summary.isEmpty() {
		count++
	}
	if count == 0 {
		return 0
	}

	workers.Add(1)
	select {
	case flushCh <- payload:
		outbox.clear()
		return count
	default:
		workers.Done()
		return 0
	}
}

func (d *dispatcher) handleResponse(resp *http.Response, err error) {
	if err != nil {
		return
	}
	if resp.StatusCode/100 != 2 {
		d.loggers.Errorf("received HTTP error %d posting events; some events were dropped", resp.StatusCode)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			d.mu.Lock()
			d.disabled = true
			d.mu.Unlock()
		}
	}
}

func startFlushWorker(
	config Config, loggers ldlog.Loggers, formatter eventOutputFormatter,
	flushCh <-chan flushPayload, workers *sync.WaitGroup, onResponse func(*http.Response, error),
) {
	go func() {
		for payload := range flushCh {
			outputEvents := formatter.makeOutputEvents(payload.events, payload.summary)
			if len(outputEvents) > 0 {
				resp, err := postEvents(config, loggers, config.EventsURI, outputEvents)
				onResponse(resp, err)
			}
			workers.Done()
		}
	}()
}

func postEvents(config Config, loggers ldlog.Loggers, uri string, data interface{}) (*http.Response, error) {
	jsonPayload, err := json.Marshal(data)
	if err != nil {
		loggers.Errorf("could not marshal event payload: %s", err)
		return nil, err
	}

	payloadID, _ := uuid.NewRandom()

	var resp *http.Response
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			loggers.Warn("will retry posting events after 1 second")
			time.Sleep(time.Second)
		}

		req, reqErr := http.NewRequest(http.MethodPost, uri, bytes.NewReader(jsonPayload))
		if reqErr != nil {
			loggers.Errorf("could not build event request: %s", reqErr)
			return nil, reqErr
		}
		req.Header.Set("Authorization", config.SDKKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(eventSchemaHeader, currentEventSchema)
		req.Header.Set(payloadIDHeader, payloadID.String())

		var doErr error
		resp, doErr = config.HTTPClient.Do(req)
		if resp != nil && resp.Body != nil {
			_, _ = io.ReadAll(resp.Body)
			_ = resp.Body.Close()
		}
		if doErr != nil {
			loggers.Warnf("error sending events: %s", doErr)
			err = doErr
			continue
		}
		err = nil
		if resp.StatusCode/100 != 2 && isRecoverableStatus(resp.StatusCode) {
			continue
		}
		break
	}
	return resp, err
}

func isRecoverableStatus(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		switch statusCode {
		case 400, 408, 429:
			return true
		default:
			return false
		}
	}
	return true
}
