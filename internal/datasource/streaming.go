package datasource

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	es "github.com/launchdarkly/eventsource"

	"github.com/flagcore/flagcore/interfaces"
	"github.com/flagcore/flagcore/internal/ldlog"
)

// StreamingProcessor is an update processor that keeps the data store in sync via a persistent
// server-sent-events connection. It reconnects with exponential backoff and full jitter on any
// disconnect, and gives up permanently on a 401/403 response (an invalid SDK key will never start
// working by retrying).
type StreamingProcessor struct {
	streamURI             string
	sdkKey                string
	httpClient            *http.Client
	store                 interfaces.DataStore
	loggers               ldlog.Loggers
	initialReconnectDelay time.Duration

	stream      *es.Stream
	closeCh     chan struct{}
	closeOnce   sync.Once
	initialized int32
}

// NewStreamingProcessor constructs a StreamingProcessor. streamURI should point at the "/all"
// streaming endpoint.
func NewStreamingProcessor(
	streamURI string, sdkKey string, httpClient *http.Client, store interfaces.DataStore, loggers ldlog.Loggers,
) *StreamingProcessor {
	return &StreamingProcessor{
		streamURI:             streamURI,
		sdkKey:                sdkKey,
		httpClient:            httpClient,
		store:                 store,
		loggers:               loggers,
		initialReconnectDelay: defaultInitialReconnectDelay,
		closeCh:               make(chan struct{}),
	}
}

// Initialized reports whether the store has received at least one successful "put".
func (p *StreamingProcessor) Initialized() bool {
	return atomic.LoadInt32(&p.initialized) != 0
}

// Start begins consuming the stream in a background goroutine. closeWhenReady is closed once the
// store is initialized, or once the processor gives up permanently.
func (p *StreamingProcessor) Start(closeWhenReady chan<- struct{}) {
	req, err := http.NewRequest(http.MethodGet, p.streamURI, nil)
	if err != nil {
		p.loggers.Errorf("streaming: could not create request: %s", err)
		close(closeWhenReady)
		return
	}
	req.Header.Set("Authorization", p.sdkKey)

	stream, err := es.NewStream(req,
		es.StreamOptionHTTPClient(p.httpClient),
		es.StreamOptionInitialRetry(p.initialReconnectDelay),
		es.StreamOptionUseBackoff(true),
		es.StreamOptionUseJitter(true),
		es.StreamOptionCanRetryFirstConnection(-1),
		es.StreamOptionErrorHandler(p.handleConnectionError),
	)
	if err != nil {
		p.loggers.Errorf("streaming: could not connect: %s", err)
		close(closeWhenReady)
		return
	}
	p.stream = stream

	go p.consume(stream, closeWhenReady)
}

func (p *StreamingProcessor) handleConnectionError(err error) es.StreamErrorHandlerResult {
	if se, ok := err.(es.SubscriptionError); ok && isFatalHTTPStatus(se.Code) {
		p.loggers.Errorf("streaming: received HTTP error %d, giving up", se.Code)
		return es.StreamErrorHandlerResult{CloseNow: true}
	}
	p.loggers.Warnf("streaming: connection error, will retry: %s", err)
	return es.StreamErrorHandlerResult{CloseNow: false}
}

func (p *StreamingProcessor) consume(stream *es.Stream, closeWhenReady chan<- struct{}) {
	var readyOnce sync.Once
	signalReady := func() { readyOnce.Do(func() { close(closeWhenReady) }) }

	defer signalReady() // if the stream ends without ever getting a "put", still unblock the caller

	for {
		select {
		case <-p.closeCh:
			return
		case event, ok := <-stream.Events:
			if !ok {
				return
			}
			if err := p.handleEvent(event); err != nil {
				p.loggers.Errorf("streaming: %s; dropping and reconnecting the stream", err)
				stream.Restart()
				continue
			}
			if event.Event() == "put" {
				atomic.StoreInt32(&p.initialized, 1)
				signalReady()
			}
		case err, ok := <-stream.Errors:
			if !ok {
				continue
			}
			p.loggers.Warnf("streaming: %s", err)
		}
	}
}

func (p *StreamingProcessor) handleEvent(event es.Event) error {
	switch event.Event() {
	case "put":
		var all AllData
		if err := json.Unmarshal([]byte(event.Data()), &all); err != nil {
			return fmt.Errorf("malformed put event: %w", err)
		}
		return p.store.Init(all.ToStoreData())
	case "patch":
		kind, key, item, err := parsePatch([]byte(event.Data()))
		if err != nil {
			return err
		}
		_, err = p.store.Upsert(kind, key, item)
		return err
	case "delete":
		kind, key, item, err := parseDelete([]byte(event.Data()))
		if err != nil {
			return err
		}
		_, err = p.store.Upsert(kind, key, item)
		return err
	default:
		return fmt.Errorf("unrecognized event type %q", event.Event())
	}
}

// Close shuts down the stream connection.
func (p *StreamingProcessor) Close() error {
	p.closeOnce.Do(func() {
		close(p.closeCh)
		if p.stream != nil {
			p.stream.Close()
		}
	})
	return nil
}

var _ interfaces.DataSource = (*StreamingProcessor)(nil)
