package datasource

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flagcore/flagcore/interfaces"
	"github.com/flagcore/flagcore/internal/ldlog"
)

// PollingProcessor is an update processor that fetches a full data snapshot on a fixed interval.
// Unlike streaming, a failed poll (other than a fatal 401/403) is simply retried on the next tick;
// there is no backoff, since the interval itself already rate-limits requests.
type PollingProcessor struct {
	pollURI      string
	sdkKey       string
	httpClient   *http.Client
	store        interfaces.DataStore
	loggers      ldlog.Loggers
	pollInterval time.Duration

	closeCh     chan struct{}
	closeOnce   sync.Once
	initialized int32
}

// NewPollingProcessor constructs a PollingProcessor. pollURI should point at the full-snapshot
// polling endpoint.
func NewPollingProcessor(
	pollURI string, sdkKey string, httpClient *http.Client, store interfaces.DataStore,
	pollInterval time.Duration, loggers ldlog.Loggers,
) *PollingProcessor {
	return &PollingProcessor{
		pollURI:      pollURI,
		sdkKey:       sdkKey,
		httpClient:   httpClient,
		store:        store,
		loggers:      loggers,
		pollInterval: pollInterval,
		closeCh:      make(chan struct{}),
	}
}

// Initialized reports whether at least one poll has succeeded.
func (p *PollingProcessor) Initialized() bool {
	return atomic.LoadInt32(&p.initialized) != 0
}

// Start begins polling in a background goroutine. closeWhenReady is closed after the first
// successful poll, or permanently if the SDK key is rejected.
func (p *PollingProcessor) Start(closeWhenReady chan<- struct{}) {
	go p.run(closeWhenReady)
}

func (p *PollingProcessor) run(closeWhenReady chan<- struct{}) {
	var readyOnce sync.Once
	signalReady := func() { readyOnce.Do(func() { close(closeWhenReady) }) }

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		fatal := p.poll()
		if p.Initialized() {
			signalReady()
		}
		if fatal {
			signalReady()
			return
		}

		select {
		case <-p.closeCh:
			return
		case <-ticker.C:
		}
	}
}

// poll performs one fetch-and-store cycle. It returns true if the failure was fatal (401/403) and
// polling should stop permanently.
func (p *PollingProcessor) poll() bool {
	req, err := http.NewRequest(http.MethodGet, p.pollURI, nil)
	if err != nil {
		p.loggers.Errorf("polling: could not create request: %s", err)
		return false
	}
	req.Header.Set("Authorization", p.sdkKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.loggers.Warnf("polling: request failed: %s", err)
		return false
	}
	defer resp.Body.Close() //nolint:errcheck

	if isFatalHTTPStatus(resp.StatusCode) {
		p.loggers.Errorf("polling: received HTTP error %d, giving up", resp.StatusCode)
		return true
	}
	if resp.StatusCode/100 != 2 {
		p.loggers.Warnf("polling: received HTTP error %d, will retry next interval", resp.StatusCode)
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.loggers.Warnf("polling: could not read response body: %s", err)
		return false
	}

	var all AllData
	if err := json.Unmarshal(body, &all); err != nil {
		p.loggers.Warnf("polling: could not parse response: %s", err)
		return false
	}

	if err := p.store.Init(all.ToStoreData()); err != nil {
		p.loggers.Errorf("polling: could not update store: %s", err)
		return false
	}

	atomic.StoreInt32(&p.initialized, 1)
	return false
}

// Close stops polling.
func (p *PollingProcessor) Close() error {
	p.closeOnce.Do(func() { close(p.closeCh) })
	return nil
}

var _ interfaces.DataSource = (*PollingProcessor)(nil)
