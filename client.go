package flagcore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flagcore/flagcore/internal"
	"github.com/flagcore/flagcore/internal/bigsegments"
	"github.com/flagcore/flagcore/internal/datasource"
	"github.com/flagcore/flagcore/internal/datastore"
	"github.com/flagcore/flagcore/internal/endpoints"
	"github.com/flagcore/flagcore/internal/evaluation"
	"github.com/flagcore/flagcore/internal/events"
	"github.com/flagcore/flagcore/internal/ldlog"
	"github.com/flagcore/flagcore/interfaces"
	"github.com/flagcore/flagcore/ldmodel"
	"github.com/flagcore/flagcore/ldreason"
	"github.com/flagcore/flagcore/lduser"
	"github.com/flagcore/flagcore/ldvalue"
)

// Version identifies this build of the client, sent as part of the diagnostic event payload.
const Version = "1.0.0"

// Initialization errors returned by MakeClient/MakeCustomClient and surfaced from evaluation
// calls made before the client finished starting up.
var (
	ErrInitializationTimeout = errors.New("timeout waiting for client initialization")
	ErrInitializationFailed  = errors.New("client initialization failed")
	ErrClientNotInitialized  = errors.New("flag evaluation called before client initialization completed")
)

// Client evaluates feature flags, reports analytics events, and keeps its data store in sync with
// a streaming or polling update processor. Applications should create a single Client and reuse it
// for the lifetime of the process; Client is safe for concurrent use.
type Client struct {
	sdkKey       string
	config       Config
	loggers      ldlog.Loggers
	events       events.Processor
	dataSource   interfaces.DataSource
	store        interfaces.DataStore
	dataProvider *clientDataProvider
	evaluator    *evaluation.Evaluator
	bigSegments  *bigsegments.Manager
	closed       internal.AtomicBoolean
}

type clientDataProvider struct {
	store interfaces.DataStore
}

func (p *clientDataProvider) GetFlag(key string) (*ldmodel.FeatureFlag, bool) {
	item, ok := p.store.Get(interfaces.Features, key)
	if !ok || item.Deleted() {
		return nil, false
	}
	flag, ok := item.Item.(*ldmodel.FeatureFlag)
	return flag, ok
}

func (p *clientDataProvider) GetSegment(key string) (*ldmodel.Segment, bool) {
	item, ok := p.store.Get(interfaces.Segments, key)
	if !ok || item.Deleted() {
		return nil, false
	}
	segment, ok := item.Item.(*ldmodel.Segment)
	return segment, ok
}

type offlineDataSource struct{}

func (offlineDataSource) Initialized() bool                    { return true }
func (offlineDataSource) Close() error                         { return nil }
func (offlineDataSource) Start(closeWhenReady chan<- struct{}) { close(closeWhenReady) }

// MakeClient creates a Client with DefaultConfig. The optional waitFor duration lets the caller
// block until the client has connected and finished its first data sync.
func MakeClient(sdkKey string, waitFor time.Duration) (*Client, error) {
	return MakeCustomClient(sdkKey, DefaultConfig, waitFor)
}

// MakeCustomClient creates a Client with the given config and SDK key, and blocks for up to
// waitFor for the data source to complete its first sync. A waitFor of zero returns immediately
// without waiting; the client still finishes starting up in the background.
func MakeCustomClient(sdkKey string, config Config, waitFor time.Duration) (*Client, error) {
	loggers := config.Loggers
	if loggers == nil {
		d := ldlog.NewDefaultLoggers()
		loggers = &d
	}
	loggers.Infof("starting flagcore client %s", Version)

	if config.PollInterval < MinimumPollInterval {
		config.PollInterval = MinimumPollInterval
	}
	if config.HTTPClient == nil {
		config.HTTPClient = defaultHTTPClient()
	}

	store := config.DataStore
	if store == nil {
		store = datastore.NewInMemoryStore()
	}

	bigSegmentsMgr := bigsegments.NewManager(config.BigSegments, *loggers)
	dataProvider := &clientDataProvider{store: store}
	evaluator := evaluation.NewEvaluator(dataProvider, bigSegmentsMgr)

	client := &Client{
		sdkKey:       sdkKey,
		config:       config,
		loggers:      *loggers,
		store:        store,
		dataProvider: dataProvider,
		evaluator:    evaluator,
		bigSegments:  bigSegmentsMgr,
	}

	var diagnosticsManager *events.DiagnosticsManager
	if !config.DiagnosticOptOut && config.SendEvents && !config.Offline {
		diagnosticsManager = events.NewDiagnosticsManager(sdkKey, diagnosticConfigData(config), nowMillis())
	}

	switch {
	case config.Offline:
		client.events = events.NullProcessor{}
	case !config.SendEvents:
		client.events = events.NullProcessor{}
	default:
		client.events = events.NewDefaultProcessor(events.Config{
			EventsURI:                   endpoints.JoinPath(resolveBaseURI(config.EventsURI, endpoints.DefaultEventsBaseURI), endpoints.EventsBulkPath),
			DiagnosticURI:               endpoints.JoinPath(resolveBaseURI(config.EventsURI, endpoints.DefaultEventsBaseURI), endpoints.EventsDiagnosticPath),
			SDKKey:                      sdkKey,
			HTTPClient:                  config.HTTPClient,
			Capacity:                    config.Capacity,
			FlushInterval:               config.FlushInterval,
			UserKeysCapacity:            config.UserKeysCapacity,
			UserKeysFlushInterval:       config.UserKeysFlushInterval,
			AllAttributesPrivate:        config.AllAttributesPrivate,
			GlobalPrivateAttributes:     config.GlobalPrivateAttributes,
			InlineUsersInEvents:         config.InlineUsersInEvents,
			DiagnosticsManager:          diagnosticsManager,
			DiagnosticRecordingInterval: config.DiagnosticRecordingInterval,
		}, *loggers)
	}

	closeWhenReady := make(chan struct{})
	if config.Offline {
		client.dataSource = offlineDataSource{}
	} else if config.Stream {
		streamURI := endpoints.JoinPath(resolveBaseURI(config.StreamURI, endpoints.DefaultStreamingBaseURI), endpoints.StreamingRequestPath)
		client.dataSource = datasource.NewStreamingProcessor(streamURI, sdkKey, config.HTTPClient, store, *loggers)
	} else {
		pollURI := endpoints.JoinPath(resolveBaseURI(config.PollURI, endpoints.DefaultPollingBaseURI), endpoints.PollingRequestPath)
		client.dataSource = datasource.NewPollingProcessor(pollURI, sdkKey, config.HTTPClient, store, config.PollInterval, *loggers)
	}
	client.dataSource.Start(closeWhenReady)

	if waitFor <= 0 {
		go func() { <-closeWhenReady }()
		return client, nil
	}

	select {
	case <-closeWhenReady:
		if !client.Initialized() {
			loggers.Warn("client initialization failed")
			return client, ErrInitializationFailed
		}
		loggers.Info("client successfully initialized")
		return client, nil
	case <-time.After(waitFor):
		loggers.Warn("timeout waiting for client initialization")
		return client, ErrInitializationTimeout
	}
}

func diagnosticConfigData(config Config) map[string]interface{} {
	return map[string]interface{}{
		"stream":               config.Stream,
		"pollingIntervalMillis": config.PollInterval.Milliseconds(),
		"allAttributesPrivate": config.AllAttributesPrivate,
		"offline":              config.Offline,
		"usingRelayDaemon":     false,
	}
}

func resolveBaseURI(configured, def string) string {
	if configured == "" {
		return def
	}
	return configured
}

func nowMillis() uint64 { return uint64(time.Now().UnixMilli()) }

// Identify reports that a user was seen, independent of any flag evaluation.
func (c *Client) Identify(user lduser.User) error {
	if user.Key() == "" {
		c.loggers.Warn("Identify called with empty user key")
		return nil
	}
	c.events.SendEvent(events.IdentifyEvent{BaseEvent: events.BaseEvent{CreationDate: nowMillis(), User: user}})
	return nil
}

// TrackEvent reports that a user performed an application-defined event.
func (c *Client) TrackEvent(eventName string, user lduser.User) error {
	return c.TrackData(eventName, user, ldvalue.Null())
}

// TrackData reports an application-defined event with an arbitrary JSON data payload.
func (c *Client) TrackData(eventName string, user lduser.User, data ldvalue.Value) error {
	if user.Key() == "" {
		c.loggers.Warn("Track called with empty user key")
		return nil
	}
	c.events.SendEvent(events.CustomEvent{
		BaseEvent: events.BaseEvent{CreationDate: nowMillis(), User: user},
		Key:       eventName,
		Data:      data,
	})
	return nil
}

// TrackMetric reports an application-defined event with a numeric metric value, for use in
// experimentation. data may be ldvalue.Null() if no extra payload is needed.
func (c *Client) TrackMetric(eventName string, user lduser.User, metricValue float64, data ldvalue.Value) error {
	if user.Key() == "" {
		c.loggers.Warn("Track called with empty user key")
		return nil
	}
	c.events.SendEvent(events.CustomEvent{
		BaseEvent:   events.BaseEvent{CreationDate: nowMillis(), User: user},
		Key:         eventName,
		Data:        data,
		HasMetric:   true,
		MetricValue: metricValue,
	})
	return nil
}

// SecureModeHash computes the HMAC-SHA256 hash of a user's key using the SDK key as the secret,
// for use with client-side SDKs running in secure mode.
func (c *Client) SecureModeHash(user lduser.User) string {
	h := hmac.New(sha256.New, []byte(c.sdkKey))
	_, _ = h.Write([]byte(user.Key()))
	return hex.EncodeToString(h.Sum(nil))
}

// Initialized reports whether the client has completed its first successful data sync, or is
// offline (which is always considered ready).
func (c *Client) Initialized() bool {
	return c.config.Offline || c.dataSource.Initialized()
}

// Flush tells the client to deliver any buffered analytics events as soon as possible. Flushing
// happens asynchronously; call Close to block until delivery completes.
func (c *Client) Flush() {
	c.events.Flush()
}

// Close shuts down the client: flushes and stops the event processor, stops the data source, and
// closes the data store. An offline client leaves its data source and data store open. After
// Close returns, the Client must not be used again.
func (c *Client) Close() error {
	if c == nil {
		internal.LogErrorNilPointerMethod("Client")
		return nil
	}
	if c.closed.GetAndSet(true) {
		return nil
	}
	c.loggers.Info("closing flagcore client")
	_ = c.events.Close()
	_ = c.bigSegments.Close()
	if c.config.Offline {
		return nil
	}
	_ = c.dataSource.Close()
	return c.store.Close()
}

// AllFlagsState computes a snapshot of every flag's evaluation result for user, suitable for
// bootstrapping a client-side SDK.
func (c *Client) AllFlagsState(user lduser.User, options ...FlagsStateOption) FlagsState {
	if c.config.Offline {
		c.loggers.Warn("AllFlagsState called in offline mode; returning empty state")
		return FlagsState{}
	}
	if !c.Initialized() && !c.store.IsInitialized() {
		c.loggers.Warn("AllFlagsState called before initialization and no data is available; returning empty state")
		return FlagsState{}
	}

	state := newFlagsState()
	clientSideOnly := hasFlagsStateOption(options, ClientSideOnly)
	withReasons := hasFlagsStateOption(options, WithReasons)
	detailsOnlyIfTracked := hasFlagsStateOption(options, DetailsOnlyForTrackedFlags)

	for _, item := range c.store.All(interfaces.Features) {
		flag, ok := item.Item.(*ldmodel.FeatureFlag)
		if !ok || (clientSideOnly && !flag.ClientSide) {
			continue
		}
		detail, _ := c.evaluator.Evaluate(flag, user)
		reason := ldreason.EvaluationReason{}
		if withReasons {
			reason = detail.Reason
		}
		state.addFlag(flag, detail.Value, detail.VariationIndex, reason, detailsOnlyIfTracked)
	}
	return state
}

// BoolVariation returns the boolean value of key for user, or defaultVal if the flag does not
// exist, evaluation fails, or the value is not a boolean.
func (c *Client) BoolVariation(key string, user lduser.User, defaultVal bool) (bool, error) {
	detail, err := c.variation(key, user, ldvalue.Bool(defaultVal), true, false)
	return detail.Value.Bool(), err
}

// BoolVariationDetail is BoolVariation plus the evaluation reason, which is also attached to the
// generated analytics event.
func (c *Client) BoolVariationDetail(key string, user lduser.User, defaultVal bool) (bool, ldreason.EvaluationDetail, error) {
	detail, err := c.variation(key, user, ldvalue.Bool(defaultVal), true, true)
	return detail.Value.Bool(), detail, err
}

// IntVariation returns the integer value of key for user, or defaultVal on error.
func (c *Client) IntVariation(key string, user lduser.User, defaultVal int) (int, error) {
	detail, err := c.variation(key, user, ldvalue.Int(defaultVal), true, false)
	return detail.Value.Int(), err
}

// IntVariationDetail is IntVariation plus the evaluation reason.
func (c *Client) IntVariationDetail(key string, user lduser.User, defaultVal int) (int, ldreason.EvaluationDetail, error) {
	detail, err := c.variation(key, user, ldvalue.Int(defaultVal), true, true)
	return detail.Value.Int(), detail, err
}

// Float64Variation returns the float64 value of key for user, or defaultVal on error.
func (c *Client) Float64Variation(key string, user lduser.User, defaultVal float64) (float64, error) {
	detail, err := c.variation(key, user, ldvalue.Float64(defaultVal), true, false)
	return detail.Value.Float64(), err
}

// Float64VariationDetail is Float64Variation plus the evaluation reason.
func (c *Client) Float64VariationDetail(key string, user lduser.User, defaultVal float64) (float64, ldreason.EvaluationDetail, error) {
	detail, err := c.variation(key, user, ldvalue.Float64(defaultVal), true, true)
	return detail.Value.Float64(), detail, err
}

// StringVariation returns the string value of key for user, or defaultVal on error.
func (c *Client) StringVariation(key string, user lduser.User, defaultVal string) (string, error) {
	detail, err := c.variation(key, user, ldvalue.String(defaultVal), true, false)
	return detail.Value.String(), err
}

// StringVariationDetail is StringVariation plus the evaluation reason.
func (c *Client) StringVariationDetail(key string, user lduser.User, defaultVal string) (string, ldreason.EvaluationDetail, error) {
	detail, err := c.variation(key, user, ldvalue.String(defaultVal), true, true)
	return detail.Value.String(), detail, err
}

// JSONVariation returns the value of key for user as an ldvalue.Value of any JSON type, or
// defaultVal on error.
func (c *Client) JSONVariation(key string, user lduser.User, defaultVal ldvalue.Value) (ldvalue.Value, error) {
	detail, err := c.variation(key, user, defaultVal, false, false)
	return detail.Value, err
}

// JSONVariationDetail is JSONVariation plus the evaluation reason.
func (c *Client) JSONVariationDetail(key string, user lduser.User, defaultVal ldvalue.Value) (ldvalue.Value, ldreason.EvaluationDetail, error) {
	detail, err := c.variation(key, user, defaultVal, false, true)
	return detail.Value, detail, err
}

func (c *Client) variation(
	key string, user lduser.User, defaultVal ldvalue.Value, checkType, sendReasonsInEvents bool,
) (ldreason.EvaluationDetail, error) {
	if c.config.Offline {
		return ldreason.NewEvaluationError(defaultVal, ldreason.EvalErrorClientNotReady), nil
	}

	detail, flag, err := c.evaluateInternal(key, user, defaultVal)
	if err == nil && checkType && defaultVal.Type() != ldvalue.NullType && detail.Value.Type() != defaultVal.Type() {
		detail = ldreason.NewEvaluationError(defaultVal, ldreason.EvalErrorWrongType)
	}

	var reasonForEvent ldreason.EvaluationReason
	if sendReasonsInEvents {
		reasonForEvent = detail.Reason
	}
	evt := events.FeatureRequestEvent{
		BaseEvent: events.BaseEvent{CreationDate: nowMillis(), User: user},
		FlagKey:   key,
		Value:     detail.Value,
		Default:   defaultVal,
		Reason:    reasonForEvent,
	}
	if flag != nil {
		evt.Version = &flag.Version
		evt.TrackEvents = flag.TrackEvents
		evt.DebugEventsUntilDate = flag.DebugEventsUntilDate
		if !detail.IsDefaultValue() {
			v := detail.VariationIndex
			evt.Variation = &v
		}
	}
	c.events.SendEvent(evt)

	return detail, err
}

func (c *Client) evaluateInternal(
	key string, user lduser.User, defaultVal ldvalue.Value,
) (ldreason.EvaluationDetail, *ldmodel.FeatureFlag, error) {
	if user.Key() == "" {
		c.loggers.Warnf("evaluating flag %q for a user with an empty key; the user will not be stored", key)
	}

	if !c.Initialized() {
		if c.store.IsInitialized() {
			c.loggers.Warn("flag evaluation called before client initialization; using last known values from data store")
		} else {
			return ldreason.NewEvaluationError(defaultVal, ldreason.EvalErrorClientNotReady), nil, ErrClientNotInitialized
		}
	}

	flag, ok := c.dataProvider.GetFlag(key)
	if !ok {
		err := fmt.Errorf("unknown flag key: %s", key)
		if c.config.LogEvaluationErrors {
			c.loggers.Warn(err)
		}
		return ldreason.NewEvaluationError(defaultVal, ldreason.EvalErrorFlagNotFound), nil, err
	}

	detail, prereqEvents := c.evaluator.Evaluate(flag, user)
	for _, pe := range prereqEvents {
		c.events.SendEvent(events.FeatureRequestEvent{
			BaseEvent: events.BaseEvent{CreationDate: nowMillis(), User: user},
			FlagKey:   pe.PrerequisiteKey,
			Value:     pe.Detail.Value,
			Default:   ldvalue.Null(),
			Variation: variationPointer(pe.Detail),
			Reason:    pe.Detail.Reason,
			PrereqOf:  pe.FlagKey,
		})
	}

	if detail.Reason.Kind() == ldreason.EvalReasonError && c.config.LogEvaluationErrors {
		c.loggers.Warnf("flag evaluation for %s failed with error %s; default value was returned", key, detail.Reason.ErrorKind())
	}
	if detail.IsDefaultValue() {
		detail.Value = defaultVal
	}
	return detail, flag, nil
}

func variationPointer(detail ldreason.EvaluationDetail) *int {
	if detail.IsDefaultValue() {
		return nil
	}
	v := detail.VariationIndex
	return &v
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
