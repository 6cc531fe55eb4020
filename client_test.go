package flagcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagcore/flagcore/internal/bigsegments"
	"github.com/flagcore/flagcore/internal/datastore"
	"github.com/flagcore/flagcore/internal/evaluation"
	"github.com/flagcore/flagcore/internal/events"
	"github.com/flagcore/flagcore/internal/ldlog"
	"github.com/flagcore/flagcore/interfaces"
	"github.com/flagcore/flagcore/ldmodel"
	"github.com/flagcore/flagcore/ldreason"
	"github.com/flagcore/flagcore/lduser"
	"github.com/flagcore/flagcore/ldvalue"
)

// spyProcessor records every event handed to it, standing in for the queue-backed
// events.DefaultProcessor so tests can assert on what would have been sent over the wire.
type spyProcessor struct {
	sent    []events.Event
	flushed int
}

func (s *spyProcessor) SendEvent(e events.Event) { s.sent = append(s.sent, e) }
func (s *spyProcessor) Flush()                   { s.flushed++ }
func (s *spyProcessor) Close() error             { return nil }

// newTestClient builds a Client directly against an in-memory store, bypassing MakeCustomClient's
// network startup so tests run without a streaming or polling connection.
func newTestClient(t *testing.T, flags ...*ldmodel.FeatureFlag) (*Client, *spyProcessor) {
	t.Helper()
	store := datastore.NewInMemoryStore()
	data := map[interfaces.DataKind]map[string]interfaces.ItemDescriptor{
		interfaces.Features: {},
		interfaces.Segments: {},
	}
	for _, f := range flags {
		data[interfaces.Features][f.Key] = interfaces.ItemDescriptor{Version: f.Version, Item: f}
	}
	require.NoError(t, store.Init(data))

	loggers := ldlog.NewDisabledLoggers()
	dataProvider := &clientDataProvider{store: store}
	bigSegmentsMgr := bigsegments.NewManager(interfaces.BigSegmentsConfig{}, loggers)
	spy := &spyProcessor{}

	client := &Client{
		sdkKey:       "test-sdk-key",
		config:       Config{SendEvents: true},
		loggers:      loggers,
		events:       spy,
		dataSource:   offlineDataSource{}, // already "started"; Initialized() always true
		store:        store,
		dataProvider: dataProvider,
		evaluator:    evaluation.NewEvaluator(dataProvider, bigSegmentsMgr),
		bigSegments:  bigSegmentsMgr,
	}
	return client, spy
}

func offFlag(key string, offVariation int, variations ...ldvalue.Value) *ldmodel.FeatureFlag {
	v := offVariation
	return &ldmodel.FeatureFlag{Key: key, Version: 1, On: false, OffVariation: &v, Variations: variations}
}

func boolFlagOn(key string, variation int) *ldmodel.FeatureFlag {
	v := variation
	return &ldmodel.FeatureFlag{
		Key: key, Version: 1, On: true,
		Fallthrough: ldmodel.VariationOrRollout{Variation: &v},
		Variations:  []ldvalue.Value{ldvalue.Bool(false), ldvalue.Bool(true)},
	}
}

// Scenario 1: an off flag evaluates to its off variation with an OFF reason, and generates a
// feature event carrying that reason.
func TestVariationOffFlagReturnsOffVariationWithReason(t *testing.T) {
	client, spy := newTestClient(t, offFlag("flag1", 0, ldvalue.Bool(false), ldvalue.Bool(true)))
	user := lduser.NewUser("user1")

	value, detail, err := client.BoolVariationDetail("flag1", user, false)

	require.NoError(t, err)
	assert.False(t, value)
	assert.Equal(t, ldreason.NewEvalReasonOff(), detail.Reason)
	require.Len(t, spy.sent, 1)
	fre, ok := spy.sent[0].(events.FeatureRequestEvent)
	require.True(t, ok)
	assert.Equal(t, ldreason.NewEvalReasonOff(), fre.Reason)
}

// Scenario 2: requesting a string-valued flag through BoolVariation yields a WRONG_TYPE error and
// the supplied default, but a feature event is still generated.
func TestVariationWrongTypeReturnsDefaultAndStillSendsEvent(t *testing.T) {
	v := 0
	flag := &ldmodel.FeatureFlag{
		Key: "flag1", Version: 1, On: true,
		Fallthrough: ldmodel.VariationOrRollout{Variation: &v},
		Variations:  []ldvalue.Value{ldvalue.String("a string")},
	}
	client, spy := newTestClient(t, flag)
	user := lduser.NewUser("user1")

	value, detail, err := client.BoolVariationDetail("flag1", user, true)

	require.NoError(t, err)
	assert.True(t, value) // falls back to the default
	assert.Equal(t, ldreason.EvalReasonError, detail.Reason.Kind())
	assert.Equal(t, ldreason.EvalErrorWrongType, detail.Reason.ErrorKind())
	assert.Len(t, spy.sent, 1)
}

func TestVariationUnknownFlagReturnsFlagNotFound(t *testing.T) {
	client, spy := newTestClient(t)
	user := lduser.NewUser("user1")

	value, detail, err := client.BoolVariationDetail("missing", user, true)

	require.Error(t, err)
	assert.True(t, value)
	assert.Equal(t, ldreason.EvalReasonError, detail.Reason.Kind())
	assert.Equal(t, ldreason.EvalErrorFlagNotFound, detail.Reason.ErrorKind())
	assert.Len(t, spy.sent, 1)
}

func TestEmptyUserKeyStillEvaluatesButWarns(t *testing.T) {
	client, spy := newTestClient(t, boolFlagOn("flag1", 1))
	user := lduser.NewUser("")

	value, err := client.BoolVariation("flag1", user, false)

	require.NoError(t, err)
	assert.True(t, value)
	assert.Len(t, spy.sent, 1)
}

func TestIdentifyWithEmptyUserKeyIsSkipped(t *testing.T) {
	client, spy := newTestClient(t)

	require.NoError(t, client.Identify(lduser.NewUser("")))

	assert.Empty(t, spy.sent)
}

func TestIdentifySendsIdentifyEvent(t *testing.T) {
	client, spy := newTestClient(t)

	require.NoError(t, client.Identify(lduser.NewUser("user1")))

	require.Len(t, spy.sent, 1)
	_, ok := spy.sent[0].(events.IdentifyEvent)
	assert.True(t, ok)
}

// Scenario 5: AllFlagsState produces the $flagsState/$valid wrapper, and WithReasons attaches the
// evaluation reason to each flag's metadata.
func TestAllFlagsStateIncludesReasonsOnlyWhenRequested(t *testing.T) {
	client, _ := newTestClient(t, offFlag("flag1", 0, ldvalue.Bool(false), ldvalue.Bool(true)))
	user := lduser.NewUser("user1")

	plain := client.AllFlagsState(user)
	assert.True(t, plain.IsValid())
	assert.Equal(t, ldreason.EvaluationReason{}, plain.GetFlagReason("flag1"))

	withReasons := client.AllFlagsState(user, WithReasons)
	assert.Equal(t, ldreason.NewEvalReasonOff(), withReasons.GetFlagReason("flag1"))
}

func TestOfflineClientReturnsInvalidFlagsStateAndDefaultVariations(t *testing.T) {
	client, spy := newTestClient(t, boolFlagOn("flag1", 1))
	client.config.Offline = true
	user := lduser.NewUser("user1")

	state := client.AllFlagsState(user)
	assert.False(t, state.IsValid())

	value, err := client.BoolVariation("flag1", user, false)
	require.NoError(t, err)
	assert.False(t, value)
	assert.Empty(t, spy.sent, "offline client must not generate analytics events")
}

func TestCloseIsIdempotent(t *testing.T) {
	client, _ := newTestClient(t)
	client.config.Offline = true // Close skips the data source/store when offline

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.True(t, internalClosed(client))
}

func internalClosed(c *Client) bool { return c.closed.Get() }

func TestSecureModeHashIsDeterministic(t *testing.T) {
	client, _ := newTestClient(t)
	user := lduser.NewUser("user1")

	assert.Equal(t, client.SecureModeHash(user), client.SecureModeHash(user))
	assert.NotEqual(t, client.SecureModeHash(user), client.SecureModeHash(lduser.NewUser("user2")))
}
