package flagcore

import (
	"bytes"
	"encoding/json"

	"github.com/flagcore/flagcore/ldmodel"
	"github.com/flagcore/flagcore/ldreason"
	"github.com/flagcore/flagcore/ldvalue"
)

// FlagsStateOption configures the behavior of Client.AllFlagsState.
type FlagsStateOption int

const (
	// ClientSideOnly restricts the state to flags marked ClientSide, the set a front end is
	// allowed to receive directly.
	ClientSideOnly FlagsStateOption = iota
	// WithReasons includes each flag's evaluation reason in the state.
	WithReasons
	// DetailsOnlyForTrackedFlags omits the per-flag version/reason metadata (keeping only the
	// variation) for flags that have neither TrackEvents set, an in-experiment reason, nor an
	// active debug window, shrinking the payload for applications that only need metadata for
	// experimentation flags.
	DetailsOnlyForTrackedFlags
)

func hasFlagsStateOption(options []FlagsStateOption, want FlagsStateOption) bool {
	for _, o := range options {
		if o == want {
			return true
		}
	}
	return false
}

// FlagsState is a snapshot of evaluation results for every flag visible to a user, suitable for
// bootstrapping a client-side SDK. Its JSON encoding is the wire format those SDKs expect.
type FlagsState struct {
	valid bool
	flags map[string]flagState
}

type flagState struct {
	value                ldvalue.Value
	variation            int
	version              int
	trackEvents          bool
	trackReason          bool
	debugEventsUntilDate *uint64
	reason               ldreason.EvaluationReason
	omitDetails          bool
}

func newFlagsState() FlagsState {
	return FlagsState{valid: true, flags: make(map[string]flagState)}
}

func (s *FlagsState) addFlag(
	flag *ldmodel.FeatureFlag,
	value ldvalue.Value,
	variation int,
	reason ldreason.EvaluationReason,
	detailsOnlyIfTracked bool,
) {
	isExperiment := reason.InExperiment()
	omitDetails := detailsOnlyIfTracked && !flag.TrackEvents && !isExperiment && !isInDebugWindow(flag)
	s.flags[flag.Key] = flagState{
		value:                value,
		variation:            variation,
		version:              flag.Version,
		trackEvents:          flag.TrackEvents,
		trackReason:          reason.Kind() != "",
		debugEventsUntilDate: flag.DebugEventsUntilDate,
		reason:               reason,
		omitDetails:          omitDetails,
	}
}

func isInDebugWindow(flag *ldmodel.FeatureFlag) bool {
	return flag.DebugEventsUntilDate != nil && *flag.DebugEventsUntilDate > nowMillis()
}

// IsValid reports whether the state was successfully computed. It is false if the client was
// offline or not yet initialized when AllFlagsState was called.
func (s FlagsState) IsValid() bool { return s.valid }

// GetFlagValue returns the evaluated value of key, or ldvalue.Null() if key is not present.
func (s FlagsState) GetFlagValue(key string) ldvalue.Value {
	if f, ok := s.flags[key]; ok {
		return f.value
	}
	return ldvalue.Null()
}

// GetFlagReason returns the evaluation reason recorded for key, or a zero-value EvaluationReason
// if key is not present or WithReasons was not requested.
func (s FlagsState) GetFlagReason(key string) ldreason.EvaluationReason {
	if f, ok := s.flags[key]; ok {
		return f.reason
	}
	return ldreason.EvaluationReason{}
}

// ToValuesMap returns a plain map of flag key to evaluated value, discarding all metadata.
func (s FlagsState) ToValuesMap() map[string]ldvalue.Value {
	out := make(map[string]ldvalue.Value, len(s.flags))
	for k, f := range s.flags {
		out[k] = f.value
	}
	return out
}

// MarshalJSON encodes the state in the wire format client-side SDKs expect: flag values at the
// top level, plus "$flagsState" (per-flag metadata) and "$valid".
func (s FlagsState) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for key, f := range s.flags {
		valueJSON, err := f.value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valueJSON)
		buf.WriteByte(',')
	}

	buf.WriteString(`"$flagsState":{`)
	first := true
	for key, f := range s.flags {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyJSON, _ := json.Marshal(key) //nolint:errcheck // flag keys are always valid strings
		buf.Write(keyJSON)
		buf.WriteByte(':')
		metaJSON, err := f.marshalMeta()
		if err != nil {
			return nil, err
		}
		buf.Write(metaJSON)
	}
	buf.WriteString("},")

	validJSON, _ := json.Marshal(s.valid) //nolint:errcheck // bool always marshals
	buf.WriteString(`"$valid":`)
	buf.Write(validJSON)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f flagState) marshalMeta() ([]byte, error) {
	if f.omitDetails {
		return json.Marshal(struct {
			Variation int `json:"variation"`
		}{f.variation})
	}

	var reason *ldreason.EvaluationReason
	if f.trackReason {
		reason = &f.reason
	}
	return json.Marshal(struct {
		Variation            int                        `json:"variation"`
		Version              int                        `json:"version"`
		TrackEvents          bool                        `json:"trackEvents,omitempty"`
		DebugEventsUntilDate *uint64                     `json:"debugEventsUntilDate,omitempty"`
		Reason               *ldreason.EvaluationReason  `json:"reason"`
	}{f.variation, f.version, f.trackEvents, f.debugEventsUntilDate, reason})
}
