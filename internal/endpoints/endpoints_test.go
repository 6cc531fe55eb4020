package endpoints

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsUsedWhenNotOverridden(t *testing.T) {
	e := ServiceEndpoints{}
	assert.Equal(t, DefaultStreamingBaseURI, e.StreamingBaseURI())
	assert.Equal(t, DefaultPollingBaseURI, e.PollingBaseURI())
	assert.Equal(t, DefaultEventsBaseURI, e.EventsBaseURI())
}

func TestOverrideWins(t *testing.T) {
	e := ServiceEndpoints{Streaming: "https://relay.internal"}
	assert.Equal(t, "https://relay.internal", e.StreamingBaseURI())
}

func TestJoinPathAvoidsDoubleSlash(t *testing.T) {
	assert.Equal(t, "https://stream.launchdarkly.com/all", JoinPath("https://stream.launchdarkly.com/", "/all"))
	assert.Equal(t, "https://stream.launchdarkly.com/all", JoinPath("https://stream.launchdarkly.com", "all"))
}
