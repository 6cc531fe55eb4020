package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagcore/flagcore/internal/ldlog"
	"github.com/flagcore/flagcore/lduser"
)

func newTestServer(t *testing.T, onRequest func(body []byte)) *httptest.Server {
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := readAll(r)
		require.NoError(t, err)
		mu.Lock()
		onRequest(body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	return server
}

func readAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := r.Body.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	return buf, nil
}

func TestDefaultProcessorFlushesOnClose(t *testing.T) {
	received := make(chan []byte, 1)
	server := newTestServer(t, func(body []byte) { received <- body })
	defer server.Close()

	config := Config{EventsURI: server.URL, SDKKey: "test-key", Capacity: 10}
	p := NewDefaultProcessor(config, ldlog.NewDisabledLoggers())

	p.SendEvent(IdentifyEvent{BaseEvent{CreationDate: 1, User: lduser.NewUser("user1")}})
	require.NoError(t, p.Close())

	select {
	case body := <-received:
		var payload []map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Len(t, payload, 1)
		assert.Equal(t, "identify", payload[0]["kind"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestDefaultProcessorDropsWhenDisabledAfterUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	config := Config{EventsURI: server.URL, SDKKey: "bad-key", Capacity: 10}
	p := NewDefaultProcessor(config, ldlog.NewDisabledLoggers())

	p.SendEvent(IdentifyEvent{BaseEvent{CreationDate: 1, User: lduser.NewUser("user1")}})
	require.NoError(t, p.Close())
}
