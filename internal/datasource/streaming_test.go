package datasource

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagcore/flagcore/internal/datastore"
	"github.com/flagcore/flagcore/internal/ldlog"
)

// sseServer serves a fixed SSE body on every connection, reporting how many connections it has
// seen. Each handled request writes its frame and then blocks until the client disconnects, so a
// StreamingProcessor's Restart (which tears down and reopens the connection) is observable as a
// second request.
func sseServer(t *testing.T, frames func(connection int) string) (*httptest.Server, *int32) {
	var connections int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&connections, 1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, frames(int(n)))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)
	return server, &connections
}

func TestStreamingProcessorInitializesFromPutEvent(t *testing.T) {
	server, _ := sseServer(t, func(int) string {
		return "event: put\ndata: {\"flags\":{},\"segments\":{}}\n\n"
	})

	store := datastore.NewInMemoryStore()
	p := NewStreamingProcessor(server.URL, "sdk-key", server.Client(), store, ldlog.NewDisabledLoggers())

	ready := make(chan struct{})
	p.Start(ready)
	defer p.Close() //nolint:errcheck

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initialization")
	}
	assert.True(t, p.Initialized())
}

func TestStreamingProcessorRestartsConnectionOnMalformedPut(t *testing.T) {
	server, connections := sseServer(t, func(n int) string {
		if n == 1 {
			return "event: put\ndata: not-json\n\n"
		}
		return "event: put\ndata: {\"flags\":{},\"segments\":{}}\n\n"
	})

	store := datastore.NewInMemoryStore()
	p := NewStreamingProcessor(server.URL, "sdk-key", server.Client(), store, ldlog.NewDisabledLoggers())

	ready := make(chan struct{})
	p.Start(ready)
	defer p.Close() //nolint:errcheck

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the stream to recover from the malformed payload")
	}
	assert.True(t, p.Initialized())
	require.GreaterOrEqual(t, int(atomic.LoadInt32(connections)), 2,
		"malformed payload must drop the connection and reconnect, not keep retrying the same one")
}
