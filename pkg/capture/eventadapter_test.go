package capture

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gettapd/tapd/pkg/eventhttp"
	"github.com/gettapd/tapd/pkg/tracelog"
)

func TestEventClientRecordsOnceAtDone(t *testing.T) {
	srv := newTestServer(t)
	eng := New(Config{})
	ec := eventhttp.NewClient(srv.Client())
	eng.InstrumentEventClient(ec)

	call := ec.NewCall()
	require.NoError(t, call.Open(http.MethodGet, srv.URL+"/api/ping?q=1"))
	call.SetHeader("Accept", "application/json")

	// Nothing is recorded before the call settles.
	require.NoError(t, call.Send(nil))
	require.NoError(t, call.Wait(context.Background()))

	logs := eng.Logs()
	require.Len(t, logs, 1)
	r := logs[0]
	assert.Equal(t, tracelog.TransportEvent, r.Transport)
	assert.Equal(t, "GET", r.Method)
	assert.Equal(t, map[string]string{"q": "1"}, r.QueryParams)
	assert.Equal(t, "application/json", r.RequestHeaders["Accept"])
	assert.Equal(t, http.StatusOK, r.ResponseStatus)
	assert.Equal(t, map[string]any{"ok": true}, r.ResponseBody)
	assert.Empty(t, r.Error)
	assert.GreaterOrEqual(t, r.DurationMs, int64(0))
}

func TestEventClientCaptureSeesRecordBeforeCallerDone(t *testing.T) {
	srv := newTestServer(t)
	eng := New(Config{})
	ec := eventhttp.NewClient(srv.Client())
	eng.InstrumentEventClient(ec)

	call := ec.NewCall()
	countAtDone := -1
	call.OnDone(func(*eventhttp.Call) { countAtDone = eng.Count() })

	require.NoError(t, call.Open(http.MethodGet, srv.URL+"/api/ping"))
	require.NoError(t, call.Send(nil))
	<-call.Done()

	// The capture listener registered first, so the record is already
	// stored when the caller's own Done handler runs.
	assert.Equal(t, 1, countAtDone)
}

func TestEventClientTransportError(t *testing.T) {
	eng := New(Config{})
	ec := eventhttp.NewClient(&http.Client{Timeout: time.Second})
	eng.InstrumentEventClient(ec)

	call := ec.NewCall()
	require.NoError(t, call.Open(http.MethodGet, "http://127.0.0.1:1/unreachable"))
	require.NoError(t, call.Send(nil))
	<-call.Done()

	logs := eng.Logs()
	require.Len(t, logs, 1)
	assert.NotEmpty(t, logs[0].Error)
	assert.Zero(t, logs[0].ResponseStatus)
}

func TestEventClientFailingStatusNoError(t *testing.T) {
	srv := newTestServer(t)
	eng := New(Config{})
	ec := eventhttp.NewClient(srv.Client())
	eng.InstrumentEventClient(ec)

	call := ec.NewCall()
	require.NoError(t, call.Open(http.MethodGet, srv.URL+"/api/fail"))
	require.NoError(t, call.Send(nil))
	<-call.Done()

	logs := eng.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, http.StatusInternalServerError, logs[0].ResponseStatus)
	assert.Empty(t, logs[0].Error)
}

func TestEventClientDisabledAtSendNotRecorded(t *testing.T) {
	srv := newTestServer(t)
	eng := New(Config{})
	ec := eventhttp.NewClient(srv.Client())
	eng.InstrumentEventClient(ec)

	eng.Disable()
	call := ec.NewCall()
	require.NoError(t, call.Open(http.MethodGet, srv.URL+"/api/ping"))
	require.NoError(t, call.Send(nil))
	<-call.Done()

	assert.NoError(t, call.Err())
	assert.Equal(t, http.StatusOK, call.Status())
	assert.Zero(t, eng.Count())
}

func TestEventClientDetach(t *testing.T) {
	srv := newTestServer(t)
	eng := New(Config{})
	ec := eventhttp.NewClient(srv.Client())
	detach := eng.InstrumentEventClient(ec)
	detach()

	call := ec.NewCall()
	require.NoError(t, call.Open(http.MethodGet, srv.URL+"/api/ping"))
	require.NoError(t, call.Send(nil))
	<-call.Done()

	assert.Zero(t, eng.Count())
}

func TestEventClientConcurrentCallsIsolated(t *testing.T) {
	srv := newTestServer(t)
	eng := New(Config{MaxEntries: 50})
	ec := eventhttp.NewClient(srv.Client())
	eng.InstrumentEventClient(ec)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			call := ec.NewCall()
			require.NoError(t, call.Open(http.MethodGet, srv.URL+"/api/ping"))
			require.NoError(t, call.Send(nil))
			<-call.Done()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, eng.Count())
	seen := make(map[string]bool)
	for _, r := range eng.Logs() {
		assert.False(t, seen[r.ID], "duplicate record %s", r.ID)
		seen[r.ID] = true
	}
}
