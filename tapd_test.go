package tapd

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gettapd/tapd/pkg/config"
	"github.com/gettapd/tapd/pkg/tracelog"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestStartCapturesAndServesInspectAPI(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	cfg := config.Default()
	cfg.Inspect.Port = freePort(t)
	inst, err := Start(cfg)
	require.NoError(t, err)
	defer inst.Close()

	client := &http.Client{}
	inst.Capture().Install(client)

	resp, err := client.Get(backend.URL + "/orders")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, 1, inst.Capture().Count())
	logs := inst.Capture().Logs()
	assert.Equal(t, tracelog.TransportHTTP, logs[0].Transport)

	// The embedded inspect API serves the same store.
	apiResp, err := http.Get("http://" + inst.InspectAddr() + "/requests")
	require.NoError(t, err)
	defer apiResp.Body.Close()
	assert.Equal(t, http.StatusOK, apiResp.StatusCode)
}

func TestStartAppliesCaptureConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Inspect.Port = freePort(t)
	cfg.Capture.MaxEntries = 2
	inst, err := Start(cfg)
	require.NoError(t, err)
	defer inst.Close()

	eng := inst.Capture()
	for i := 0; i < 3; i++ {
		eng.Store().Insert(&tracelog.Record{ID: "req-" + strconv.Itoa(i)})
	}
	assert.Equal(t, 2, eng.Count())
}

func TestStartNilConfigUsesDefaultPort(t *testing.T) {
	inst, err := Start(nil)
	if err != nil {
		// Default port 4246 may be taken on a shared machine.
		t.Skipf("default port unavailable: %v", err)
	}
	defer inst.Close()
	assert.Equal(t, "127.0.0.1:4246", inst.InspectAddr())
}
