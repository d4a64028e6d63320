package inspect

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gettapd/tapd/pkg/capture"
	"github.com/gettapd/tapd/pkg/tracelog"
)

func newTestAPI(t *testing.T) (*capture.Capture, *httptest.Server) {
	t.Helper()
	eng := capture.New(capture.Config{})
	srv := httptest.NewServer(NewServer(eng, Options{}).Handler())
	t.Cleanup(srv.Close)
	return eng, srv
}

func seed(eng *capture.Capture) {
	eng.Store().Insert(&tracelog.Record{ID: "req-a", Method: "GET", URL: "http://api/users", ResponseStatus: 200, Transport: tracelog.TransportHTTP})
	eng.Store().Insert(&tracelog.Record{ID: "req-b", Method: "POST", URL: "http://api/users", ResponseStatus: 500, Transport: tracelog.TransportHTTP})
	eng.Store().Insert(&tracelog.Record{ID: "req-c", Method: "GET", URL: "http://api/orders", Error: "connection refused", Transport: tracelog.TransportEvent})
}

func getList(t *testing.T, url string) ListResponse {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestListRequests(t *testing.T) {
	eng, srv := newTestAPI(t)
	seed(eng)

	out := getList(t, srv.URL+"/requests")
	require.Equal(t, 3, out.Total)
	// Newest first.
	assert.Equal(t, "req-c", out.Requests[0].ID)
	assert.Equal(t, "req-a", out.Requests[2].ID)
}

func TestListRequestsFilters(t *testing.T) {
	eng, srv := newTestAPI(t)
	seed(eng)

	tests := []struct {
		query string
		want  []string
	}{
		{"method=POST", []string{"req-b"}},
		{"status=500", []string{"req-b"}},
		{"search=orders", []string{"req-c"}},
		{"transport=eventhttp", []string{"req-c"}},
		{"hasError=true", []string{"req-c"}},
		{"hasError=false", []string{"req-b", "req-a"}},
		{"where=" + "status+%3E%3D+500", []string{"req-b"}},
		{"limit=1&offset=1", []string{"req-b"}},
	}
	for _, tt := range tests {
		out := getList(t, srv.URL+"/requests?"+tt.query)
		ids := make([]string, len(out.Requests))
		for i, r := range out.Requests {
			ids[i] = r.ID
		}
		assert.Equal(t, tt.want, ids, tt.query)
	}
}

func TestListRequestsBadFilter(t *testing.T) {
	_, srv := newTestAPI(t)
	for _, query := range []string{"status=abc", "hasError=maybe", "limit=-1", "where=status+%2B"} {
		resp, err := http.Get(srv.URL + "/requests?" + query)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func TestGetRequest(t *testing.T) {
	eng, srv := newTestAPI(t)
	seed(eng)

	resp, err := http.Get(srv.URL + "/requests/req-b")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec tracelog.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "POST", rec.Method)

	resp, err = http.Get(srv.URL + "/requests/req-missing")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClearRequests(t *testing.T) {
	eng, srv := newTestAPI(t)
	seed(eng)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/requests", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, eng.Count())
}

func TestCaptureControl(t *testing.T) {
	eng, srv := newTestAPI(t)

	status := func() CaptureStatus {
		resp, err := http.Get(srv.URL + "/capture")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		var out CaptureStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	assert.True(t, status().Enabled)

	resp, err := http.Post(srv.URL+"/capture/disable", "", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.False(t, status().Enabled)
	assert.False(t, eng.Enabled())

	resp, err = http.Post(srv.URL+"/capture/enable", "", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.True(t, status().Enabled)
}

func TestExportRequests(t *testing.T) {
	eng, srv := newTestAPI(t)
	seed(eng)

	resp, err := http.Get(srv.URL + "/requests/export?format=curl")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "curl")

	resp, err = http.Get(srv.URL + "/requests/export?format=pcap")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	_, srv := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "tapd_records_captured_total")
}

func TestStreamRequestsSSE(t *testing.T) {
	eng, srv := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/requests/stream")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	// Drain the rest of the connected event.
	_, _ = reader.ReadString('\n')
	_, _ = reader.ReadString('\n')

	eng.Store().Insert(&tracelog.Record{ID: "req-live", Method: "GET", URL: "http://api/live"})

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: request\n", line)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var rec tracelog.Record
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &rec))
	assert.Equal(t, "req-live", rec.ID)
}

func TestWebSocketRequests(t *testing.T) {
	eng, srv := newTestAPI(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/requests/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	eng.Store().Insert(&tracelog.Record{ID: "req-ws", Method: "GET", URL: "http://api/ws"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var rec tracelog.Record
	require.NoError(t, conn.ReadJSON(&rec))
	assert.Equal(t, "req-ws", rec.ID)
}
