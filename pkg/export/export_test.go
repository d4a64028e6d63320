package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gettapd/tapd/pkg/tracelog"
)

func sampleRecords() []*tracelog.Record {
	return []*tracelog.Record{
		{
			ID:        "req-2",
			Method:    "POST",
			URL:       "http://api.local/users",
			Transport: tracelog.TransportHTTP,
			RequestHeaders: map[string]string{
				"Content-Type":  "application/json",
				"Authorization": "[REDACTED]",
			},
			RequestBody:      map[string]any{"name": "ada"},
			RequestBodySize:  14,
			ResponseHeaders:  map[string]string{"Content-Type": "application/json"},
			ResponseBody:     map[string]any{"id": int64(7)},
			ResponseBodySize: 8,
			ResponseStatus:   201,
			DurationMs:       42,
			Timestamp:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:          "req-1",
			Method:      "GET",
			URL:         "http://api.local/users/42?full=1",
			Transport:   tracelog.TransportHTTP,
			QueryParams: map[string]string{"full": "1"},
			Error:       "dial tcp: connection refused",
			DurationMs:  3,
			Timestamp:   time.Date(2026, 3, 1, 9, 59, 0, 0, time.UTC),
		},
	}
}

func TestCurl(t *testing.T) {
	out := Curl(sampleRecords())
	assert.Contains(t, out, `curl -X POST 'http://api.local/users'`)
	assert.Contains(t, out, `-H 'Content-Type: application/json'`)
	assert.Contains(t, out, `--data-raw '{"name":"ada"}'`)
	// GET needs no -X
	assert.Contains(t, out, `curl 'http://api.local/users/42?full=1'`)
	assert.NotContains(t, out, "-X GET")
}

func TestCurlQuotesSingleQuotes(t *testing.T) {
	out := CurlCommand(&tracelog.Record{Method: "GET", URL: "http://x/a'b"})
	assert.Equal(t, `curl 'http://x/a'\''b'`, out)
}

func TestHAR(t *testing.T) {
	raw, err := HAR(sampleRecords())
	require.NoError(t, err)

	var file struct {
		Log struct {
			Version string `json:"version"`
			Creator struct {
				Name string `json:"name"`
			} `json:"creator"`
			Entries []struct {
				StartedDateTime string `json:"startedDateTime"`
				Time            int64  `json:"time"`
				Request         struct {
					Method   string `json:"method"`
					URL      string `json:"url"`
					PostData *struct {
						Text string `json:"text"`
					} `json:"postData"`
				} `json:"request"`
				Response struct {
					Status  int `json:"status"`
					Content struct {
						Text string `json:"text"`
					} `json:"content"`
				} `json:"response"`
				Comment string `json:"comment"`
			} `json:"entries"`
		} `json:"log"`
	}
	require.NoError(t, json.Unmarshal(raw, &file))

	assert.Equal(t, "1.2", file.Log.Version)
	assert.Equal(t, "tapd", file.Log.Creator.Name)
	require.Len(t, file.Log.Entries, 2)

	post := file.Log.Entries[0]
	assert.Equal(t, "POST", post.Request.Method)
	assert.Equal(t, 201, post.Response.Status)
	assert.Equal(t, int64(42), post.Time)
	require.NotNil(t, post.Request.PostData)
	assert.JSONEq(t, `{"name":"ada"}`, post.Request.PostData.Text)

	failed := file.Log.Entries[1]
	assert.Zero(t, failed.Response.Status)
	assert.Equal(t, "dial tcp: connection refused", failed.Comment)
}

func TestOpenAPI(t *testing.T) {
	records := []*tracelog.Record{
		{Method: "GET", URL: "http://api.local/users/42", ResponseStatus: 200,
			ResponseHeaders: map[string]string{"Content-Type": "application/json; charset=utf-8"}},
		{Method: "GET", URL: "http://api.local/users/7", ResponseStatus: 404},
		{Method: "POST", URL: "http://api.local/users", ResponseStatus: 201},
		{Method: "GET", URL: "http://api.local/broken", Error: "refused"},
	}
	raw, err := OpenAPI(records)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])

	paths := doc["paths"].(map[string]any)
	require.Contains(t, paths, "/users/{id}")
	require.Contains(t, paths, "/users")
	assert.NotContains(t, paths, "/broken")

	byID := paths["/users/{id}"].(map[string]any)
	get := byID["get"].(map[string]any)
	responses := get["responses"].(map[string]any)
	assert.Contains(t, responses, "200")
	assert.Contains(t, responses, "404")
}

func TestRender(t *testing.T) {
	for _, format := range []string{FormatCurl, FormatHAR, FormatOpenAPI} {
		out, err := Render(format, sampleRecords())
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	}
	_, err := Render("pcap", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
