package export

import (
	"net/http"
	"sort"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/gettapd/tapd/pkg/tracelog"
)

// HAR 1.2 structures, the subset DevTools-compatible viewers require.

type harFile struct {
	Log harLog `json:"log"`
}

type harLog struct {
	Version string     `json:"version"`
	Creator harCreator `json:"creator"`
	Entries []harEntry `json:"entries"`
}

type harCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type harEntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Time            int64       `json:"time"`
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
	Cache           struct{}    `json:"cache"`
	Timings         harTimings  `json:"timings"`
	Comment         string      `json:"comment,omitempty"`
}

type harRequest struct {
	Method      string       `json:"method"`
	URL         string       `json:"url"`
	HTTPVersion string       `json:"httpVersion"`
	Headers     []harNameVal `json:"headers"`
	QueryString []harNameVal `json:"queryString"`
	PostData    *harPostData `json:"postData,omitempty"`
	HeadersSize int          `json:"headersSize"`
	BodySize    int          `json:"bodySize"`
}

type harResponse struct {
	Status      int          `json:"status"`
	StatusText  string       `json:"statusText"`
	HTTPVersion string       `json:"httpVersion"`
	Headers     []harNameVal `json:"headers"`
	Content     harContent   `json:"content"`
	RedirectURL string       `json:"redirectURL"`
	HeadersSize int          `json:"headersSize"`
	BodySize    int          `json:"bodySize"`
}

type harContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
}

type harPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type harNameVal struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type harTimings struct {
	Send    int   `json:"send"`
	Wait    int64 `json:"wait"`
	Receive int   `json:"receive"`
}

// HAR renders records as a HAR 1.2 archive. Entries appear in snapshot
// order. Records without a response (transport failures) export with
// status 0, which HAR viewers display as failed.
func HAR(records []*tracelog.Record) ([]byte, error) {
	entries := make([]harEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, harFromRecord(rec))
	}
	file := harFile{Log: harLog{
		Version: "1.2",
		Creator: harCreator{Name: "tapd", Version: "1"},
		Entries: entries,
	}}
	return oj.Marshal(&file, 2)
}

func harFromRecord(rec *tracelog.Record) harEntry {
	duration := rec.DurationMs
	if duration < 0 {
		duration = 0
	}

	entry := harEntry{
		StartedDateTime: rec.Timestamp.UTC().Format(time.RFC3339Nano),
		Time:            duration,
		Request: harRequest{
			Method:      rec.Method,
			URL:         rec.URL,
			HTTPVersion: "HTTP/1.1",
			Headers:     harHeaders(rec.RequestHeaders),
			QueryString: harHeaders(rec.QueryParams),
			HeadersSize: -1,
			BodySize:    rec.RequestBodySize,
		},
		Response: harResponse{
			Status:      rec.ResponseStatus,
			StatusText:  http.StatusText(rec.ResponseStatus),
			HTTPVersion: "HTTP/1.1",
			Headers:     harHeaders(rec.ResponseHeaders),
			Content: harContent{
				Size:     rec.ResponseBodySize,
				MimeType: rec.ResponseHeaders["Content-Type"],
				Text:     bodyText(rec.ResponseBody),
			},
			HeadersSize: -1,
			BodySize:    rec.ResponseBodySize,
		},
		Timings: harTimings{Send: 0, Wait: duration, Receive: 0},
	}
	if rec.Error != "" {
		entry.Comment = rec.Error
	}
	if body := bodyText(rec.RequestBody); body != "" {
		entry.Request.PostData = &harPostData{
			MimeType: rec.RequestHeaders["Content-Type"],
			Text:     body,
		}
	}
	return entry
}

func harHeaders(m map[string]string) []harNameVal {
	out := make([]harNameVal, 0, len(m))
	for name, value := range m {
		out = append(out, harNameVal{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
