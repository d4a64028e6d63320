package capture

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gettapd/tapd/internal/id"
	"github.com/gettapd/tapd/pkg/normalize"
	"github.com/gettapd/tapd/pkg/tracelog"
)

// Transport is an http.RoundTripper decorator that records every call made
// through it. The wrapped transport is indistinguishable from the unwrapped
// one from the caller's point of view: same response, same error, bodies
// fully consumable after capture.
type Transport struct {
	cap  *Capture
	base http.RoundTripper
}

// Transport wraps base (nil means http.DefaultTransport) with capture.
func (c *Capture) Transport(base http.RoundTripper) *Transport {
	return &Transport{cap: c, base: base}
}

// Install decorates the client's transport in place. Installing is
// idempotent: re-installing the same Capture never double-wraps.
func (c *Capture) Install(client *http.Client) {
	if client == nil {
		return
	}
	if t, ok := client.Transport.(*Transport); ok && t.cap == c {
		return
	}
	client.Transport = c.Transport(client.Transport)
}

// Uninstall restores the client's original transport. Calling it on a
// client this Capture is not installed on has no effect.
func (c *Capture) Uninstall(client *http.Client) {
	if client == nil {
		return
	}
	if t, ok := client.Transport.(*Transport); ok && t.cap == c {
		client.Transport = t.base
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	rawURL := req.URL.String()
	if !t.cap.Enabled() || t.cap.ignored(rawURL) {
		return base.RoundTrip(req)
	}

	// Phase one: the partial record, built synchronously at call start.
	// It lives only in this frame until the call settles.
	start := time.Now()
	rec := &tracelog.Record{
		ID:             id.Request(),
		Transport:      tracelog.TransportHTTP,
		Method:         req.Method,
		URL:            rawURL,
		QueryParams:    flattenQuery(req),
		RequestHeaders: normalize.Headers(req.Header),
		Timestamp:      start,
		DurationMs:     tracelog.DurationUnset,
	}
	t.captureRequestBody(req, rec)

	resp, err := base.RoundTrip(req)
	if err != nil {
		// Transport failure: record it, then propagate the original
		// error unchanged. Status stays absent.
		rec.Error = err.Error()
		rec.DurationMs = time.Since(start).Milliseconds()
		t.cap.record(rec)
		return nil, err
	}

	// HTTP completion, failing statuses included. Status codes are data,
	// not errors, matching native transport semantics.
	rec.ResponseStatus = resp.StatusCode
	rec.ResponseHeaders = normalize.Headers(resp.Header)
	t.captureResponseBody(resp, rec)
	rec.DurationMs = time.Since(start).Milliseconds()
	t.cap.record(rec)

	return resp, nil
}

// captureRequestBody duplicates the request body without consuming it:
// the read bytes are spliced back in front of whatever remains unread,
// so the base transport sends the identical stream.
func (t *Transport) captureRequestBody(req *http.Request, rec *tracelog.Record) {
	if req.Body == nil || req.Body == http.NoBody {
		return
	}

	limit := t.cap.cfg.maxBodyBytes()
	buf, _ := io.ReadAll(io.LimitReader(req.Body, limit+1))

	captured := buf
	if int64(len(buf)) > limit {
		captured = buf[:limit]
		rec.Truncated = true
	}
	rec.RequestBodySize = bodySize(len(buf), req.ContentLength)
	rec.RequestBody = normalize.Body(captured, req.Header.Get("Content-Type"))

	req.Body = spliced{
		Reader: io.MultiReader(bytes.NewReader(buf), req.Body),
		Closer: req.Body,
	}
}

// captureResponseBody duplicates the response body, leaving the caller's
// stream complete. Event streams are never consumed; they are recorded as
// a stream descriptor only.
func (t *Transport) captureResponseBody(resp *http.Response, rec *tracelog.Record) {
	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/event-stream") {
		rec.ResponseBody = normalize.Stream()
		return
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return
	}

	limit := t.cap.cfg.maxBodyBytes()
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, limit+1))

	captured := buf
	if int64(len(buf)) > limit {
		captured = buf[:limit]
		rec.Truncated = true
	}
	rec.ResponseBodySize = bodySize(len(buf), resp.ContentLength)
	rec.ResponseBody = normalize.Body(captured, contentType)

	resp.Body = spliced{
		Reader: io.MultiReader(bytes.NewReader(buf), resp.Body),
		Closer: resp.Body,
	}
}

// bodySize reports the true body size when the declared Content-Length
// is known. A truncated body is read only up to the capture cap, so the
// observed count alone would understate large payloads; without a
// declared length the observed (possibly capped) count is the best
// available figure.
func bodySize(observed int, declared int64) int {
	if declared > int64(observed) {
		return int(declared)
	}
	return observed
}

// spliced rejoins captured bytes with the unread remainder of the original
// body, preserving the original Close behavior.
type spliced struct {
	io.Reader
	io.Closer
}

func flattenQuery(req *http.Request) map[string]string {
	query := req.URL.Query()
	if len(query) == 0 {
		return nil
	}
	params := make(map[string]string, len(query))
	for key, values := range query {
		params[key] = strings.Join(values, ", ")
	}
	return params
}
