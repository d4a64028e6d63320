package capture

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gettapd/tapd/internal/id"
	"github.com/gettapd/tapd/pkg/eventhttp"
	"github.com/gettapd/tapd/pkg/normalize"
	"github.com/gettapd/tapd/pkg/tracelog"
)

// InstrumentEventClient attaches capture to an eventhttp.Client. Every call
// the client creates afterwards is recorded through the same write path as
// the RoundTripper adapter, exactly once, when the call settles.
//
// Instrumenting is idempotent per (Capture, Client) pair, and the returned
// detach function restores the client to its uninstrumented behavior for
// calls created after it runs. In-flight calls still settle and record.
func (c *Capture) InstrumentEventClient(ec *eventhttp.Client) (detach func()) {
	key := fmt.Sprintf("capture/%p", c)
	ec.Instrument(key, func(call *eventhttp.Call) {
		c.observeCall(call)
	})
	return func() { ec.Deinstrument(key) }
}

// observeCall builds the partial record once the call opens and patches in
// the outcome at settlement. All per-call state lives in this closure
// chain; concurrent calls on one client never share anything.
func (c *Capture) observeCall(call *eventhttp.Call) {
	var rec *tracelog.Record

	call.OnReadyStateChange(func(call *eventhttp.Call) {
		if call.State() != eventhttp.StateSent || rec != nil {
			return
		}
		rawURL := call.URL()
		if !c.Enabled() || c.ignored(rawURL) {
			return
		}
		rec = &tracelog.Record{
			ID:             id.Request(),
			Transport:      tracelog.TransportEvent,
			Method:         call.Method(),
			URL:            rawURL,
			QueryParams:    eventQuery(rawURL),
			RequestHeaders: call.RequestHeaders(),
			Timestamp:      call.StartedAt(),
			DurationMs:     tracelog.DurationUnset,
		}
		c.captureEventRequestBody(call, rec)
	})

	call.OnDone(func(call *eventhttp.Call) {
		if rec == nil {
			return
		}
		rec.DurationMs = call.Duration().Milliseconds()
		if err := call.Err(); err != nil {
			// Transport failure. Status stays absent; failing HTTP
			// statuses below are recorded as data instead.
			rec.Error = err.Error()
			c.record(rec)
			return
		}
		rec.ResponseStatus = call.Status()
		rec.ResponseHeaders = normalize.Headers(call.ResponseHeaders())
		c.captureEventResponseBody(call, rec)
		c.record(rec)
	})
}

func (c *Capture) captureEventRequestBody(call *eventhttp.Call, rec *tracelog.Record) {
	body := call.RequestBody()
	if len(body) == 0 {
		return
	}
	rec.RequestBodySize = len(body)
	captured := body
	if limit := c.cfg.maxBodyBytes(); int64(len(body)) > limit {
		captured = body[:limit]
		rec.Truncated = true
	}
	rec.RequestBody = normalize.Body(captured, call.RequestHeaders()["Content-Type"])
}

func (c *Capture) captureEventResponseBody(call *eventhttp.Call, rec *tracelog.Record) {
	contentType := call.ResponseHeaders().Get("Content-Type")
	if strings.HasPrefix(contentType, "text/event-stream") {
		rec.ResponseBody = normalize.Stream()
		return
	}
	body := call.ResponseBody()
	if len(body) == 0 {
		return
	}
	rec.ResponseBodySize = len(body)
	captured := body
	if limit := c.cfg.maxBodyBytes(); int64(len(body)) > limit {
		captured = body[:limit]
		rec.Truncated = true
	}
	rec.ResponseBody = normalize.Body(captured, contentType)
}

func eventQuery(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	query := u.Query()
	if len(query) == 0 {
		return nil
	}
	params := make(map[string]string, len(query))
	for key, values := range query {
		params[key] = strings.Join(values, ", ")
	}
	return params
}
