package tracelog

import "time"

// Transport constants identifying which capture adapter produced a record.
const (
	TransportHTTP  = "http"
	TransportEvent = "eventhttp"
	TransportGRPC  = "grpc"
)

// DurationUnset marks a record whose call has not completed yet.
const DurationUnset = -1

// Record captures complete details of one observed request/response.
// It is built in two phases: a partial record at call start (method, URL,
// query, request headers/body, timestamp) and a completion patch once the
// call settles. A record is inserted into a store exactly once, at the
// point its outcome is known, and is immutable afterwards.
type Record struct {
	// ID is the process-unique identifier, assigned at request start.
	// It is the sole correlation key between a call's start and completion.
	ID string `json:"id"`

	// Transport identifies the capture adapter (http, eventhttp, grpc).
	Transport string `json:"transport"`

	// Method is the HTTP verb (or gRPC full method name).
	Method string `json:"method"`

	// URL is the resource locator exactly as given by the caller, never rewritten.
	URL string `json:"url"`

	// QueryParams holds the query string key/values derived from URL.
	QueryParams map[string]string `json:"queryParams,omitempty"`

	// RequestHeaders are the request headers, keys case-preserved as supplied.
	RequestHeaders map[string]string `json:"requestHeaders,omitempty"`

	// ResponseHeaders are the response headers, keys case-preserved.
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`

	// RequestBody is the canonical request body value: parsed JSON structure,
	// plain string, or a normalize.Descriptor for binary/opaque payloads.
	RequestBody any `json:"requestBody,omitempty"`

	// ResponseBody is the canonical response body value.
	ResponseBody any `json:"responseBody,omitempty"`

	// RequestBodySize is the request body size in bytes: the declared
	// Content-Length when known, otherwise the observed byte count,
	// which for truncated bodies is capped near the capture limit.
	RequestBodySize int `json:"requestBodySize"`

	// ResponseBodySize is the response body size in bytes, on the same
	// terms as RequestBodySize.
	ResponseBodySize int `json:"responseBodySize"`

	// Truncated is set when a body exceeded the capture cap and only a
	// prefix was normalized. The caller still received the full stream.
	Truncated bool `json:"truncated,omitempty"`

	// Timestamp is the capture start time, non-decreasing across records.
	Timestamp time.Time `json:"timestamp"`

	// ResponseStatus is the HTTP status code; 0 means the call never
	// completed (transport failure).
	ResponseStatus int `json:"responseStatus,omitempty"`

	// DurationMs is the elapsed request time in milliseconds,
	// DurationUnset until completion.
	DurationMs int64 `json:"durationMs"`

	// Error is the human-readable transport failure description.
	// Present exactly when the call itself failed; an HTTP status >= 400
	// is data, not an error, and leaves this empty.
	Error string `json:"error,omitempty"`

	// Annotations holds derived metadata (GraphQL operation, JWT claims, ...).
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Clone returns a deep-enough copy of the record for snapshot purposes.
// Header and query maps are copied; canonical body values are shared
// because they are never mutated after insertion.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.QueryParams = copyMap(r.QueryParams)
	c.RequestHeaders = copyMap(r.RequestHeaders)
	c.ResponseHeaders = copyMap(r.ResponseHeaders)
	c.Annotations = copyMap(r.Annotations)
	return &c
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
