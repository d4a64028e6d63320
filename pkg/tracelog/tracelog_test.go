package tracelog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(method, url string, status int) *Record {
	return &Record{
		ID:             "req-" + method + url,
		Transport:      TransportHTTP,
		Method:         method,
		URL:            url,
		ResponseStatus: status,
		Timestamp:      time.Now(),
		DurationMs:     3,
	}
}

func TestFilter_NilMatchesEverything(t *testing.T) {
	var f *Filter
	assert.True(t, f.Matches(rec("GET", "/api/ping", 200)))
}

func TestFilter_Method(t *testing.T) {
	f := &Filter{Method: "POST"}
	assert.True(t, f.Matches(rec("POST", "/api/users", 201)))
	assert.False(t, f.Matches(rec("GET", "/api/users", 200)))

	wildcard := &Filter{Method: MethodWildcard}
	assert.True(t, wildcard.Matches(rec("GET", "/api/users", 200)))
	assert.True(t, wildcard.Matches(rec("DELETE", "/api/users", 204)))
}

func TestFilter_StatusClass(t *testing.T) {
	f := &Filter{StatusClass: 400}
	assert.True(t, f.Matches(rec("GET", "/x", 400)))
	assert.True(t, f.Matches(rec("GET", "/x", 404)))
	assert.True(t, f.Matches(rec("GET", "/x", 499)))
	assert.False(t, f.Matches(rec("GET", "/x", 500)))
	assert.False(t, f.Matches(rec("GET", "/x", 399)))
}

func TestFilter_StatusClassNeverMatchesAbsentStatus(t *testing.T) {
	failed := &Record{Method: "GET", URL: "/x", Error: "network error", DurationMs: DurationUnset}
	for _, class := range []int{200, 400, 500} {
		f := &Filter{StatusClass: class}
		assert.False(t, f.Matches(failed), "class %d", class)
	}
}

func TestFilter_SearchTextURLOnly(t *testing.T) {
	r := rec("GET", "/API/Users?q=1", 200)
	r.RequestHeaders = map[string]string{"X-Token": "needle"}

	assert.True(t, (&Filter{SearchText: "api/users"}).Matches(r))
	assert.True(t, (&Filter{SearchText: "USERS"}).Matches(r))
	assert.False(t, (&Filter{SearchText: "needle"}).Matches(r), "headers are not searched")
}

func TestFilter_Compose(t *testing.T) {
	records := []*Record{
		rec("POST", "/api/orders", 503),
		rec("POST", "/api/orders", 201),
		rec("GET", "/api/orders", 500),
	}

	both := (&Filter{Method: "POST", StatusClass: 500}).Apply(records)
	require.Len(t, both, 1)
	assert.Equal(t, 503, both[0].ResponseStatus)

	posts := (&Filter{Method: "POST"}).Apply(records)
	assert.Len(t, posts, 2)
	assert.Subset(t, posts, both)
}

func TestFilter_ApplyPreservesOrder(t *testing.T) {
	records := []*Record{
		rec("GET", "/a", 200),
		rec("GET", "/b", 200),
		rec("GET", "/c", 200),
	}
	out := (&Filter{Method: "GET"}).Apply(records)
	require.Len(t, out, 3)
	assert.Equal(t, "/a", out[0].URL)
	assert.Equal(t, "/c", out[2].URL)
}

func TestFilter_OffsetLimit(t *testing.T) {
	records := []*Record{
		rec("GET", "/a", 200),
		rec("GET", "/b", 200),
		rec("GET", "/c", 200),
	}

	out := (&Filter{Offset: 1, Limit: 1}).Apply(records)
	require.Len(t, out, 1)
	assert.Equal(t, "/b", out[0].URL)

	assert.Empty(t, (&Filter{Offset: 10}).Apply(records))
}

func TestFilter_HasError(t *testing.T) {
	ok := rec("GET", "/a", 200)
	failed := &Record{Method: "GET", URL: "/b", Error: "connection refused"}

	yes, no := true, false
	assert.True(t, (&Filter{HasError: &yes}).Matches(failed))
	assert.False(t, (&Filter{HasError: &yes}).Matches(ok))
	assert.True(t, (&Filter{HasError: &no}).Matches(ok))
}

func TestRecord_Clone(t *testing.T) {
	r := rec("GET", "/api/ping", 200)
	r.RequestHeaders = map[string]string{"Accept": "application/json"}

	c := r.Clone()
	c.RequestHeaders["Accept"] = "text/plain"
	c.ResponseStatus = 500

	assert.Equal(t, "application/json", r.RequestHeaders["Accept"])
	assert.Equal(t, 200, r.ResponseStatus)
}
