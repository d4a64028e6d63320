package capture

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gettapd/tapd/pkg/tracelog"
)

func rec(recordID, method, url string, status int) *tracelog.Record {
	return &tracelog.Record{
		ID:             recordID,
		Transport:      tracelog.TransportHTTP,
		Method:         method,
		URL:            url,
		ResponseStatus: status,
		Timestamp:      time.Now(),
	}
}

func TestMemoryStoreEvictsOldestFirst(t *testing.T) {
	store := NewMemoryStore(3)
	for _, name := range []string{"A", "B", "C", "D"} {
		store.Insert(rec(name, "GET", "http://x/"+name, 200))
	}

	require.Equal(t, 3, store.Count())
	logs := store.List(nil)
	ids := make([]string, len(logs))
	for i, r := range logs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"D", "C", "B"}, ids)
	assert.Nil(t, store.Get("A"))
	assert.NotNil(t, store.Get("D"))
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	store := NewMemoryStore(10)
	for i := 0; i < 5; i++ {
		store.Insert(rec(fmt.Sprintf("r%d", i), "GET", "http://x/", 200))
	}
	logs := store.List(nil)
	require.Len(t, logs, 5)
	assert.Equal(t, "r4", logs[0].ID)
	assert.Equal(t, "r0", logs[4].ID)
}

func TestMemoryStoreSnapshotIndependence(t *testing.T) {
	store := NewMemoryStore(2)
	store.Insert(rec("a", "GET", "http://x/", 200))
	snapshot := store.List(nil)

	store.Insert(rec("b", "GET", "http://x/", 200))
	store.Insert(rec("c", "GET", "http://x/", 200))
	store.Clear()

	require.Len(t, snapshot, 1)
	assert.Equal(t, "a", snapshot[0].ID)
	assert.Zero(t, store.Count())
}

func TestMemoryStoreFillsMissingFields(t *testing.T) {
	store := NewMemoryStore(10)
	store.Insert(&tracelog.Record{Method: "GET", URL: "http://x/"})

	logs := store.List(nil)
	require.Len(t, logs, 1)
	assert.NotEmpty(t, logs[0].ID)
	assert.False(t, logs[0].Timestamp.IsZero())
	assert.Equal(t, tracelog.TransportHTTP, logs[0].Transport)
}

func TestMemoryStoreListWithFilter(t *testing.T) {
	store := NewMemoryStore(10)
	store.Insert(rec("ok", "GET", "http://x/ok", 200))
	store.Insert(rec("missing", "GET", "http://x/missing", 404))
	store.Insert(rec("boom", "POST", "http://x/boom", 500))

	logs := store.List(&tracelog.Filter{StatusClass: 400})
	require.Len(t, logs, 1)
	assert.Equal(t, "missing", logs[0].ID)

	logs = store.List(&tracelog.Filter{Method: "POST"})
	require.Len(t, logs, 1)
	assert.Equal(t, "boom", logs[0].ID)
}

func TestMemoryStoreSubscribeChan(t *testing.T) {
	store := NewMemoryStore(10)
	ch, unsubscribe := store.SubscribeChan()

	store.Insert(rec("a", "GET", "http://x/", 200))
	select {
	case got := <-ch:
		assert.Equal(t, "a", got.ID)
	case <-time.After(time.Second):
		t.Fatal("no record delivered")
	}

	unsubscribe()
	unsubscribe() // idempotent

	store.Insert(rec("b", "GET", "http://x/", 200))
	_, open := <-ch
	assert.False(t, open)
}

func TestSnapshotBusObserverPanicContained(t *testing.T) {
	store := NewMemoryStore(10)
	eng := New(Config{})

	var got int
	eng.Subscribe(func([]*tracelog.Record) { panic("broken observer") })
	eng.Subscribe(func(logs []*tracelog.Record) { got = len(logs) })

	eng.record(rec("a", "GET", "http://x/", 200))
	assert.Equal(t, 1, got)
	_ = store
}

func TestSnapshotBusUnsubscribeIdempotent(t *testing.T) {
	eng := New(Config{})
	calls := 0
	unsubscribe := eng.Subscribe(func([]*tracelog.Record) { calls++ })

	eng.record(rec("a", "GET", "http://x/", 200))
	unsubscribe()
	unsubscribe()
	eng.record(rec("b", "GET", "http://x/", 200))

	assert.Equal(t, 1, calls)
	assert.Zero(t, eng.bus.count())
}

func TestClearNotifiesOnce(t *testing.T) {
	eng := New(Config{})
	eng.record(rec("a", "GET", "http://x/", 200))

	notifies := 0
	var last []*tracelog.Record
	eng.Subscribe(func(logs []*tracelog.Record) {
		notifies++
		last = logs
	})

	eng.ClearLogs()
	assert.Equal(t, 1, notifies)
	assert.Empty(t, last)
	assert.Zero(t, eng.Count())
}
