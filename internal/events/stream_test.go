package events

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Copycord/console/internal/status"
)

// sseHandler writes the given frames as one text/event-stream response and
// then closes the connection.
func sseHandler(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprint(w, f)
			flusher.Flush()
		}
	}
}

type eventCollector struct {
	mu     sync.Mutex
	events []Event
}

func (c *eventCollector) add(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *eventCollector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestStreamParsesEvents(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		"event: update\ndata: {\"a\":1}\n\n",
		"data: plain\n\n",
		": keepalive comment\n\n",
		"data: first\ndata: second\n\n",
	))
	defer srv.Close()

	col := &eventCollector{}
	s := NewStream(srv.URL, "test", srv.Client(), col.add, nil, time.Hour, nil)
	s.Open()
	defer s.Close()

	require.Eventually(t, func() bool { return len(col.all()) == 3 },
		2*time.Second, 10*time.Millisecond)

	events := col.all()
	assert.Equal(t, "update", events[0].Name)
	assert.Equal(t, `{"a":1}`, string(events[0].Data))
	assert.Equal(t, "", events[1].Name)
	assert.Equal(t, "plain", string(events[1].Data))
	// multi-line data joins with newline
	assert.Equal(t, "first\nsecond", string(events[2].Data))
}

func TestStreamReconnectsAfterServerClose(t *testing.T) {
	var connects atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connects.Add(1)
		sseHandler("data: hi\n\n")(w, r)
	}))
	defer srv.Close()

	col := &eventCollector{}
	var errs atomic.Int32
	s := NewStream(srv.URL, "test", srv.Client(), col.add,
		func(error) { errs.Add(1) }, 20*time.Millisecond, nil)
	s.Open()
	defer s.Close()

	require.Eventually(t, func() bool { return connects.Load() >= 3 },
		2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, errs.Load(), int32(2))
}

func TestStreamReportsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var lastErr atomic.Value
	s := NewStream(srv.URL, "test", srv.Client(), func(Event) {},
		func(err error) { lastErr.Store(err.Error()) }, time.Hour, nil)
	s.Open()
	defer s.Close()

	require.Eventually(t, func() bool { return lastErr.Load() != nil },
		2*time.Second, 10*time.Millisecond)
	assert.Contains(t, lastErr.Load().(string), "503")
}

func TestStreamCloseCancelsPendingReconnect(t *testing.T) {
	var connects atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connects.Add(1)
		sseHandler()(w, r)
	}))
	defer srv.Close()

	s := NewStream(srv.URL, "test", srv.Client(), func(Event) {}, nil,
		10*time.Millisecond, nil)
	s.Open()
	require.Eventually(t, func() bool { return connects.Load() >= 1 },
		time.Second, 5*time.Millisecond)

	s.Close()
	after := connects.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, connects.Load())
}

func TestBusDispatch(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		"data: {\"kind\":\"status\",\"role\":\"server\",\"payload\":{\"running\":true}}\n\n",
		"data: {\"kind\":\"filters\"}\n\n",
		"data: {not json}\n\n",
		"data: {\"kind\":\"mystery\"}\n\n",
	))
	defer srv.Close()

	var mu sync.Mutex
	var statuses []status.ProcessStatus
	var filters atomic.Int32
	b := NewBus(srv.URL, srv.Client(), BusHandlers{
		OnStatus: func(st status.ProcessStatus) {
			mu.Lock()
			statuses = append(statuses, st)
			mu.Unlock()
		},
		OnFiltersInvalidated: func() { filters.Add(1) },
	}, time.Hour, nil)
	b.Open()
	defer b.Close()

	require.Eventually(t, func() bool { return filters.Load() == 1 },
		2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, statuses, 1)
	assert.Equal(t, status.RoleServer, statuses[0].Role)
	assert.True(t, statuses[0].Running)
}

func TestLogTailBuffersAndNotifies(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		"data: {\"lines\":[\"one\",\"two\"]}\n\n",
		"data: {\"line\":\"three\"}\n\n",
		"data: {}\n\n",
	))
	defer srv.Close()

	var mu sync.Mutex
	var batches [][]string
	var follows []bool
	tail := NewLogTail(status.RoleServer, srv.URL, srv.Client(), 100,
		func(lines []string, follow bool) {
			mu.Lock()
			batches = append(batches, lines)
			follows = append(follows, follow)
			mu.Unlock()
		}, nil, time.Hour, nil)
	tail.Open()
	defer tail.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"one", "two", "three"}, tail.Lines())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"one", "two"}, {"three"}}, batches)
	// auto-follow is on until the viewer scrolls away
	assert.Equal(t, []bool{true, true}, follows)
}

func TestLogTailFollowTracksScroll(t *testing.T) {
	tail := NewLogTail(status.RoleClient, "http://unused.invalid", nil, 10, nil, nil, time.Hour, nil)

	tail.UpdateScroll(500)
	tail.dispatch(Event{Data: []byte(`{"line":"x"}`)})
	assert.Equal(t, []string{"x"}, tail.Lines())
	assert.False(t, tail.follower.ShouldFollow())

	tail.UpdateScroll(0)
	assert.True(t, tail.follower.ShouldFollow())
}

func TestLogTailEvictsAtCapacity(t *testing.T) {
	tail := NewLogTail(status.RoleServer, "http://unused.invalid", nil, 2, nil, nil, time.Hour, nil)

	tail.dispatch(Event{Data: []byte(`{"lines":["a","b","c"]}`)})
	assert.Equal(t, []string{"b", "c"}, tail.Lines())
}
