package feed_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"StoreMirror/internal/catalog"
	"StoreMirror/internal/feed"
)

var upgrader = websocket.Upgrader{}

// feedServer hands each accepted connection to the script for its index,
// so tests can drive the first connection differently from the reconnect.
type feedServer struct {
	ts *httptest.Server

	mu    sync.Mutex
	conns int
}

func newFeedServer(t *testing.T, script func(conn *websocket.Conn, n int)) *feedServer {
	t.Helper()

	fs := &feedServer{}
	fs.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.conns++
		n := fs.conns
		fs.mu.Unlock()

		script(conn, n)
	}))
	t.Cleanup(fs.ts.Close)
	return fs
}

func (fs *feedServer) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.ts.URL, "http")
}

func newTestFeed(url string) *feed.Feed {
	return feed.New(feed.Deps{
		URL:        url,
		Origin:     "test-client",
		Log:        zap.NewNop(),
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 50 * time.Millisecond,
	})
}

func collectEvents(buf int) (chan catalog.ChangeEvent, func(catalog.ChangeEvent)) {
	ch := make(chan catalog.ChangeEvent, buf)
	return ch, func(ev catalog.ChangeEvent) { ch <- ev }
}

func recvEvent(t *testing.T, ch chan catalog.ChangeEvent) catalog.ChangeEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatalf("no event delivered")
		return catalog.ChangeEvent{}
	}
}

func TestFeedDeliversEvents(t *testing.T) {
	hold := make(chan struct{})
	fs := newFeedServer(t, func(conn *websocket.Conn, _ int) {
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"eventType":"added","subjectName":"Mug","originAddress":"10.0.0.5"}`))
		<-hold
		_ = conn.Close()
	})
	t.Cleanup(func() { close(hold) })

	f := newTestFeed(fs.wsURL())
	events, handler := collectEvents(4)

	sub, err := f.Subscribe(handler)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	ev := recvEvent(t, events)
	if ev.Kind != catalog.EventAdded || ev.Subject != "Mug" || ev.Origin != "10.0.0.5" {
		t.Fatalf("event: %+v", ev)
	}
}

func TestFeedRearmsHandlerAfterDrop(t *testing.T) {
	hold := make(chan struct{})
	fs := newFeedServer(t, func(conn *websocket.Conn, n int) {
		if n == 1 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"eventType":"added","subjectName":"Mug"}`))
			_ = conn.Close() // simulate a drop
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"eventType":"updated","subjectName":"Mug"}`))
		<-hold
		_ = conn.Close()
	})
	t.Cleanup(func() { close(hold) })

	f := newTestFeed(fs.wsURL())
	events, handler := collectEvents(4)

	sub, err := f.Subscribe(handler)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	if ev := recvEvent(t, events); ev.Kind != catalog.EventAdded {
		t.Fatalf("first event: %+v", ev)
	}
	// Delivered on the second connection: the handler survived the drop.
	if ev := recvEvent(t, events); ev.Kind != catalog.EventUpdated {
		t.Fatalf("second event: %+v", ev)
	}
}

func TestFeedSkipsMalformedFrames(t *testing.T) {
	hold := make(chan struct{})
	fs := newFeedServer(t, func(conn *websocket.Conn, _ int) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"eventType":"deleted","subjectName":"Pen"}`))
		<-hold
		_ = conn.Close()
	})
	t.Cleanup(func() { close(hold) })

	f := newTestFeed(fs.wsURL())
	events, handler := collectEvents(4)

	sub, err := f.Subscribe(handler)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	if ev := recvEvent(t, events); ev.Kind != catalog.EventDeleted {
		t.Fatalf("event after garbage frame: %+v", ev)
	}
}

func TestFeedCloseIsTerminal(t *testing.T) {
	hold := make(chan struct{})
	fs := newFeedServer(t, func(conn *websocket.Conn, _ int) {
		<-hold
		_ = conn.Close()
	})
	t.Cleanup(func() { close(hold) })

	f := newTestFeed(fs.wsURL())
	_, handler := collectEvents(1)

	sub, err := f.Subscribe(handler)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if got := f.State(); got != feed.StateClosed {
		t.Fatalf("state = %s, want closed", got)
	}

	if _, err := f.Subscribe(handler); err == nil {
		t.Fatalf("subscribe after close should fail")
	}
}

func TestFeedSingleSubscription(t *testing.T) {
	hold := make(chan struct{})
	fs := newFeedServer(t, func(conn *websocket.Conn, _ int) {
		<-hold
		_ = conn.Close()
	})
	t.Cleanup(func() { close(hold) })

	f := newTestFeed(fs.wsURL())
	_, handler := collectEvents(1)

	sub, err := f.Subscribe(handler)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	if _, err := f.Subscribe(handler); err == nil {
		t.Fatalf("second subscribe should fail")
	}
}
