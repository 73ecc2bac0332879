package feed

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"StoreMirror/internal/catalog"
)

var (
	ErrClosed     = errors.New("change feed closed")
	ErrSubscribed = errors.New("change feed already subscribed")
)

// State of the single live connection. Transitions are driven by the
// transport; the feed only observes them for logging and metrics. Closed is
// terminal.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	defaultMinBackoff = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// wireEvent is the push channel's message shape.
type wireEvent struct {
	Type    string `json:"eventType"`
	Subject string `json:"subjectName,omitempty"`
	Origin  string `json:"originAddress,omitempty"`
}

type Deps struct {
	// URL is the ws:// or wss:// endpoint of the push channel.
	URL string

	// Origin identifies this client to the transport.
	Origin string

	Log *zap.Logger

	// Dialer may be nil; websocket.DefaultDialer is used then.
	Dialer *websocket.Dialer

	MinBackoff time.Duration
	MaxBackoff time.Duration

	// Connects may be nil. Incremented on every successful dial, so a
	// value climbing past 1 means the link has been flapping.
	Connects prometheus.Counter
}

// Feed maintains exactly one live connection to the push transport per
// process. It reconnects with capped backoff after a drop and re-arms the
// registered handler on every reconnect. Events may be delivered more than
// once across reconnects; downstream tolerates that by refetching.
type Feed struct {
	url        string
	origin     string
	log        *zap.Logger
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	connects   prometheus.Counter

	state atomic.Int32

	mu      sync.Mutex
	handler func(catalog.ChangeEvent)
	started bool
	closed  chan struct{}
	wg      sync.WaitGroup

	connMu sync.Mutex
	conn   *websocket.Conn
}

func New(deps Deps) *Feed {
	dialer := deps.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	minBackoff := deps.MinBackoff
	if minBackoff <= 0 {
		minBackoff = defaultMinBackoff
	}
	maxBackoff := deps.MaxBackoff
	if maxBackoff < minBackoff {
		maxBackoff = defaultMaxBackoff
	}

	return &Feed{
		url:        deps.URL,
		origin:     deps.Origin,
		log:        deps.Log,
		dialer:     dialer,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		connects:   deps.Connects,
		closed:     make(chan struct{}),
	}
}

// Subscribe arms the handler and opens the connection. One subscription per
// feed; the handler stays armed until the subscription is closed.
func (f *Feed) Subscribe(h func(catalog.ChangeEvent)) (io.Closer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.closed:
		return nil, ErrClosed
	default:
	}
	if f.started {
		return nil, ErrSubscribed
	}

	f.handler = h
	f.started = true
	f.wg.Add(1)
	go f.run()

	return subscription{f}, nil
}

type subscription struct {
	f *Feed
}

func (s subscription) Close() error {
	return s.f.Close()
}

// Close tears the connection down for good. Idempotent.
func (f *Feed) Close() error {
	f.mu.Lock()
	select {
	case <-f.closed:
		f.mu.Unlock()
		return nil
	default:
	}
	close(f.closed)
	f.mu.Unlock()

	f.state.Store(int32(StateClosed))

	f.connMu.Lock()
	if f.conn != nil {
		_ = f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	return nil
}

func (f *Feed) State() State {
	return State(f.state.Load())
}

func (f *Feed) run() {
	defer f.wg.Done()

	backoff := f.minBackoff
	for {
		select {
		case <-f.closed:
			return
		default:
		}

		f.setState(StateConnecting)
		header := http.Header{}
		if f.origin != "" {
			header.Set("X-Client-Origin", f.origin)
		}

		conn, resp, err := f.dialer.Dial(f.url, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			f.log.Warn("change feed connect failed, live updates degraded",
				zap.Error(err), zap.Duration("retry_in", backoff))
			if !f.wait(backoff) {
				return
			}
			backoff = min(backoff*2, f.maxBackoff)
			continue
		}

		f.connMu.Lock()
		f.conn = conn
		f.connMu.Unlock()

		f.setState(StateConnected)
		if f.connects != nil {
			f.connects.Inc()
		}
		f.log.Info("change feed connected", zap.String("url", f.url))
		backoff = f.minBackoff

		f.readLoop(conn)

		f.connMu.Lock()
		f.conn = nil
		f.connMu.Unlock()

		select {
		case <-f.closed:
			return
		default:
		}
		f.setState(StateDisconnected)
		f.log.Warn("change feed dropped, reconnecting")
	}
}

// readLoop delivers each frame to the handler exactly once. Frames that do
// not parse are skipped; the connection stays up.
func (f *Feed) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var ev wireEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			f.log.Warn("ignoring malformed change event", zap.Error(err))
			continue
		}

		f.handler(catalog.ChangeEvent{
			Kind:    catalog.EventKind(ev.Type),
			Subject: ev.Subject,
			Origin:  ev.Origin,
		})
	}
}

func (f *Feed) setState(s State) {
	// Closed is terminal; never transition away from it.
	if State(f.state.Load()) == StateClosed {
		return
	}
	f.state.Store(int32(s))
}

func (f *Feed) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-f.closed:
		return false
	case <-t.C:
		return true
	}
}
