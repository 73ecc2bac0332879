package catalog

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Remote is the request/response surface of the product service. Calls are
// not retried here; the caller decides what a failure means.
type Remote interface {
	FetchAll(ctx context.Context) ([]Product, error)
	Create(ctx context.Context, p NewProduct) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// FeedSource delivers change events. The handler stays armed for the life of
// the subscription, across transport reconnects. Delivery is at-least-once;
// duplicates are harmless because every event is answered with a full
// refetch.
type FeedSource interface {
	Subscribe(h func(ChangeEvent)) (io.Closer, error)
}

const (
	defaultRefreshTimeout = 15 * time.Second
	notificationBuffer    = 16
)

// Controller orchestrates the store, the remote client and the change feed.
// Every trigger funnels into the same refresh path, and refreshes are
// coalesced: at most one in flight, at most one more owed. That keeps a
// single writer on the store and rules out out-of-order overwrites from
// parallel fetches.
type Controller struct {
	store   *Store
	remote  Remote
	feed    FeedSource
	log     *zap.Logger
	metrics *Metrics

	refreshTimeout time.Duration
	notifs         chan Notification

	mu       sync.Mutex
	inFlight bool
	owed     bool

	sub io.Closer
	wg  sync.WaitGroup
}

type ControllerDeps struct {
	Store  *Store
	Remote Remote
	Feed   FeedSource
	Log    *zap.Logger

	// Metrics may be nil.
	Metrics *Metrics

	// RefreshTimeout bounds a single fetch; zero means the default.
	RefreshTimeout time.Duration
}

func NewController(deps ControllerDeps) *Controller {
	timeout := deps.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}

	return &Controller{
		store:          deps.Store,
		remote:         deps.Remote,
		feed:           deps.Feed,
		log:            deps.Log,
		metrics:        deps.Metrics,
		refreshTimeout: timeout,
		notifs:         make(chan Notification, notificationBuffer),
	}
}

// Start kicks off the initial refresh and registers with the change feed.
// The refresh runs in the background: the store already holds the cached
// snapshot, so the UI can paint before the first fetch lands.
func (c *Controller) Start(ctx context.Context) error {
	c.requestRefresh()

	sub, err := c.feed.Subscribe(c.HandleEvent)
	if err != nil {
		return err
	}
	c.sub = sub
	return nil
}

// Stop closes the feed subscription and waits for an in-flight refresh to
// drain, up to the context deadline.
func (c *Controller) Stop(ctx context.Context) error {
	if c.sub != nil {
		_ = c.sub.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot exposes the store's current best-known state to the UI layer.
func (c *Controller) Snapshot() []Product {
	return c.store.Snapshot()
}

// Notifications is the toast stream for the UI layer. Entries are dropped,
// not blocked on, when the consumer falls behind.
func (c *Controller) Notifications() <-chan Notification {
	return c.notifs
}

// AddProduct creates the product remotely and triggers a refresh on success.
// The refresh is self-triggered on purpose: convergence must not depend on
// the change feed echoing the mutation back. A failed create leaves the
// snapshot exactly as it was.
func (c *Controller) AddProduct(ctx context.Context, p NewProduct) (Product, error) {
	created, err := c.remote.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}

	c.requestRefresh()
	return created, nil
}

// RemoveProduct deletes the product remotely and triggers a refresh on
// success. Same contract as AddProduct.
func (c *Controller) RemoveProduct(ctx context.Context, id int64) error {
	if err := c.remote.Delete(ctx, id); err != nil {
		return err
	}

	c.requestRefresh()
	return nil
}

// HandleEvent reacts to a change event: always refetch, and surface a
// notification when the kind is presentable. Events are triggers, not
// deltas, so the snapshot is never patched from the event itself.
func (c *Controller) HandleEvent(ev ChangeEvent) {
	if c.metrics != nil {
		c.metrics.Events.WithLabelValues(string(ev.Kind)).Inc()
	}

	c.requestRefresh()

	n, ok := notificationFor(ev)
	if !ok {
		return
	}

	select {
	case c.notifs <- n:
	default:
		c.log.Warn("notification dropped, consumer behind", zap.String("message", n.Message))
	}
}

// requestRefresh coalesces concurrent triggers. If a refresh is already in
// flight the request is recorded as owed and satisfied by one re-run after
// the current fetch completes; N triggers during one fetch cost at most one
// extra fetch.
func (c *Controller) requestRefresh() {
	c.mu.Lock()
	if c.inFlight {
		c.owed = true
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.Coalesced.Inc()
		}
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.refreshLoop()
}

// refreshLoop is the only writer to the store while it runs. It keeps
// fetching until no refresh is owed, then releases the in-flight slot.
func (c *Controller) refreshLoop() {
	defer c.wg.Done()

	for {
		c.refreshOnce()

		c.mu.Lock()
		if !c.owed {
			c.inFlight = false
			c.mu.Unlock()
			return
		}
		c.owed = false
		c.mu.Unlock()
	}
}

func (c *Controller) refreshOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()

	products, err := c.remote.FetchAll(ctx)
	if err != nil {
		// Stale data beats a blank screen: keep the last-known-good
		// snapshot and let a later trigger converge the view.
		c.log.Warn("catalog refresh failed", zap.Error(err))
		if c.metrics != nil {
			c.metrics.Refreshes.WithLabelValues("error").Inc()
		}
		return
	}

	c.store.Replace(ctx, products)
	if c.metrics != nil {
		c.metrics.Refreshes.WithLabelValues("ok").Inc()
	}
}
