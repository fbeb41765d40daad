// Package client wires the runtime together: one document, one event loop,
// the component registry, the navigator, the inbound router and the duplex
// channel.
//
// Everything that touches the document runs on the loop. Transport events
// and caller requests are posted onto it.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"

	"github.com/GriffinCanCode/reactor/internal/dom"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/config"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/logging"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/reactor/internal/loop"
	"github.com/GriffinCanCode/reactor/internal/navigation"
	"github.com/GriffinCanCode/reactor/internal/registry"
	"github.com/GriffinCanCode/reactor/internal/router"
	"github.com/GriffinCanCode/reactor/internal/transport"
)

// ClientHeader carries the client instance id on the channel handshake
const ClientHeader = "X-Reactor-Client"

var (
	// ErrNotStarted is returned when the client is used before Start
	ErrNotStarted = errors.New("client not started")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("client closed")
)

// Client is a headless reactor client for one page
type Client struct {
	id      string
	cfg     *config.Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	doc       *dom.Document
	loop      *loop.Loop
	registry  *registry.Registry
	navigator *navigation.Navigator
	router    *router.Router
	session   *transport.Session
	fetcher   *navigation.HTTPFetcher

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	started  bool
	closed   bool
	debounce *time.Timer
	errs     []error
}

// New builds an idle client. A nil cfg uses the defaults.
func New(cfg *config.Config, logger *zap.Logger, metrics *monitoring.Metrics) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		id:      uuid.NewString(),
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		doc:     dom.New(nil),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.logger = logger.With(zap.String("client", c.id))

	c.loop = loop.New(cfg.Client.FrameInterval, logging.Component(c.logger, "loop"))

	header := http.Header{}
	header.Set(ClientHeader, c.id)
	c.session = transport.New(events{c}, transport.Options{
		Backoff:          resilience.Backoff{Min: cfg.Transport.ReconnectMin, Max: cfg.Transport.ReconnectMax},
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		Header:           header,
		Jar:              jar,
		Logger:           logging.Component(c.logger, "transport"),
		Metrics:          metrics,
	})

	c.registry = registry.New(c.doc, c.session, logging.Component(c.logger, "registry"), metrics)

	c.fetcher = navigation.NewHTTPFetcher(navigation.FetchOptions{
		Timeout:   cfg.Fetch.Timeout,
		Retries:   cfg.Fetch.Retries,
		RPS:       cfg.Fetch.RPS,
		UserAgent: cfg.Fetch.UserAgent,
		TripAfter: int(cfg.Fetch.TripAfter),
		Cooldown:  cfg.Fetch.CoolDown,
		Jar:       jar,
		Logger:    logging.Component(c.logger, "fetch"),
		Metrics:   metrics,
	})

	behaviors := c.registry.Behaviors()
	c.navigator = navigation.New(c.doc, c.loop, c.registry, c.fetcher, navigation.Options{
		Boost:     cfg.Navigation.Boost,
		CacheSize: cfg.Navigation.CacheSize,
		Context:   ctx,
		Sender:    c.session,
		Logger:    logging.Component(c.logger, "navigation"),
		Metrics:   metrics,
		OnError:   c.recordError,
		OnExternal: func(u *url.URL) {
			c.logger.Info("navigation left the application", zap.String("url", u.String()))
		},
		OnInstall: func(doc *dom.Document) {
			behaviors.DeclareFromDocument(doc)
		},
	})

	c.router = router.New(c.doc, c.loop, c.registry, c.navigator, logging.Component(c.logger, "router"), metrics)
	return c, nil
}

// ID returns the client instance id sent on the channel handshake
func (c *Client) ID() string { return c.id }

// Document returns the live document. Touch it only on the loop.
func (c *Client) Document() *dom.Document { return c.doc }

// Registry returns the component registry
func (c *Client) Registry() *registry.Registry { return c.registry }

// Navigator returns the navigator
func (c *Client) Navigator() *navigation.Navigator { return c.navigator }

// Loop returns the event loop
func (c *Client) Loop() *loop.Loop { return c.loop }

// Session returns the duplex channel
func (c *Client) Session() *transport.Session { return c.session }

// Metrics returns the metrics collector, possibly nil
func (c *Client) Metrics() *monitoring.Metrics { return c.metrics }

// Start fetches pageURL, installs it and opens the channel. It must be
// called before Run.
func (c *Client) Start(ctx context.Context, pageURL string) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.started:
		c.mu.Unlock()
		return transport.ErrAlreadyOpen
	}
	c.started = true
	c.mu.Unlock()

	if pageURL == "" {
		pageURL = c.cfg.Client.URL
	}
	if err := c.navigator.Open(ctx, pageURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", pageURL, err)
	}

	endpoint, err := transport.Endpoint(c.doc.Location(), c.cfg.Transport.Path)
	if err != nil {
		return err
	}
	if err := c.session.Open(c.ctx, endpoint); err != nil {
		return err
	}
	c.logger.Info("client started",
		zap.String("url", c.doc.Location().String()),
		zap.String("endpoint", endpoint),
		zap.Int("components", c.registry.Len()))
	return nil
}

// Run drives the loop until ctx is done or the client is closed
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return c.loop.Run(ctx)
}

// Post queues fn on the loop
func (c *Client) Post(fn func()) {
	c.loop.Post(fn)
}

// Do runs fn on the loop and waits for it. The loop must be running.
func (c *Client) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	c.loop.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	}
}

// Send dispatches a user event for the component containing el
func (c *Client) Send(el *html.Node, command string, args map[string]interface{}) {
	c.loop.Post(func() {
		if !c.registry.Send(el, command, args) {
			c.logger.Debug("user event outside any component dropped", zap.String("command", command))
		}
	})
}

// Dispatch sends a user event on behalf of component id
func (c *Client) Dispatch(id, command string, args map[string]interface{}) {
	c.loop.Post(func() {
		c.registry.Dispatch(id, command, args, nil)
	})
}

// Click dispatches a click on el, following links the way a browser would
func (c *Client) Click(el *html.Node) {
	c.loop.Post(func() {
		c.doc.Click(el)
	})
}

// Debounce returns a scheduler of delayed calls. All schedulers share one
// timer: a call cancels whatever is pending, and only the last one runs, on
// the loop.
func (c *Client) Debounce(delay time.Duration) func(fn func()) {
	return func(fn func()) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.debounce != nil {
			c.debounce.Stop()
		}
		c.debounce = time.AfterFunc(delay, func() {
			c.loop.Post(fn)
		})
	}
}

// Errors returns the navigation failures seen so far
func (c *Client) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

// Close stops the channel, pending timers and background fetches
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.mu.Unlock()

	c.cancel()
	err := c.session.Close()
	c.navigator.Shutdown()
	c.logger.Info("client closed")
	return err
}

func (c *Client) recordError(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

// events forwards channel events onto the loop
type events struct {
	c *Client
}

func (e events) OnOpen() {
	e.c.loop.Post(func() {
		e.c.registry.Rejoin(nil)
	})
}

func (e events) OnClose(err error) {
	if err != nil {
		e.c.logger.Debug("channel closed", zap.Error(err))
	}
	e.c.loop.Post(e.c.registry.Disconnected)
}

func (e events) OnMessage(data []byte) {
	e.c.loop.Post(func() {
		_ = e.c.router.Handle(data)
	})
}
