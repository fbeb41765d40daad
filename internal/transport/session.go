// Package transport maintains the duplex channel to the server.
//
// A Session dials a websocket endpoint and keeps it alive: whenever the
// connection drops it reconnects with exponential backoff. Outbound messages
// are best effort; anything sent while the channel is down is dropped, never
// queued.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/reactor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/reactor/internal/protocol"
)

// DefaultPath is the endpoint path segment the server listens on
const DefaultPath = "__reactor__"

var (
	ErrAlreadyOpen = errors.New("session already opened")
	ErrScheme      = errors.New("page scheme has no websocket equivalent")
)

// State is the channel state
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Handler receives channel events. Calls come from the session goroutine,
// one at a time.
type Handler interface {
	OnOpen()
	OnClose(err error)
	OnMessage(data []byte)
}

// Options configures a session
type Options struct {
	Backoff          resilience.Backoff
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Header           http.Header
	Jar              http.CookieJar
	Logger           *zap.Logger
	Metrics          *monitoring.Metrics
}

// Session is a self-healing websocket connection
type Session struct {
	handler Handler
	opts    Options
	logger  *zap.Logger
	dialer  *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	cancel   context.CancelFunc
	done     chan struct{}
	connects int

	writeMu sync.Mutex
}

// New creates an idle session
func New(handler Handler, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Session{
		handler: handler,
		opts:    opts,
		logger:  opts.Logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			Jar:              opts.Jar,
		},
	}
}

// Endpoint derives the websocket URL for a page: same host, ws for http
// pages and wss for https pages.
func Endpoint(page *url.URL, path string) (string, error) {
	if page == nil {
		return "", fmt.Errorf("endpoint: %w", ErrScheme)
	}
	var scheme string
	switch strings.ToLower(page.Scheme) {
	case "http":
		scheme = "ws"
	case "https":
		scheme = "wss"
	default:
		return "", fmt.Errorf("endpoint for %q: %w", page.Scheme, ErrScheme)
	}
	if path == "" {
		path = DefaultPath
	}
	u := url.URL{Scheme: scheme, Host: page.Host, Path: "/" + strings.TrimPrefix(path, "/")}
	return u.String(), nil
}

// Open starts connecting to endpoint in the background and keeps the
// channel up until ctx is done or Close is called.
func (s *Session) Open(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrAlreadyOpen
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateConnecting
	go s.run(ctx, endpoint)
	return nil
}

// IsOpen reports whether messages can be sent right now
func (s *Session) IsOpen() bool {
	return s.State() == StateOpen
}

// State returns the current channel state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send writes env if the channel is open and drops it otherwise
func (s *Session) Send(env protocol.Envelope) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		s.logger.Debug("dropping message, channel not open", zap.String("command", env.Command))
		s.opts.Metrics.MessageDropped(env.Command)
		return
	}

	data, err := protocol.Encode(env)
	if err != nil {
		s.logger.Error("failed to encode message", zap.String("command", env.Command), zap.Error(err))
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// the read loop notices the broken connection and reconnects
		s.logger.Warn("write failed", zap.String("command", env.Command), zap.Error(err))
		_ = conn.Close()
		return
	}
	s.opts.Metrics.MessageOut(env.Command)
}

// Close stops reconnecting, closes the connection and waits for the
// session goroutine to exit
func (s *Session) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (s *Session) run(ctx context.Context, endpoint string) {
	defer func() {
		s.setState(nil, StateClosed)
		close(s.done)
	}()

	attempt := 0
	for {
		s.setState(nil, StateConnecting)
		conn, _, err := s.dialer.DialContext(ctx, endpoint, s.opts.Header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := s.opts.Backoff.Delay(attempt)
			attempt++
			s.logger.Warn("connect failed", zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Duration("retry_in", delay), zap.Error(err))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		attempt = 0

		s.connected(conn)
		err = s.read(ctx, conn)
		s.setState(nil, StateClosed)
		_ = conn.Close()
		s.opts.Metrics.SetConnected(false)
		s.logger.Info("WS: CLOSE", zap.Error(err))
		s.handler.OnClose(err)

		if ctx.Err() != nil || !sleep(ctx, s.opts.Backoff.Delay(0)) {
			return
		}
	}
}

func (s *Session) connected(conn *websocket.Conn) {
	s.mu.Lock()
	s.connects++
	again := s.connects > 1
	s.mu.Unlock()

	s.setState(conn, StateOpen)
	s.opts.Metrics.SetConnected(true)
	if again {
		s.opts.Metrics.Reconnected()
	}
	s.logger.Info("WS: OPEN", zap.Bool("reconnect", again))
	s.handler.OnOpen()
}

func (s *Session) read(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if typ == websocket.TextMessage || typ == websocket.BinaryMessage {
			s.handler.OnMessage(data)
		}
	}
}

func (s *Session) setState(conn *websocket.Conn, state State) {
	s.mu.Lock()
	s.conn = conn
	s.state = state
	s.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
