package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/reactor/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/reactor/internal/protocol"
)

type chanHandler struct {
	opens    chan struct{}
	closes   chan error
	messages chan []byte
}

func newChanHandler() *chanHandler {
	return &chanHandler{
		opens:    make(chan struct{}, 8),
		closes:   make(chan error, 8),
		messages: make(chan []byte, 8),
	}
}

func (h *chanHandler) OnOpen()               { h.opens <- struct{}{} }
func (h *chanHandler) OnClose(err error)     { h.closes <- err }
func (h *chanHandler) OnMessage(data []byte) { h.messages <- data }

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

var upgrader = websocket.Upgrader{}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/" + DefaultPath
}

func fastOptions() Options {
	return Options{Backoff: resilience.Backoff{Min: 5 * time.Millisecond, Max: 20 * time.Millisecond}}
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "http page", page: "http://app.test:8000/todo?x=1", path: "", want: "ws://app.test:8000/__reactor__"},
		{name: "https page", page: "https://app.test/", path: "live", want: "wss://app.test/live"},
		{name: "leading slash", page: "https://app.test/", path: "/live", want: "wss://app.test/live"},
		{name: "file page", page: "file:///tmp/x.html", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.page)
			require.NoError(t, err)
			got, err := Endpoint(u, tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrScheme)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionExchangesMessages(t *testing.T) {
	received := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+DefaultPath, r.URL.Path)
		assert.Equal(t, "abc", r.Header.Get("X-Reactor-Client"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- data
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"command":"back","payload":{}}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	h := newChanHandler()
	opts := fastOptions()
	opts.Header = http.Header{"X-Reactor-Client": []string{"abc"}}
	s := New(h, opts)
	require.NoError(t, s.Open(context.Background(), wsURL(server.URL)))
	defer s.Close()

	waitFor(t, h.opens)
	assert.True(t, s.IsOpen())

	s.Send(protocol.Envelope{Command: protocol.CommandLeave, Payload: protocol.Leave{ID: "c1"}})
	assert.JSONEq(t, `{"command":"leave","payload":{"id":"c1"}}`, string(waitFor(t, received)))
	assert.JSONEq(t, `{"command":"back","payload":{}}`, string(waitFor(t, h.messages)))

	require.NoError(t, s.Close())
	waitFor(t, h.closes)
	assert.Equal(t, StateClosed, s.State())
}

func TestSendWhileClosedIsDropped(t *testing.T) {
	s := New(newChanHandler(), fastOptions())
	assert.False(t, s.IsOpen())
	assert.NotPanics(t, func() {
		s.Send(protocol.Envelope{Command: protocol.CommandJoin, Payload: protocol.Join{Name: "x"}})
	})
	assert.NoError(t, s.Close())
}

func TestSessionReconnects(t *testing.T) {
	var connections int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if atomic.AddInt32(&connections, 1) == 1 {
			// drop the first connection straight away
			return
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	h := newChanHandler()
	s := New(h, fastOptions())
	require.NoError(t, s.Open(context.Background(), wsURL(server.URL)))
	defer s.Close()

	waitFor(t, h.opens)
	waitFor(t, h.closes)
	waitFor(t, h.opens)
	assert.Equal(t, int32(2), atomic.LoadInt32(&connections))
}

func TestOpenTwice(t *testing.T) {
	s := New(newChanHandler(), fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Open(ctx, "ws://127.0.0.1:1/"+DefaultPath))
	assert.ErrorIs(t, s.Open(ctx, "ws://127.0.0.1:1/"+DefaultPath), ErrAlreadyOpen)
	require.NoError(t, s.Close())
}
