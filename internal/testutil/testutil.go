// Package testutil provides shared test doubles for the reactor packages.
package testutil

import (
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/reactor/internal/dom"
	"github.com/GriffinCanCode/reactor/internal/protocol"
)

// MockSender is a mock outbound channel that also records every envelope.
type MockSender struct {
	mock.Mock

	mu   sync.Mutex
	sent []protocol.Envelope
}

// NewMockSender creates a sender that accepts any envelope
func NewMockSender(t *testing.T) *MockSender {
	t.Helper()
	m := new(MockSender)
	m.On("Send", mock.Anything).Maybe()
	return m
}

// Send mocks the Send method.
func (m *MockSender) Send(env protocol.Envelope) {
	m.mu.Lock()
	m.sent = append(m.sent, env)
	m.mu.Unlock()
	m.Called(env)
}

// Sent returns a copy of the recorded envelopes
func (m *MockSender) Sent() []protocol.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]protocol.Envelope(nil), m.sent...)
}

// Commands returns the recorded commands in order
func (m *MockSender) Commands() []string {
	var out []string
	for _, env := range m.Sent() {
		out = append(out, env.Command)
	}
	return out
}

// Reset forgets recorded envelopes
func (m *MockSender) Reset() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}

// Document parses a page with the given body markup located at loc
func Document(t *testing.T, loc, body string) *dom.Document {
	t.Helper()
	u, err := url.Parse(loc)
	require.NoError(t, err)
	doc, err := dom.Parse("<!DOCTYPE html><html><head><title>test</title></head><body>"+body+"</body></html>", u)
	require.NoError(t, err)
	return doc
}
