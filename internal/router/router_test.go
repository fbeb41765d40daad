package router

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/reactor/internal/diff"
	"github.com/GriffinCanCode/reactor/internal/dom"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/reactor/internal/loop"
	"github.com/GriffinCanCode/reactor/internal/protocol"
	"github.com/GriffinCanCode/reactor/internal/registry"
	reactortest "github.com/GriffinCanCode/reactor/internal/testutil"
)

type mockNavigator struct {
	mock.Mock
}

func (m *mockNavigator) Load(rawURL string) { m.Called(rawURL) }

func (m *mockNavigator) Push(rawURL string) error { return m.Called(rawURL).Error(0) }

func (m *mockNavigator) Replace(rawURL string) error { return m.Called(rawURL).Error(0) }

func (m *mockNavigator) Back() bool { return m.Called().Bool(0) }

func (m *mockNavigator) SetQueryString(qs string) { m.Called(qs) }

func (m *mockNavigator) MergeURLParams(params map[string]interface{}) { m.Called(params) }

type harness struct {
	router  *Router
	doc     *dom.Document
	reg     *registry.Registry
	loop    *loop.Loop
	sender  *reactortest.MockSender
	nav     *mockNavigator
	metrics *monitoring.Metrics
}

func setup(t *testing.T, body string) *harness {
	t.Helper()
	doc := reactortest.Document(t, "http://app.test/", body)
	sender := reactortest.NewMockSender(t)
	metrics := monitoring.NewMetrics()
	reg := registry.New(doc, sender, nil, metrics)
	reg.Reconcile(nil)
	sender.Reset()

	lp := loop.New(0, nil)
	nav := &mockNavigator{}
	t.Cleanup(func() { nav.AssertExpectations(t) })
	return &harness{
		router:  New(doc, lp, reg, nav, nil, metrics),
		doc:     doc,
		reg:     reg,
		loop:    lp,
		sender:  sender,
		nav:     nav,
		metrics: metrics,
	}
}

func TestRenderWaitsForFrame(t *testing.T) {
	h := setup(t, `<div id="c1" reactor-component data-name="X">old</div>`)

	require.NoError(t, h.router.Handle([]byte(`{"command":"render","payload":{"id":"c1","diff":["<p>hi</p>"]}}`)))
	assert.Equal(t, "old", dom.InnerHTML(h.doc.ByID("c1")))

	h.loop.Drain()
	assert.Equal(t, "<p>hi</p>", dom.InnerHTML(h.doc.ByID("c1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.MessagesIn.WithLabelValues("render")))
}

func TestRendersApplyInArrivalOrder(t *testing.T) {
	h := setup(t, `<div id="c1" reactor-component data-name="X"></div>`)

	require.NoError(t, h.router.Handle([]byte(`{"command":"render","payload":{"id":"c1","diff":["<ul>","<li>a</li>","</ul>"]}}`)))
	require.NoError(t, h.router.Handle([]byte(`{"command":"render","payload":{"id":"c1","diff":[2,"<li>b</li>",1]}}`)))
	h.loop.Drain()

	assert.Equal(t, "<ul> <li>a</li> <li>b</li> </ul>", dom.InnerHTML(h.doc.ByID("c1")))
}

func TestRenderViolationKeepsContent(t *testing.T) {
	h := setup(t, `<div id="c1" reactor-component data-name="X"></div>`)
	require.NoError(t, h.reg.Render("c1", diff.Diff{diff.Lit("<b>keep</b>")}))

	require.NoError(t, h.router.Handle([]byte(`{"command":"render","payload":{"id":"c1","diff":[9]}}`)))
	h.loop.Drain()

	assert.Equal(t, "<b>keep</b>", dom.InnerHTML(h.doc.ByID("c1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ProtocolViolations.WithLabelValues("diff")))
}

func TestRenderUnknownComponentIsIgnored(t *testing.T) {
	h := setup(t, ``)

	require.NoError(t, h.router.Handle([]byte(`{"command":"render","payload":{"id":"ghost","diff":["x"]}}`)))
	assert.NotPanics(t, h.loop.Drain)
}

func TestStructuralCommands(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"append", protocol.CommandAppend, `<div id="t"><i>1</i><b>new</b></div>`},
		{"prepend", protocol.CommandPrepend, `<div id="t"><b>new</b><i>1</i></div>`},
		{"insert after", protocol.CommandInsertAfter, `<div id="t"><i>1</i></div><b>new</b>`},
		{"insert before", protocol.CommandInsertBefore, `<b>new</b><div id="t"><i>1</i></div>`},
		{"replace with", protocol.CommandReplaceWith, `<b>new</b>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setup(t, `<section id="s"><div id="t"><i>1</i></div></section>`)

			msg := `{"command":"` + tt.command + `","payload":{"id":"t","html":"<b>new</b>"}}`
			require.NoError(t, h.router.Handle([]byte(msg)))
			h.loop.Drain()

			assert.Equal(t, tt.want, dom.InnerHTML(h.doc.ByID("s")))
		})
	}
}

func TestAppendJoinsInsertedComponent(t *testing.T) {
	h := setup(t, `<div id="list"></div>`)

	msg := `{"command":"append","payload":{"id":"list","html":"<div id=\"row\" reactor-component data-name=\"Row\" data-state=\"s\"></div>"}}`
	require.NoError(t, h.router.Handle([]byte(msg)))
	h.loop.Drain()

	assert.Equal(t, []protocol.Envelope{
		{Command: protocol.CommandJoin, Payload: protocol.Join{Name: "Row", State: "s"}},
	}, h.sender.Sent())
	assert.Equal(t, []string{"row"}, h.reg.IDs())
}

func TestRemoveLeavesComponent(t *testing.T) {
	h := setup(t, `<div id="wrap"><div id="c1" reactor-component data-name="X"></div></div>`)

	require.NoError(t, h.router.Handle([]byte(`{"command":"remove","payload":{"id":"wrap"}}`)))
	h.loop.Drain()

	assert.Nil(t, h.doc.ByID("wrap"))
	assert.Equal(t, []protocol.Envelope{
		{Command: protocol.CommandLeave, Payload: protocol.Leave{ID: "c1"}},
	}, h.sender.Sent())
}

func TestMissingTargetsAreIgnored(t *testing.T) {
	h := setup(t, `<p>static</p>`)

	for _, msg := range []string{
		`{"command":"append","payload":{"id":"nope","html":"<b>x</b>"}}`,
		`{"command":"remove","payload":{"id":"nope"}}`,
		`{"command":"scroll_into_view","payload":{"id":"nope"}}`,
		`{"command":"focus_on","payload":{"selector":"#nope"}}`,
	} {
		require.NoError(t, h.router.Handle([]byte(msg)))
	}
	h.loop.Drain()

	_, scrolled := h.doc.LastScroll()
	assert.False(t, scrolled)
	assert.Nil(t, h.doc.Focused())
}

func TestFocusAndScroll(t *testing.T) {
	h := setup(t, `<input id="name" name="name"><div id="bottom"></div>`)

	require.NoError(t, h.router.Handle([]byte(`{"command":"focus_on","payload":{"selector":"input[name=name]"}}`)))
	require.NoError(t, h.router.Handle([]byte(`{"command":"scroll_into_view","payload":{"id":"bottom","behavior":"smooth","block":"end"}}`)))
	h.loop.Drain()

	assert.Equal(t, h.doc.ByID("name"), h.doc.Focused())
	req, ok := h.doc.LastScroll()
	require.True(t, ok)
	assert.Equal(t, h.doc.ByID("bottom"), req.Target)
	assert.Equal(t, dom.ScrollOptions{Behavior: "smooth", Block: "end"}, req.Options)
}

func TestURLChange(t *testing.T) {
	h := setup(t, ``)
	h.nav.On("Load", "/away").Once()
	h.nav.On("Replace", "/here?x=1").Return(nil).Once()
	h.nav.On("Push", "/next").Return(nil).Once()

	require.NoError(t, h.router.Handle([]byte(`{"command":"url_change","payload":{"command":"redirect","url":"/away"}}`)))
	require.NoError(t, h.router.Handle([]byte(`{"command":"url_change","payload":{"command":"replace","url":"/here?x=1"}}`)))
	require.NoError(t, h.router.Handle([]byte(`{"command":"url_change","payload":{"command":"push","url":"/next"}}`)))

	err := h.router.Handle([]byte(`{"command":"url_change","payload":{"command":"teleport","url":"/x"}}`))
	assert.ErrorIs(t, err, ErrUnknownURLCommand)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ProtocolViolations.WithLabelValues("payload")))
}

func TestQueryCommands(t *testing.T) {
	h := setup(t, ``)
	h.nav.On("SetQueryString", "?page=2").Once()
	h.nav.On("MergeURLParams", map[string]interface{}{"q": "shoes", "page": nil}).Once()
	h.nav.On("Back").Return(true).Once()

	require.NoError(t, h.router.Handle([]byte(`{"command":"set_query_string","payload":{"qs":"?page=2"}}`)))
	require.NoError(t, h.router.Handle([]byte(`{"command":"set_url_params","payload":{"q":"shoes","page":null}}`)))
	require.NoError(t, h.router.Handle([]byte(`{"command":"back","payload":{}}`)))
}

func TestViolations(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind string
	}{
		{"malformed json", `{"command":`, "envelope"},
		{"missing command", `{"payload":{}}`, "envelope"},
		{"unknown command", `{"command":"explode","payload":{}}`, "command"},
		{"bad payload", `{"command":"render","payload":{"id":"c1","diff":[true]}}`, "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setup(t, ``)
			assert.Error(t, h.router.Handle([]byte(tt.data)))
			assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ProtocolViolations.WithLabelValues(tt.kind)))

			tasks, frames := h.loop.Pending()
			assert.Zero(t, tasks+frames)
		})
	}
}

func TestUnknownCommandError(t *testing.T) {
	h := setup(t, ``)
	assert.ErrorIs(t, h.router.Handle([]byte(`{"command":"explode"}`)), ErrUnknownCommand)
	assert.Len(t, h.router.Commands(), 13)
}

func TestRenderQueuedBeforeDisconnectIsDropped(t *testing.T) {
	h := setup(t, `<div id="c1" reactor-component data-name="X"></div>`)
	require.NoError(t, h.reg.Render("c1", diff.Diff{diff.Lit("<b>old</b>")}))

	require.NoError(t, h.router.Handle([]byte(`{"command":"render","payload":{"id":"c1","diff":[1,"<i>stale</i>"]}}`)))
	h.reg.Disconnected()
	h.reg.Rejoin(nil)
	h.loop.Drain()

	assert.Equal(t, "<b>old</b>", dom.InnerHTML(h.doc.ByID("c1")))
	assert.Zero(t, testutil.ToFloat64(h.metrics.ProtocolViolations.WithLabelValues("diff")))

	require.NoError(t, h.router.Handle([]byte(`{"command":"render","payload":{"id":"c1","diff":["<i>fresh</i>"]}}`)))
	h.loop.Drain()
	assert.Equal(t, "<i>fresh</i>", dom.InnerHTML(h.doc.ByID("c1")))
}
