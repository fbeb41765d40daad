// Package router decodes inbound server messages and dispatches them to the
// component registry, the document and the navigator.
//
// Visual commands are applied on the next paint frame, so bursts of updates
// settle together and focus moves after the subtree has been patched. Frame
// callbacks run in scheduling order, which keeps each component's updates in
// arrival order.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/reactor/internal/diff"
	"github.com/GriffinCanCode/reactor/internal/dom"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/reactor/internal/protocol"
)

var (
	// ErrUnknownCommand is a protocol violation for commands this client does not speak
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnknownURLCommand is returned for url_change sub-commands other than redirect, replace and push
	ErrUnknownURLCommand = errors.New("unknown url_change command")
)

// Scheduler defers work to the next paint frame
type Scheduler interface {
	RequestFrame(fn func())
}

// Components is the registry surface the router drives
type Components interface {
	Render(id string, tokens diff.Diff) error
	Reconcile(root *html.Node)
	Generation() uint64
}

// Navigator is the navigation surface the router drives
type Navigator interface {
	Load(rawURL string)
	Push(rawURL string) error
	Replace(rawURL string) error
	Back() bool
	SetQueryString(qs string)
	MergeURLParams(params map[string]interface{})
}

type handlerFunc func(command string, payload json.RawMessage) error

// Router dispatches inbound envelopes
type Router struct {
	doc        *dom.Document
	frames     Scheduler
	components Components
	navigator  Navigator
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	handlers   map[string]handlerFunc
}

// New creates a router
func New(doc *dom.Document, frames Scheduler, components Components, navigator Navigator, logger *zap.Logger, metrics *monitoring.Metrics) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		doc:        doc,
		frames:     frames,
		components: components,
		navigator:  navigator,
		logger:     logger,
		metrics:    metrics,
	}
	r.handlers = map[string]handlerFunc{
		protocol.CommandRender:         r.render,
		protocol.CommandAppend:         r.insert,
		protocol.CommandPrepend:        r.insert,
		protocol.CommandInsertAfter:    r.insert,
		protocol.CommandInsertBefore:   r.insert,
		protocol.CommandReplaceWith:    r.insert,
		protocol.CommandRemove:         r.remove,
		protocol.CommandFocusOn:        r.focusOn,
		protocol.CommandScrollIntoView: r.scrollIntoView,
		protocol.CommandURLChange:      r.urlChange,
		protocol.CommandSetQueryString: r.setQueryString,
		protocol.CommandSetURLParams:   r.setURLParams,
		protocol.CommandBack:           r.back,
	}
	return r
}

// Commands lists the inbound commands the router understands
func (r *Router) Commands() []string {
	out := make([]string, 0, len(r.handlers))
	for c := range r.handlers {
		out = append(out, c)
	}
	return out
}

// Handle processes one raw inbound frame. Errors are protocol violations:
// they are logged and counted, and the offending message is skipped.
func (r *Router) Handle(data []byte) error {
	in, err := protocol.Decode(data)
	if err != nil {
		r.violation("envelope", "", err)
		return err
	}
	r.metrics.MessageIn(in.Command)

	h, ok := r.handlers[in.Command]
	if !ok {
		err := fmt.Errorf("%w %q", ErrUnknownCommand, in.Command)
		r.violation("command", in.Command, err)
		return err
	}

	r.logger.Debug("<<< "+strings.ToUpper(in.Command), zap.ByteString("payload", in.Payload))
	if err := h(in.Command, in.Payload); err != nil {
		r.violation("payload", in.Command, err)
		return err
	}
	return nil
}

func (r *Router) violation(kind, command string, err error) {
	r.metrics.Violation(kind)
	r.logger.Warn("protocol violation", zap.String("kind", kind), zap.String("command", command), zap.Error(err))
}
