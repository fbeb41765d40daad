// Package registry tracks the server-driven components mounted in the
// document and keeps the server informed of their lifecycle.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/reactor/internal/diff"
	"github.com/GriffinCanCode/reactor/internal/dom"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/reactor/internal/patch"
	"github.com/GriffinCanCode/reactor/internal/protocol"
)

// Marker attributes
const (
	MarkerAttr        = "reactor-component"
	NameAttr          = "data-name"
	StateAttr         = "data-state"
	DisconnectedClass = "reactor-disconnected"
)

// ErrUnknownComponent is returned when an update targets an id that is not mounted
var ErrUnknownComponent = errors.New("unknown component")

var markerExpr = xpath.MustCompile("descendant-or-self::*[@" + MarkerAttr + "]")

// Sender delivers outbound protocol messages
type Sender interface {
	Send(env protocol.Envelope)
}

// Component is one mounted server-tracked component
type Component struct {
	ID       string
	Name     string
	ParentID string
	Node     *html.Node

	// Fragments is the baseline the next render diff applies to
	Fragments []string

	decl *Declaration
}

// Declaration returns the capability table entry bound to this component, if any
func (c *Component) Declaration() *Declaration {
	return c.decl
}

// IsRoot reports whether n anchors a component
func IsRoot(n *html.Node) bool {
	return dom.IsElement(n) && dom.HasAttr(n, MarkerAttr) && dom.ID(n) != ""
}

// Registry is the set of live components. It is not safe for concurrent
// use; all calls happen on the event loop.
type Registry struct {
	doc        *dom.Document
	sender     Sender
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	patcher    *patch.Patcher
	behaviors  *Behaviors
	components map[string]*Component
	// generation advances on every disconnect
	generation uint64
}

// New creates an empty registry bound to doc
func New(doc *dom.Document, sender Sender, logger *zap.Logger, metrics *monitoring.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		doc:        doc,
		sender:     sender,
		logger:     logger,
		metrics:    metrics,
		behaviors:  NewBehaviors(),
		components: make(map[string]*Component),
	}
	r.patcher = patch.New(doc, r, logger.Named("patch"))
	return r
}

// Patcher returns the patcher wired to this registry's swap hooks
func (r *Registry) Patcher() *patch.Patcher {
	return r.patcher
}

// Behaviors returns the capability table
func (r *Registry) Behaviors() *Behaviors {
	return r.behaviors
}

// Get returns the component with the given id
func (r *Registry) Get(id string) (*Component, bool) {
	c, ok := r.components[id]
	return c, ok
}

// Len returns the number of live components
func (r *Registry) Len() int {
	return len(r.components)
}

// IDs returns the live component ids, sorted
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.components))
	for id := range r.components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reconcile brings the registry in line with the document. Components whose
// node left the document (or lost its marker or id) leave first, sorted by
// id; then component roots under root that are not yet tracked join in
// document order. Calling it again without a document change sends nothing.
func (r *Registry) Reconcile(root *html.Node) {
	if root == nil {
		root = r.doc.Root()
	}

	var gone []string
	for id, c := range r.components {
		if !r.present(c) {
			gone = append(gone, id)
		}
	}
	sort.Strings(gone)
	for _, id := range gone {
		r.leave(id)
	}

	r.joinUnder(root)
	r.metrics.SetComponents(len(r.components))
}

func (r *Registry) present(c *Component) bool {
	return IsRoot(c.Node) && dom.ID(c.Node) == c.ID && r.doc.Attached(c.Node)
}

func (r *Registry) joinUnder(root *html.Node) {
	var fresh []*Component
	isFresh := make(map[*html.Node]*Component)

	for _, n := range htmlquery.QuerySelectorAll(root, markerExpr) {
		if !IsRoot(n) || !r.doc.Attached(n) {
			continue
		}
		id := dom.ID(n)
		if _, known := r.components[id]; known {
			continue
		}
		c := r.mount(n)
		fresh = append(fresh, c)
		isFresh[n] = c
	}

	// Fresh components nested in another fresh component ride along in
	// the outermost one's child manifest.
	children := make(map[*Component][]protocol.Child)
	var heads []*Component
	for _, c := range fresh {
		head := c
		for n := dom.NearestAncestor(c.Node, IsRoot); n != nil; n = dom.NearestAncestor(n, IsRoot) {
			if outer, ok := isFresh[n]; ok {
				head = outer
			}
		}
		if head == c {
			heads = append(heads, c)
			continue
		}
		children[head] = append(children[head], protocol.Child{
			ID:       c.ID,
			Name:     c.Name,
			ParentID: optional(c.ParentID),
			State:    dom.AttrOr(c.Node, StateAttr, ""),
		})
	}

	for _, c := range heads {
		r.join(c, children[c])
	}
	for _, c := range fresh {
		r.behaviors.joined(c)
	}
}

func (r *Registry) mount(n *html.Node) *Component {
	c := &Component{
		ID:   dom.ID(n),
		Name: dom.AttrOr(n, NameAttr, ""),
		Node: n,
	}
	if parent := dom.NearestAncestor(n, IsRoot); parent != nil {
		c.ParentID = dom.ID(parent)
	}
	c.decl = r.behaviors.Lookup(n)
	r.components[c.ID] = c
	return c
}

func (r *Registry) join(c *Component, children []protocol.Child) {
	dom.RemoveClass(c.Node, DisconnectedClass)
	r.logger.Debug(">>> JOIN", zap.String("id", c.ID), zap.String("name", c.Name), zap.Int("children", len(children)))
	r.send(protocol.CommandJoin, protocol.Join{
		Name:     c.Name,
		ParentID: optional(c.ParentID),
		State:    dom.AttrOr(c.Node, StateAttr, ""),
		Children: children,
	})
	r.metrics.Joined()
}

func (r *Registry) leave(id string) {
	c, ok := r.components[id]
	if !ok {
		return
	}
	delete(r.components, id)
	r.logger.Debug(">>> LEAVE", zap.String("id", id))
	r.send(protocol.CommandLeave, protocol.Leave{ID: id})
	r.metrics.Left()
	r.behaviors.left(c)
}

func (r *Registry) send(command string, payload interface{}) {
	if r.sender == nil {
		return
	}
	r.sender.Send(protocol.Envelope{Command: command, Payload: payload})
}

// Render applies a diff to a component's baseline and patches its node with
// the result. A rejected diff leaves both the baseline and the node untouched.
func (r *Registry) Render(id string, tokens diff.Diff) error {
	c, ok := r.components[id]
	if !ok {
		return fmt.Errorf("render %q: %w", id, ErrUnknownComponent)
	}

	fragments, err := diff.Decode(tokens, c.Fragments)
	if err != nil {
		r.metrics.Violation("diff")
		return fmt.Errorf("render %q: %w", id, err)
	}

	res, err := r.patcher.Apply(c.Node, diff.Reconstruct(fragments), patch.Options{})
	if err != nil {
		return fmt.Errorf("render %q: %w", id, err)
	}
	c.Fragments = fragments
	if len(res.Swapped) > 0 || len(res.Joined) > 0 {
		r.logger.Debug("components swapped", zap.String("id", id),
			zap.Strings("out", res.Swapped), zap.Strings("in", res.Joined))
	}

	r.Reconcile(c.Node)
	return nil
}

// IsComponentRoot implements patch.Hooks
func (r *Registry) IsComponentRoot(n *html.Node) bool {
	return IsRoot(n)
}

// BeforeSwap implements patch.Hooks. The outgoing component leaves before
// its replacement is inserted.
func (r *Registry) BeforeSwap(n *html.Node) {
	id := dom.ID(n)
	if c, ok := r.components[id]; ok && c.Node == n {
		r.leave(id)
	}
}

// Disconnected marks every tracked component as offline and forgets them all.
// Nothing is sent; the channel is already gone.
func (r *Registry) Disconnected() {
	for _, c := range r.components {
		dom.AddClass(c.Node, DisconnectedClass)
	}
	r.components = make(map[string]*Component)
	r.generation++
	r.metrics.SetComponents(0)
}

// Generation identifies the current connection. Work scheduled under an
// older generation refers to baselines that no longer exist.
func (r *Registry) Generation() uint64 {
	return r.generation
}

// Rejoin resynchronizes after a (re)connection: every component present
// under root joins again from scratch.
func (r *Registry) Rejoin(root *html.Node) {
	if root == nil {
		root = r.doc.Root()
	}
	r.components = make(map[string]*Component)
	for _, n := range htmlquery.QuerySelectorAll(root, markerExpr) {
		dom.RemoveClass(n, DisconnectedClass)
	}
	r.Reconcile(root)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
