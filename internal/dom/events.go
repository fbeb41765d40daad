package dom

import "golang.org/x/net/html"

// Event is a dispatched DOM event
type Event struct {
	Type          string
	Target        *html.Node
	CurrentTarget *html.Node

	// Mouse state, meaningful for click events
	Button int
	Ctrl   bool
	Shift  bool
	Alt    bool
	Meta   bool

	defaultPrevented bool
	stopped          bool
}

// MouseButton values
const (
	ButtonLeft   = 0
	ButtonMiddle = 1
	ButtonRight  = 2
)

// PreventDefault cancels the default action
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether a listener cancelled the default action
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// StopPropagation stops bubbling after the current node
func (e *Event) StopPropagation() {
	e.stopped = true
}

// HasModifier reports whether any modifier key was held
func (e *Event) HasModifier() bool {
	return e.Ctrl || e.Shift || e.Alt || e.Meta
}

// Listener handles an event
type Listener func(*Event)

// AddEventListener binds l to events of type typ on n
func (d *Document) AddEventListener(n *html.Node, typ string, l Listener) {
	byType, ok := d.listeners[n]
	if !ok {
		byType = make(map[string][]Listener)
		d.listeners[n] = byType
	}
	byType[typ] = append(byType[typ], l)
}

// RemoveEventListeners drops every listener of type typ on n
func (d *Document) RemoveEventListeners(n *html.Node, typ string) {
	if byType, ok := d.listeners[n]; ok {
		delete(byType, typ)
		if len(byType) == 0 {
			delete(d.listeners, n)
		}
	}
}

// SetDefaultAction installs the handler run for events nobody prevented
func (d *Document) SetDefaultAction(fn func(*Event)) {
	d.defaultAction = fn
}

// Dispatch bubbles ev from its target up to the document node, then runs the
// default action unless a listener prevented it.
func (d *Document) Dispatch(ev *Event) {
	for n := ev.Target; n != nil && !ev.stopped; n = n.Parent {
		listeners := d.listeners[n][ev.Type]
		if len(listeners) == 0 {
			continue
		}
		ev.CurrentTarget = n
		for _, l := range append([]Listener(nil), listeners...) {
			l(ev)
		}
	}
	ev.CurrentTarget = nil
	if !ev.defaultPrevented && d.defaultAction != nil {
		d.defaultAction(ev)
	}
}

// Click dispatches a plain left-button click on target
func (d *Document) Click(target *html.Node) *Event {
	ev := &Event{Type: "click", Target: target, Button: ButtonLeft}
	d.Dispatch(ev)
	return ev
}

// Prune forgets listeners bound to nodes that left the document
func (d *Document) Prune() {
	for n := range d.listeners {
		if n != d.root && !d.Attached(n) {
			delete(d.listeners, n)
		}
	}
}
