package registry

import (
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/reactor/internal/dom"
	"github.com/GriffinCanCode/reactor/internal/protocol"
)

// Dispatch sends a user event to component id carrying the named inputs
// under formScope that belong to it. Inputs whose nearest component is a
// nested one are left out. A nil formScope means the component itself.
// Dispatching to an id that is not mounted does nothing and returns false.
func (r *Registry) Dispatch(id, command string, args map[string]interface{}, formScope *html.Node) bool {
	c, ok := r.components[id]
	if !ok {
		r.logger.Debug("dispatch to unknown component ignored", zap.String("id", id), zap.String("command", command))
		return false
	}
	if formScope == nil {
		formScope = c.Node
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	r.logger.Debug(">>> USER_EVENT", zap.String("id", id), zap.String("command", command))
	r.send(protocol.CommandUserEvent, protocol.UserEvent{
		ID:           id,
		Command:      command,
		ImplicitArgs: r.serialize(c, formScope),
		ExplicitArgs: args,
	})
	return true
}

// Send forwards a user event from element to its nearest component. When
// element sits in a form inside that component, only the form's inputs are
// serialized.
func (r *Registry) Send(element *html.Node, command string, args map[string]interface{}) bool {
	root := dom.Closest(element, IsRoot)
	if root == nil {
		return false
	}
	scope := root
	if form := dom.Closest(element, dom.HasTag("form")); form != nil && dom.Contains(root, form) {
		scope = form
	}
	return r.Dispatch(dom.ID(root), command, args, scope)
}

func (r *Registry) serialize(c *Component, scope *html.Node) map[string][]interface{} {
	result := make(map[string][]interface{})
	dom.Walk(scope, func(el *html.Node) bool {
		if el == scope || !dom.IsFormControl(el) {
			return true
		}
		name, ok := dom.Attr(el, "name")
		if !ok {
			return true
		}
		if dom.Closest(el, IsRoot) != c.Node {
			return true
		}
		if value, ok := controlValue(el); ok {
			result[name] = append(result[name], value)
		}
		return true
	})
	return result
}

// controlValue returns the serialized value of a form control, or false when
// the control contributes nothing (an unchecked box).
func controlValue(el *html.Node) (interface{}, bool) {
	switch dom.InputType(el) {
	case dom.TypeCheckbox, dom.TypeRadio:
		if !dom.Checked(el) {
			return nil, false
		}
		if v := dom.Value(el); v != "" {
			return v, true
		}
		return true, true
	case dom.TypeSelectMultiple:
		values := dom.SelectedValues(el)
		if values == nil {
			values = []string{}
		}
		return values, true
	default:
		return dom.Value(el), true
	}
}
