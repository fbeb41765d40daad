package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Form control types as reported by InputType
const (
	TypeCheckbox       = "checkbox"
	TypeRadio          = "radio"
	TypeSelectOne      = "select-one"
	TypeSelectMultiple = "select-multiple"
	TypeTextarea       = "textarea"
	TypeSubmit         = "submit"
)

// IsFormControl reports whether n is an input, select, textarea or button
func IsFormControl(n *html.Node) bool {
	switch Tag(n) {
	case "input", "select", "textarea", "button":
		return true
	}
	return false
}

// InputType returns the control type the way HTMLInputElement.type does
func InputType(n *html.Node) string {
	switch Tag(n) {
	case "input":
		t := strings.ToLower(strings.TrimSpace(AttrOr(n, "type", "")))
		if t == "" {
			return "text"
		}
		return t
	case "select":
		if HasAttr(n, "multiple") {
			return TypeSelectMultiple
		}
		return TypeSelectOne
	case "textarea":
		return TypeTextarea
	case "button":
		t := strings.ToLower(AttrOr(n, "type", ""))
		if t == "" {
			return TypeSubmit
		}
		return t
	}
	return ""
}

// Value returns the current value of a form control
func Value(n *html.Node) string {
	switch Tag(n) {
	case "textarea":
		return TextContent(n)
	case "select":
		values := SelectedValues(n)
		if len(values) == 0 {
			return ""
		}
		return values[0]
	}
	return AttrOr(n, "value", "")
}

// SetValue writes the value of a form control
func SetValue(n *html.Node, value string) {
	switch Tag(n) {
	case "textarea":
		SetTextContent(n, value)
	case "select":
		SelectOptions(n, value)
	default:
		SetAttr(n, "value", value)
	}
}

// Checked reports whether a checkbox or radio is checked
func Checked(n *html.Node) bool {
	return HasAttr(n, "checked")
}

// SetChecked toggles a checkbox or radio. Checking a radio unchecks the
// other radios sharing its name within the same form owner.
func SetChecked(n *html.Node, checked bool) {
	if !checked {
		RemoveAttr(n, "checked")
		return
	}
	if InputType(n) == TypeRadio {
		name := AttrOr(n, "name", "")
		scope := Closest(n, HasTag("form"))
		if scope == nil {
			scope = rootOf(n)
		}
		Walk(scope, func(c *html.Node) bool {
			if c != n && InputType(c) == TypeRadio && AttrOr(c, "name", "") == name {
				RemoveAttr(c, "checked")
			}
			return true
		})
	}
	SetAttr(n, "checked", "")
}

// SelectedValues returns the values of the selected options of a select.
// A single-select with nothing marked selects its first option.
func SelectedValues(n *html.Node) []string {
	var values []string
	opts := options(n)
	for _, opt := range opts {
		if HasAttr(opt, "selected") {
			values = append(values, optionValue(opt))
		}
	}
	if len(values) == 0 && InputType(n) == TypeSelectOne && len(opts) > 0 {
		values = append(values, optionValue(opts[0]))
	}
	return values
}

// SelectOptions marks the options whose values are listed as selected
func SelectOptions(n *html.Node, values ...string) {
	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}
	single := InputType(n) == TypeSelectOne
	picked := false
	for _, opt := range options(n) {
		if want[optionValue(opt)] && !(single && picked) {
			SetAttr(opt, "selected", "")
			picked = true
			continue
		}
		RemoveAttr(opt, "selected")
	}
}

func options(n *html.Node) []*html.Node {
	var out []*html.Node
	Walk(n, func(c *html.Node) bool {
		if Tag(c) == "option" {
			out = append(out, c)
			return false
		}
		return true
	})
	return out
}

func optionValue(opt *html.Node) string {
	if v, ok := Attr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(TextContent(opt))
}

func rootOf(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}
