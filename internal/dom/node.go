package dom

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrEmptyMarkup is returned when markup parses to no nodes at all
var ErrEmptyMarkup = errors.New("markup contains no nodes")

// Predicate selects nodes during tree walks
type Predicate func(n *html.Node) bool

// IsElement reports whether n is an element node
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// Tag returns the lower-cased tag name of an element, or "" for other nodes
func Tag(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// HasTag returns a predicate matching elements with the given tag
func HasTag(tag string) Predicate {
	return func(n *html.Node) bool {
		return Tag(n) == tag
	}
}

// Attr returns the value of an attribute and whether it is present
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or fallback when absent
func AttrOr(n *html.Node, key, fallback string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return fallback
}

// HasAttr reports whether the attribute is present
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttr sets or adds an attribute
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute if present
func RemoveAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		attrs = append(attrs, a)
	}
	n.Attr = attrs
}

// ID returns the element id attribute
func ID(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return AttrOr(n, "id", "")
}

// HasClass reports whether the class list contains class
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(AttrOr(n, "class", "")) {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass appends class to the class list if missing
func AddClass(n *html.Node, class string) {
	if !IsElement(n) || HasClass(n, class) {
		return
	}
	classes := strings.Fields(AttrOr(n, "class", ""))
	SetAttr(n, "class", strings.Join(append(classes, class), " "))
}

// RemoveClass drops class from the class list
func RemoveClass(n *html.Node, class string) {
	if !IsElement(n) || !HasClass(n, class) {
		return
	}
	var kept []string
	for _, c := range strings.Fields(AttrOr(n, "class", "")) {
		if c != class {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		RemoveAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}

// Closest returns n or its nearest ancestor matching pred, or nil
func Closest(n *html.Node, pred Predicate) *html.Node {
	for ; n != nil; n = n.Parent {
		if IsElement(n) && pred(n) {
			return n
		}
	}
	return nil
}

// NearestAncestor is Closest starting at the parent of n
func NearestAncestor(n *html.Node, pred Predicate) *html.Node {
	if n == nil {
		return nil
	}
	return Closest(n.Parent, pred)
}

// Contains reports whether other is n or a descendant of n
func Contains(n, other *html.Node) bool {
	if n == nil {
		return false
	}
	for ; other != nil; other = other.Parent {
		if other == n {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the children of the visited node.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// Find returns the first element in n's subtree (inclusive) matching pred
func Find(n *html.Node, pred Predicate) *html.Node {
	var found *html.Node
	Walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if IsElement(c) && pred(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// Children returns a snapshot of n's child nodes
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// Detach removes n from its parent, if any
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Append adds child as the last child of parent
func Append(parent, child *html.Node) {
	Detach(child)
	parent.AppendChild(child)
}

// Prepend adds child as the first child of parent
func Prepend(parent, child *html.Node) {
	Detach(child)
	parent.InsertBefore(child, parent.FirstChild)
}

// InsertBefore places n immediately before ref
func InsertBefore(ref, n *html.Node) {
	if ref.Parent == nil {
		return
	}
	Detach(n)
	ref.Parent.InsertBefore(n, ref)
}

// InsertAfter places n immediately after ref
func InsertAfter(ref, n *html.Node) {
	if ref.Parent == nil {
		return
	}
	Detach(n)
	ref.Parent.InsertBefore(n, ref.NextSibling)
}

// ReplaceWith puts n where old was and detaches old
func ReplaceWith(old, n *html.Node) {
	if old.Parent == nil {
		return
	}
	Detach(n)
	old.Parent.InsertBefore(n, old)
	old.Parent.RemoveChild(old)
}

// Clone deep-copies n; the copy is detached
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// OuterHTML renders n including itself
func OuterHTML(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

// InnerHTML renders the children of n
func InnerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return ""
		}
	}
	return b.String()
}

// TextContent concatenates all descendant text
func TextContent(n *html.Node) string {
	var b strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// SetTextContent replaces all children of n with a single text node
func SetTextContent(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

// ParseFragment parses markup as the children of context. The returned
// nodes are detached.
func ParseFragment(markup string, context *html.Node) ([]*html.Node, error) {
	if context == nil || !IsElement(context) {
		context = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	return html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     context.Data,
		DataAtom: context.DataAtom,
	})
}

// ParseFirst parses markup as a full document and returns the first child of
// its body, detached. This matches a DOMParser("text/html").body.firstChild.
func ParseFirst(markup string) (*html.Node, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	body := Find(root, HasTag("body"))
	if body == nil || body.FirstChild == nil {
		return nil, ErrEmptyMarkup
	}
	first := body.FirstChild
	body.RemoveChild(first)
	return first, nil
}
