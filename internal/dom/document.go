package dom

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const blankPage = "<!DOCTYPE html><html><head><title></title></head><body></body></html>"

// ScrollOptions mirrors the scrollIntoView argument
type ScrollOptions struct {
	Behavior string `json:"behavior,omitempty"`
	Block    string `json:"block,omitempty"`
	Inline   string `json:"inline,omitempty"`
}

// ScrollRequest records one scrollIntoView call
type ScrollRequest struct {
	Target  *html.Node
	Options ScrollOptions
}

// Document is a live HTML document with browser-like state
type Document struct {
	root     *html.Node
	location *url.URL
	focused  *html.Node
	scrollY  int
	scrolls  []ScrollRequest

	listeners     map[*html.Node]map[string][]Listener
	defaultAction func(*Event)
}

// New creates a blank document located at loc
func New(loc *url.URL) *Document {
	d, err := Parse(blankPage, loc)
	if err != nil {
		panic(fmt.Sprintf("dom: blank page did not parse: %v", err))
	}
	return d
}

// Parse builds a document from full page markup
func Parse(markup string, loc *url.URL) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if loc == nil {
		loc = &url.URL{Path: "/"}
	}
	return &Document{
		root:      root,
		location:  cloneURL(loc),
		listeners: make(map[*html.Node]map[string][]Listener),
	}, nil
}

// Load replaces the whole tree with markup. The document node itself, and
// listeners attached to it, survive.
func (d *Document) Load(markup string) error {
	fresh, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	for c := d.root.FirstChild; c != nil; {
		next := c.NextSibling
		d.root.RemoveChild(c)
		c = next
	}
	for c := fresh.FirstChild; c != nil; {
		next := c.NextSibling
		fresh.RemoveChild(c)
		d.root.AppendChild(c)
		c = next
	}
	d.focused = nil
	d.scrollY = 0
	d.Prune()
	return nil
}

// Root returns the document node
func (d *Document) Root() *html.Node {
	return d.root
}

// DocumentElement returns the <html> element
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

// Head returns the <head> element
func (d *Document) Head() *html.Node {
	return Find(d.DocumentElement(), HasTag("head"))
}

// Body returns the <body> element
func (d *Document) Body() *html.Node {
	htmlEl := d.DocumentElement()
	if htmlEl == nil {
		return nil
	}
	for c := htmlEl.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom == atom.Body {
			return c
		}
	}
	return nil
}

// ReplaceBody swaps the <body> element for body, like document.body = body
func (d *Document) ReplaceBody(body *html.Node) {
	Detach(body)
	if old := d.Body(); old != nil {
		ReplaceWith(old, body)
	} else if htmlEl := d.DocumentElement(); htmlEl != nil {
		htmlEl.AppendChild(body)
	}
	d.Prune()
}

// Title returns the text of the head <title> element
func (d *Document) Title() string {
	t := Find(d.Head(), HasTag("title"))
	if t == nil {
		return ""
	}
	return strings.TrimSpace(TextContent(t))
}

// SetTitle writes the head <title> element, creating it when missing
func (d *Document) SetTitle(title string) {
	head := d.Head()
	if head == nil {
		return
	}
	t := Find(head, HasTag("title"))
	if t == nil {
		t = &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
		head.AppendChild(t)
	}
	SetTextContent(t, title)
}

// Location returns a copy of the document URL
func (d *Document) Location() *url.URL {
	return cloneURL(d.location)
}

// SetLocation moves the document URL without touching content
func (d *Document) SetLocation(u *url.URL) {
	d.location = cloneURL(u)
}

// ByID finds the first element with the given id, like getElementById
func (d *Document) ByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	return Find(d.root, func(n *html.Node) bool { return ID(n) == id })
}

// QuerySelector returns the first descendant of root matching a CSS selector.
// Invalid selectors match nothing.
func (d *Document) QuerySelector(root *html.Node, selector string) *html.Node {
	nodes := d.QuerySelectorAll(root, selector)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// QuerySelectorAll returns all descendants of root matching a CSS selector
func (d *Document) QuerySelectorAll(root *html.Node, selector string) []*html.Node {
	if root == nil {
		root = d.root
	}
	return goquery.NewDocumentFromNode(root).Find(selector).Nodes
}

// Attached reports whether n is currently part of this document
func (d *Document) Attached(n *html.Node) bool {
	return n != nil && Contains(d.root, n)
}

// Focus focuses an attached element. It returns false when n cannot take focus.
func (d *Document) Focus(n *html.Node) bool {
	if !IsElement(n) || !d.Attached(n) {
		return false
	}
	d.focused = n
	return true
}

// Blur clears focus
func (d *Document) Blur() {
	d.focused = nil
}

// Focused returns the focused element, or nil if it has left the tree
func (d *Document) Focused() *html.Node {
	if d.focused != nil && !d.Attached(d.focused) {
		d.focused = nil
	}
	return d.focused
}

// ScrollTo sets the vertical scroll offset
func (d *Document) ScrollTo(y int) {
	if y < 0 {
		y = 0
	}
	d.scrollY = y
}

// ScrollY returns the vertical scroll offset
func (d *Document) ScrollY() int {
	return d.scrollY
}

// ScrollIntoView records a scroll request against n
func (d *Document) ScrollIntoView(n *html.Node, opts ScrollOptions) {
	d.scrolls = append(d.scrolls, ScrollRequest{Target: n, Options: opts})
}

// LastScroll returns the most recent scrollIntoView request
func (d *Document) LastScroll() (ScrollRequest, bool) {
	if len(d.scrolls) == 0 {
		return ScrollRequest{}, false
	}
	return d.scrolls[len(d.scrolls)-1], true
}

// String renders the whole document
func (d *Document) String() string {
	return OuterHTML(d.root)
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}
