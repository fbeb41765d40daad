package registry

import (
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/reactor/internal/dom"
)

// Lifecycle hooks run when a component bound to a declaration mounts or unmounts
type Lifecycle struct {
	OnJoin  func(c *Component)
	OnLeave func(c *Component)
}

// Declaration is one capability table entry: a custom tag name that extends
// a built-in element, as announced by
// <meta name="reactor-component" data-tag-name="x-counter" data-extends="div">.
type Declaration struct {
	TagName string
	Extends string
	Lifecycle
}

// Behaviors maps custom tag names to declarations. Elements opt in through
// their "is" attribute.
type Behaviors struct {
	byTag map[string]*Declaration
}

// NewBehaviors creates an empty capability table
func NewBehaviors() *Behaviors {
	return &Behaviors{byTag: make(map[string]*Declaration)}
}

// Declare adds or updates a declaration. Existing lifecycle hooks are kept.
func (b *Behaviors) Declare(tagName, extends string) *Declaration {
	if d, ok := b.byTag[tagName]; ok {
		d.Extends = extends
		return d
	}
	d := &Declaration{TagName: tagName, Extends: extends}
	b.byTag[tagName] = d
	return d
}

// On installs lifecycle hooks for a tag name, declaring it if needed
func (b *Behaviors) On(tagName string, lc Lifecycle) {
	d, ok := b.byTag[tagName]
	if !ok {
		d = b.Declare(tagName, "")
	}
	d.Lifecycle = lc
}

// DeclareFromDocument registers every reactor-component meta tag in doc and
// returns how many were found
func (b *Behaviors) DeclareFromDocument(doc *dom.Document) int {
	metas := doc.QuerySelectorAll(nil, `meta[name="`+MarkerAttr+`"]`)
	count := 0
	for _, m := range metas {
		tag := dom.AttrOr(m, "data-tag-name", "")
		if tag == "" {
			continue
		}
		b.Declare(tag, dom.AttrOr(m, "data-extends", ""))
		count++
	}
	return count
}

// Lookup returns the declaration n is an instance of, if any
func (b *Behaviors) Lookup(n *html.Node) *Declaration {
	is := dom.AttrOr(n, "is", "")
	if is == "" {
		return nil
	}
	d, ok := b.byTag[is]
	if !ok {
		return nil
	}
	if d.Extends != "" && d.Extends != dom.Tag(n) {
		return nil
	}
	return d
}

// Len returns the number of declarations
func (b *Behaviors) Len() int {
	return len(b.byTag)
}

func (b *Behaviors) joined(c *Component) {
	if c.decl != nil && c.decl.OnJoin != nil {
		c.decl.OnJoin(c)
	}
}

func (b *Behaviors) left(c *Component) {
	if c.decl != nil && c.decl.OnLeave != nil {
		c.decl.OnLeave(c)
	}
}
