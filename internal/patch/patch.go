// Package patch morphs live document subtrees toward new markup.
//
// The patcher reuses existing nodes wherever the old and new trees agree, so
// focus, listeners and form state on unchanged nodes survive an update.
// Children are matched by id first and then positionally by node type and
// tag. Two component roots with different ids are never morphed into each
// other: the outgoing root is torn down through Hooks.BeforeSwap before the
// incoming one is inserted, and the incoming id is reported for joining once
// the morph completes.
package patch

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/reactor/internal/dom"
)

// Hooks lets the component registry observe identity changes
type Hooks interface {
	// IsComponentRoot reports whether n anchors a server-tracked component
	IsComponentRoot(n *html.Node) bool
	// BeforeSwap tears down the component rooted at n before it is replaced
	BeforeSwap(n *html.Node)
}

// Options tune a single patch
type Options struct {
	// ScrollY is restored after patching unless an autofocus element took focus
	ScrollY *int
}

// Result describes identity changes made by a patch
type Result struct {
	Swapped []string // component ids torn down because a different id took their place
	Joined  []string // component ids inserted in their place
	Focused *html.Node
}

// Patcher applies markup to document nodes
type Patcher struct {
	doc    *dom.Document
	hooks  Hooks
	logger *zap.Logger
}

// New creates a patcher for doc. hooks may be nil.
func New(doc *dom.Document, hooks Hooks, logger *zap.Logger) *Patcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Patcher{doc: doc, hooks: hooks, logger: logger}
}

// Apply morphs node toward markup. When markup is a single element that is
// node's own replacement (same tag, and same id if node has one), node is
// morphed in place including its attributes; otherwise markup becomes the
// new content of node.
func (p *Patcher) Apply(node *html.Node, markup string, opts Options) (*Result, error) {
	if node == nil {
		return nil, fmt.Errorf("patch target is nil")
	}
	nodes, err := dom.ParseFragment(markup, node)
	if err != nil {
		return nil, fmt.Errorf("failed to parse patch markup: %w", err)
	}

	res := &Result{}
	if outer := soleElement(nodes); outer != nil && sameRoot(node, outer) {
		p.morphElement(node, outer, res)
	} else {
		p.morphChildren(node, nodes, res)
	}
	p.finish(node, opts, res)
	return res, nil
}

// Morph morphs from toward an already parsed node of the same kind
func (p *Patcher) Morph(from, to *html.Node, opts Options) *Result {
	res := &Result{}
	if dom.Tag(from) == dom.Tag(to) {
		p.morphElement(from, to, res)
	} else {
		p.morphChildren(from, dom.Children(to), res)
	}
	p.finish(from, opts, res)
	return res
}

func (p *Patcher) finish(node *html.Node, opts Options, res *Result) {
	if target := dom.Find(node, func(n *html.Node) bool { return dom.HasAttr(n, "autofocus") }); target != nil {
		if p.doc.Focus(target) {
			res.Focused = target
			return
		}
	}
	if opts.ScrollY != nil {
		p.doc.ScrollTo(*opts.ScrollY)
	}
}

func (p *Patcher) morphElement(from, to *html.Node, res *Result) {
	syncAttrs(from, to)
	p.morphChildren(from, dom.Children(to), res)
}

func (p *Patcher) morphChildren(parent *html.Node, next []*html.Node, res *Result) {
	keyed := make(map[string]*html.Node)
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if id := dom.ID(c); id != "" {
			if _, dup := keyed[id]; !dup {
				keyed[id] = c
			}
		}
	}
	wanted := make(map[string]bool, len(next))
	for _, n := range next {
		if id := dom.ID(n); id != "" {
			wanted[id] = true
		}
	}

	used := make(map[*html.Node]bool)
	cur := parent.FirstChild
	for _, n := range next {
		dom.Detach(n)

		if key := dom.ID(n); key != "" {
			if old, ok := keyed[key]; ok && !used[old] && dom.Tag(old) == dom.Tag(n) {
				if old != cur {
					dom.Detach(old)
					parent.InsertBefore(old, cur)
				} else {
					cur = cur.NextSibling
				}
				used[old] = true
				p.morphNode(old, n, res)
				continue
			}
		}

		if cur != nil && compatible(cur, n) {
			match := cur
			cur = cur.NextSibling
			used[match] = true
			p.morphNode(match, n, res)
			continue
		}

		if cur != nil && p.isSwap(cur, n, wanted) {
			old := cur
			cur = cur.NextSibling
			oldID := dom.ID(old)
			p.logger.Debug("component swap", zap.String("from", oldID), zap.String("to", dom.ID(n)))
			p.hooks.BeforeSwap(old)
			parent.InsertBefore(n, old)
			parent.RemoveChild(old)
			res.Swapped = append(res.Swapped, oldID)
			res.Joined = append(res.Joined, dom.ID(n))
			continue
		}

		parent.InsertBefore(n, cur)
	}

	for cur != nil {
		stale := cur
		cur = cur.NextSibling
		if !used[stale] {
			parent.RemoveChild(stale)
		}
	}
}

func (p *Patcher) morphNode(from, to *html.Node, res *Result) {
	switch from.Type {
	case html.TextNode, html.CommentNode:
		if from.Data != to.Data {
			from.Data = to.Data
		}
	case html.ElementNode:
		p.morphElement(from, to, res)
	}
}

func (p *Patcher) isSwap(old, n *html.Node, wanted map[string]bool) bool {
	if p.hooks == nil || dom.Tag(old) != dom.Tag(n) {
		return false
	}
	if !p.hooks.IsComponentRoot(old) || !p.hooks.IsComponentRoot(n) {
		return false
	}
	oldID, newID := dom.ID(old), dom.ID(n)
	return oldID != "" && newID != "" && oldID != newID && !wanted[oldID]
}

// compatible reports whether old may be morphed into n positionally
func compatible(old, n *html.Node) bool {
	if old.Type != n.Type {
		return false
	}
	if old.Type != html.ElementNode {
		return old.Type == html.TextNode || old.Type == html.CommentNode
	}
	return dom.Tag(old) == dom.Tag(n) && dom.ID(old) == "" && dom.ID(n) == ""
}

func sameRoot(node, outer *html.Node) bool {
	if dom.Tag(node) != dom.Tag(outer) {
		return false
	}
	id := dom.ID(node)
	return id == "" || id == dom.ID(outer)
}

func soleElement(nodes []*html.Node) *html.Node {
	var el *html.Node
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			if el != nil {
				return nil
			}
			el = n
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				return nil
			}
		case html.CommentNode:
		default:
			return nil
		}
	}
	return el
}

func syncAttrs(from, to *html.Node) {
	if attrsEqual(from.Attr, to.Attr) {
		return
	}
	from.Attr = append(from.Attr[:0:0], to.Attr...)
}

func attrsEqual(a, b []html.Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
