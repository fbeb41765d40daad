package dom

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	loc, err := url.Parse("http://example.test/page?x=1")
	require.NoError(t, err)
	doc, err := Parse(markup, loc)
	require.NoError(t, err)
	return doc
}

func TestDocumentBasics(t *testing.T) {
	doc := mustParse(t, `<html><head><title> Hello </title></head><body><div id="a"><p class="x y">hi</p></div></body></html>`)

	assert.Equal(t, "Hello", doc.Title())
	require.NotNil(t, doc.Body())
	require.NotNil(t, doc.ByID("a"))
	assert.Nil(t, doc.ByID("missing"))

	p := doc.QuerySelector(nil, "#a p.x")
	require.NotNil(t, p)
	assert.Equal(t, "hi", TextContent(p))
	assert.Nil(t, doc.QuerySelector(nil, "[[invalid"))

	doc.SetTitle("Changed")
	assert.Equal(t, "Changed", doc.Title())
	assert.Equal(t, "/page", doc.Location().Path)
}

func TestClassHelpers(t *testing.T) {
	doc := mustParse(t, `<div id="a" class="one two"></div>`)
	a := doc.ByID("a")

	AddClass(a, "three")
	assert.True(t, HasClass(a, "three"))
	AddClass(a, "three")
	assert.Equal(t, "one two three", AttrOr(a, "class", ""))

	RemoveClass(a, "one")
	RemoveClass(a, "two")
	RemoveClass(a, "three")
	assert.False(t, HasAttr(a, "class"))
}

func TestClosestAndContains(t *testing.T) {
	doc := mustParse(t, `<section id="outer" marker><div id="inner" marker><input id="field"></div></section>`)
	field := doc.ByID("field")
	inner := doc.ByID("inner")
	outer := doc.ByID("outer")

	hasMarker := func(n *html.Node) bool { return HasAttr(n, "marker") }

	assert.Equal(t, inner, Closest(field, hasMarker))
	assert.Equal(t, inner, Closest(inner, hasMarker))
	assert.Equal(t, outer, NearestAncestor(inner, hasMarker))
	assert.Nil(t, NearestAncestor(outer, hasMarker))

	assert.True(t, Contains(outer, field))
	assert.False(t, Contains(inner, outer))
}

func TestStructuralOperations(t *testing.T) {
	doc := mustParse(t, `<ul id="list"><li id="b">b</li></ul>`)
	list := doc.ByID("list")
	b := doc.ByID("b")

	node := func(markup string) *html.Node {
		n, err := ParseFirst(markup)
		require.NoError(t, err)
		return n
	}

	Append(list, node(`<li id="d">d</li>`))
	Prepend(list, node(`<li id="a">a</li>`))
	InsertAfter(b, node(`<li id="c">c</li>`))
	InsertBefore(doc.ByID("a"), node(`<li id="z">z</li>`))
	ReplaceWith(doc.ByID("z"), node(`<li id="start">start</li>`))
	Detach(doc.ByID("d"))

	assert.Equal(t, `<li id="start">start</li><li id="a">a</li><li id="b">b</li><li id="c">c</li>`, InnerHTML(list))
}

func TestParseFirstEmpty(t *testing.T) {
	_, err := ParseFirst("")
	assert.ErrorIs(t, err, ErrEmptyMarkup)
}

func TestFocusDropsDetachedNodes(t *testing.T) {
	doc := mustParse(t, `<input id="f">`)
	f := doc.ByID("f")

	require.True(t, doc.Focus(f))
	assert.Equal(t, f, doc.Focused())

	Detach(f)
	assert.Nil(t, doc.Focused())
	assert.False(t, doc.Focus(f))
}

func TestLoadKeepsRootListeners(t *testing.T) {
	doc := mustParse(t, `<a id="old" href="/x">x</a>`)
	var clicks int
	doc.AddEventListener(doc.Root(), "click", func(*Event) { clicks++ })
	doc.AddEventListener(doc.ByID("old"), "click", func(*Event) { clicks += 10 })

	require.NoError(t, doc.Load(`<a id="new" href="/y">y</a>`))
	assert.Nil(t, doc.ByID("old"))

	doc.Click(doc.ByID("new"))
	assert.Equal(t, 1, clicks)
}

func TestDispatchBubblesAndDefaultAction(t *testing.T) {
	doc := mustParse(t, `<div id="outer"><a id="link" href="/x"><span id="label">go</span></a></div>`)
	var order []string
	var defaulted bool

	doc.AddEventListener(doc.ByID("link"), "click", func(ev *Event) {
		order = append(order, "link:"+ID(ev.CurrentTarget))
	})
	doc.AddEventListener(doc.ByID("outer"), "click", func(ev *Event) {
		order = append(order, "outer")
	})
	doc.SetDefaultAction(func(*Event) { defaulted = true })

	doc.Click(doc.ByID("label"))
	assert.Equal(t, []string{"link:link", "outer"}, order)
	assert.True(t, defaulted)

	defaulted = false
	doc.AddEventListener(doc.Root(), "click", func(ev *Event) { ev.PreventDefault() })
	ev := doc.Click(doc.ByID("label"))
	assert.True(t, ev.DefaultPrevented())
	assert.False(t, defaulted)
}

func TestFormState(t *testing.T) {
	doc := mustParse(t, `<form>
		<input id="text" name="t" value="abc">
		<input id="r1" type="radio" name="r" value="1" checked>
		<input id="r2" type="radio" name="r" value="2">
		<select id="one"><option value="a">A</option><option>B</option></select>
		<select id="many" multiple><option value="x" selected>X</option><option value="y">Y</option></select>
		<textarea id="area">line</textarea>
	</form>`)

	assert.Equal(t, "text", InputType(doc.ByID("text")))
	assert.Equal(t, "abc", Value(doc.ByID("text")))
	SetValue(doc.ByID("text"), "new")
	assert.Equal(t, "new", Value(doc.ByID("text")))

	SetChecked(doc.ByID("r2"), true)
	assert.True(t, Checked(doc.ByID("r2")))
	assert.False(t, Checked(doc.ByID("r1")))

	assert.Equal(t, TypeSelectOne, InputType(doc.ByID("one")))
	assert.Equal(t, "a", Value(doc.ByID("one")))
	SetValue(doc.ByID("one"), "B")
	assert.Equal(t, []string{"B"}, SelectedValues(doc.ByID("one")))

	assert.Equal(t, TypeSelectMultiple, InputType(doc.ByID("many")))
	SelectOptions(doc.ByID("many"), "x", "y")
	assert.Equal(t, []string{"x", "y"}, SelectedValues(doc.ByID("many")))

	assert.Equal(t, TypeTextarea, InputType(doc.ByID("area")))
	assert.Equal(t, "line", Value(doc.ByID("area")))
}
