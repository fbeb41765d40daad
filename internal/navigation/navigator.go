package navigation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/reactor/internal/dom"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/reactor/internal/loop"
	"github.com/GriffinCanCode/reactor/internal/patch"
	"github.com/GriffinCanCode/reactor/internal/protocol"
)

// Opt-out attributes and the page-level switch
const (
	NoBoostAttr    = ":no-boost"
	NoBoostAltAttr = "no-boost"
	BoostMetaName  = "reactor-boost"
)

// navigation kinds, as counted in metrics
const (
	navKindBoost    = "boost"
	navKindPop      = "pop"
	navKindFull     = "full"
	navKindExternal = "external"
)

// Components is the part of the component registry navigation drives
type Components interface {
	Reconcile(root *html.Node)
	Patcher() *patch.Patcher
}

// Sender delivers outbound protocol messages
type Sender interface {
	Send(env protocol.Envelope)
}

// Options configures a Navigator
type Options struct {
	// Boost forces link boosting on regardless of the page's meta tag
	Boost     bool
	CacheSize int
	Context   context.Context
	Sender    Sender
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics

	// OnError receives navigation failures. The previous content stays.
	OnError func(err error)
	// OnExternal receives navigations that leave the application origin
	OnExternal func(u *url.URL)
	// OnInstall runs after a full page load, before links are boosted and
	// components reconciled
	OnInstall func(doc *dom.Document)
}

// Navigator owns the document's location. All methods must be called on the
// event loop.
type Navigator struct {
	doc        *dom.Document
	loop       *loop.Loop
	components Components
	fetcher    Fetcher
	cache      *Cache
	history    *History
	opts       Options
	logger     *zap.Logger
	metrics    *monitoring.Metrics

	enabled     bool
	boosted     map[*html.Node]bool
	currentPath string
	latest      ulid.ULID
	// unloaded is a pushed path whose content has not arrived yet
	unloaded string
	inflight    sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New creates a navigator for doc and installs the document's default link
// action
func New(doc *dom.Document, lp *loop.Loop, components Components, fetcher Fetcher, opts Options) *Navigator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	n := &Navigator{
		doc:         doc,
		loop:        lp,
		components:  components,
		fetcher:     fetcher,
		cache:       NewCache(opts.CacheSize, opts.Metrics),
		history:     NewHistory(),
		opts:        opts,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		enabled:     opts.Boost,
		boosted:     make(map[*html.Node]bool),
		currentPath: Normalize(doc.Location()),
	}
	doc.SetDefaultAction(n.defaultAction)
	return n
}

// Cache returns the page snapshot cache
func (n *Navigator) Cache() *Cache {
	return n.cache
}

// History returns the session history
func (n *Navigator) History() *History {
	return n.history
}

// Enabled reports whether link boosting is on
func (n *Navigator) Enabled() bool {
	return n.enabled
}

// Wait blocks until in-flight fetches have posted their results to the loop
func (n *Navigator) Wait() {
	n.inflight.Wait()
}

// Shutdown refuses new fetches and waits for in-flight ones. It may be
// called from any goroutine.
func (n *Navigator) Shutdown() {
	n.mu.Lock()
	n.stopped = true
	n.mu.Unlock()
	n.inflight.Wait()
}

// Open fetches rawURL and installs it as the whole document. It blocks and
// is meant for the initial page, before the loop runs.
func (n *Navigator) Open(ctx context.Context, rawURL string) error {
	u, err := n.resolve(rawURL)
	if err != nil {
		return err
	}
	page, err := n.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return err
	}
	return n.install(page)
}

// Load navigates to rawURL. Same-origin targets are boosted when boosting
// is on; everything else is a full navigation.
func (n *Navigator) Load(rawURL string) {
	u, err := n.resolve(rawURL)
	if err != nil {
		n.fail(err)
		return
	}
	if !n.enabled {
		n.assign(u)
		return
	}
	n.saveCurrentPage()
	if !n.sameOrigin(u) {
		n.external(u)
		return
	}
	n.metrics.Navigated(navKindBoost)
	n.logger.Debug("boosted navigation", zap.String("url", u.String()))
	n.push(u)
	n.restoreCurrent(nil, true)
}

// ReplaceContentFromURL fetches rawURL and swaps its title and body into the
// document
func (n *Navigator) ReplaceContentFromURL(rawURL string) {
	u, err := n.resolve(rawURL)
	if err != nil {
		n.fail(err)
		return
	}
	n.replaceContentFrom(u, nil)
}

// Back moves one record back in history. The pop is handled on a later
// loop turn, like a browser popstate.
func (n *Navigator) Back() bool {
	return n.traverse(-1)
}

// Forward moves one record forward in history
func (n *Navigator) Forward() bool {
	return n.traverse(1)
}

// Push changes the visible URL and adds a history record
func (n *Navigator) Push(rawURL string) error {
	u, err := n.resolve(rawURL)
	if err != nil {
		return err
	}
	n.push(u)
	return nil
}

// Replace changes the visible URL without adding a history record
func (n *Navigator) Replace(rawURL string) error {
	u, err := n.resolve(rawURL)
	if err != nil {
		return err
	}
	n.replace(u)
	return nil
}

// SetQueryString replaces the search string of the current URL
func (n *Navigator) SetQueryString(qs string) {
	u := n.doc.Location()
	u.RawQuery = strings.TrimPrefix(qs, "?")
	u.Fragment = ""
	n.replace(u)
}

// MergeURLParams merges params into the current search string
func (n *Navigator) MergeURLParams(params map[string]interface{}) {
	u := n.doc.Location()
	u.RawQuery = MergeQuery(u.RawQuery, params)
	u.Fragment = ""
	n.replace(u)
}

// Boost binds click interception to every eligible link under root (the
// whole document when nil) and returns how many links were newly bound
func (n *Navigator) Boost(root *html.Node) int {
	if !n.enabled {
		return 0
	}
	for a := range n.boosted {
		if !n.doc.Attached(a) {
			delete(n.boosted, a)
		}
	}
	count := 0
	for _, a := range n.doc.QuerySelectorAll(root, "a[href]") {
		if n.boosted[a] || !Boostable(a) {
			continue
		}
		n.boosted[a] = true
		n.doc.AddEventListener(a, "click", n.onLinkClick)
		count++
	}
	return count
}

// Boostable reports whether an anchor may be intercepted
func Boostable(a *html.Node) bool {
	if dom.Tag(a) != "a" || !dom.HasAttr(a, "href") {
		return false
	}
	for _, attr := range []string{"onclick", "target", NoBoostAttr, NoBoostAltAttr} {
		if dom.HasAttr(a, attr) {
			return false
		}
	}
	return true
}

// DetectBoost reports whether the page turns boosting on with
// <meta name="reactor-boost" data-enabled="true">
func DetectBoost(doc *dom.Document) bool {
	meta := doc.QuerySelector(nil, `meta[name="`+BoostMetaName+`"]`)
	return meta != nil && strings.EqualFold(strings.TrimSpace(dom.AttrOr(meta, "data-enabled", "")), "true")
}

func (n *Navigator) onLinkClick(ev *dom.Event) {
	if ev.DefaultPrevented() || ev.Button != dom.ButtonLeft || ev.HasModifier() {
		return
	}
	a := ev.CurrentTarget
	u, err := n.resolve(dom.AttrOr(a, "href", ""))
	if err != nil || n.sameDocument(u) {
		return
	}
	ev.PreventDefault()
	n.Load(u.String())
}

// defaultAction follows links nobody intercepted, the way a browser would
func (n *Navigator) defaultAction(ev *dom.Event) {
	if ev.Type != "click" || ev.Button != dom.ButtonLeft {
		return
	}
	a := dom.Closest(ev.Target, dom.HasTag("a"))
	if a == nil || !dom.HasAttr(a, "href") {
		return
	}
	u, err := n.resolve(dom.AttrOr(a, "href", ""))
	if err != nil {
		n.fail(err)
		return
	}
	switch {
	case ev.HasModifier() || dom.HasAttr(a, "target"):
		n.external(u)
	case n.sameDocument(u):
		n.doc.SetLocation(u)
	default:
		n.assign(u)
	}
}

func (n *Navigator) traverse(delta int) bool {
	n.saveCurrentPage()
	rec, ok := n.history.Go(delta)
	if !ok {
		return false
	}
	n.loop.Post(func() { n.onPop(rec) })
	return true
}

func (n *Navigator) onPop(rec Record) {
	n.metrics.Navigated(navKindPop)
	n.doc.SetLocation(rec.URL)
	n.logger.Debug("history pop", zap.String("url", rec.URL.String()))

	qs := ""
	if rec.URL.RawQuery != "" {
		qs = "?" + rec.URL.RawQuery
	}
	if n.opts.Sender != nil {
		n.opts.Sender.Send(protocol.Envelope{Command: protocol.CommandQueryString, Payload: protocol.QueryString{QS: qs}})
	}

	state := rec.State
	n.restoreCurrent(&state, false)
}

// restoreCurrent shows the cached snapshot of the current URL right away (or
// the history record's own snapshot), then refreshes it from the network.
// When pushed is set and nothing could be shown, a failed refresh undoes the
// push so the location never points at content that did not load.
func (n *Navigator) restoreCurrent(fallback *State, pushed bool) {
	loc := n.doc.Location()
	path := Normalize(loc)
	if n.currentPath != path {
		n.saveCurrentPage()
	}

	entry, ok := n.cache.Get(path)
	if !ok && fallback != nil && fallback.Content != "" {
		entry, ok = Entry{URL: path, Content: fallback.Content, Title: n.doc.Title(), ScrollY: fallback.ScrollY}, true
	}
	if ok {
		if title, body, err := parsePage(entry.Content); err == nil {
			scroll := entry.ScrollY
			if entry.Title != "" {
				title = entry.Title
			}
			n.loop.RequestFrame(func() { n.swap(title, body, &scroll) })
		}
		n.currentPath = path
	}

	var undo func()
	if pushed && !ok {
		n.unloaded = path
		undo = func() { n.rollback(loc) }
	}
	n.replaceContentFrom(loc, undo)
}

func (n *Navigator) replaceContentFrom(u *url.URL, undo func()) {
	n.fetch(u, func(page *Page) error {
		title, body, err := parsePage(page.Body)
		if err != nil {
			return &FetchError{URL: u.String(), Status: page.Status, Err: err}
		}
		n.unloaded = ""
		n.replace(page.URL)
		n.loop.RequestFrame(func() {
			n.swap(title, body, nil)
			n.saveCurrentPage()
		})
		return nil
	}, undo)
}

// rollback drops the history record pushed for target and restores the
// previous location
func (n *Navigator) rollback(target *url.URL) {
	cur, ok := n.history.Current()
	if !ok || cur.URL.String() != target.String() {
		return
	}
	prev, ok := n.history.Drop()
	if !ok {
		return
	}
	n.unloaded = ""
	n.doc.SetLocation(prev.URL)
	n.currentPath = Normalize(prev.URL)
	n.logger.Debug("navigation rolled back", zap.String("url", target.String()), zap.String("restored", prev.URL.String()))
}

// assign is a full navigation: the whole document is replaced
func (n *Navigator) assign(u *url.URL) {
	if !n.sameOrigin(u) {
		n.external(u)
		return
	}
	n.metrics.Navigated(navKindFull)
	n.history.Push(Record{URL: u})
	n.fetch(u, n.install, func() { n.rollback(u) })
}

func (n *Navigator) external(u *url.URL) {
	n.metrics.Navigated(navKindExternal)
	n.logger.Info("leaving application", zap.String("url", u.String()))
	if n.opts.OnExternal != nil {
		n.opts.OnExternal(u)
	}
}

// fetch loads u off the loop and hands the page back on it. Only the most
// recent fetch is applied; older responses are dropped. When the fetch or
// apply fails, undo (if set) runs after the failure is reported.
func (n *Navigator) fetch(u *url.URL, apply func(page *Page) error, undo func()) {
	token := ulid.Make()
	n.latest = token
	ctx := n.opts.Context
	target := u.String()

	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		n.logger.Debug("navigator stopped, fetch skipped", zap.String("url", target))
		return
	}
	n.inflight.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.inflight.Done()
		page, err := n.fetcher.Fetch(ctx, target)
		n.loop.Post(func() {
			if token != n.latest {
				n.metrics.StaleFetch()
				n.logger.Debug("dropping stale page", zap.String("url", target), zap.String("token", token.String()))
				return
			}
			if err == nil {
				err = apply(page)
			}
			if err != nil {
				n.fail(err)
				if undo != nil {
					undo()
				}
			}
		})
	}()
}

func (n *Navigator) install(page *Page) error {
	if err := n.doc.Load(page.Body); err != nil {
		return &FetchError{URL: page.URL.String(), Status: page.Status, Err: err}
	}
	n.doc.SetLocation(page.URL)
	n.enabled = n.opts.Boost || DetectBoost(n.doc)
	n.boosted = make(map[*html.Node]bool)

	if n.opts.OnInstall != nil {
		n.opts.OnInstall(n.doc)
	}
	n.Boost(nil)
	n.components.Reconcile(n.doc.Root())
	if target := n.doc.QuerySelector(nil, "[autofocus]"); target != nil {
		n.doc.Focus(target)
	}

	n.currentPath = Normalize(page.URL)
	n.history.Replace(Record{URL: page.URL, State: n.snapshot()})
	n.logger.Info("page installed", zap.String("url", page.URL.String()), zap.Bool("boost", n.enabled))
	return nil
}

func (n *Navigator) swap(title string, body *html.Node, scrollY *int) {
	n.doc.SetTitle(title)
	n.components.Patcher().Morph(n.doc.Body(), body, patch.Options{ScrollY: scrollY})
	n.doc.Prune()
	n.Boost(n.doc.Body())
	n.components.Reconcile(n.doc.Body())
}

func (n *Navigator) push(u *url.URL) {
	n.history.Push(Record{URL: u, State: n.snapshot()})
	n.doc.SetLocation(u)
	n.currentPath = Normalize(u)
}

func (n *Navigator) replace(u *url.URL) {
	n.history.Replace(Record{URL: u, State: n.snapshot()})
	n.doc.SetLocation(u)
	n.currentPath = Normalize(u)
}

func (n *Navigator) snapshot() State {
	return State{Content: dom.OuterHTML(n.doc.Body()), ScrollY: n.doc.ScrollY()}
}

// saveCurrentPage snapshots the visible page into the cache under the
// current path and refreshes the current history record with it
func (n *Navigator) saveCurrentPage() {
	if n.unloaded != "" && n.unloaded == n.currentPath {
		return
	}
	state := n.snapshot()
	evicted, ok := n.cache.Put(Entry{
		URL:     n.currentPath,
		Content: state.Content,
		Title:   n.doc.Title(),
		ScrollY: state.ScrollY,
	})
	if ok {
		n.logger.Debug("evicted page", zap.String("url", evicted.URL))
	}
	if rec, ok := n.history.Current(); ok && Normalize(rec.URL) == n.currentPath {
		rec.State = state
		n.history.Replace(rec)
	}
}

func (n *Navigator) fail(err error) {
	n.metrics.NavigationFailed()
	n.logger.Warn("navigation failed", zap.Error(err))
	if n.opts.OnError != nil {
		n.opts.OnError(err)
	}
}

func (n *Navigator) resolve(rawURL string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	return n.doc.Location().ResolveReference(ref), nil
}

func (n *Navigator) sameOrigin(u *url.URL) bool {
	loc := n.doc.Location()
	return strings.EqualFold(u.Scheme, loc.Scheme) && strings.EqualFold(u.Host, loc.Host)
}

// sameDocument reports whether u differs from the current location only by
// its fragment
func (n *Navigator) sameDocument(u *url.URL) bool {
	if u.Fragment == "" {
		return false
	}
	a, b := *u, *n.doc.Location()
	a.Fragment, b.Fragment = "", ""
	a.RawFragment, b.RawFragment = "", ""
	return a.String() == b.String()
}

// parsePage extracts the title and body of a full page
func parsePage(markup string) (string, *html.Node, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse page: %w", err)
	}
	body := gq.Find("body").First()
	if body.Length() == 0 {
		return "", nil, fmt.Errorf("failed to parse page: %w", dom.ErrEmptyMarkup)
	}
	node := body.Nodes[0]
	dom.Detach(node)
	return strings.TrimSpace(gq.Find("title").First().Text()), node, nil
}
