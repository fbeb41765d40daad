// Package navigation implements boosted page navigation: link interception,
// in-memory page snapshots for instant back/forward, browser history
// emulation and page fetching.
package navigation

import (
	"net/url"

	"github.com/GriffinCanCode/reactor/internal/infrastructure/monitoring"
)

// DefaultCacheSize is the number of page snapshots kept
const DefaultCacheSize = 10

// Entry is a snapshot of a rendered page
type Entry struct {
	URL     string
	Content string
	Title   string
	ScrollY int
}

// Cache holds the most recently saved pages, oldest first. Saving a URL that
// is already present replaces its entry and moves it to the newest position.
type Cache struct {
	max     int
	entries []Entry
	metrics *monitoring.Metrics
}

// NewCache creates a cache holding at most max entries
func NewCache(max int, metrics *monitoring.Metrics) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{max: max, metrics: metrics}
}

// Put stores e and returns the entry evicted to make room, if any
func (c *Cache) Put(e Entry) (Entry, bool) {
	kept := c.entries[:0]
	for _, old := range c.entries {
		if old.URL != e.URL {
			kept = append(kept, old)
		}
	}
	c.entries = append(kept, e)

	var evicted Entry
	ok := false
	if len(c.entries) > c.max {
		evicted, ok = c.entries[0], true
		c.entries = append(c.entries[:0:0], c.entries[1:]...)
		c.metrics.Evicted()
	}
	c.metrics.SetCacheEntries(len(c.entries))
	return evicted, ok
}

// Get returns the entry saved for url
func (c *Cache) Get(url string) (Entry, bool) {
	for _, e := range c.entries {
		if e.URL == url {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of entries
func (c *Cache) Len() int {
	return len(c.entries)
}

// Cap returns the capacity
func (c *Cache) Cap() int {
	return c.max
}

// URLs lists cached URLs, oldest first
func (c *Cache) URLs() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.URL
	}
	return out
}

// Normalize returns the cache key of u: its path plus query string
func Normalize(u *url.URL) string {
	if u == nil {
		return "/"
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		return path + "?" + u.RawQuery
	}
	return path
}
