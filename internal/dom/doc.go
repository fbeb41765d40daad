/*
Package dom provides the host document abstraction used by the reactor runtime.

# Overview

The runtime never talks to a real browser. It owns an in-memory HTML tree
(golang.org/x/net/html) plus the small amount of live browser state the
protocol depends on:

  - Location of the current page (origin checks, query strings)
  - Document title
  - Focus (one focused element, dropped when it leaves the tree)
  - Vertical scroll offset and scroll-into-view requests
  - Form control state (value, checked, selected) mirrored as attributes
  - Event listeners with bubbling and default actions

# Queries

CSS selectors go through goquery (cascadia). Ancestor scoping is explicit:
Closest returns the nearest inclusive ancestor matching a predicate, or nil.

# Threading

A Document is not safe for concurrent use. It is mutated only from the
reactor event loop.
*/
package dom
