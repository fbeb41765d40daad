package monitoring

import "time"

// Recording helpers. All of them accept a nil receiver so components can be
// built without metrics.

// MessageIn counts an inbound message
func (m *Metrics) MessageIn(command string) {
	if m == nil {
		return
	}
	m.MessagesIn.WithLabelValues(command).Inc()
}

// MessageOut counts a delivered outbound message
func (m *Metrics) MessageOut(command string) {
	if m == nil {
		return
	}
	m.MessagesOut.WithLabelValues(command).Inc()
}

// MessageDropped counts an outbound message dropped while disconnected
func (m *Metrics) MessageDropped(command string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(command).Inc()
}

// Violation counts a rejected inbound update
func (m *Metrics) Violation(kind string) {
	if m == nil {
		return
	}
	m.ProtocolViolations.WithLabelValues(kind).Inc()
}

// SetConnected records the channel state
func (m *Metrics) SetConnected(open bool) {
	if m == nil {
		return
	}
	if open {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

// Reconnected counts a successful reconnection
func (m *Metrics) Reconnected() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// SetComponents records the registry size
func (m *Metrics) SetComponents(n int) {
	if m == nil {
		return
	}
	m.ComponentsLive.Set(float64(n))
}

// Joined counts a join message
func (m *Metrics) Joined() {
	if m == nil {
		return
	}
	m.Joins.Inc()
}

// Left counts a leave message
func (m *Metrics) Left() {
	if m == nil {
		return
	}
	m.Leaves.Inc()
}

// Navigated counts a navigation of the given kind
func (m *Metrics) Navigated(kind string) {
	if m == nil {
		return
	}
	m.Navigations.WithLabelValues(kind).Inc()
}

// NavigationFailed counts a failed page fetch
func (m *Metrics) NavigationFailed() {
	if m == nil {
		return
	}
	m.NavigationFailures.Inc()
}

// StaleFetch counts a superseded page fetch
func (m *Metrics) StaleFetch() {
	if m == nil {
		return
	}
	m.StaleFetches.Inc()
}

// ObserveFetch records a page fetch duration
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// SetCacheEntries records the navigation cache size
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// Evicted counts a navigation cache eviction
func (m *Metrics) Evicted() {
	if m == nil {
		return
	}
	m.CacheEvictions.Inc()
}
