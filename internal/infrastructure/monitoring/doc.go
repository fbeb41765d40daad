/*
Package monitoring provides Prometheus metrics for the reactor client.

# Overview

Each client runtime owns a private registry, so several clients (or tests)
can run in one process without colliding on metric names.

# Features

- Protocol traffic per command, in and out
- Messages dropped while the channel was down
- Protocol violations by kind (range, command, envelope)
- Transport connectivity and reconnects
- Live component count, joins and leaves
- Navigations, failures, stale fetches, fetch latency
- Navigation cache size and evictions

# Usage

	metrics := monitoring.NewMetrics()
	http.Handle("/metrics", metrics.Handler())

	metrics.MessageIn("render")
	metrics.SetComponents(3)
*/
package monitoring
