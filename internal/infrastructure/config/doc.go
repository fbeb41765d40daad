// Package config provides 12-factor configuration for the reactor client.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables. CLI flags in cmd/reactor override all of them.
//
// Configuration Sections:
//   - Client: page URL and paint frame interval
//   - Transport: duplex channel path and reconnect window
//   - Navigation: history cache capacity and link boosting
//   - Fetch: page fetch timeout, retries, rate limit and breaker
//   - Logging: log level and output format
//   - Metrics: Prometheus exposition address
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("cache holds %d pages\n", cfg.Navigation.CacheSize)
//
// Environment Variables:
//   - REACTOR_URL, REACTOR_PATH, REACTOR_FRAME_INTERVAL
//   - REACTOR_RECONNECT_MIN, REACTOR_RECONNECT_MAX, REACTOR_HANDSHAKE_TIMEOUT
//   - REACTOR_CACHE_SIZE, REACTOR_BOOST
//   - REACTOR_FETCH_TIMEOUT, REACTOR_FETCH_RETRIES, REACTOR_FETCH_RPS
//   - LOG_LEVEL, LOG_DEV, METRICS_ADDR
package config
