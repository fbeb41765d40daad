// Package main is the entry point for the headless reactor client.
//
// The client loads a page from a reactor application, joins every component
// it finds over the duplex channel and keeps the document in sync with the
// server until interrupted.
//
// Configuration:
//   - Defaults for development
//   - Optional YAML file (--config)
//   - Environment variables (12-factor, override the file)
//   - CLI flags (override both)
//
// Usage:
//
//	# Follow a page
//	./reactor --url http://localhost:8000/
//
//	# Debug protocol traffic, expose metrics
//	./reactor --url http://localhost:8000/ --log-level debug --dev --metrics-addr :9090
package main
