// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Every runtime component receives a named child logger (transport, router,
// registry, navigation). Protocol traffic is logged at debug level with the
// direction markers "<<<" (inbound) and ">>>" (outbound).
//
// Example Usage:
//
//	logger := logging.NewOrNop(logging.DefaultConfig())
//	log := logging.Component(logger, "transport")
//	log.Info("connected", zap.String("endpoint", endpoint))
package logging
