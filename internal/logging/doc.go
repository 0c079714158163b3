// Package logging provides structured logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Library code receives a *Logger and defaults to NewNop, so embedding
// programs decide whether sessions log at all.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	logger.Info("Session started", zap.String("session_id", id))
//	logger.Warn("Close failed", zap.Error(err))
package logging
