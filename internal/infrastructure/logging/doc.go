// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("server starting", zap.String("port", "3000"))
//	logger.Error("model call failed", zap.Error(err))
package logging
