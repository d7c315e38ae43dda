// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Output goes to stderr by default so the CLI's stdout stays a clean result
// stream.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Run complete", zap.Int("sandboxes", 3))
//	logger.Named("runner").Debug("execution failed", zap.Error(err))
package logging
