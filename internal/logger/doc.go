// Package logger provides a simple, thread-safe logging facility.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each log entry includes a timestamp, level, optional waiter or component
// ID, and message. Output is rendered by charmbracelet/log in one of three
// formats: text (default), logfmt, or json.
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "Application started")
//	logger.Info("pool", "Worker started")
//	logger.Error("pool", "Failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.NewWithOptions(os.Stderr, logger.Options{
//	    Level:  logger.LevelDebug,
//	    Format: logger.FormatJSON,
//	})
//	l.Debug("semaphore", "Debug message")
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// # Thread Safety
//
// All logging operations are safe for concurrent use.
package logger
