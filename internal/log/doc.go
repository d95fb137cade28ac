// Package log provides logging with automatic path redaction, built on
// top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic redaction of the user's home directory in logged paths
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Why redact paths
//
// Conversion logs carry many filesystem paths: project directories, job
// files, and output artifacts. Those paths embed the user's home
// directory and account name, which should not leak into logs that are
// attached to bug reports or shared alongside exported environments.
// The RedactHandler rewrites the home directory prefix to "~" before
// the record reaches the underlying handler.
//
// # Usage
//
//	// Create a logger with path redaction
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("job loaded",
//	    "job", "/home/alice/boards/demo/demo-job.gbrjob", // logged as ~/boards/demo/demo-job.gbrjob
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
