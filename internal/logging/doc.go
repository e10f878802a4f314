// Package logging provides structured logging utilities for kdebug.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "provision")
//	logger.Info("debug container created",
//	    logging.Namespace("default"),
//	    logging.Pod("web-0"),
//	    logging.Container("debugger-x7k2p"))
//
// The verbose flag passed to New replaces what would otherwise be a
// process-wide debug variable: at Debug level, every command issued against
// the cluster is traced with logging.Command.
package logging
