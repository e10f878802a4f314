package logging

import (
	"log/slog"
	"os"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyNamespace = "namespace"
	KeyPod       = "pod"
	KeyContainer = "container"
	KeyImage     = "image"
	KeyCommand   = "command"
	KeyReason    = "reason"
	KeyExitCode  = "exit_code"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyPath      = "path"
)

// Status values for consistent logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// New returns a text logger writing to stderr. Verbose drops the level to
// Debug, which also enables tracing of every command issued against the
// cluster. The flag is threaded through explicitly rather than held in
// package state so the core stays testable in isolation.
func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Namespace returns a slog attribute for the namespace.
func Namespace(ns string) slog.Attr {
	return slog.String(KeyNamespace, ns)
}

// Pod returns a slog attribute for the pod name.
func Pod(name string) slog.Attr {
	return slog.String(KeyPod, name)
}

// Container returns a slog attribute for a container name.
func Container(name string) slog.Attr {
	return slog.String(KeyContainer, name)
}

// Image returns a slog attribute for a container image.
func Image(image string) slog.Attr {
	return slog.String(KeyImage, image)
}

// Command returns a slog attribute for a command issued against the cluster.
func Command(args []string) slog.Attr {
	return slog.Any(KeyCommand, args)
}

// Reason returns a slog attribute for a container state reason.
func Reason(reason string) slog.Attr {
	return slog.String(KeyReason, reason)
}

// Path returns a slog attribute for a filesystem path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
