package lifecycle

import (
	"errors"
	"fmt"
)

// Sentinel errors for the debug-container lifecycle. Callers check these
// with errors.Is; every error returned from this package wraps exactly one
// of them (or is a transport error from the cluster facade).
var (
	// ErrNotFound indicates the directly named pod does not exist.
	ErrNotFound = errors.New("pod not found")

	// ErrUnknownControllerType indicates an unrecognized controller kind
	// alias was supplied.
	ErrUnknownControllerType = errors.New("unknown controller type")

	// ErrNoMatchingPods indicates the controller-based lookup matched no
	// pods in the namespace.
	ErrNoMatchingPods = errors.New("no matching pods")

	// ErrNoContainers indicates the target pod declares no regular
	// containers, so no target could be auto-selected.
	ErrNoContainers = errors.New("pod declares no regular containers")

	// ErrProvisionIdentityAmbiguous indicates the pre/post ephemeral
	// container snapshots did not differ by exactly one name, so the
	// newly created debug container could not be identified.
	ErrProvisionIdentityAmbiguous = errors.New("could not identify newly created debug container")

	// ErrProvisionFailed indicates the debug container reached a terminal
	// waiting or terminated state before running.
	ErrProvisionFailed = errors.New("debug container failed to start")

	// ErrProvisionTimedOut indicates the poll loop exhausted its timeout
	// without observing a running or terminal state.
	ErrProvisionTimedOut = errors.New("timed out waiting for debug container")

	// ErrBackupPathNotFound indicates the requested backup path does not
	// exist inside the container.
	ErrBackupPathNotFound = errors.New("backup path does not exist in container")

	// ErrBackupTransferFailed indicates the archive or transfer step of
	// the backup flow failed.
	ErrBackupTransferFailed = errors.New("backup transfer failed")

	// ErrInterrupted indicates the operation was cut short by a local
	// interrupt signal. It is distinguished from hard failure and maps to
	// exit code 130.
	ErrInterrupted = errors.New("interrupted by user")
)

// Process exit codes.
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// ExitCode maps an error from Run to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrInterrupted):
		return ExitInterrupted
	default:
		return ExitFailure
	}
}

// ProvisionError carries the terminal container state observed while
// waiting for the debug container to start.
type ProvisionError struct {
	Container string
	Reason    string
	Message   string

	// Terminated reports whether the container reached a terminated
	// state (vs. a terminal waiting reason such as ImagePullBackOff).
	Terminated bool

	// ExitCode is only meaningful when Terminated is true.
	ExitCode int32
}

// Error implements the error interface.
func (e *ProvisionError) Error() string {
	if e.Terminated {
		return fmt.Sprintf("debug container %s terminated: %s (exit code %d)", e.Container, e.Reason, e.ExitCode)
	}
	return fmt.Sprintf("debug container %s failed to start: %s", e.Container, e.Reason)
}

// Is allows ProvisionError to match ErrProvisionFailed with errors.Is.
func (e *ProvisionError) Is(target error) bool {
	return target == ErrProvisionFailed
}
