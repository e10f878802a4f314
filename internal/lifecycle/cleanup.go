package lifecycle

import (
	"context"
	"time"

	"github.com/jessegoodier/kdebug/internal/k8s"
	"github.com/jessegoodier/kdebug/internal/logging"
)

// terminateTimeout bounds the cleanup attempt so a wedged connection
// cannot hold the process open after the operation finished.
const terminateTimeout = 15 * time.Second

// Terminator releases a debug session's remote resources. It is a
// capability injected into the controller so the signal-based kill can be
// swapped for a native ephemeral-container delete if the API ever grows
// one, without touching caller code.
type Terminator interface {
	Terminate(ctx context.Context, session *DebugSession) error
}

// processTerminator kills the debug container's root process. Ephemeral
// containers have no delete verb; the kubelet treats the death of PID 1 as
// the container's end.
type processTerminator struct {
	cluster k8s.Client
}

func (t *processTerminator) Terminate(ctx context.Context, session *DebugSession) error {
	// The kill takes the shell down with it, so a nonzero exit or a
	// severed stream is the expected outcome.
	_, err := t.cluster.Exec(ctx, session.Pod.Namespace, session.Pod.Name, session.DebugContainer,
		[]string{"sh", "-c", "kill -9 1"}, k8s.ExecOptions{})
	return err
}

// release terminates the debug container's process. It runs on every exit
// path once a session exists, detached from the invocation context so an
// interrupt cannot skip it. Failures are logged, never escalated: the
// container is also reaped when the pod terminates.
func (c *Controller) release(session *DebugSession) {
	if session == nil {
		return
	}

	c.logger.Info("cleaning up debug container", logging.Container(session.DebugContainer))

	ctx, cancel := context.WithTimeout(context.Background(), terminateTimeout)
	defer cancel()

	if err := c.terminator.Terminate(ctx, session); err != nil {
		c.logger.Warn("debug container cleanup failed",
			logging.Container(session.DebugContainer), logging.Err(err))
		return
	}
	c.logger.Info("debug container cleanup initiated", logging.Container(session.DebugContainer))
}
