package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	utilrand "k8s.io/apimachinery/pkg/util/rand"

	"github.com/jessegoodier/kdebug/internal/k8s"
	"github.com/jessegoodier/kdebug/internal/logging"
)

// provision creates the ephemeral debug container and waits for it to run.
//
// The created container's identity is confirmed by set difference between
// ephemeral-container snapshots taken immediately before and after the
// creation request. The proposed name is only a hint: anything other than
// exactly one new name is an identity failure.
func (c *Controller) provision(ctx context.Context, ref PodRef, targetContainer string) (*DebugSession, error) {
	pre, err := c.fetchInventory(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(pre.EphemeralContainers) > 0 {
		// Reuse is detected but never acted upon; a new container is
		// always created.
		c.logger.Info("existing ephemeral containers present, creating a new debug container",
			"existing", strings.Join(pre.EphemeralContainers, ","))
	}

	c.logger.Info("launching debug container",
		logging.Pod(ref.Name), logging.Namespace(ref.Namespace), logging.Image(c.cfg.DebugImage))

	spec := k8s.EphemeralContainerSpec{
		Namespace:       ref.Namespace,
		PodName:         ref.Name,
		Name:            "debugger-" + utilrand.String(5),
		TargetContainer: targetContainer,
		Image:           c.cfg.DebugImage,
		Command:         holdCommand,
		AsRoot:          c.cfg.AsRoot,
	}
	if err := c.cluster.CreateEphemeralContainer(ctx, spec); err != nil {
		return nil, err
	}

	// Give the control plane a moment to register the container before
	// re-reading the pod spec.
	if !sleepContext(ctx, c.cfg.SettleDelay) {
		return nil, fmt.Errorf("%w", ErrInterrupted)
	}

	post, err := c.fetchInventory(ctx, ref)
	if err != nil {
		return nil, err
	}

	created := diffNames(post.EphemeralContainers, pre.EphemeralContainers)
	if len(created) != 1 {
		return nil, fmt.Errorf("%w: found %d new ephemeral containers", ErrProvisionIdentityAmbiguous, len(created))
	}

	session := &DebugSession{
		Pod:             ref,
		TargetContainer: targetContainer,
		DebugContainer:  created[0],
		Image:           c.cfg.DebugImage,
		AsRoot:          c.cfg.AsRoot,
	}
	c.logger.Info("created debug container", logging.Container(session.DebugContainer))

	if err := c.waitForRunning(ctx, ref, session.DebugContainer); err != nil {
		return nil, err
	}
	return session, nil
}

// waitForRunning polls the pod's ephemeral-container status entries until
// the named container runs, reaches a terminal state, or the timeout
// elapses. Fetch failures are transient ticks; stability of the loop takes
// priority over any single bad read.
func (c *Controller) waitForRunning(ctx context.Context, ref PodRef, container string) error {
	c.logger.Info("waiting for debug container to be running", logging.Container(container))

	deadline := time.Now().Add(c.cfg.PollTimeout)
	lastReason := ""

	for {
		pod, err := c.cluster.GetPod(ctx, ref.Namespace, ref.Name)
		if err != nil {
			c.logger.Warn("transient pod fetch failure while polling", logging.Err(err))
		} else {
			state := ephemeralContainerState(pod, container)
			switch state.Kind {
			case StateRunning:
				c.logger.Info("debug container is running", logging.Container(container))
				return nil

			case StateWaiting:
				if _, terminal := terminalWaitingReasons[state.Reason]; terminal {
					c.logger.Error("debug container failed to start",
						logging.Reason(state.Reason), "message", state.Message)
					return &ProvisionError{Container: container, Reason: state.Reason, Message: state.Message}
				}
				if state.Reason != lastReason {
					c.logger.Info("container status", logging.Reason(state.Reason))
					lastReason = state.Reason
				}

			case StateTerminated:
				c.logger.Error("debug container terminated",
					logging.Reason(state.Reason), "exit_code", state.ExitCode, "message", state.Message)
				return &ProvisionError{
					Container:  container,
					Reason:     state.Reason,
					Message:    state.Message,
					Terminated: true,
					ExitCode:   state.ExitCode,
				}

			case StateUnknown:
				if lastReason != "Initializing" {
					c.logger.Info("container status", logging.Reason("Initializing"))
					lastReason = "Initializing"
				}
			}
		}

		if time.Now().After(deadline) {
			if lastReason != "" {
				return fmt.Errorf("%w after %s (last status: %s)", ErrProvisionTimedOut, c.cfg.PollTimeout, lastReason)
			}
			return fmt.Errorf("%w after %s", ErrProvisionTimedOut, c.cfg.PollTimeout)
		}
		if !sleepContext(ctx, c.cfg.PollInterval) {
			return fmt.Errorf("%w", ErrInterrupted)
		}
	}
}

// diffNames returns the names in post that are absent from pre.
func diffNames(post, pre []string) []string {
	seen := make(map[string]struct{}, len(pre))
	for _, name := range pre {
		seen[name] = struct{}{}
	}
	var created []string
	for _, name := range post {
		if _, ok := seen[name]; !ok {
			created = append(created, name)
		}
	}
	return created
}

// sleepContext sleeps for d, returning false if the context is canceled
// first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
