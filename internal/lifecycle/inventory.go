package lifecycle

import (
	"context"
	"fmt"

	"github.com/jessegoodier/kdebug/internal/logging"
)

// fetchInventory takes a snapshot of the pod's declared containers,
// partitioned by the spec section they appear in.
func (c *Controller) fetchInventory(ctx context.Context, ref PodRef) (ContainerInventory, error) {
	pod, err := c.cluster.GetPod(ctx, ref.Namespace, ref.Name)
	if err != nil {
		return ContainerInventory{}, err
	}

	var inv ContainerInventory
	for _, container := range pod.Spec.Containers {
		inv.Containers = append(inv.Containers, container.Name)
	}
	for _, container := range pod.Spec.InitContainers {
		inv.InitContainers = append(inv.InitContainers, container.Name)
	}
	for _, container := range pod.Spec.EphemeralContainers {
		inv.EphemeralContainers = append(inv.EphemeralContainers, container.Name)
	}
	return inv, nil
}

// selectTarget returns the configured target container, or auto-selects
// the first regular container when none is configured.
func (c *Controller) selectTarget(inv ContainerInventory) (string, error) {
	if c.cfg.TargetContainer != "" {
		return c.cfg.TargetContainer, nil
	}
	if len(inv.Containers) == 0 {
		return "", fmt.Errorf("%w", ErrNoContainers)
	}
	target := inv.Containers[0]
	c.logger.Info("no target container specified, auto-selecting first regular container",
		logging.Container(target))
	return target, nil
}
