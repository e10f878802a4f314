package lifecycle

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/jessegoodier/kdebug/internal/logging"
)

// resolvePod determines the single target pod from the configured
// selection: a direct pod name, or a controller kind + name resolved
// through owner references.
func (c *Controller) resolvePod(ctx context.Context) (PodRef, error) {
	namespace := c.cfg.Namespace
	if namespace == "" {
		namespace = c.cluster.DefaultNamespace()
	}

	if c.cfg.PodName != "" {
		return c.resolveDirect(ctx, namespace)
	}
	return c.resolveByController(ctx, namespace)
}

func (c *Controller) resolveDirect(ctx context.Context, namespace string) (PodRef, error) {
	c.logger.Info("looking up pod", logging.Pod(c.cfg.PodName), logging.Namespace(namespace))

	pod, err := c.cluster.GetPod(ctx, namespace, c.cfg.PodName)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return PodRef{}, fmt.Errorf("%w: %q in namespace %q", ErrNotFound, c.cfg.PodName, namespace)
		}
		return PodRef{}, err
	}
	return PodRef{Name: pod.Name, Namespace: namespace}, nil
}

func (c *Controller) resolveByController(ctx context.Context, namespace string) (PodRef, error) {
	kind, err := ParseControllerKind(c.cfg.Controller)
	if err != nil {
		return PodRef{}, err
	}
	ref := ControllerRef{Kind: kind, Name: c.cfg.ControllerName}

	c.logger.Info("searching for pods",
		logging.Operation("resolve"),
		logging.Namespace(namespace),
		"controller_kind", string(ref.Kind),
		"controller_name", ref.Name,
	)

	pods, err := c.cluster.ListPods(ctx, namespace)
	if err != nil {
		return PodRef{}, err
	}

	var matches []PodRef
	for _, pod := range pods {
		if ownedByController(&pod, ref) {
			matches = append(matches, PodRef{Name: pod.Name, Namespace: namespace})
		}
	}

	if len(matches) == 0 {
		return PodRef{}, fmt.Errorf("%w: no pods found for %s %q in namespace %q",
			ErrNoMatchingPods, strings.ToLower(string(ref.Kind)), ref.Name, namespace)
	}
	if len(matches) > 1 {
		c.logger.Warn("multiple pods matched, selecting first in listing order",
			"matched", len(matches), logging.Pod(matches[0].Name))
	}
	return matches[0], nil
}

// ownedByController reports whether a pod belongs to the referenced
// controller. StatefulSets and DaemonSets own pods directly, so an exact
// owner-reference kind+name match suffices. Deployments own ReplicaSets,
// not pods; the "<deployment>-" ReplicaSet name prefix bridges that
// indirection without an extra lookup.
func ownedByController(pod *corev1.Pod, ref ControllerRef) bool {
	for _, owner := range pod.OwnerReferences {
		if owner.Kind == string(ref.Kind) && owner.Name == ref.Name {
			return true
		}
	}
	if ref.Kind == KindDeployment {
		for _, owner := range pod.OwnerReferences {
			if owner.Kind == "ReplicaSet" && strings.HasPrefix(owner.Name, ref.Name+"-") {
				return true
			}
		}
	}
	return false
}
