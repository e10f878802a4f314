package k8s

import (
	"context"
	"io"

	corev1 "k8s.io/api/core/v1"
)

// Client is the cluster query facade consumed by the lifecycle controller.
type Client interface {
	// GetPod retrieves a single pod descriptor.
	GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error)

	// ListPods retrieves all pods in a namespace in listing order.
	ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error)

	// CreateEphemeralContainer submits an ephemeral-container creation
	// request scoped to a pod. The control plane accepts the mutation
	// before the container is scheduled; the call returns once the
	// request is submitted, not when the container runs.
	CreateEphemeralContainer(ctx context.Context, spec EphemeralContainerSpec) error

	// Exec runs a command in a container and returns its exit code.
	// Output is captured through the options' writers.
	Exec(ctx context.Context, namespace, pod, container string, command []string, opts ExecOptions) (int, error)

	// ExecAttached runs a command in a container with the local terminal
	// attached (TTY, raw mode) and returns the remote exit code.
	ExecAttached(ctx context.Context, namespace, pod, container string, command []string) (int, error)

	// CopyFromPod copies a file or directory out of a container to a
	// local path.
	CopyFromPod(ctx context.Context, namespace, pod, container, remotePath, localPath string) error

	// DefaultNamespace returns the namespace of the active kubeconfig
	// context, or "default" when the context does not set one.
	DefaultNamespace() string
}

// EphemeralContainerSpec describes an ephemeral-container creation request.
type EphemeralContainerSpec struct {
	Namespace string
	PodName   string

	// Name is the proposed container name. Identity is still confirmed
	// by the caller via inventory diffing.
	Name string

	// TargetContainer enables process-namespace sharing with the named
	// container.
	TargetContainer string

	Image   string
	Command []string

	// AsRoot overrides the security context to run as UID 0.
	AsRoot bool
}

// ExecOptions configures command execution with captured output.
type ExecOptions struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	TTY    bool
}
