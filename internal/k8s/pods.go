package k8s

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"

	"golang.org/x/term"
)

// GetPod retrieves a single pod descriptor.
func (c *kubernetesClient) GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod %s/%s: %w", namespace, name, err)
	}
	return pod, nil
}

// ListPods retrieves all pods in a namespace in listing order.
func (c *kubernetesClient) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	list, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in namespace %s: %w", namespace, err)
	}
	return list.Items, nil
}

// CreateEphemeralContainer submits an ephemeral-container creation request
// via the pod's ephemeralcontainers subresource. The API server accepts the
// mutation before the kubelet schedules the container, so the call returns
// as soon as the request is submitted.
func (c *kubernetesClient) CreateEphemeralContainer(ctx context.Context, spec EphemeralContainerSpec) error {
	pods := c.clientset.CoreV1().Pods(spec.Namespace)

	pod, err := pods.Get(ctx, spec.PodName, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("failed to get pod %s/%s: %w", spec.Namespace, spec.PodName, err)
	}

	ec := corev1.EphemeralContainer{
		EphemeralContainerCommon: corev1.EphemeralContainerCommon{
			Name:                     spec.Name,
			Image:                    spec.Image,
			Command:                  spec.Command,
			ImagePullPolicy:          corev1.PullIfNotPresent,
			Stdin:                    true,
			TTY:                      true,
			TerminationMessagePolicy: corev1.TerminationMessageReadFile,
		},
		TargetContainerName: spec.TargetContainer,
	}
	if spec.AsRoot {
		rootUID := int64(0)
		ec.SecurityContext = &corev1.SecurityContext{RunAsUser: &rootUID}
	}

	c.logCommand("create-ephemeral-container", spec.Namespace, spec.PodName, spec.Name, spec.Command)

	pod.Spec.EphemeralContainers = append(pod.Spec.EphemeralContainers, ec)
	if _, err := pods.UpdateEphemeralContainers(ctx, spec.PodName, pod, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to create ephemeral container in pod %s/%s: %w", spec.Namespace, spec.PodName, err)
	}
	return nil
}

// Exec runs a command in a container and returns its exit code. Output is
// captured through the options' writers.
func (c *kubernetesClient) Exec(ctx context.Context, namespace, pod, container string, command []string, opts ExecOptions) (int, error) {
	c.logCommand("exec", namespace, pod, container, command)

	streamOpts := remotecommand.StreamOptions{
		Stdin:  opts.Stdin,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
		Tty:    opts.TTY,
	}
	return c.stream(ctx, namespace, pod, container, command, streamOpts)
}

// ExecAttached runs a command with the local terminal attached. Stdin is
// switched to raw mode for the duration of the session so control sequences
// reach the remote process instead of the local shell.
func (c *kubernetesClient) ExecAttached(ctx context.Context, namespace, pod, container string, command []string) (int, error) {
	c.logCommand("exec-attached", namespace, pod, container, command)

	streamOpts := remotecommand.StreamOptions{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Tty:    true,
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return -1, fmt.Errorf("failed to put terminal into raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, state) }()

		if width, height, err := term.GetSize(fd); err == nil {
			streamOpts.TerminalSizeQueue = newSizeQueue(uint16(width), uint16(height))
		}
	}

	return c.stream(ctx, namespace, pod, container, command, streamOpts)
}

// stream drives a SPDY exec request and translates the remote exit status.
func (c *kubernetesClient) stream(ctx context.Context, namespace, pod, container string, command []string, streamOpts remotecommand.StreamOptions) (int, error) {
	restConfig, err := c.getRestConfig()
	if err != nil {
		return -1, err
	}

	execReq := c.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(pod).
		Namespace(namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: container,
			Command:   command,
			Stdin:     streamOpts.Stdin != nil,
			Stdout:    streamOpts.Stdout != nil,
			Stderr:    streamOpts.Stderr != nil,
			TTY:       streamOpts.Tty,
		}, scheme.ParameterCodec)

	exec, err := remotecommand.NewSPDYExecutor(restConfig, http.MethodPost, execReq.URL())
	if err != nil {
		return -1, fmt.Errorf("failed to create executor: %w", err)
	}

	if err := exec.StreamWithContext(ctx, streamOpts); err != nil {
		// The remote exit status arrives as a CodeExitError; a nonzero
		// exit is a command outcome, not a transport failure.
		var codeErr utilexec.CodeExitError
		if errors.As(err, &codeErr) {
			return codeErr.Code, nil
		}
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return -1, fmt.Errorf("failed to execute command in pod %s/%s: %w", namespace, pod, err)
	}
	return 0, nil
}

// CopyFromPod copies a file or directory out of a container by streaming a
// tar archive produced inside the container, the same mechanism kubectl cp
// uses. The archive root is mapped onto localPath.
func (c *kubernetesClient) CopyFromPod(ctx context.Context, namespace, pod, container, remotePath, localPath string) error {
	c.logCommand("copy-from-pod", namespace, pod, container, []string{"tar", "cf", "-", remotePath})

	reader, writer := io.Pipe()

	go func() {
		var stderr bytes.Buffer
		code, err := c.Exec(ctx, namespace, pod, container, []string{"tar", "cf", "-", remotePath}, ExecOptions{
			Stdout: writer,
			Stderr: &stderr,
		})
		if err == nil && code != 0 {
			err = fmt.Errorf("tar exited with code %d: %s", code, stderr.String())
		}
		_ = writer.CloseWithError(err)
	}()

	if err := untarAll(reader, remotePath, localPath); err != nil {
		return fmt.Errorf("failed to copy %s from pod %s/%s: %w", remotePath, namespace, pod, err)
	}
	return nil
}

// sizeQueue reports the initial terminal size once and then blocks; the
// process exits with the session, so resize propagation is not needed.
type sizeQueue struct {
	ch chan *remotecommand.TerminalSize
}

func newSizeQueue(width, height uint16) *sizeQueue {
	q := &sizeQueue{ch: make(chan *remotecommand.TerminalSize, 1)}
	q.ch <- &remotecommand.TerminalSize{Width: width, Height: height}
	return q
}

func (q *sizeQueue) Next() *remotecommand.TerminalSize {
	return <-q.ch
}
