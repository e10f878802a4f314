package lifecycle

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/jessegoodier/kdebug/internal/k8s"
)

// execCall records one command issued through the fake cluster.
type execCall struct {
	Container string
	Command   []string
}

// copyCall records one copy-from-pod request.
type copyCall struct {
	Container  string
	RemotePath string
	LocalPath  string
}

// fakeCluster implements k8s.Client for lifecycle tests. Behavior is
// driven by optional function fields; unset fields fall back to the
// stored pod state.
type fakeCluster struct {
	defaultNS string

	pod     *corev1.Pod
	podList []corev1.Pod

	getPodFn func(namespace, name string) (*corev1.Pod, error)
	createFn func(spec k8s.EphemeralContainerSpec) error
	execFn   func(container string, command []string, opts k8s.ExecOptions) (int, error)
	attachFn func(container string, command []string) (int, error)
	copyFn   func(container, remotePath, localPath string) error

	createCalls []k8s.EphemeralContainerSpec
	execCalls   []execCall
	attachCalls []execCall
	copyCalls   []copyCall
}

func (f *fakeCluster) GetPod(_ context.Context, namespace, name string) (*corev1.Pod, error) {
	if f.getPodFn != nil {
		return f.getPodFn(namespace, name)
	}
	if f.pod != nil && f.pod.Name == name {
		return f.pod.DeepCopy(), nil
	}
	return nil, fmt.Errorf("pod %s/%s missing from fake", namespace, name)
}

func (f *fakeCluster) ListPods(_ context.Context, _ string) ([]corev1.Pod, error) {
	return f.podList, nil
}

func (f *fakeCluster) CreateEphemeralContainer(_ context.Context, spec k8s.EphemeralContainerSpec) error {
	f.createCalls = append(f.createCalls, spec)
	if f.createFn != nil {
		return f.createFn(spec)
	}
	return nil
}

func (f *fakeCluster) Exec(_ context.Context, _, _, container string, command []string, opts k8s.ExecOptions) (int, error) {
	f.execCalls = append(f.execCalls, execCall{Container: container, Command: command})
	if f.execFn != nil {
		return f.execFn(container, command, opts)
	}
	return 0, nil
}

func (f *fakeCluster) ExecAttached(_ context.Context, _, _, container string, command []string) (int, error) {
	f.attachCalls = append(f.attachCalls, execCall{Container: container, Command: command})
	if f.attachFn != nil {
		return f.attachFn(container, command)
	}
	return 0, nil
}

func (f *fakeCluster) CopyFromPod(_ context.Context, _, _, container, remotePath, localPath string) error {
	f.copyCalls = append(f.copyCalls, copyCall{Container: container, RemotePath: remotePath, LocalPath: localPath})
	if f.copyFn != nil {
		return f.copyFn(container, remotePath, localPath)
	}
	return nil
}

func (f *fakeCluster) DefaultNamespace() string {
	if f.defaultNS == "" {
		return "default"
	}
	return f.defaultNS
}
