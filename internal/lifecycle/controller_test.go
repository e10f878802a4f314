package lifecycle

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jessegoodier/kdebug/internal/k8s"
)

type fakeTerminator struct {
	calls    int
	sessions []*DebugSession
	err      error
}

func (f *fakeTerminator) Terminate(_ context.Context, session *DebugSession) error {
	f.calls++
	f.sessions = append(f.sessions, session)
	return f.err
}

// readyCluster serves a pod whose debug container comes up running as soon
// as it is created.
func readyCluster() *fakeCluster {
	pre := podWithContainers("web-0", []string{"app", "sidecar"}, nil, nil)
	post := withEphemeralStatus(
		podWithContainers("web-0", []string{"app", "sidecar"}, nil, []string{"debugger-abcde"}),
		"debugger-abcde", runningState())
	return prePostCluster(pre, post)
}

func TestRun_InteractiveSuccess(t *testing.T) {
	cluster := readyCluster()
	c := newTestController(cluster, fastPoll)
	terminator := &fakeTerminator{}
	c.terminator = terminator

	code, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)

	require.Len(t, cluster.attachCalls, 1)
	assert.Equal(t, "debugger-abcde", cluster.attachCalls[0].Container)
	assert.Equal(t, []string{"bash"}, cluster.attachCalls[0].Command)

	require.Equal(t, 1, terminator.calls)
	assert.Equal(t, "debugger-abcde", terminator.sessions[0].DebugContainer)
}

func TestRun_CleanupRunsAfterSessionFailure(t *testing.T) {
	cluster := readyCluster()
	cluster.attachFn = func(container string, command []string) (int, error) {
		return 1, fmt.Errorf("error dialing backend")
	}
	c := newTestController(cluster, fastPoll)
	terminator := &fakeTerminator{}
	c.terminator = terminator

	code, err := c.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, 1, terminator.calls)
}

func TestRun_NoCleanupWhenProvisioningFails(t *testing.T) {
	cluster := &fakeCluster{
		pod: podWithContainers("web-0", []string{"app"}, nil, nil),
		createFn: func(spec k8s.EphemeralContainerSpec) error {
			return fmt.Errorf("ephemeralcontainers is forbidden")
		},
	}
	c := newTestController(cluster, fastPoll)
	terminator := &fakeTerminator{}
	c.terminator = terminator

	code, err := c.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, ExitFailure, code)
	assert.Zero(t, terminator.calls, "no session exists, nothing to release")
}

func TestRun_InterruptDuringSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cluster := readyCluster()
	cluster.attachFn = func(container string, command []string) (int, error) {
		cancel()
		return 1, context.Canceled
	}
	c := newTestController(cluster, fastPoll)
	terminator := &fakeTerminator{}
	c.terminator = terminator

	code, err := c.Run(ctx)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, ExitInterrupted, code)
	assert.Equal(t, 1, terminator.calls, "interrupt must still release the session")
}

func TestRun_Backup(t *testing.T) {
	cluster := readyCluster()
	cluster.execFn = execDispatcher(map[string]func(opts k8s.ExecOptions) (int, error){
		"ls -d": pathExists("/app/data"),
	})

	cfg := fastPoll
	cfg.BackupPath = "/app/data"
	cfg.Compress = true
	cfg.BackupRoot = t.TempDir()
	c := newTestController(cluster, cfg)
	terminator := &fakeTerminator{}
	c.terminator = terminator

	code, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)

	assert.Empty(t, cluster.attachCalls, "backup mode must not open an interactive session")
	require.Len(t, cluster.copyCalls, 1)
	assert.Equal(t, 1, terminator.calls)
}

func TestRun_ResolveFailure(t *testing.T) {
	cluster := &fakeCluster{}
	cfg := fastPoll
	cfg.PodName = ""
	cfg.Controller = "sts"
	cfg.ControllerName = "absent"
	c := newTestController(cluster, cfg)
	terminator := &fakeTerminator{}
	c.terminator = terminator

	code, err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoMatchingPods)
	assert.Equal(t, ExitFailure, code)
	assert.Zero(t, terminator.calls)
}

func TestRun_CleanupFailureDoesNotChangeOutcome(t *testing.T) {
	cluster := readyCluster()
	c := newTestController(cluster, fastPoll)
	c.terminator = &fakeTerminator{err: fmt.Errorf("connection refused")}

	code, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)
}

func TestProcessTerminator_KillsContainerInit(t *testing.T) {
	cluster := &fakeCluster{}
	terminator := &processTerminator{cluster: cluster}

	err := terminator.Terminate(context.Background(), testSession())
	require.NoError(t, err)

	require.Len(t, cluster.execCalls, 1)
	assert.Equal(t, "debugger-abcde", cluster.execCalls[0].Container)
	assert.Equal(t, []string{"sh", "-c", "kill -9 1"}, cluster.execCalls[0].Command)
}

func TestRun_UsesTargetContainerFromConfig(t *testing.T) {
	cluster := readyCluster()

	cfg := fastPoll
	cfg.TargetContainer = "sidecar"
	c := newTestController(cluster, cfg)
	c.terminator = &fakeTerminator{}

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, cluster.createCalls, 1)
	assert.Equal(t, "sidecar", cluster.createCalls[0].TargetContainer)
}
