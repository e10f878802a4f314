package lifecycle

import (
	"fmt"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
)

// DefaultDebugImage is the diagnostic image used when none is configured.
const DefaultDebugImage = "ghcr.io/jessegoodier/toolbox:latest"

// Defaults for the provisioning state machine.
const (
	DefaultSettleDelay  = 2 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 60 * time.Second
	DefaultBackupRoot   = "./backups"
	DefaultCommand      = "bash"
)

// holdCommand keeps the ephemeral container alive until it is reaped.
var holdCommand = []string{"sleep", "300"}

// remoteArchivePath is the temporary archive location for compressed backups.
const remoteArchivePath = "/tmp/kdebug-backup.tar.gz"

// PodRef identifies a pod uniquely within a cluster. Immutable once resolved.
type PodRef struct {
	Name      string
	Namespace string
}

func (p PodRef) String() string {
	return p.Namespace + "/" + p.Name
}

// ControllerKind is a workload controller type supported for pod lookup.
type ControllerKind string

const (
	KindDeployment  ControllerKind = "Deployment"
	KindStatefulSet ControllerKind = "StatefulSet"
	KindDaemonSet   ControllerKind = "DaemonSet"
)

// controllerAliases maps accepted CLI spellings to controller kinds.
var controllerAliases = map[string]ControllerKind{
	"deployment":  KindDeployment,
	"deploy":      KindDeployment,
	"statefulset": KindStatefulSet,
	"sts":         KindStatefulSet,
	"daemonset":   KindDaemonSet,
	"ds":          KindDaemonSet,
}

// ParseControllerKind normalizes a controller type alias.
func ParseControllerKind(alias string) (ControllerKind, error) {
	kind, ok := controllerAliases[strings.ToLower(alias)]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)",
			ErrUnknownControllerType, alias, strings.Join(SupportedControllerAliases(), ", "))
	}
	return kind, nil
}

// SupportedControllerAliases returns the accepted --controller values.
func SupportedControllerAliases() []string {
	aliases := make([]string, 0, len(controllerAliases))
	for alias := range controllerAliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// ControllerRef names a workload controller for pod lookup. It is consumed
// during resolution and never persisted beyond it.
type ControllerRef struct {
	Kind ControllerKind
	Name string
}

// ContainerInventory is a point-in-time partition of a pod's declared
// containers. It is a snapshot, not a live view; re-fetch to observe
// changes.
type ContainerInventory struct {
	Containers          []string
	InitContainers      []string
	EphemeralContainers []string
}

// ContainerStateKind discriminates the ContainerState union.
type ContainerStateKind int

const (
	StateUnknown ContainerStateKind = iota
	StateRunning
	StateWaiting
	StateTerminated
)

// ContainerState is the observed state of an ephemeral container, derived
// from the pod's ephemeral-container status entries.
type ContainerState struct {
	Kind     ContainerStateKind
	Reason   string
	Message  string
	ExitCode int32
}

// ephemeralContainerState looks up the state of the named ephemeral
// container in a pod descriptor. Missing status entries yield StateUnknown.
func ephemeralContainerState(pod *corev1.Pod, name string) ContainerState {
	for _, status := range pod.Status.EphemeralContainerStatuses {
		if status.Name != name {
			continue
		}
		switch {
		case status.State.Running != nil:
			return ContainerState{Kind: StateRunning}
		case status.State.Waiting != nil:
			return ContainerState{
				Kind:    StateWaiting,
				Reason:  status.State.Waiting.Reason,
				Message: status.State.Waiting.Message,
			}
		case status.State.Terminated != nil:
			return ContainerState{
				Kind:     StateTerminated,
				Reason:   status.State.Terminated.Reason,
				Message:  status.State.Terminated.Message,
				ExitCode: status.State.Terminated.ExitCode,
			}
		}
		return ContainerState{Kind: StateUnknown}
	}
	return ContainerState{Kind: StateUnknown}
}

// terminalWaitingReasons are waiting reasons that indicate a terminal
// misconfiguration; polling stops immediately when one is observed.
var terminalWaitingReasons = map[string]struct{}{
	"ImagePullBackOff":           {},
	"ErrImagePull":               {},
	"CrashLoopBackOff":           {},
	"CreateContainerError":       {},
	"InvalidImageName":           {},
	"CreateContainerConfigError": {},
}

// DebugSession describes a provisioned debug container. It lives for the
// process lifetime only; at most one session is active per invocation.
type DebugSession struct {
	Pod             PodRef
	TargetContainer string
	DebugContainer  string
	Image           string
	AsRoot          bool
}

// BackupResult is produced on a successful backup operation.
type BackupResult struct {
	SourcePath string
	LocalPath  string
	Compressed bool
}

// Config is the validated configuration for one lifecycle invocation.
// The CLI populates it from flags; tests populate it directly.
type Config struct {
	// Pod selection: either PodName, or Controller + ControllerName.
	PodName        string
	Controller     string
	ControllerName string

	// Namespace falls back to the kubeconfig context namespace when empty.
	Namespace string

	// TargetContainer is auto-selected from the pod spec when empty.
	TargetContainer string

	DebugImage string
	AsRoot     bool

	// Interactive operation.
	Command string
	CdInto  string

	// Backup operation; non-empty BackupPath selects it.
	BackupPath string
	Compress   bool
	BackupRoot string

	// Provisioning state machine tuning.
	SettleDelay  time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.DebugImage == "" {
		c.DebugImage = DefaultDebugImage
	}
	if c.Command == "" {
		c.Command = DefaultCommand
	}
	if c.BackupRoot == "" {
		c.BackupRoot = DefaultBackupRoot
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = DefaultPollTimeout
	}
}
