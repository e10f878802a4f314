package k8s

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Default client settings.
const (
	DefaultQPSLimit   = 20.0
	DefaultBurstLimit = 30
	DefaultTimeout    = 30 * time.Second
)

// ClientConfig holds configuration for the Kubernetes client.
type ClientConfig struct {
	// Kubeconfig settings
	KubeconfigPath string
	Context        string

	// Performance settings
	QPSLimit   float32
	BurstLimit int
	Timeout    time.Duration

	// Logging
	Logger *slog.Logger
}

// kubernetesClient implements the Client interface using client-go.
type kubernetesClient struct {
	config    *ClientConfig
	clientset kubernetes.Interface
	restFn    restConfigProvider
	namespace string
	logger    *slog.Logger
}

// restConfigProvider defers SPDY transport construction so tests can run
// against a fake clientset without a live rest.Config.
type restConfigProvider func() (*rest.Config, error)

// NewClient creates a new Kubernetes client from kubeconfig.
func NewClient(config *ClientConfig) (*kubernetesClient, error) {
	if config == nil {
		return nil, fmt.Errorf("client configuration is required")
	}
	if config.QPSLimit == 0 {
		config.QPSLimit = DefaultQPSLimit
	}
	if config.BurstLimit == 0 {
		config.BurstLimit = DefaultBurstLimit
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := loadKubeconfig(config)

	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	restConfig.QPS = config.QPSLimit
	restConfig.Burst = config.BurstLimit
	restConfig.Timeout = config.Timeout

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	namespace, _, err := clientConfig.Namespace()
	if err != nil || namespace == "" {
		namespace = "default"
	}

	return &kubernetesClient{
		config:    config,
		clientset: clientset,
		restFn:    func() (*rest.Config, error) { return restConfig, nil },
		namespace: namespace,
		logger:    logger,
	}, nil
}

// loadKubeconfig builds the deferred client config from the explicit path,
// the KUBECONFIG environment variable, or the default loading rules.
func loadKubeconfig(config *ClientConfig) clientcmd.ClientConfig {
	path := config.KubeconfigPath
	if path == "" {
		if kconf := os.Getenv("KUBECONFIG"); kconf != "" {
			if strings.HasPrefix(kconf, "~/") {
				uhd, _ := os.UserHomeDir()
				kconf = filepath.Join(uhd, kconf[2:])
			}
			path = kconf
		}
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if path != "" {
		loadingRules.ExplicitPath = path
	}

	overrides := &clientcmd.ConfigOverrides{}
	if config.Context != "" {
		overrides.CurrentContext = config.Context
	}

	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)
}

// DefaultNamespace returns the namespace of the active kubeconfig context.
func (c *kubernetesClient) DefaultNamespace() string {
	return c.namespace
}

func (c *kubernetesClient) getRestConfig() (*rest.Config, error) {
	return c.restFn()
}

// logCommand traces a command issued against the cluster at Debug level.
func (c *kubernetesClient) logCommand(operation, namespace, pod, container string, command []string) {
	c.logger.Debug("issuing command",
		slog.String("operation", operation),
		slog.String("namespace", namespace),
		slog.String("pod", pod),
		slog.String("container", container),
		slog.Any("command", command),
	)
}
