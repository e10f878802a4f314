package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jessegoodier/kdebug/internal/k8s"
	"github.com/jessegoodier/kdebug/internal/lifecycle"
	"github.com/jessegoodier/kdebug/internal/logging"
)

var (
	flagPod            string
	flagController     string
	flagControllerName string
	flagNamespace      string
	flagContainer      string
	flagDebugImage     string
	flagCommand        string
	flagCdInto         string
	flagBackup         string
	flagCompress       bool
	flagAsRoot         bool
	flagTimeout        time.Duration
	flagKubeconfig     string
	flagContext        string
	flagVerbose        bool
)

// rootCmd is the kdebug entry point. Running it launches an ephemeral
// debug container in the selected pod and performs the configured
// operation against it.
var rootCmd = &cobra.Command{
	Use:   "kdebug",
	Short: "Launch ephemeral debug containers in Kubernetes pods",
	Long: `kdebug launches an ephemeral debug container inside a running pod,
attaches an interactive shell, and can back up files from the pod to the
local machine.

Examples:
  # Interactive session with a StatefulSet's pod
  kdebug -n kubecost --controller sts --controller-name aggregator --container aggregator --cmd bash

  # Interactive session with a direct pod
  kdebug -n kubecost --pod aggregator-0 --container aggregator

  # Start the shell inside a directory of the target container
  kdebug -n kubecost --pod aggregator-0 --container aggregator --cd-into /var/configs

  # Back up a path from the pod, compressed
  kdebug -n kubecost --pod aggregator-0 --container aggregator --backup /var/configs --compress

  # Using a Deployment
  kdebug -n myapp --controller deployment --controller-name frontend --cmd sh`,
	SilenceUsage: true,
	RunE:         runDebug,
}

func runDebug(cmd *cobra.Command, _ []string) error {
	if flagPod == "" && flagController == "" {
		return fmt.Errorf("either --pod or --controller must be specified")
	}
	if flagController != "" && flagControllerName == "" {
		return fmt.Errorf("--controller-name is required when using --controller")
	}
	if flagCompress && flagBackup == "" {
		return fmt.Errorf("--compress requires --backup")
	}

	logger := logging.New(flagVerbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := k8s.NewClient(&k8s.ClientConfig{
		KubeconfigPath: flagKubeconfig,
		Context:        flagContext,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	controller := lifecycle.NewController(client, lifecycle.Config{
		PodName:         flagPod,
		Controller:      flagController,
		ControllerName:  flagControllerName,
		Namespace:       flagNamespace,
		TargetContainer: flagContainer,
		DebugImage:      flagDebugImage,
		AsRoot:          flagAsRoot,
		Command:         flagCommand,
		CdInto:          flagCdInto,
		BackupPath:      flagBackup,
		Compress:        flagCompress,
		PollTimeout:     flagTimeout,
	}, logger)

	code, err := controller.Run(ctx)
	if err != nil {
		if errors.Is(err, lifecycle.ErrInterrupted) {
			logger.Info("interrupted by user")
		} else {
			logger.Error("debug session failed", logging.Err(err))
		}
	}
	if code != lifecycle.ExitSuccess {
		os.Exit(code)
	}
	return nil
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "kdebug version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())

	// Pod selection
	rootCmd.Flags().StringVar(&flagPod, "pod", "", "Pod name (direct selection)")
	rootCmd.Flags().StringVar(&flagController, "controller", "", "Controller type (deployment, statefulset, daemonset, or aliases: deploy, sts, ds)")
	rootCmd.Flags().StringVar(&flagControllerName, "controller-name", "", "Controller name (required with --controller)")

	// Configuration
	rootCmd.Flags().StringVarP(&flagNamespace, "namespace", "n", "", "Kubernetes namespace (default: current context namespace)")
	rootCmd.Flags().StringVar(&flagContainer, "container", "", "Target container name for process-namespace sharing")
	rootCmd.Flags().StringVar(&flagDebugImage, "debug-image", lifecycle.DefaultDebugImage, "Debug container image")
	rootCmd.Flags().StringVar(&flagKubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	rootCmd.Flags().StringVar(&flagContext, "context", "", "Kubeconfig context to use")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", lifecycle.DefaultPollTimeout, "How long to wait for the debug container to start")

	// Operations
	rootCmd.Flags().StringVar(&flagCommand, "cmd", lifecycle.DefaultCommand, "Command to run in the debug container")
	rootCmd.Flags().StringVar(&flagCdInto, "cd-into", "", "Start the shell session in the given directory of the target container")
	rootCmd.Flags().StringVar(&flagBackup, "backup", "", "Create a backup of the given path instead of starting a shell")
	rootCmd.Flags().BoolVar(&flagCompress, "compress", false, "Compress the backup with tar.gz (only with --backup)")
	rootCmd.Flags().BoolVar(&flagAsRoot, "as-root", false, "Run the debug container as root (UID 0)")
	rootCmd.Flags().BoolVar(&flagVerbose, "debug", false, "Enable debug logging (traces every command issued against the cluster)")
}
