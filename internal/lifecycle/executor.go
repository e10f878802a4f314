package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jessegoodier/kdebug/internal/k8s"
	"github.com/jessegoodier/kdebug/internal/logging"
)

// runInteractive attaches an interactive terminal session to the debug
// container and returns the remote process's exit code. A local interrupt
// yields ExitInterrupted without being treated as an unexpected failure.
func (c *Controller) runInteractive(ctx context.Context, session *DebugSession) (int, error) {
	command := interactiveCommand(c.cfg.Command, c.cfg.CdInto)

	c.logger.Info("starting interactive session",
		logging.Pod(session.Pod.Name),
		logging.Container(session.DebugContainer),
		logging.Command(command),
	)

	code, err := c.cluster.ExecAttached(ctx, session.Pod.Namespace, session.Pod.Name, session.DebugContainer, command)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Info("interactive session interrupted")
			return ExitInterrupted, fmt.Errorf("%w", ErrInterrupted)
		}
		return ExitFailure, err
	}
	return code, nil
}

// interactiveCommand builds the argv for the attached session. When a
// working directory is requested, the command first changes into the target
// container's filesystem as seen through the shared process namespace: the
// ephemeral container shares processes with the target but not its
// filesystem, so the target's root is reached via /proc/1/root.
func interactiveCommand(command, cdInto string) []string {
	if cdInto != "" {
		switch command {
		case "bash":
			command = fmt.Sprintf("bash -c 'cd /proc/1/root%s && exec bash'", cdInto)
		case "sh":
			command = fmt.Sprintf("sh -c 'cd /proc/1/root%s && exec sh'", cdInto)
		default:
			command = fmt.Sprintf("bash -c 'cd /proc/1/root%s && %s'", cdInto, command)
		}
	}

	if strings.HasPrefix(command, "bash -c") || strings.HasPrefix(command, "sh -c") || strings.Contains(command, " ") {
		return []string{"sh", "-c", command}
	}
	return []string{command}
}

// runBackup verifies the requested path, optionally archives it, transfers
// it to a namespace-scoped local destination, and cleans up the remote
// artifact.
func (c *Controller) runBackup(ctx context.Context, session *DebugSession) (*BackupResult, error) {
	ref := session.Pod
	container := session.DebugContainer

	c.logger.Info("creating backup",
		logging.Pod(ref.Name),
		logging.Path(c.cfg.BackupPath),
		"compressed", c.cfg.Compress,
	)

	if err := c.verifyBackupPath(ctx, ref, container); err != nil {
		return nil, err
	}

	backupDir := filepath.Join(c.cfg.BackupRoot, ref.Namespace)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", backupDir, err)
	}
	stamp := c.now().Format("2006-01-02_15-04-05")

	if c.cfg.Compress {
		return c.backupCompressed(ctx, ref, container, backupDir, stamp)
	}
	return c.backupDirect(ctx, ref, container, backupDir, stamp)
}

// verifyBackupPath checks that the requested path exists in the container.
// On absence it probes the parent directory for diagnostic context before
// failing.
func (c *Controller) verifyBackupPath(ctx context.Context, ref PodRef, container string) error {
	var out bytes.Buffer
	code, err := c.cluster.Exec(ctx, ref.Namespace, ref.Name, container,
		[]string{"sh", "-c", fmt.Sprintf("ls -d %s 2>/dev/null", c.cfg.BackupPath)},
		k8s.ExecOptions{Stdout: &out})

	if err == nil && code == 0 && strings.TrimSpace(out.String()) != "" {
		c.logger.Info("backup path exists", logging.Path(strings.TrimSpace(out.String())))
		return nil
	}

	c.logger.Error("backup path does not exist in container", logging.Path(c.cfg.BackupPath))
	c.probeParentDirectory(ctx, ref, container)
	return fmt.Errorf("%w: %s", ErrBackupPathNotFound, c.cfg.BackupPath)
}

// probeParentDirectory lists the parent of the missing backup path so the
// user can see what is actually there. Best-effort.
func (c *Controller) probeParentDirectory(ctx context.Context, ref PodRef, container string) {
	parent := path.Dir(c.cfg.BackupPath)
	if parent == "" || parent == "/" || parent == "." {
		return
	}

	var out bytes.Buffer
	code, err := c.cluster.Exec(ctx, ref.Namespace, ref.Name, container,
		[]string{"sh", "-c", fmt.Sprintf("ls -la %s 2>/dev/null | head -20", parent)},
		k8s.ExecOptions{Stdout: &out})
	if err != nil || code != 0 || out.Len() == 0 {
		return
	}
	c.logger.Info("parent directory contents", logging.Path(parent), "contents", out.String())
}

func (c *Controller) backupCompressed(ctx context.Context, ref PodRef, container, backupDir, stamp string) (*BackupResult, error) {
	c.logger.Info("creating tar.gz archive", logging.Path(c.cfg.BackupPath))

	var stderr bytes.Buffer
	code, err := c.cluster.Exec(ctx, ref.Namespace, ref.Name, container,
		[]string{"sh", "-c", fmt.Sprintf("tar czf %s %s", remoteArchivePath, c.cfg.BackupPath)},
		k8s.ExecOptions{Stderr: &stderr})
	if err != nil {
		return nil, fmt.Errorf("%w: archive step: %w", ErrBackupTransferFailed, err)
	}
	if code != 0 {
		return nil, fmt.Errorf("%w: tar exited with code %d: %s", ErrBackupTransferFailed, code, strings.TrimSpace(stderr.String()))
	}

	localPath := filepath.Join(backupDir, fmt.Sprintf("%s_%s.tar.gz", stamp, ref.Name))
	c.logger.Info("copying backup archive to local machine", logging.Path(localPath))

	if err := c.cluster.CopyFromPod(ctx, ref.Namespace, ref.Name, container, remoteArchivePath, localPath); err != nil {
		// The remote artifact is not guaranteed cleaned up on this path.
		return nil, fmt.Errorf("%w: %w", ErrBackupTransferFailed, err)
	}

	// Best-effort removal of the remote artifact.
	if code, err := c.cluster.Exec(ctx, ref.Namespace, ref.Name, container,
		[]string{"rm", "-f", remoteArchivePath}, k8s.ExecOptions{}); err != nil || code != 0 {
		c.logger.Warn("failed to remove remote backup artifact",
			logging.Path(remoteArchivePath), logging.Err(err), "exit_code", code)
	}

	c.logger.Info("backup saved", logging.Path(localPath))
	return &BackupResult{SourcePath: c.cfg.BackupPath, LocalPath: localPath, Compressed: true}, nil
}

func (c *Controller) backupDirect(ctx context.Context, ref PodRef, container, backupDir, stamp string) (*BackupResult, error) {
	localPath := filepath.Join(backupDir, fmt.Sprintf("%s_%s", stamp, ref.Name))
	c.logger.Info("copying files directly", logging.Path(localPath))

	if err := c.cluster.CopyFromPod(ctx, ref.Namespace, ref.Name, container, c.cfg.BackupPath, localPath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackupTransferFailed, err)
	}

	c.logger.Info("backup saved", logging.Path(localPath))
	return &BackupResult{SourcePath: c.cfg.BackupPath, LocalPath: localPath, Compressed: false}, nil
}
