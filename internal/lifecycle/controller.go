package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jessegoodier/kdebug/internal/k8s"
	"github.com/jessegoodier/kdebug/internal/logging"
)

// Controller drives one debug-container invocation end to end:
// resolve the target pod, take a container inventory, provision the
// ephemeral debug container, run exactly one operation against it, and
// release the session unconditionally.
type Controller struct {
	cluster    k8s.Client
	cfg        Config
	logger     *slog.Logger
	terminator Terminator
	now        func() time.Time
}

// NewController creates a controller for a single invocation. Zero-valued
// Config fields are filled with defaults.
func NewController(cluster k8s.Client, cfg Config, logger *slog.Logger) *Controller {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cluster:    cluster,
		cfg:        cfg,
		logger:     logger,
		terminator: &processTerminator{cluster: cluster},
		now:        time.Now,
	}
}

// Run executes the invocation and returns the process exit code alongside
// the causing error, if any. Cancellation of ctx is cooperative: it is
// reported as ErrInterrupted (exit code 130) and still routes through
// session release.
func (c *Controller) Run(ctx context.Context) (int, error) {
	code, err := c.run(ctx)
	if err != nil && ctx.Err() != nil {
		return ExitInterrupted, fmt.Errorf("%w", ErrInterrupted)
	}
	return code, err
}

func (c *Controller) run(ctx context.Context) (int, error) {
	ref, err := c.resolvePod(ctx)
	if err != nil {
		return ExitCode(err), err
	}

	inv, err := c.fetchInventory(ctx, ref)
	if err != nil {
		return ExitCode(err), err
	}
	target, err := c.selectTarget(inv)
	if err != nil {
		return ExitCode(err), err
	}

	c.logger.Info("target selected",
		logging.Pod(ref.Name),
		logging.Namespace(ref.Namespace),
		logging.Container(target),
		logging.Image(c.cfg.DebugImage),
	)

	session, err := c.provision(ctx, ref, target)
	if err != nil {
		return ExitCode(err), err
	}
	// The session is the scoped resource; release is its unconditional
	// release action.
	defer c.release(session)

	if c.cfg.BackupPath != "" {
		if _, err := c.runBackup(ctx, session); err != nil {
			return ExitCode(err), err
		}
		return ExitSuccess, nil
	}
	return c.runInteractive(ctx, session)
}
