package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/synchronoux/internal/logger"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync plan on the configured interval",
	Long: `Runs the scheduler in the foreground: the configured plan is initiated
every scheduler.interval until the process receives SIGINT or SIGTERM.
A run that is still busy when the next one is due is skipped.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}
	if appConfig != nil && !appConfig.Scheduler.Enabled {
		return errors.New("scheduler is disabled: set scheduler.enabled = true")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Println("Scheduler running. Press Ctrl+C to stop.")
	logger.Info("daemon started")

	errCh := make(chan error, 1)
	go func() {
		errCh <- scheduler.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler stopped: %w", err)
		}
	case <-ctx.Done():
	}

	if err := scheduler.Stop(); err != nil {
		return fmt.Errorf("scheduler stop: %w", err)
	}
	cmd.Println("Scheduler stopped.")
	return nil
}
