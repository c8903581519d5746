package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// tuiLogFile receives log output while the TUI owns the terminal.
const tuiLogFile = "tui.log"

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive sync monitor",
	Long: `Launch a terminal monitor for the sync instance: the configured plan,
the live state, the event stream and the recorded runs. When the scheduler
is enabled it runs in the background for as long as the monitor is open.

Logs are written to tui.log next to the configuration file.

Controls:
  s        - Run the whole plan
  p / u    - Pull / push
  o        - Set the middle store folder for the next run
  r        - Reset a failed instance
  tab      - Switch between monitor and history
  ?        - Toggle help
  q        - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}
	logPath := filepath.Join(filepath.Dir(path), tuiLogFile)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logOut, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", logPath, err)
	}
	defer logOut.Close()
	logger.SetOutput(logOut)
	defer logger.SetOutput(os.Stderr)

	events := eventFeed.attach(256)
	defer eventFeed.detach()

	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}

	if scheduler != nil && appConfig != nil && appConfig.Scheduler.Enabled {
		schedulerCtx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			if err := scheduler.Start(schedulerCtx); err != nil && schedulerCtx.Err() == nil {
				logger.Warn("scheduler stopped: %v", err)
			}
		}()
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Warn("scheduler stop: %v", err)
			}
		}()
	}

	app, err := tui.NewApp(&tui.Ports{
		Sync:    syncOrchestrator,
		History: historyService,
		Events:  events,
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
