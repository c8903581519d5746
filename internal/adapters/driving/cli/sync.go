package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

var (
	syncPhase  string
	syncFolder string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the configured sync plan",
	Long: `Runs the phases of the configured priority (for example PULL_PERSIST_PUSH)
in order. With --phase the plan starts at that phase instead; a phase that is
not part of the plan runs on its own.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Wait for a remote export and write it locally",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPhase(cmd, domain.PhasePull, nil)
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Export every local record to the middle store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPhase(cmd, domain.PhasePush, nil)
	},
}

var persistCmd = &cobra.Command{
	Use:   "persist <locator>...",
	Short: "Write the records of already pulled objects",
	Long: `Downloads the given middle store objects, decodes them and writes their
records to the local database, then continues with the rest of the plan.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd, domain.PhasePersist, args)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncPhase, "phase", "", "start the plan at pull, persist or push")
	for _, c := range []*cobra.Command{syncCmd, pullCmd, pushCmd, persistCmd} {
		c.Flags().StringVar(&syncFolder, "folder", "", "middle store folder overriding the pull prefix")
		rootCmd.AddCommand(c)
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncPhase == "" {
		return runPhase(cmd, "", nil)
	}
	phase := domain.Phase(strings.ToUpper(strings.TrimSpace(syncPhase)))
	switch phase {
	case domain.PhasePull, domain.PhasePush:
		return runPhase(cmd, phase, nil)
	case domain.PhasePersist:
		return fmt.Errorf("%w: use 'synchronoux persist <locator>...' to persist", domain.ErrInvalidInput)
	}
	return fmt.Errorf("%w: unknown phase %q", domain.ErrInvalidInput, syncPhase)
}

// runPhase starts a run at phase ("" for the whole plan) and reports the outcome.
func runPhase(cmd *cobra.Command, phase domain.Phase, locators []string) error {
	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	var params domain.Params
	if syncFolder != "" {
		params = domain.Params{domain.ParamFolder: syncFolder}
	}

	label := string(phase)
	if label == "" {
		label = string(syncOrchestrator.Status().Priority)
	}
	cmd.Printf("Starting %s...\n", label)

	var err error
	switch phase {
	case "":
		err = syncOrchestrator.Initiate(ctx, params)
	case domain.PhasePull:
		err = syncOrchestrator.Pull(ctx, params)
	case domain.PhasePush:
		err = syncOrchestrator.Push(ctx, params)
	case domain.PhasePersist:
		err = syncOrchestrator.Persist(ctx, locators, params)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	status := syncOrchestrator.Status()
	if status.State.Failed() {
		return fmt.Errorf("sync failed: instance left in %s", status.State)
	}
	printRun(cmd, status.LastRun)
	return nil
}

func printRun(cmd *cobra.Command, run *domain.RunSummary) {
	if run == nil {
		cmd.Println("Sync completed.")
		return
	}
	cmd.Printf("Sync completed (run %s, state %s).\n", run.RunID, run.FinalState)
	cmd.Printf("  Records written: %d\n", run.RecordsWritten)
	cmd.Printf("  Records pushed:  %d in %d batch(es)\n", run.RecordsPushed, run.BatchesUploaded)
	if len(run.FailedPhases) > 0 {
		cmd.Printf("  Failed phases:   %s\n", joinPhases(run.FailedPhases))
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configured plan and the last run",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}
	status := syncOrchestrator.Status()
	cmd.Printf("Priority: %s (%s)\n", status.Priority, joinPhases(status.Priority.Plan()))
	cmd.Printf("State:    %s\n", status.State)

	last := status.LastRun
	if last == nil && historyService != nil {
		runs, err := historyService.ListRuns(cmd.Context(), 1)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		if len(runs) > 0 {
			last = &runs[0]
		}
	}
	if last == nil {
		cmd.Println("Last run: none")
		return nil
	}
	cmd.Printf("Last run: %s at %s\n", last.RunID, last.StartedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Final state: %s\n", last.FinalState)
	cmd.Printf("  Phases:      %s\n", joinPhases(last.Phases))
	cmd.Printf("  Written %d, pushed %d\n", last.RecordsWritten, last.RecordsPushed)
	return nil
}

func joinPhases(phases []domain.Phase) string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	return strings.Join(names, " -> ")
}
