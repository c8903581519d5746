package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

var (
	historyLimit int
	historyTasks bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent sync runs",
	Long: `Lists recent sync runs, most recent first. With --tasks the executions of
the scheduled sync task are listed instead, each with the run it started.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum number of entries")
	historyCmd.Flags().BoolVar(&historyTasks, "tasks", false, "show scheduler task results")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}
	if historyService == nil {
		return errors.New("history service not configured")
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	if historyTasks {
		results, err := historyService.TaskHistory(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to read task history: %w", err)
		}
		if len(results) == 0 {
			cmd.Println("No scheduled runs yet.")
			return nil
		}
		fmt.Fprintln(w, "STARTED\tDURATION\tOUTCOME\tRUN\tSTATE\tWRITTEN\tPUSHED")
		for i := range results {
			printTaskResult(w, &results[i])
		}
		return nil
	}

	runs, err := historyService.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No runs yet.")
		return nil
	}
	fmt.Fprintln(w, "RUN\tSTARTED\tPHASES\tSTATE\tWRITTEN\tPUSHED")
	for i := range runs {
		r := &runs[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), joinPhases(r.Phases),
			r.FinalState, r.RecordsWritten, r.RecordsPushed)
	}
	return nil
}

// printTaskResult writes one execution row. A run that was never saved shows
// its ID with blank counters; a skipped tick has no run at all.
func printTaskResult(w io.Writer, r *domain.TaskResult) {
	runID, state, written, pushed := "-", "-", "-", "-"
	if r.RunID != "" {
		runID = r.RunID
	}
	if r.Run != nil {
		state = string(r.Run.FinalState)
		written = strconv.Itoa(r.Run.RecordsWritten)
		pushed = strconv.Itoa(r.Run.RecordsPushed)
	}
	outcome := string(r.Outcome)
	if r.Error != "" {
		outcome += ": " + r.Error
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		r.StartedAt.Format("2006-01-02 15:04:05"), r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond),
		outcome, runID, state, written, pushed)
}
