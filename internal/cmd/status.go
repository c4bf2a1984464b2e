package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stepflow/internal/checkpoint"
	"stepflow/internal/config"
	"stepflow/internal/util"
)

var statusCmd = &cobra.Command{
	Use:   "status <workflow-name>",
	Short: "Show the checkpointed state of a workflow run",
	Long: `Status reads the run directory's checkpoints and prints the workflow's
current state: completed and skipped steps, execution attempts, and the
progression history.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output state as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := checkpoint.NewStore(cfg.Paths.ResolveRunDir(args[0]))
	if err != nil {
		return err
	}
	if !store.HasState() {
		fmt.Println(dimStyle.Render("no run found for " + args[0]))
		return nil
	}

	state, err := store.LoadState()
	if err != nil {
		return err
	}

	if statusJSON {
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(headerStyle.Render(state.WorkflowID) + " " +
		statusStyle(state.Status.String()).Render(state.Status.String()))
	fmt.Printf("started %s, updated %s\n",
		state.StartedAt.Format("2006-01-02 15:04:05"),
		state.UpdatedAt.Format("2006-01-02 15:04:05"))
	if state.Error != "" {
		fmt.Println(failStyle.Render("error: ") + util.TruncateString(state.Error, 200))
	}
	fmt.Println()

	fmt.Println(headerStyle.Render("STEPS"))
	fmt.Println(strings.Repeat("─", 50))
	for _, id := range state.CompletedSteps {
		fmt.Printf("  %s %s\n", okStyle.Render("✓"), id)
	}
	for _, id := range state.SkippedSteps {
		fmt.Printf("  %s %s %s\n", warnStyle.Render("~"), id, dimStyle.Render("skipped"))
	}
	fmt.Println()

	fmt.Println(headerStyle.Render("EXECUTIONS"))
	fmt.Println(strings.Repeat("─", 50))
	for _, rec := range state.StepExecutions {
		line := fmt.Sprintf("  %s %s %.1fs", rec.StepID, rec.Status, rec.DurationSeconds)
		if rec.Error != "" {
			line += " " + dimStyle.Render(util.TruncateString(rec.Error, 80))
		}
		fmt.Println(line)
	}

	if history, _, err := store.LoadHistory(); err == nil && history.Len() > 0 {
		fmt.Println()
		fmt.Println(headerStyle.Render("PROGRESSION"))
		fmt.Println(strings.Repeat("─", 50))
		for _, entry := range history.Entries() {
			stepID := entry.StepID
			if stepID == "" {
				stepID = "(workflow)"
			}
			fmt.Printf("  %s %s: %s\n",
				entry.Timestamp.Format("15:04:05"), stepID,
				fmt.Sprintf("%s, %s", entry.Action, util.TruncateString(entry.Reason, 100)))
		}
	}
	return nil
}
