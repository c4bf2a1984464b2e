package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stepflow/internal/manifest"
)

var planCmd = &cobra.Command{
	Use:   "plan <workflow.yaml>",
	Short: "Show the compiled execution plan for a workflow",
	Long: `Plan compiles the manifest and prints the resulting execution order,
entry and exit points, and the forward dependency graph. The same
manifest always compiles to the same plan.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

var planJSON bool

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Output the plan as JSON")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	wf, err := manifest.Load(args[0])
	if err != nil {
		return err
	}
	execPlan, err := wf.Compile()
	if err != nil {
		return err
	}

	if planJSON {
		data, err := json.MarshalIndent(execPlan, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(headerStyle.Render(wf.Name))
	if wf.Description != "" {
		fmt.Println(dimStyle.Render(wf.Description))
	}
	fmt.Println()

	fmt.Println(headerStyle.Render("ORDER"))
	for i, id := range execPlan.Order {
		step := execPlan.Steps[id]
		var notes []string
		if len(step.Requires) > 0 {
			notes = append(notes, "requires "+strings.Join(step.Requires, ", "))
		}
		if len(step.Creates) > 0 {
			notes = append(notes, "creates "+strings.Join(step.Creates, ", "))
		}
		if step.Gate != nil {
			notes = append(notes, "gated")
		}
		suffix := ""
		if len(notes) > 0 {
			suffix = dimStyle.Render(" (" + strings.Join(notes, "; ") + ")")
		}
		fmt.Printf("  %2d. %s%s\n", i+1, id, suffix)
	}
	fmt.Println()

	fmt.Println(headerStyle.Render("ENTRY") + " " + strings.Join(execPlan.EntryPoints, ", "))
	fmt.Println(headerStyle.Render("EXIT") + "  " + strings.Join(execPlan.ExitPoints, ", "))

	for _, warning := range execPlan.Warnings {
		fmt.Println(warnStyle.Render("warning: ") + warning)
	}
	return nil
}
