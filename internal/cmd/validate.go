package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stepflow/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.yaml>",
	Short: "Validate a workflow manifest without running it",
	Long: `Validate parses the manifest, resolves routing, and compiles the
execution plan. Structural errors (duplicate step IDs, dangling routes,
dependency cycles) fail the command; unresolvable artifact requirements
are reported as warnings.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	wf, err := manifest.Load(args[0])
	if err != nil {
		return err
	}

	execPlan, err := wf.Compile()
	if err != nil {
		return err
	}

	fmt.Println(okStyle.Render("valid: ") + wf.Name +
		dimStyle.Render(fmt.Sprintf(" (%d steps)", execPlan.Size())))
	for _, warning := range execPlan.Warnings {
		fmt.Println(warnStyle.Render("warning: ") + warning)
	}
	return nil
}
