package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stepflow/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "stepflow",
	Short: "Workflow orchestration with quality gates",
	Long: `Stepflow runs multi-step workflows defined in YAML manifests.
Steps are scheduled in parallel batches as their artifact dependencies
resolve, gated by multi-dimensional quality checks, and retried or
remediated automatically under a bounded budget.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/stepflow/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/stepflow")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("STEPFLOW")
	// Replace dots with underscores for nested keys in env vars
	// e.g., STEPFLOW_SCHEDULER_MAX_PARALLEL for scheduler.max_parallel
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
