package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stepflow/internal/agentexec"
	"stepflow/internal/checkpoint"
	"stepflow/internal/config"
	"stepflow/internal/event"
	"stepflow/internal/logging"
	"stepflow/internal/manifest"
	"stepflow/internal/registry"
	"stepflow/internal/scheduler"
	"stepflow/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Run a workflow to completion",
	Long: `Run executes the workflow defined in the given manifest. Steps are
dispatched in parallel batches as their artifact dependencies resolve.
Progress is checkpointed to the run directory after every batch, so an
interrupted run can be resumed with --resume.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var runResume bool

func init() {
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Resume from the last checkpoint instead of starting fresh")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	wf, err := manifest.Load(args[0])
	if err != nil {
		return err
	}
	execPlan, err := wf.Compile()
	if err != nil {
		return err
	}
	for _, warning := range execPlan.Warnings {
		fmt.Println(warnStyle.Render("warning: ") + warning)
	}

	runDir := cfg.Paths.ResolveRunDir(wf.Name)
	logger, err := logging.New(runDir, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer func() { _ = logger.Close() }()

	store, err := checkpoint.NewStore(runDir)
	if err != nil {
		return err
	}
	release, err := store.AcquireRunLock()
	if err != nil {
		return err
	}
	defer release()

	state, err := loadOrCreateState(store, wf.Name)
	if err != nil {
		return err
	}

	reg := registry.New()
	executor := agentexec.New(logger)
	for agent, agentCfg := range cfg.Agents {
		executor.RegisterAgent(agent, agentexec.Command{
			Path: agentCfg.Path,
			Args: agentCfg.Args,
			Env:  agentCfg.Env,
			Dir:  agentCfg.Dir,
		})
	}
	reg.SetFallbackExecutor(executor)

	bus := event.NewBus()
	subscribeConsole(bus)

	coord := scheduler.New(
		scheduler.Config{
			MaxParallel:     cfg.Scheduler.MaxParallel,
			StepTimeout:     cfg.Scheduler.StepTimeout(),
			WorkflowTimeout: cfg.Scheduler.WorkflowTimeout(),
		},
		execPlan, state,
		scheduler.Deps{
			Registry:    reg,
			Bus:         bus,
			Store:       store,
			Logger:      logger,
			GateConfig:  cfg.Gate.Composite,
			Thresholds:  cfg.Gate.Thresholds,
			Progression: progressionConfig(cfg),
		},
	)

	if runResume {
		if history, retries, err := store.LoadHistory(); err == nil {
			coord.Progression().RestoreHistory(history)
			coord.Progression().RestoreRetries(retries)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := coord.Run(ctx); err != nil {
		fmt.Println(failStyle.Render("workflow failed: ") + err.Error())
		return err
	}

	fmt.Println(okStyle.Render("workflow completed") +
		dimStyle.Render(fmt.Sprintf(" (%d steps, %d skipped)",
			len(state.CompletedSteps), len(state.SkippedSteps))))
	return nil
}

// loadOrCreateState resumes from a checkpoint when requested, otherwise
// starts a fresh run. Resuming a finished run is an error.
func loadOrCreateState(store *checkpoint.Store, name string) (*workflow.State, error) {
	if runResume && store.HasState() {
		state, err := store.LoadState()
		if err != nil {
			return nil, fmt.Errorf("resume: %w", err)
		}
		if state.Status.IsTerminal() {
			return nil, fmt.Errorf("run %q already %s, nothing to resume", name, state.Status)
		}
		state.Status = workflow.StatusRunning
		fmt.Println(dimStyle.Render(fmt.Sprintf("resuming %s: %d steps already completed",
			name, len(state.CompletedSteps))))
		return state, nil
	}
	return workflow.NewState(name, ""), nil
}
