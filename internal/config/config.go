// Package config defines the stepflow configuration: scheduler limits,
// gate thresholds, progression policy, logging, and filesystem paths.
// Values come from defaults, an optional YAML config file, and STEPFLOW_*
// environment variables, in rising precedence.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"stepflow/internal/gate"
)

// Config represents the complete stepflow configuration
type Config struct {
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Gate        GateConfig        `mapstructure:"gate"`
	Progression ProgressionConfig `mapstructure:"progression"`
	Agents      map[string]Agent  `mapstructure:"agents"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Paths       PathsConfig       `mapstructure:"paths"`
}

// SchedulerConfig controls batch dispatch and timeouts
type SchedulerConfig struct {
	// MaxParallel caps how many ready steps one round dispatches
	MaxParallel int `mapstructure:"max_parallel"`
	// StepTimeoutSeconds bounds a single step execution attempt
	StepTimeoutSeconds int `mapstructure:"step_timeout_seconds"`
	// WorkflowTimeoutSeconds bounds the whole run (0 = twice the step timeout)
	WorkflowTimeoutSeconds int `mapstructure:"workflow_timeout_seconds"`
}

// StepTimeout returns the per-step timeout as a time.Duration
func (c *SchedulerConfig) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutSeconds) * time.Second
}

// WorkflowTimeout returns the workflow timeout as a time.Duration
// (0 means derive from the step timeout)
func (c *SchedulerConfig) WorkflowTimeout() time.Duration {
	return time.Duration(c.WorkflowTimeoutSeconds) * time.Second
}

// GateConfig carries the quality thresholds and composite gate tuning
type GateConfig struct {
	Thresholds gate.QualityThresholds `mapstructure:"thresholds"`
	Composite  gate.CompositeConfig   `mapstructure:"composite"`
}

// ProgressionConfig controls the auto-progression state machine
type ProgressionConfig struct {
	// AutoRetryEnabled retries failed steps automatically
	AutoRetryEnabled bool `mapstructure:"auto_retry_enabled"`
	// MaxRetries is the default per-step retry ceiling
	MaxRetries int `mapstructure:"max_retries"`
	// BackoffBaseSeconds is the exponential backoff base between retries
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds"`
	// MaxBackoffSeconds caps the computed backoff
	MaxBackoffSeconds int `mapstructure:"max_backoff_seconds"`
}

// BackoffBase returns the backoff base as a time.Duration
func (c *ProgressionConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSeconds) * time.Second
}

// MaxBackoff returns the backoff ceiling as a time.Duration
func (c *ProgressionConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSeconds) * time.Second
}

// Agent describes how to invoke one external agent
type Agent struct {
	// Path is the executable to run
	Path string `mapstructure:"path"`
	// Args are passed verbatim; {action} and {step} are substituted
	Args []string `mapstructure:"args"`
	// Env entries are appended to the inherited environment
	Env []string `mapstructure:"env"`
	// Dir is the working directory (empty inherits the current one)
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls the structured run log
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level"`
}

// PathsConfig controls where run state lives
type PathsConfig struct {
	// RunDir is the directory for checkpoints and logs (default: .stepflow)
	RunDir string `mapstructure:"run_dir"`
}

// ResolveRunDir resolves the run directory for a named workflow run
func (p *PathsConfig) ResolveRunDir(workflowID string) string {
	return filepath.Join(p.RunDir, workflowID)
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxParallel:            8,
			StepTimeoutSeconds:     600,
			WorkflowTimeoutSeconds: 0,
		},
		Gate: GateConfig{
			Thresholds: gate.DefaultThresholds(),
			Composite:  gate.DefaultCompositeConfig(),
		},
		Progression: ProgressionConfig{
			AutoRetryEnabled:   true,
			MaxRetries:         3,
			BackoffBaseSeconds: 2,
			MaxBackoffSeconds:  120,
		},
		Agents: map[string]Agent{},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		Paths: PathsConfig{
			RunDir: ".stepflow",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Scheduler defaults
	viper.SetDefault("scheduler.max_parallel", defaults.Scheduler.MaxParallel)
	viper.SetDefault("scheduler.step_timeout_seconds", defaults.Scheduler.StepTimeoutSeconds)
	viper.SetDefault("scheduler.workflow_timeout_seconds", defaults.Scheduler.WorkflowTimeoutSeconds)

	// Gate threshold defaults
	viper.SetDefault("gate.thresholds.overall_min", defaults.Gate.Thresholds.OverallMin)
	viper.SetDefault("gate.thresholds.security_min", defaults.Gate.Thresholds.SecurityMin)
	viper.SetDefault("gate.thresholds.maintainability_min", defaults.Gate.Thresholds.MaintainabilityMin)
	viper.SetDefault("gate.thresholds.complexity_max", defaults.Gate.Thresholds.ComplexityMax)
	viper.SetDefault("gate.thresholds.test_coverage_min", defaults.Gate.Thresholds.TestCoverageMin)
	viper.SetDefault("gate.thresholds.performance_min", defaults.Gate.Thresholds.PerformanceMin)

	// Composite gate defaults
	viper.SetDefault("gate.composite.max_critical", defaults.Gate.Composite.MaxCritical)
	viper.SetDefault("gate.composite.max_high", defaults.Gate.Composite.MaxHigh)
	viper.SetDefault("gate.composite.regression_tolerance", defaults.Gate.Composite.RegressionTolerance)

	// Progression defaults
	viper.SetDefault("progression.auto_retry_enabled", defaults.Progression.AutoRetryEnabled)
	viper.SetDefault("progression.max_retries", defaults.Progression.MaxRetries)
	viper.SetDefault("progression.backoff_base_seconds", defaults.Progression.BackoffBaseSeconds)
	viper.SetDefault("progression.max_backoff_seconds", defaults.Progression.MaxBackoffSeconds)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)

	// Paths defaults
	viper.SetDefault("paths.run_dir", defaults.Paths.RunDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stepflow")
	}
	// Fall back to ~/.config/stepflow
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stepflow"
	}
	return filepath.Join(home, ".config", "stepflow")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
