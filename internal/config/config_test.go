package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	require.Empty(t, errs, "built-in defaults must validate cleanly")

	assert.Equal(t, 8, cfg.Scheduler.MaxParallel)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.StepTimeout())
	assert.Equal(t, time.Duration(0), cfg.Scheduler.WorkflowTimeout())
	assert.True(t, cfg.Progression.AutoRetryEnabled)
	assert.Equal(t, 2*time.Second, cfg.Progression.BackoffBase())
	assert.Equal(t, 2*time.Minute, cfg.Progression.MaxBackoff())
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, ".stepflow", cfg.Paths.RunDir)
}

func TestValidateCatchesBadValues(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "zero parallelism",
			mutate:    func(c *Config) { c.Scheduler.MaxParallel = 0 },
			wantField: "scheduler.max_parallel",
		},
		{
			name:      "zero step timeout",
			mutate:    func(c *Config) { c.Scheduler.StepTimeoutSeconds = 0 },
			wantField: "scheduler.step_timeout_seconds",
		},
		{
			name:      "negative workflow timeout",
			mutate:    func(c *Config) { c.Scheduler.WorkflowTimeoutSeconds = -1 },
			wantField: "scheduler.workflow_timeout_seconds",
		},
		{
			name:      "workflow timeout shorter than step timeout",
			mutate:    func(c *Config) { c.Scheduler.WorkflowTimeoutSeconds = 10 },
			wantField: "scheduler.workflow_timeout_seconds",
		},
		{
			name:      "overall threshold out of range",
			mutate:    func(c *Config) { c.Gate.Thresholds.OverallMin = 150 },
			wantField: "gate.thresholds.overall_min",
		},
		{
			name:      "security threshold out of range",
			mutate:    func(c *Config) { c.Gate.Thresholds.SecurityMin = 11 },
			wantField: "gate.thresholds.security_min",
		},
		{
			name:      "negative critical ceiling",
			mutate:    func(c *Config) { c.Gate.Composite.MaxCritical = -1 },
			wantField: "gate.composite.max_critical",
		},
		{
			name:      "regression tolerance not a fraction",
			mutate:    func(c *Config) { c.Gate.Composite.RegressionTolerance = 1.0 },
			wantField: "gate.composite.regression_tolerance",
		},
		{
			name:      "negative retries",
			mutate:    func(c *Config) { c.Progression.MaxRetries = -1 },
			wantField: "progression.max_retries",
		},
		{
			name:      "max backoff below base",
			mutate:    func(c *Config) { c.Progression.MaxBackoffSeconds = 1 },
			wantField: "progression.max_backoff_seconds",
		},
		{
			name:      "agent without path",
			mutate:    func(c *Config) { c.Agents = map[string]Agent{"dev": {}} },
			wantField: "agents.dev.path",
		},
		{
			name:      "unknown log level",
			mutate:    func(c *Config) { c.Logging.Level = "LOUD" },
			wantField: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.NotEmpty(t, errs)

			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestLogLevelIsCaseInsensitive(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	assert.Empty(t, cfg.Validate())
}

func TestValidationErrorsFormatting(t *testing.T) {
	single := ValidationErrors{{Field: "a.b", Value: 0, Message: "must be at least 1"}}
	assert.Equal(t, "a.b: must be at least 1 (got: 0)", single.Error())

	multi := ValidationErrors{
		{Field: "a.b", Value: 0, Message: "must be at least 1"},
		{Field: "c.d", Value: -1, Message: "must not be negative"},
	}
	assert.Contains(t, multi.Error(), "2 validation errors")
	assert.Contains(t, multi.Error(), "c.d")

	assert.Empty(t, ValidationErrors{}.Error())
}

func TestResolveRunDir(t *testing.T) {
	p := PathsConfig{RunDir: ".stepflow"}
	assert.Equal(t, filepath.Join(".stepflow", "wf-1"), p.ResolveRunDir("wf-1"))
}

func TestConfigDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "stepflow"), ConfigDir())
	assert.Equal(t, filepath.Join("/tmp/xdg", "stepflow", "config.yaml"), ConfigFile())
}
