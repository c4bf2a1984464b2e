package config

import (
	"fmt"
	"strings"

	"stepflow/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "scheduler.max_parallel")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateScheduler()...)
	errors = append(errors, c.validateGate()...)
	errors = append(errors, c.validateProgression()...)
	errors = append(errors, c.validateAgents()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateScheduler validates the SchedulerConfig
func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError

	if c.Scheduler.MaxParallel < 1 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.max_parallel",
			Value:   c.Scheduler.MaxParallel,
			Message: "must be at least 1",
		})
	}
	if c.Scheduler.StepTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.step_timeout_seconds",
			Value:   c.Scheduler.StepTimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Scheduler.WorkflowTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.workflow_timeout_seconds",
			Value:   c.Scheduler.WorkflowTimeoutSeconds,
			Message: "must not be negative (0 derives from the step timeout)",
		})
	}
	if c.Scheduler.WorkflowTimeoutSeconds > 0 &&
		c.Scheduler.WorkflowTimeoutSeconds < c.Scheduler.StepTimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   "scheduler.workflow_timeout_seconds",
			Value:   c.Scheduler.WorkflowTimeoutSeconds,
			Message: "must not be shorter than the step timeout",
		})
	}

	return errors
}

// validateGate validates the GateConfig
func (c *Config) validateGate() []ValidationError {
	var errors []ValidationError

	t := c.Gate.Thresholds
	if t.OverallMin < 0 || t.OverallMin > 100 {
		errors = append(errors, ValidationError{
			Field:   "gate.thresholds.overall_min",
			Value:   t.OverallMin,
			Message: "must be between 0 and 100",
		})
	}
	if t.TestCoverageMin < 0 || t.TestCoverageMin > 100 {
		errors = append(errors, ValidationError{
			Field:   "gate.thresholds.test_coverage_min",
			Value:   t.TestCoverageMin,
			Message: "must be between 0 and 100",
		})
	}
	for field, value := range map[string]float64{
		"gate.thresholds.security_min":        t.SecurityMin,
		"gate.thresholds.maintainability_min": t.MaintainabilityMin,
		"gate.thresholds.complexity_max":      t.ComplexityMax,
		"gate.thresholds.performance_min":     t.PerformanceMin,
	} {
		if value < 0 || value > 10 {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   value,
				Message: "must be between 0 and 10",
			})
		}
	}

	if c.Gate.Composite.MaxCritical < 0 {
		errors = append(errors, ValidationError{
			Field:   "gate.composite.max_critical",
			Value:   c.Gate.Composite.MaxCritical,
			Message: "must not be negative",
		})
	}
	if c.Gate.Composite.MaxHigh < 0 {
		errors = append(errors, ValidationError{
			Field:   "gate.composite.max_high",
			Value:   c.Gate.Composite.MaxHigh,
			Message: "must not be negative",
		})
	}
	if c.Gate.Composite.RegressionTolerance < 0 || c.Gate.Composite.RegressionTolerance >= 1 {
		errors = append(errors, ValidationError{
			Field:   "gate.composite.regression_tolerance",
			Value:   c.Gate.Composite.RegressionTolerance,
			Message: "must be a fraction in [0, 1)",
		})
	}

	return errors
}

// validateProgression validates the ProgressionConfig
func (c *Config) validateProgression() []ValidationError {
	var errors []ValidationError

	if c.Progression.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "progression.max_retries",
			Value:   c.Progression.MaxRetries,
			Message: "must not be negative",
		})
	}
	if c.Progression.BackoffBaseSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "progression.backoff_base_seconds",
			Value:   c.Progression.BackoffBaseSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Progression.MaxBackoffSeconds < c.Progression.BackoffBaseSeconds {
		errors = append(errors, ValidationError{
			Field:   "progression.max_backoff_seconds",
			Value:   c.Progression.MaxBackoffSeconds,
			Message: "must not be shorter than the backoff base",
		})
	}

	return errors
}

// validateAgents validates the agent command table
func (c *Config) validateAgents() []ValidationError {
	var errors []ValidationError

	for name, agent := range c.Agents {
		if agent.Path == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("agents.%s.path", name),
				Value:   agent.Path,
				Message: "must not be empty",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	level := strings.ToUpper(c.Logging.Level)
	valid := false
	for _, l := range logging.ValidLevels() {
		if level == l {
			valid = true
			break
		}
	}
	if !valid {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(logging.ValidLevels(), ", ")),
		})
	}

	return errors
}
