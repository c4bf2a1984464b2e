// Package errors provides centralized error definitions and error handling
// utilities for stepflow. It defines domain-specific errors, semantic error
// types, error constructors with context wrapping, and classification
// helpers.
//
// # Error Types
//
// Domain-specific errors represent failures from specific subsystems:
//   - StepError: a step execution failed (retryable per step policy)
//   - GateError: a quality gate failed (hard fails are never auto-retried)
//   - WorkflowError: workflow-level failures (blocked, timed out, aborted)
//
// Semantic errors represent common conditions:
//   - ValidationError: invalid input, score, or manifest
//   - TimeoutError: an operation exceeded its deadline
//   - NotFoundError: a step, plan, or checkpoint could not be found
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewStepError("executor returned non-zero exit", cause).
//		WithStepID("implement").WithRetriesLeft(2)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrGateHardFail) { ... }
//	var stepErr *errors.StepError
//	if errors.As(err, &stepErr) { ... }
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience so callers can
// import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but
	// do not stop a workflow on their own.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Plan and scheduling sentinel errors
var (
	// ErrStepNotFound indicates a referenced step does not exist.
	ErrStepNotFound = New("step not found")
	// ErrPlanInvalid indicates a workflow definition failed validation.
	ErrPlanInvalid = New("execution plan is invalid")
	// ErrDependencyCycle indicates a circular artifact dependency.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrBlocked indicates the scheduler found no ready steps while the
	// workflow is incomplete.
	ErrBlocked = New("workflow blocked: no ready steps")
)

// Gate and remediation sentinel errors
var (
	// ErrGateHardFail indicates a gate failed terminally (critical issues
	// or verification failure). Never auto-retried by the gate layer.
	ErrGateHardFail = New("quality gate hard failure")
	// ErrGateSoftFail indicates a gate failed in a way eligible for
	// bounded remediation.
	ErrGateSoftFail = New("quality gate soft failure")
	// ErrRetriesExhausted indicates the retry budget is spent.
	ErrRetriesExhausted = New("retries exhausted")
)

// Workflow lifecycle sentinel errors
var (
	// ErrWorkflowTimeout indicates the workflow-level deadline expired.
	ErrWorkflowTimeout = New("workflow timed out")
	// ErrWorkflowPaused indicates the workflow is paused.
	ErrWorkflowPaused = New("workflow is paused")
	// ErrWorkflowComplete indicates the workflow already finished.
	ErrWorkflowComplete = New("workflow already complete")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// FlowError is the base interface for all stepflow errors. It extends the
// standard error interface with classification methods used by the
// auto-progression manager when deciding whether to absorb a failure.
type FlowError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the
	// operation may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) IsRetryable() bool  { return e.retryable }
func (e *baseError) IsUserFacing() bool { return e.userFacing }

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// StepError represents a step execution failure. User-visible output
// always includes which step failed and the remaining retry budget.
//
// Example:
//
//	err := errors.NewStepError("agent exited non-zero", cause).
//		WithStepID("implement").WithAttempt(2).WithRetriesLeft(1)
type StepError struct {
	baseError
	StepID      string
	Attempt     int
	RetriesLeft int
}

// NewStepError creates a new StepError. Step failures are retryable by
// default; the progression manager consults the step's retry policy.
func NewStepError(message string, cause error) *StepError {
	return &StepError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
		Attempt:     -1,
		RetriesLeft: -1,
	}
}

// WithStepID adds the failing step's ID to the error context.
func (e *StepError) WithStepID(id string) *StepError {
	e.StepID = id
	return e
}

// WithAttempt records which attempt failed (1-based).
func (e *StepError) WithAttempt(n int) *StepError {
	e.Attempt = n
	return e
}

// WithRetriesLeft records the remaining retry budget at failure time.
func (e *StepError) WithRetriesLeft(n int) *StepError {
	e.RetriesLeft = n
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *StepError) WithRetryable(r bool) *StepError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *StepError) Error() string {
	var parts []string
	if e.StepID != "" {
		parts = append(parts, fmt.Sprintf("step=%s", e.StepID))
	}
	if e.Attempt >= 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	if e.RetriesLeft >= 0 {
		parts = append(parts, fmt.Sprintf("retries_left=%d", e.RetriesLeft))
	}

	prefix := "step error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("step error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StepError) Is(target error) bool {
	if _, ok := target.(*StepError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// GateError represents a quality gate failure.
//
// Example:
//
//	err := errors.NewGateError("composite gate failed", errors.ErrGateHardFail).
//		WithStepID("review").WithReasons(result.Reasons)
type GateError struct {
	baseError
	StepID   string
	HardFail bool
	Reasons  []string
}

// NewGateError creates a new GateError. Pass ErrGateHardFail or
// ErrGateSoftFail as the cause to mark the failure class.
func NewGateError(message string, cause error) *GateError {
	return &GateError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  errors.Is(cause, ErrGateSoftFail),
			userFacing: true,
		},
		HardFail: errors.Is(cause, ErrGateHardFail),
	}
}

// WithStepID adds the gated step's ID to the error context.
func (e *GateError) WithStepID(id string) *GateError {
	e.StepID = id
	return e
}

// WithReasons attaches the gate evaluator's failure reasons.
func (e *GateError) WithReasons(reasons []string) *GateError {
	e.Reasons = reasons
	return e
}

// Error returns the formatted error message.
func (e *GateError) Error() string {
	prefix := "gate error"
	if e.StepID != "" {
		prefix = fmt.Sprintf("gate error [step=%s]", e.StepID)
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if len(e.Reasons) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(e.Reasons, "; "))
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *GateError) Is(target error) bool {
	if _, ok := target.(*GateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorkflowError represents a workflow-level failure.
type WorkflowError struct {
	baseError
	WorkflowID string
	Phase      string
}

// NewWorkflowError creates a new WorkflowError.
func NewWorkflowError(message string, cause error) *WorkflowError {
	return &WorkflowError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithWorkflowID adds the workflow run ID to the error context.
func (e *WorkflowError) WithWorkflowID(id string) *WorkflowError {
	e.WorkflowID = id
	return e
}

// WithPhase adds the scheduling phase to the error context.
func (e *WorkflowError) WithPhase(phase string) *WorkflowError {
	e.Phase = phase
	return e
}

// WithSeverity sets the error severity.
func (e *WorkflowError) WithSeverity(s Severity) *WorkflowError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *WorkflowError) Error() string {
	var parts []string
	if e.WorkflowID != "" {
		parts = append(parts, fmt.Sprintf("workflow=%s", e.WorkflowID))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}

	prefix := "workflow error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("workflow error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *WorkflowError) Is(target error) bool {
	if _, ok := target.(*WorkflowError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// BlockedError is the diagnostic failure raised when the scheduler finds
// no ready steps and the workflow is incomplete. It lists each pending
// step's missing artifacts so the deadlock can be understood from the
// error alone.
type BlockedError struct {
	baseError
	// Missing maps each pending step ID to the artifact names it still
	// requires but which no completed step has produced.
	Missing map[string][]string
}

// NewBlockedError creates a BlockedError from the per-step missing
// artifact map.
func NewBlockedError(missing map[string][]string) *BlockedError {
	return &BlockedError{
		baseError: baseError{
			message:    "no ready steps and workflow incomplete",
			cause:      ErrBlocked,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
		},
		Missing: missing,
	}
}

// Error returns the formatted error message including the full
// missing-artifact diagnostic dump.
func (e *BlockedError) Error() string {
	if len(e.Missing) == 0 {
		return "workflow blocked: " + e.message
	}
	var parts []string
	for stepID, artifacts := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s waiting on [%s]", stepID, strings.Join(artifacts, ", ")))
	}
	return fmt.Sprintf("workflow blocked: %s: %s", e.message, strings.Join(parts, "; "))
}

// Is checks if this error matches the target.
func (e *BlockedError) Is(target error) bool {
	if _, ok := target.(*BlockedError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state. Score normalization
// rejects non-finite values with this type rather than clamping silently.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError. Timeouts are retryable by
// default.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Gate hard failures are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if Is(err, ErrGateHardFail) || Is(err, ErrRetriesExhausted) {
		return false
	}

	var flowErr FlowError
	if As(err, &flowErr) {
		return flowErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to
// end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var flowErr FlowError
	if As(err, &flowErr) {
		return flowErr.IsUserFacing()
	}

	var notFound *NotFoundError
	var validation *ValidationError
	var timeout *TimeoutError
	return As(err, &notFound) || As(err, &validation) || As(err, &timeout)
}

// GetSeverity returns the severity level of the error. Unknown errors
// default to SeverityError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var flowErr FlowError
	if As(err, &flowErr) {
		return flowErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with an additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
