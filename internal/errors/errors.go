// Package errors provides centralized error definitions and error handling
// utilities for the Maestro codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - WorkerError: errors related to a single worker process
//   - ScalingError: errors related to scaling decisions and execution
//   - SupervisorError: errors related to the supervisor lifecycle
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewWorkerError("spawn failed", errors.ErrSpawnFailed).WithWorkerID(id)
//
//	// Semantic error
//	err := errors.NewNotFoundError("worker", "worker-4fa2")
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrRestartStorm) { ... }
//
//	// Check for error types
//	var workerErr *errors.WorkerError
//	if errors.As(err, &workerErr) { ... }
//
//	// Use classification helpers
//	if errors.IsRetryable(err) { ... }
//	if errors.IsFatal(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - Fatal: errors that must terminate the whole supervisor
//   - UserFacing: errors safe to display to operators (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
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
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require terminating the supervisor.
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

// Worker-related sentinel errors
var (
	// ErrWorkerNotFound indicates that a worker is not present in the registry.
	ErrWorkerNotFound = New("worker not found")
	// ErrWorkerAlreadyRunning indicates that a worker process is already running.
	ErrWorkerAlreadyRunning = New("worker already running")
	// ErrWorkerNotRunning indicates that a worker process is not running.
	ErrWorkerNotRunning = New("worker not running")
	// ErrSpawnFailed indicates that a worker process failed to start.
	ErrSpawnFailed = New("worker spawn failed")
	// ErrWorkerUnresponsive indicates that a worker stopped sending heartbeats.
	ErrWorkerUnresponsive = New("worker unresponsive")
)

// Scaling-related sentinel errors
var (
	// ErrScaleActionFailed indicates that applying a scaling decision failed.
	ErrScaleActionFailed = New("scaling action failed")
	// ErrDrainTimeout indicates that a worker did not exit within its grace period.
	ErrDrainTimeout = New("worker drain timed out")
)

// Supervisor-related sentinel errors
var (
	// ErrRestartStorm indicates that workers are crash-looping faster than
	// the restart governor allows. This is fatal to the supervisor.
	ErrRestartStorm = New("restart storm detected")
	// ErrSupervisorNotRunning indicates the supervisor has not been started.
	ErrSupervisorNotRunning = New("supervisor not running")
	// ErrAlreadyShuttingDown indicates a shutdown is already in progress.
	ErrAlreadyShuttingDown = New("shutdown already in progress")
	// ErrSupervisorExited indicates the supervisor has fully terminated.
	ErrSupervisorExited = New("supervisor exited")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrOperationFailed indicates a general operation failure.
	ErrOperationFailed = New("operation failed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// MaestroError is the base interface for all Maestro errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type MaestroError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to operators.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show operators.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// WorkerError represents errors related to a single worker process.
//
// Example:
//
//	err := errors.NewWorkerError("failed to signal", errors.ErrWorkerNotRunning)
//	err = err.WithWorkerID("worker-4fa2").WithPID(4712)
//	fmt.Println(err) // "worker error [worker=worker-4fa2, pid=4712]: failed to signal: worker not running"
type WorkerError struct {
	baseError
	WorkerID string
	PID      int
}

// NewWorkerError creates a new WorkerError.
func NewWorkerError(message string, cause error) *WorkerError {
	return &WorkerError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithWorkerID adds a worker ID to the error context.
func (e *WorkerError) WithWorkerID(id string) *WorkerError {
	e.WorkerID = id
	return e
}

// WithPID adds an OS process ID to the error context.
func (e *WorkerError) WithPID(pid int) *WorkerError {
	e.PID = pid
	return e
}

// WithSeverity sets the error severity.
func (e *WorkerError) WithSeverity(s Severity) *WorkerError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *WorkerError) WithRetryable(r bool) *WorkerError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *WorkerError) Error() string {
	var parts []string
	if e.WorkerID != "" {
		parts = append(parts, fmt.Sprintf("worker=%s", e.WorkerID))
	}
	if e.PID > 0 {
		parts = append(parts, fmt.Sprintf("pid=%d", e.PID))
	}

	prefix := "worker error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("worker error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *WorkerError) Is(target error) bool {
	if _, ok := target.(*WorkerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ScalingError represents errors related to scaling decisions and execution.
//
// Example:
//
//	err := errors.NewScalingError("spawn during scale-up failed", errors.ErrSpawnFailed)
//	err = err.WithAction("scale_up").WithCounts(3, 4)
type ScalingError struct {
	baseError
	Action    string
	FromCount int
	ToCount   int
}

// NewScalingError creates a new ScalingError.
func NewScalingError(message string, cause error) *ScalingError {
	return &ScalingError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true, // the next evaluation cycle retries naturally
			userFacing: true,
		},
		FromCount: -1,
		ToCount:   -1,
	}
}

// WithAction adds the scaling action to the error context.
func (e *ScalingError) WithAction(action string) *ScalingError {
	e.Action = action
	return e
}

// WithCounts adds the worker-count transition to the error context.
func (e *ScalingError) WithCounts(from, to int) *ScalingError {
	e.FromCount = from
	e.ToCount = to
	return e
}

// WithSeverity sets the error severity.
func (e *ScalingError) WithSeverity(s Severity) *ScalingError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ScalingError) WithRetryable(r bool) *ScalingError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ScalingError) Error() string {
	var parts []string
	if e.Action != "" {
		parts = append(parts, fmt.Sprintf("action=%s", e.Action))
	}
	if e.FromCount >= 0 && e.ToCount >= 0 {
		parts = append(parts, fmt.Sprintf("from=%d", e.FromCount), fmt.Sprintf("to=%d", e.ToCount))
	}

	prefix := "scaling error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("scaling error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ScalingError) Is(target error) bool {
	if _, ok := target.(*ScalingError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SupervisorError represents errors related to the supervisor lifecycle.
//
// Example:
//
//	err := errors.NewSupervisorError("restart limit exceeded", errors.ErrRestartStorm)
//	err = err.WithState("running").WithSeverity(errors.SeverityCritical)
type SupervisorError struct {
	baseError
	State string
}

// NewSupervisorError creates a new SupervisorError.
func NewSupervisorError(message string, cause error) *SupervisorError {
	return &SupervisorError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithState adds the supervisor state to the error context.
func (e *SupervisorError) WithState(state string) *SupervisorError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *SupervisorError) WithSeverity(s Severity) *SupervisorError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *SupervisorError) WithRetryable(r bool) *SupervisorError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *SupervisorError) Error() string {
	prefix := "supervisor error"
	if e.State != "" {
		prefix = fmt.Sprintf("supervisor error [state=%s]", e.State)
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SupervisorError) Is(target error) bool {
	if _, ok := target.(*SupervisorError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("worker", "worker-4fa2")
//	fmt.Println(err) // "worker 'worker-4fa2' not found"
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
	if errors.Is(target, ErrWorkerNotFound) && e.ResourceType == "worker" {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("worker", "worker-4fa2")
//	fmt.Println(err) // "worker 'worker-4fa2' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("min_workers must be at least 1")
//	err = err.WithField("supervisor.min_workers").WithValue(0)
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

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
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
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for worker to drain", 5*time.Second)
//	fmt.Println(err) // "timeout error: waiting for worker to drain (timeout: 5s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
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

// WithRetryable sets whether the error is retryable (default true for timeouts).
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
// that may succeed on retry. This checks for:
//   - Errors implementing MaestroError with IsRetryable() returning true
//   - TimeoutError instances
//   - Errors wrapping ErrTimeout
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    // defer to the next evaluation cycle
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var maestroErr MaestroError
	if As(err, &maestroErr) {
		return maestroErr.IsRetryable()
	}

	if Is(err, ErrTimeout) {
		return true
	}

	return false
}

// IsFatal returns true if the error must terminate the whole supervisor
// rather than degrade gracefully. This checks for:
//   - Errors wrapping ErrRestartStorm
//   - Errors implementing MaestroError with SeverityCritical
//
// Example:
//
//	if errors.IsFatal(err) {
//	    supervisor.Shutdown()
//	    os.Exit(1)
//	}
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if Is(err, ErrRestartStorm) {
		return true
	}

	var maestroErr MaestroError
	if As(err, &maestroErr) {
		return maestroErr.Severity() == SeverityCritical
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to
// operators. This checks for:
//   - Errors implementing MaestroError with IsUserFacing() returning true
//   - Semantic errors (NotFoundError, AlreadyExistsError, ValidationError, TimeoutError)
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var maestroErr MaestroError
	if As(err, &maestroErr) {
		return maestroErr.IsUserFacing()
	}

	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	if As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement MaestroError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    logger.Error("fatal condition", "error", err)
//	case errors.SeverityWarning:
//	    logger.Warn("degraded", "error", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var maestroErr MaestroError
	if As(err, &maestroErr) {
		return maestroErr.Severity()
	}

	return SeverityError
}

// IsDomainError returns true if the error is a domain-specific error
// (WorkerError, ScalingError, or SupervisorError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var workerErr *WorkerError
	var scalingErr *ScalingError
	var supervisorErr *SupervisorError

	return As(err, &workerErr) || As(err, &scalingErr) || As(err, &supervisorErr)
}

// IsSemanticError returns true if the error is a semantic error
// (NotFoundError, AlreadyExistsError, ValidationError, or TimeoutError).
func IsSemanticError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	return As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with an additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to apply scaling decision")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to terminate worker %s", workerID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
