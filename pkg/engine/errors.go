package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for abort and floor logic.
type ErrorClass string

const (
	// ErrorClassConfig indicates a broken model graph or module configuration.
	// These abort model construction and are never retried.
	ErrorClassConfig ErrorClass = "config"

	// ErrorClassNumeric indicates a domain failure inside one evaluation.
	// The scoring layer floors these instead of propagating them.
	ErrorClassNumeric ErrorClass = "numeric"

	// ErrorClassContract indicates caller misuse, e.g. a coordinate vector
	// whose length does not match the free parameter set.
	ErrorClassContract ErrorClass = "contract"
)

// ErrRootNotReached is returned by Run when no task of the requested root
// kind executes during the pass.
var ErrRootNotReached = errors.New("root not reached")

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Task is the task name that caused the error, if applicable.
	Task string `json:"task,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Task != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (task=%s, operation=%s)", msg, e.Task, e.Operation)
	} else if e.Task != "" {
		msg = fmt.Sprintf("%s (task=%s)", msg, e.Task)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassConfig,
		Message: message,
		Err:     err,
	}
}

// NewNumericError creates a new numeric domain error.
func NewNumericError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassNumeric,
		Message: message,
		Err:     err,
	}
}

// NewContractError creates a new contract violation error.
func NewContractError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassContract,
		Message: message,
		Err:     err,
	}
}

// WithTask adds task context to an error.
func (e *EngineError) WithTask(name string) *EngineError {
	e.Task = name
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsConfigError returns true if the error is classified as a configuration error.
func IsConfigError(err error) bool {
	return classOf(err) == ErrorClassConfig
}

// IsNumericError returns true if the error is classified as numeric.
func IsNumericError(err error) bool {
	return classOf(err) == ErrorClassNumeric
}

// IsContractError returns true if the error is classified as a contract violation.
func IsContractError(err error) bool {
	return classOf(err) == ErrorClassContract
}

// CodeOf returns the error code of the first EngineError in the chain.
func CodeOf(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func classOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// Common error codes.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeCycle             = "CYCLE_DETECTED"
	ErrCodeUnresolvedInput   = "UNRESOLVED_INPUT"
	ErrCodeUnknownModule     = "UNKNOWN_MODULE"
	ErrCodeCoordinates       = "COORDINATE_MISMATCH"
	ErrCodeProcess           = "PROCESS_FAILED"
	ErrCodeRootNotReached    = "ROOT_NOT_REACHED"
	ErrCodeNegotiation       = "NEGOTIATION_FAILED"
	ErrCodeDuplicateRegister = "DUPLICATE_REGISTRATION"
	ErrCodeOutputCollision   = "OUTPUT_COLLISION"
)
