package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an error for callers deciding whether to abort,
// retry or surface it.
type ErrorClass string

const (
	// ErrorClassContext indicates a statement whose parent entity does not exist.
	ErrorClassContext ErrorClass = "context"

	// ErrorClassReference indicates a dangling network or flavor reference on an
	// entity being defined.
	ErrorClassReference ErrorClass = "reference"

	// ErrorClassSizing indicates a node count outside the component's sizing bounds.
	ErrorClassSizing ErrorClass = "sizing"

	// ErrorClassValidation indicates a malformed statement or plan.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassTransient indicates a temporary actuation failure that may
	// succeed on retry.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable actuation failure.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the FQN of the entity that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

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
	if e.Resource != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (resource=%s, operation=%s)", msg, e.Resource, e.Operation)
	} else if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource=%s)", msg, e.Resource)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
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

func newError(class ErrorClass, message string, err error) *EngineError {
	return &EngineError{
		Class:   class,
		Message: message,
		Err:     err,
	}
}

// NewContextError creates an error for a statement whose parent is missing.
func NewContextError(message string, err error) *EngineError {
	return newError(ErrorClassContext, message, err).WithCode(ErrCodeMissingParent)
}

// NewReferenceError creates an error for an unresolvable network or flavor.
func NewReferenceError(message string, err error) *EngineError {
	return newError(ErrorClassReference, message, err)
}

// NewSizingError creates an error for a node count bound violation.
func NewSizingError(message string, err error) *EngineError {
	return newError(ErrorClassSizing, message, err).WithCode(ErrCodeSizingBounds)
}

// NewValidationError creates an error for malformed input.
func NewValidationError(message string, err error) *EngineError {
	return newError(ErrorClassValidation, message, err).WithCode(ErrCodeValidation)
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return newError(ErrorClassTransient, message, err)
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return newError(ErrorClassPermanent, message, err)
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resource string) *EngineError {
	e.Resource = resource
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

// ClassOf returns the class of err, or the empty class when err is not an
// EngineError.
func ClassOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// CodeOf returns the code of err, or "" when err is not an EngineError.
func CodeOf(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsContextError returns true if the error is a missing-parent error.
func IsContextError(err error) bool {
	return ClassOf(err) == ErrorClassContext
}

// IsReferenceError returns true if the error is a dangling reference error.
func IsReferenceError(err error) bool {
	return ClassOf(err) == ErrorClassReference
}

// IsSizingError returns true if the error is a sizing bound violation.
func IsSizingError(err error) bool {
	return ClassOf(err) == ErrorClassSizing
}

// IsValidationError returns true if the error is a validation error.
func IsValidationError(err error) bool {
	return ClassOf(err) == ErrorClassValidation
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	return ClassOf(err) == ErrorClassTransient
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	return IsTransient(err)
}

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeMissingParent    = "MISSING_PARENT"
	ErrCodeUnknownNetwork   = "UNKNOWN_NETWORK"
	ErrCodeUnknownFlavor    = "UNKNOWN_FLAVOR"
	ErrCodeSizingBounds     = "SIZING_BOUNDS"
	ErrCodeInvalidFQN       = "INVALID_FQN"
	ErrCodeOrdering         = "ORDERING_VIOLATION"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeActuatorFailed   = "ACTUATOR_FAILED"
	ErrCodeDependencyFailed = "DEPENDENCY_FAILED"
)
