// Package errors provides the structured error system shared by the filesystem
// emulator, the instance orchestrator and the HTTP layer. Every error carries a
// code, a category and the HTTP status the API answers with.
package errors

import (
	"encoding/json"
	stderr "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code.
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodePageOutOfRange       ErrorCode = "PAGE_OUT_OF_RANGE"
	ErrCodeDuplicateName        ErrorCode = "DUPLICATE_NAME"
	ErrCodeOwnerRequired        ErrorCode = "OWNER_REQUIRED"
	ErrCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	ErrCodeInvalidConfig        ErrorCode = "INVALID_CONFIG"
	ErrCodeInvalidRoute         ErrorCode = "INVALID_ROUTE"

	// Lookup errors
	ErrCodeBucketNotFound   ErrorCode = "BUCKET_NOT_FOUND"
	ErrCodeObjectNotFound   ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeFolderNotFound   ErrorCode = "FOLDER_NOT_FOUND"
	ErrCodeInstanceNotFound ErrorCode = "INSTANCE_NOT_FOUND"
	ErrCodeSubnetNotFound   ErrorCode = "SUBNET_NOT_FOUND"
	ErrCodeRecordNotFound   ErrorCode = "RECORD_NOT_FOUND"

	// Conflict errors
	ErrCodeFolderExists    ErrorCode = "FOLDER_EXISTS"
	ErrCodeRecordExists    ErrorCode = "RECORD_EXISTS"
	ErrCodeQuotaExceeded   ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeRenameExhausted ErrorCode = "RENAME_EXHAUSTED"

	// Authentication/Authorization errors
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeAuthorizationFailed  ErrorCode = "AUTHORIZATION_FAILED"
	ErrCodeRoleForbidden        ErrorCode = "ROLE_FORBIDDEN"
	ErrCodeAssignmentMismatch   ErrorCode = "ASSIGNMENT_MISMATCH"

	// Managed-service errors
	ErrCodeDependencyFailed      ErrorCode = "DEPENDENCY_FAILED"
	ErrCodeDependencyThrottled   ErrorCode = "DEPENDENCY_THROTTLED"
	ErrCodeDependencyUnavailable ErrorCode = "DEPENDENCY_UNAVAILABLE"
	ErrCodeCircuitOpen           ErrorCode = "CIRCUIT_OPEN"

	// Internal errors
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrCodePanicRecovered ErrorCode = "PANIC_RECOVERED"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryConflict       ErrorCategory = "conflict"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryAuthorization  ErrorCategory = "authorization"
	CategoryDependency     ErrorCategory = "dependency"
	CategoryInternal       ErrorCategory = "internal"
)

var categories = map[ErrorCode]ErrorCategory{
	ErrCodeValidationFailed:      CategoryValidation,
	ErrCodePageOutOfRange:        CategoryValidation,
	ErrCodeDuplicateName:         CategoryValidation,
	ErrCodeOwnerRequired:         CategoryValidation,
	ErrCodeInvalidConfiguration:  CategoryValidation,
	ErrCodeInvalidConfig:         CategoryValidation,
	ErrCodeInvalidRoute:          CategoryValidation,
	ErrCodeBucketNotFound:        CategoryNotFound,
	ErrCodeObjectNotFound:        CategoryNotFound,
	ErrCodeFolderNotFound:        CategoryNotFound,
	ErrCodeInstanceNotFound:      CategoryNotFound,
	ErrCodeSubnetNotFound:        CategoryNotFound,
	ErrCodeRecordNotFound:        CategoryNotFound,
	ErrCodeFolderExists:          CategoryConflict,
	ErrCodeRecordExists:          CategoryConflict,
	ErrCodeQuotaExceeded:         CategoryConflict,
	ErrCodeRenameExhausted:       CategoryConflict,
	ErrCodeAuthenticationFailed:  CategoryAuthentication,
	ErrCodeAuthorizationFailed:   CategoryAuthorization,
	ErrCodeRoleForbidden:         CategoryAuthorization,
	ErrCodeAssignmentMismatch:    CategoryAuthorization,
	ErrCodeDependencyFailed:      CategoryDependency,
	ErrCodeDependencyThrottled:   CategoryDependency,
	ErrCodeDependencyUnavailable: CategoryDependency,
	ErrCodeCircuitOpen:           CategoryDependency,
}

// SmartPCError represents a structured error with context and metadata.
type SmartPCError struct {
	// Core error information
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	// Contextual information
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`

	// Operational metadata
	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`

	// Error handling hints
	Retryable  bool `json:"retryable"`
	HTTPStatus int  `json:"http_status,omitempty"`
}

// Error implements the error interface.
func (e *SmartPCError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Component != "" {
		if e.Operation != "" {
			msg = fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, msg)
		} else {
			msg = fmt.Sprintf("[%s] %s", e.Component, msg)
		}
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *SmartPCError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SmartPCError with the same code.
func (e *SmartPCError) Is(target error) bool {
	if t, ok := target.(*SmartPCError); ok {
		return e.Code == t.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *SmartPCError) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("SmartPCError{%s}", strings.Join(parts, ", "))
}

// CauseText returns the message of the underlying cause, or "" when there is none.
func (e *SmartPCError) CauseText() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

// NewError creates a new error with default values for the code.
func NewError(code ErrorCode, message string) *SmartPCError {
	return &SmartPCError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Details:    make(map[string]interface{}),
		Retryable:  IsRetryableByDefault(code),
		HTTPStatus: GetDefaultHTTPStatus(code),
	}
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	if c, ok := categories[code]; ok {
		return c
	}
	return CategoryInternal
}

// IsRetryableByDefault determines if an error is retryable by default.
func IsRetryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeDependencyThrottled, ErrCodeDependencyUnavailable:
		return true
	default:
		return false
	}
}

// GetDefaultHTTPStatus returns the default HTTP status for an error code.
func GetDefaultHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeQuotaExceeded:
		return 403
	case ErrCodeFolderExists, ErrCodeRecordExists, ErrCodeRenameExhausted:
		return 409
	case ErrCodeCircuitOpen:
		return 503
	}

	switch GetCategory(code) {
	case CategoryValidation:
		return 400
	case CategoryAuthentication:
		return 401
	case CategoryAuthorization:
		return 403
	case CategoryNotFound:
		return 404
	case CategoryConflict:
		return 409
	default:
		return 500
	}
}

// WithDetail adds detailed information to an error
func (e *SmartPCError) WithDetail(key string, value interface{}) *SmartPCError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *SmartPCError) WithComponent(component string) *SmartPCError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *SmartPCError) WithOperation(operation string) *SmartPCError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *SmartPCError) WithCause(cause error) *SmartPCError {
	e.Cause = cause
	return e
}

// Validation returns a VALIDATION_FAILED error.
func Validation(message string) *SmartPCError {
	return NewError(ErrCodeValidationFailed, message)
}

// NotFound returns a lookup error with the given code.
func NotFound(code ErrorCode, message string) *SmartPCError {
	return NewError(code, message)
}

// Dependency wraps a managed-service failure. The message is what callers see;
// the raw cause travels alongside it.
func Dependency(operation string, cause error) *SmartPCError {
	return NewError(ErrCodeDependencyFailed, "AWS Error").
		WithOperation(operation).
		WithCause(cause)
}

// Forbidden returns an AUTHORIZATION_FAILED error.
func Forbidden(message string) *SmartPCError {
	return NewError(ErrCodeAuthorizationFailed, message)
}

// As extracts a *SmartPCError from err's chain.
func As(err error) (*SmartPCError, bool) {
	var e *SmartPCError
	if stderr.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// IsNotFound reports whether err belongs to the not-found category.
func IsNotFound(err error) bool {
	e, ok := As(err)
	return ok && e.Category == CategoryNotFound
}

// HTTPStatusOf returns the status an error should be answered with.
func HTTPStatusOf(err error) int {
	if e, ok := As(err); ok && e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return 500
}
