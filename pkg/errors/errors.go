// Package errors provides the unified error type and factory functions for the
// vehicle test record service. Domain, application, infrastructure and interface
// layers all return *AppError so that HTTP responses, logs and metrics classify
// failures the same way.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and the factory).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AppError
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the single structured error type used throughout the service.
// It supports errors.Is / errors.As / errors.Unwrap through Cause.
//
// Usage:
//
//	return errors.NewValidation("testTypeStartTimestamp is after testTypeEndTimestamp").
//	           WithField("testTypes[0].testTypeStartTimestamp", "after end")
//	return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query test records")
type AppError struct {
	// Code is the typed error code that identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description, safe for API responses.
	Message string

	// Detail carries supplementary context such as identifiers.
	Detail string

	// Fields lists violated fields for validation failures, keyed by field path.
	Fields map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Stack is the call-stack captured at creation. Not included in Error().
	Stack string
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>"
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status for the error's code.
func (e *AppError) HTTPStatus() int {
	return HTTPStatusForCode(e.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fluent builder methods
// ─────────────────────────────────────────────────────────────────────────────

// WithDetail returns a shallow copy of the receiver with Detail set.
// It is safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// WithField returns a copy of the receiver with one more violated field recorded.
func (e *AppError) WithField(field, reason string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Fields = make(map[string]string, len(e.Fields)+1)
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	clone.Fields[field] = reason
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Primary factory functions
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf is New with a format string.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps an existing error.
// If err is nil, Wrap returns nil. When code is CodeUnknown and err already
// carries an AppError, the original code is preserved.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		} else {
			code = CodeInternal
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error-chain inspection helpers
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

func hasAnyCode(err error, codes ...ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) {
			for _, c := range codes {
				if ae.Code == c {
					return true
				}
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err's chain carries a not-found code.
func IsNotFound(err error) bool {
	return hasAnyCode(err, ErrCodeNotFound, ErrCodeRecordNotFound)
}

// IsValidation reports whether err's chain carries a 400-class validation code.
func IsValidation(err error) bool {
	return hasAnyCode(err, ErrCodeValidation, ErrCodeBadRequest, ErrCodeTemporalConsistency,
		ErrCodeMissingField, ErrCodeInvalidDate)
}

// IsConfigIntegrity reports whether err's chain carries a rule configuration defect.
func IsConfigIntegrity(err error) bool {
	return hasAnyCode(err, ErrCodeConfigIntegrity, ErrCodeRuleTableMissing, ErrCodeStrategyUnsupported)
}

// IsConflict reports whether err's chain carries a conflict code.
func IsConflict(err error) bool {
	return hasAnyCode(err, ErrCodeConflict, ErrCodeRecordAlreadyExists)
}

// GetCode extracts the ErrorCode from the first *AppError found in err's chain.
// If no *AppError is present, CodeUnknown is returned.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// ─────────────────────────────────────────────────────────────────────────────
// Convenience factory functions
// ─────────────────────────────────────────────────────────────────────────────

// NotFound constructs a CodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
		Stack:   captureStack(1),
	}
}

// NewNotFound is NotFound with a format string.
func NewNotFound(format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// InvalidParam constructs a CodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidParam,
		Message: message,
		Stack:   captureStack(1),
	}
}

// NewValidation constructs a CodeValidation AppError.
func NewValidation(format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// ConfigIntegrity constructs an ErrCodeConfigIntegrity AppError. It marks a
// deployment defect in the expiry rule configuration.
func ConfigIntegrity(message string) *AppError {
	return &AppError{
		Code:    ErrCodeConfigIntegrity,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Conflict constructs a CodeConflict AppError.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Internal constructs a CodeInternal AppError.
func Internal(message string) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Dependency constructs an ErrCodeDependency AppError for a failed
// collaborator call.
func Dependency(message string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeDependency,
		Message: message,
		Cause:   cause,
		Stack:   captureStack(1),
	}
}

// FromDependency classifies a collaborator failure. Structured 400-class and
// 404-class errors are returned unchanged; everything else is wrapped as
// ErrCodeDependency. A nil err yields nil.
func FromDependency(err error, message string) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		status := HTTPStatusForCode(ae.Code)
		if status == 400 || status == 404 {
			return err
		}
		if ae.Code == ErrCodeDependency || IsConfigIntegrity(ae) {
			return err
		}
	}
	return &AppError{
		Code:    ErrCodeDependency,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}
