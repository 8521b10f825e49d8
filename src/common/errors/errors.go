// Package errors provides a structured error system for s6build.
// It supports error domains and codes, error wrapping, and consistent
// failure reporting across the setup, update, and build pipelines.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a unique error code within a domain
type Code string

// Domain represents an error domain (e.g., "platform", "engine", "storage")
type Domain string

// Error domains used by s6build
const (
	DomainPlatform    Domain = "platform"
	DomainSubmodule   Domain = "submodule"
	DomainEnvironment Domain = "environment"
	DomainEngine      Domain = "engine"
	DomainReport      Domain = "report"
	DomainStorage     Domain = "storage"
	DomainValidation  Domain = "validation"
)

// Error represents a structured error with domain and code
type Error struct {
	// Domain categorizes the error (e.g., "platform", "engine")
	Domain Domain `json:"domain"`

	// Code is a unique identifier within the domain (e.g., "unsupported_arch")
	Code Code `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// cause is the underlying error if this error wraps another
	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is and errors.As support
func (e *Error) Unwrap() error {
	return e.cause
}

// Is implements error comparison for errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Domain == t.Domain && e.Code == t.Code
}

// WithCause returns a new error with the underlying cause attached
func (e *Error) WithCause(cause error) *Error {
	return &Error{
		Domain:  e.Domain,
		Code:    e.Code,
		Message: e.Message,
		cause:   cause,
	}
}

// WithMessage returns a new error with a custom message
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		Domain:  e.Domain,
		Code:    e.Code,
		Message: message,
		cause:   e.cause,
	}
}

// WithMessagef returns a new error with a formatted custom message
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	return &Error{
		Domain:  e.Domain,
		Code:    e.Code,
		Message: fmt.Sprintf(format, args...),
		cause:   e.cause,
	}
}

// New creates a new Error with the given parameters
func New(domain Domain, code Code, message string) *Error {
	return &Error{
		Domain:  domain,
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an Error
func Wrap(err error, domain Domain, code Code, message string) *Error {
	return &Error{
		Domain:  domain,
		Code:    code,
		Message: message,
		cause:   err,
	}
}

// GetCode returns the error code if the error is an *Error, otherwise empty string
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetDomain returns the error domain if the error is an *Error, otherwise empty string
func GetDomain(err error) Domain {
	var e *Error
	if errors.As(err, &e) {
		return e.Domain
	}
	return ""
}

// Is checks if an error matches a target error (delegates to errors.Is)
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target (delegates to errors.As)
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
