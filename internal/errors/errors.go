// Package errors provides structured error handling for portprobe operations.
// It defines error codes and the typed errors that can abort a run before any
// probe is sent: malformed port specifications, unresolvable targets and
// invalid configuration.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"

	// Scan input errors.
	CodePortSpecInvalid  ErrorCode = "PORT_SPEC_INVALID"
	CodeResolutionFailed ErrorCode = "RESOLUTION_FAILED"

	// File system errors.
	CodeFileNotFound ErrorCode = "FILE_NOT_FOUND"
)

// ParseError reports a malformed port specification.
type ParseError struct {
	Code    ErrorCode
	Message string
	Token   string
	Cause   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("[%s] %s (token: %q)", e.Code, e.Message, e.Token)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a parse error naming the offending token.
func NewParseError(message, token string) *ParseError {
	return &ParseError{
		Code:    CodePortSpecInvalid,
		Message: message,
		Token:   token,
	}
}

// WrapParseError wraps a lower level parse failure for a token.
func WrapParseError(message, token string, err error) *ParseError {
	return &ParseError{
		Code:    CodePortSpecInvalid,
		Message: message,
		Token:   token,
		Cause:   err,
	}
}

// ResolutionError reports a target that could not be turned into an address.
type ResolutionError struct {
	Code    ErrorCode
	Message string
	Target  string
	Server  string
	Cause   error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	if e.Server != "" {
		msg += fmt.Sprintf(" via %s", e.Server)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// NewResolutionError creates a resolution error for a target.
func NewResolutionError(message, target string) *ResolutionError {
	return &ResolutionError{
		Code:    CodeResolutionFailed,
		Message: message,
		Target:  target,
	}
}

// WrapResolutionError wraps a lookup failure for a target.
func WrapResolutionError(message, target string, err error) *ResolutionError {
	return &ResolutionError{
		Code:    CodeResolutionFailed,
		Message: message,
		Target:  target,
		Cause:   err,
	}
}

// WithServer records the DNS server that was queried.
func (e *ResolutionError) WithServer(server string) *ResolutionError {
	e.Server = server
	return e
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from an error chain if it carries one.
func GetCode(err error) ErrorCode {
	var parseErr *ParseError
	if stderrors.As(err, &parseErr) {
		return parseErr.Code
	}
	var resErr *ResolutionError
	if stderrors.As(err, &resErr) {
		return resErr.Code
	}
	var cfgErr *ConfigError
	if stderrors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// ErrEmptyPortSpec creates the error returned for a blank port specification.
func ErrEmptyPortSpec() *ParseError {
	return NewParseError("Port specification is empty", "")
}

// ErrNoAddresses creates an error for a lookup that returned nothing.
func ErrNoAddresses(target string) *ResolutionError {
	return NewResolutionError("Lookup returned no addresses", target)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}
