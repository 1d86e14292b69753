// pkg/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sprintf is a convenience function for fmt.Sprintf
func Sprintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

// Sentinel errors shared across domains
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternal      = errors.New("internal error")
	ErrUnavailable   = errors.New("service unavailable")
	ErrTimeout       = errors.New("operation timed out")
)

// Unwrap provides compatibility with the standard errors package
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Is provides compatibility with the standard errors package
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As provides compatibility with the standard errors package
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message
func New(message string) error {
	return errors.New(message)
}

// Error represents a domain error with additional context
type Error struct {
	// Original is the original error
	Original error
	// Domain is the domain of the error (e.g., "storage", "ingest", "api")
	Domain string
	// Code is a machine-readable error code
	Code string
	// Message is a human-readable error message
	Message string
	// Operation is the operation that failed (e.g., "CreateTransaction", "MarkProcessed")
	Operation string
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder

	// Format: [Domain.Operation] Code=...: Message: Original
	sb.WriteString("[")
	if e.Domain != "" {
		sb.WriteString(e.Domain)
		if e.Operation != "" {
			sb.WriteString(".")
			sb.WriteString(e.Operation)
		}
	} else if e.Operation != "" {
		sb.WriteString(e.Operation)
	}
	sb.WriteString("] ")

	if e.Code != "" {
		sb.WriteString("Code=")
		sb.WriteString(e.Code)
		sb.WriteString(": ")
	}

	if e.Message != "" {
		sb.WriteString(e.Message)
	}

	if e.Original != nil {
		if e.Message != "" {
			sb.WriteString(": ")
		}
		sb.WriteString(e.Original.Error())
	}

	return sb.String()
}

// Unwrap implements the errors.Unwrapper interface
func (e *Error) Unwrap() error {
	return e.Original
}

// Wrap wraps an error with a message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		return &Error{
			Original:  domainErr.Original,
			Domain:    domainErr.Domain,
			Code:      domainErr.Code,
			Message:   message,
			Operation: domainErr.Operation,
		}
	}

	return &Error{
		Original: err,
		Message:  message,
	}
}

// WrapWithDomain wraps an error with a domain
func WrapWithDomain(err error, domain string) error {
	if err == nil {
		return nil
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		return &Error{
			Original:  domainErr.Original,
			Domain:    domain,
			Code:      domainErr.Code,
			Message:   domainErr.Message,
			Operation: domainErr.Operation,
		}
	}

	return &Error{
		Original: err,
		Domain:   domain,
	}
}

// WrapWithOperation wraps an error with an operation
func WrapWithOperation(err error, operation string) error {
	if err == nil {
		return nil
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		return &Error{
			Original:  domainErr.Original,
			Domain:    domainErr.Domain,
			Code:      domainErr.Code,
			Message:   domainErr.Message,
			Operation: operation,
		}
	}

	return &Error{
		Original:  err,
		Operation: operation,
	}
}

// WrapWithCode wraps an error with a code
func WrapWithCode(err error, code string) error {
	if err == nil {
		return nil
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		return &Error{
			Original:  domainErr.Original,
			Domain:    domainErr.Domain,
			Code:      code,
			Message:   domainErr.Message,
			Operation: domainErr.Operation,
		}
	}

	return &Error{
		Original: err,
		Code:     code,
	}
}
