package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the engine
var (
	ErrNotFound         = New(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = New(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation       = New(ErrCodeValidation, "validation error")
	ErrInvalidOperation = New(ErrCodeInvalidOperation, "invalid operation")
	ErrDatabase         = New(ErrCodeDatabase, "database error")
	ErrSystem           = New(ErrCodeSystemError, "system error")
	ErrHTTPClient       = New(ErrCodeHTTPClient, "http client error")

	// Engine specific error types
	ErrNoApplicableZone  = New(ErrCodeNoApplicableZone, "no applicable tax zone")
	ErrInvalidRateConfig = New(ErrCodeInvalidRateConfig, "invalid tax rate configuration")
	ErrProviderTimeout   = New(ErrCodeProviderTimeout, "tax provider timed out")
)

const (
	ErrCodeSystemError      = "system_error"
	ErrCodeNotFound         = "not_found"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodeValidation       = "validation_error"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodeDatabase         = "database_error"
	ErrCodeHTTPClient       = "http_client_error"

	ErrCodeNoApplicableZone  = "no_applicable_zone"
	ErrCodeInvalidRateConfig = "invalid_rate_configuration"
	ErrCodeProviderTimeout   = "provider_timeout"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

// New creates a new InternalError
func New(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsDatabase checks if an error is a database error
func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsHTTPClient checks if an error is an http client error
func IsHTTPClient(err error) bool {
	return errors.Is(err, ErrHTTPClient)
}

// IsNoApplicableZone checks if an error is a no applicable zone error
func IsNoApplicableZone(err error) bool {
	return errors.Is(err, ErrNoApplicableZone)
}

// IsInvalidRateConfig checks if an error is an invalid rate configuration error
func IsInvalidRateConfig(err error) bool {
	return errors.Is(err, ErrInvalidRateConfig)
}

// IsProviderTimeout checks if an error is a provider timeout error
func IsProviderTimeout(err error) bool {
	return errors.Is(err, ErrProviderTimeout)
}

// ErrorCode extracts the machine-readable code for a marked error.
// Failed calculations persist this code so checkout flows can decide
// whether to block or proceed with zero tax.
func ErrorCode(err error) string {
	switch {
	case IsNoApplicableZone(err):
		return ErrCodeNoApplicableZone
	case IsInvalidRateConfig(err):
		return ErrCodeInvalidRateConfig
	case IsProviderTimeout(err):
		return ErrCodeProviderTimeout
	case IsNotFound(err):
		return ErrCodeNotFound
	case IsAlreadyExists(err):
		return ErrCodeAlreadyExists
	case IsValidation(err):
		return ErrCodeValidation
	case IsInvalidOperation(err):
		return ErrCodeInvalidOperation
	case IsDatabase(err):
		return ErrCodeDatabase
	default:
		return ErrCodeSystemError
	}
}
