package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrEmptyInput       = errors.New("input contains no NDJSON lines")
	ErrInvalidJSON      = errors.New("invalid JSON format")
	ErrTrailingData     = errors.New("unexpected data after the JSON value on the same line")
	ErrNotObject        = errors.New("top-level JSON value is not an object")
	ErrFileNotFound     = errors.New("file not found")
	ErrInvalidFilePath  = errors.New("invalid file path")
	ErrLineTooLong      = errors.New("line exceeds the maximum line size")
	ErrSchemaDrift      = errors.New("record has columns that were not discovered")
	ErrNoColumns        = errors.New("no columns were discovered")
	ErrConflictingFlags = errors.New("choose either --explode-column or --explode-all, not both")
	ErrInvalidFlag      = errors.New("invalid flag value")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput   ErrorType = "input"
	ErrorTypeParsing ErrorType = "parsing"
	ErrorTypeConfig  ErrorType = "config"
	ErrorTypeSchema  ErrorType = "schema"
	ErrorTypeOutput  ErrorType = "output"
	ErrorTypeUnknown ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for comparison
func (e *AppError) Is(target error) bool {
	// Check if target is also an *AppError and if the types match
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewInputError creates a new error related to reading the NDJSON input
func NewInputError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInput,
		Message: message,
		Err:     err,
	}
}

// NewParsingError creates a new error related to JSON parsing
func NewParsingError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeParsing,
		Message: message,
		Err:     err,
	}
}

// NewConfigError creates a new error related to configuration and flags
func NewConfigError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeConfig,
		Message: message,
		Err:     err,
	}
}

// NewSchemaError creates a new error related to the discovered header
func NewSchemaError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeSchema,
		Message: message,
		Err:     err,
	}
}

// NewOutputError creates a new error related to writing the CSV output
func NewOutputError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeOutput,
		Message: message,
		Err:     err,
	}
}

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrorTypeInput:
			return 2
		case ErrorTypeOutput:
			return 3
		case ErrorTypeParsing, ErrorTypeSchema:
			return 4
		}
	}
	return 1
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", detail(appErr))
		case ErrorTypeParsing:
			return fmt.Sprintf("JSON parsing error: %s", detail(appErr))
		case ErrorTypeConfig:
			return fmt.Sprintf("Configuration error: %s", detail(appErr))
		case ErrorTypeSchema:
			return fmt.Sprintf("Schema error: %s", detail(appErr))
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", detail(appErr))
		default:
			return fmt.Sprintf("Error: %s", appErr.Message)
		}
	}

	// Handle standard errors
	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input has no lines. Please provide a newline-delimited JSON file."
	}
	if errors.Is(err, ErrFileNotFound) {
		return "Error: The specified file could not be found. Please check the file path."
	}
	if errors.Is(err, ErrInvalidFilePath) {
		return "Error: Invalid file path. Please provide a valid file path."
	}
	if errors.Is(err, ErrConflictingFlags) {
		return "Error: Choose either --explode-column or --explode-all, not both."
	}

	// Generic error message for unknown errors
	return fmt.Sprintf("Error: %v", err)
}

// detail appends the cause for sentinel-backed errors, which carry the useful hint
func detail(appErr *AppError) string {
	if appErr.Err == nil {
		return appErr.Message
	}
	return fmt.Sprintf("%s (%v)", appErr.Message, appErr.Err)
}
