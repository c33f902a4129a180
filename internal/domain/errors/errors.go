package errors

import (
	"errors"
	"fmt"
)

// Error types for the ingestion taxonomy
type ErrorType string

const (
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeFetchTransient ErrorType = "fetch_transient"
	ErrorTypeFetchPermanent ErrorType = "fetch_permanent"
	ErrorTypeParse          ErrorType = "parse"
	ErrorTypeLLM            ErrorType = "llm"
	ErrorTypeGeocoding      ErrorType = "geocoding"
	ErrorTypePersistence    ErrorType = "persistence"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeInternal       ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// ConfigError aggregates every missing mandatory key found during config
// validation. Fatal at startup; the process refuses to run.
type ConfigError struct {
	MissingKeys []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration invalid, missing keys: %v", e.MissingKeys)
}

// Error constructors

func NewConfigError(missing ...string) *ConfigError {
	return &ConfigError{MissingKeys: missing}
}

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// NewTransientFetchError marks a network-level or 5xx failure that the
// collector may retry with backoff.
func NewTransientFetchError(source, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeFetchTransient,
		Code:      "FETCH_TRANSIENT",
		Message:   message,
		Retryable: true,
		Details:   map[string]interface{}{"source": source},
	}
}

// NewPermanentFetchError marks a 4xx or NXDOMAIN class failure; counted
// against the source but never retried.
func NewPermanentFetchError(source, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeFetchPermanent,
		Code:      "FETCH_PERMANENT",
		Message:   message,
		Retryable: false,
		Details:   map[string]interface{}{"source": source},
	}
}

func NewParseError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeParse,
		Code:      "PARSE_ERROR",
		Message:   message,
		Retryable: false,
	}
}

func NewLLMError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeLLM,
		Code:      "LLM_ERROR",
		Message:   message,
		Retryable: false,
	}
}

func NewGeocodingError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeGeocoding,
		Code:      "GEOCODING_ERROR",
		Message:   message,
		Retryable: false,
	}
}

func NewPersistenceError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypePersistence,
		Code:      "PERSISTENCE_ERROR",
		Message:   message,
		Retryable: true,
	}
}

func NewRateLimitError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeRateLimit,
		Code:      "RATE_LIMIT_EXCEEDED",
		Message:   message,
		Retryable: true,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:      ErrorTypeNotFound,
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeInternal,
		Code:      "INTERNAL_ERROR",
		Message:   message,
		Retryable: true,
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable reports whether the collector should retry the operation
// that produced err.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
