package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a failure of the verification flow
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Input rejected before any network call
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeMissingRequired  ErrorCode = "MISSING_REQUIRED"
	ErrCodeInvalidFormat    ErrorCode = "INVALID_FORMAT"

	ErrCodeProvider     ErrorCode = "PROVIDER_ERROR"
	ErrCodeMailDelivery ErrorCode = "MAIL_DELIVERY_FAILED"

	// Confirm/deny flow integrity
	ErrCodeTokenMismatch   ErrorCode = "TOKEN_MISMATCH"
	ErrCodeNoPendingSignup ErrorCode = "NO_PENDING_SIGNUP"

	// Provider-native callback
	ErrCodeSessionAbsent ErrorCode = "SESSION_ABSENT"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeValidationFailed: http.StatusBadRequest,
	ErrCodeMissingRequired:  http.StatusBadRequest,
	ErrCodeInvalidFormat:    http.StatusBadRequest,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeSessionAbsent:    http.StatusUnauthorized,
	ErrCodeNoPendingSignup:  http.StatusNotFound,
	ErrCodeTokenMismatch:    http.StatusConflict,
	ErrCodeProvider:         http.StatusUnprocessableEntity,
	ErrCodeMailDelivery:     http.StatusInternalServerError,
	ErrCodeInternal:         http.StatusInternalServerError,
}

// Error is a coded failure. Message is safe to show to the person who
// triggered the action; Err keeps the underlying cause for logs.
type Error struct {
	Code    ErrorCode
	Message string
	Field   string // Form field a validation failure refers to, if any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithField records which form field caused the error
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and user message to err. It returns nil for a nil err.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// MissingRequired reports an empty required form field
func MissingRequired(field string) *Error {
	return Newf(ErrCodeMissingRequired, "%s is required", field).WithField(field)
}

// Provider wraps an identity provider failure, keeping the provider's message verbatim
func Provider(err error) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, ErrCodeProvider, err.Error())
}

func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// GetCode returns the code of the outermost *Error in err's chain, or
// ErrCodeInternal when there is none
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// UserMessage returns the message meant for the person who triggered the action.
// Structured errors expose their Message; anything else falls back to err.Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsValidation reports whether err rejected the input itself. Such errors
// are never retried and leave flow state unchanged.
func IsValidation(err error) bool {
	switch GetCode(err) {
	case ErrCodeValidationFailed, ErrCodeMissingRequired, ErrCodeInvalidFormat:
		return true
	}
	return false
}

// Retryable reports whether the same action may succeed when repeated
// without restarting the signup
func Retryable(err error) bool {
	switch GetCode(err) {
	case ErrCodeProvider, ErrCodeMailDelivery, ErrCodeSessionAbsent:
		return true
	}
	return false
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes; unknown codes are 500
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
