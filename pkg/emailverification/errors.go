package emailverification

import (
	"errors"
)

var (
	// ErrInvalidRequest is the root of every ValidationError
	ErrInvalidRequest = errors.New("invalid verification request")

	// ErrMailDelivery is the root of every MailDeliveryError
	ErrMailDelivery = errors.New("verification email delivery failed")
)

// ValidationError reports a malformed verification request. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// MailDeliveryError wraps a failed send. Status and Body are set when the
// provider answered with a non-success status; both are zero for transport errors.
type MailDeliveryError struct {
	Status int
	Body   string
	Err    error
}

// Error returns the underlying provider message unchanged
func (e *MailDeliveryError) Error() string {
	return e.Err.Error()
}

func (e *MailDeliveryError) Unwrap() []error {
	return []error{ErrMailDelivery, e.Err}
}
