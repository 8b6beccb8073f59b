package identity

import (
	"errors"
	"fmt"
)

var (
	ErrUserAlreadyExists  = errors.New("User already registered")
	ErrInvalidCredentials = errors.New("Invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("Email not confirmed")
	ErrWeakPassword       = errors.New("Password should be at least 6 characters")
	ErrInvalidEmail       = errors.New("Unable to validate email address: invalid format")
	ErrUserNotFound       = errors.New("User not found")
	ErrInvalidSession     = errors.New("Invalid session")
	ErrInvalidToken       = errors.New("Token has expired or is invalid")
)

// APIError is an error answered by a remote identity service
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("identity provider error: %d", e.Status)
}
