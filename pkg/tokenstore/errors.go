package tokenstore

import "errors"

var (
	// ErrNoPendingSignup is returned when the client context holds no pending signup
	ErrNoPendingSignup = errors.New("no pending signup found")

	// ErrTokenMismatch is returned when the email or token does not match the
	// pending signup, or the pending signup has expired
	ErrTokenMismatch = errors.New("invalid verification token")
)
