// Package errors provides structured error handling with error codes for simple-verify.
//
// Every failure that can reach a user action is expressed as an *Error carrying a code
// from the verification taxonomy:
//
//   - VALIDATION_FAILED / MISSING_REQUIRED / INVALID_FORMAT: malformed input, detected before
//     any network call, never retried automatically
//   - PROVIDER_ERROR: the identity provider rejected a call; the message is surfaced verbatim
//   - MAIL_DELIVERY_FAILED: the email delivery provider returned a non-success response
//   - TOKEN_MISMATCH / NO_PENDING_SIGNUP: integrity failures of the confirm/deny flow
//   - SESSION_ABSENT: the provider-native callback found no session
//
// # Basic Usage
//
//	import "github.com/tendant/simple-verify/pkg/errors"
//
//	err := errors.MissingRequired("email")
//	err := errors.Wrap(sendErr, errors.ErrCodeMailDelivery, sendErr.Error())
//
//	if errors.IsCode(err, errors.ErrCodeTokenMismatch) {
//		// user must restart signup
//	}
//
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
package errors
