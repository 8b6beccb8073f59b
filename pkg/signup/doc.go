// Package signup owns the confirm-or-deny signup lifecycle.
//
// SignUp validates the form, issues a pending signup into the caller's
// tokenstore.Store and mails the verification links. Issuing and mailing are
// all-or-nothing: when the mail cannot be delivered the pending signup is
// cleared before the error is returned.
//
// Verify checks a confirm link against the pending signup and never changes it.
//
// CompleteSignUp re-checks the link, creates the account at the identity
// provider with the password held server-side, and only then clears the
// pending signup. A provider failure leaves the pending signup in place so
// the attempt can be retried.
//
//	svc := signup.NewSignupService(mailer, "https://app.example.com")
//
//	err := svc.SignUp(ctx, store, signup.SignUpRequest{
//		Email:           "user@example.com",
//		Password:        "secret1",
//		ConfirmPassword: "secret1",
//	})
//
//	session, err := svc.CompleteSignUp(ctx, store, provider, email, token, "")
//
// Errors are *errors.Error values from pkg/errors; use errors.IsCode or
// MapErrorCodeToHTTPStatus to classify them.
package signup
