// Package verifyflow models the pages a user moves through while confirming
// or denying a signup.
//
// A Flow is created per client context and walks
//
//	idle -> awaiting_email_click            (BeginSignUp)
//	idle -> confirm_loading -> confirm_success | confirm_error   (VisitConfirm)
//	confirm_success -> account_created      (Complete)
//	idle -> deny_acknowledged               (VisitDeny)
//
// VisitConfirm and VisitDeny never modify the pending signup; only Complete
// clears it, and only after the identity provider accepted the account.
// After Close, results of calls still in flight are discarded.
//
// Callback covers the other route: the identity provider mailed its own
// link and the user landed back on the app.
package verifyflow
