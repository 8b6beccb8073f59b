// Package emailverification composes and sends confirm-or-deny verification emails.
//
// Each email carries two mutually exclusive links built from the caller's base URL:
//
//	{baseUrl}/verify/confirm?token={token}&email={email}
//	{baseUrl}/verify/deny?email={email}
//
// Only the confirm link carries the token. The body is rendered from an embedded
// html/template, so the address and both URLs are escaped for their context.
//
// # Usage
//
//	mailer := emailverification.NewMailer(provider,
//		emailverification.WithFrom("noreply@example.com"),
//	)
//
//	payload, err := mailer.Send(ctx, emailverification.Request{
//		Email:   "user@example.com",
//		Token:   token,
//		BaseURL: "https://app.example.com",
//	})
//
// Send validates the request before anything else and returns a *ValidationError
// for missing or malformed input. Delivery problems come back as a
// *MailDeliveryError whose message is the provider's own. Exactly one delivery
// attempt is made per call.
//
// The api sub-package exposes Send over HTTP as POST /send-custom-verification.
package emailverification
