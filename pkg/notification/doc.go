// Package notification delivers transactional email.
//
// A Provider accepts one fully rendered Message and makes exactly one
// delivery attempt. Three providers ship with the package:
//
//   - ResendProvider posts to the Resend HTTP API with a bearer key
//   - SMTPProvider sends through an SMTP relay using go-mail
//   - MockProvider records messages in memory for tests and local runs
//
// # Usage
//
//	provider, err := notification.NewProvider(notification.ProviderConfig{
//	    Kind:   "resend",
//	    Resend: notification.ResendConfig{APIKey: os.Getenv("RESEND_API_KEY")},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := provider.Send(ctx, notification.Message{
//	    From:    "noreply@example.com",
//	    To:      "user@example.com",
//	    Subject: "Verify your email address",
//	    HTML:    html,
//	})
//
// A rejected message yields a *DeliveryError carrying the provider's status
// code and response body:
//
//	var de *notification.DeliveryError
//	if errors.As(err, &de) {
//	    slog.Error("delivery rejected", "status", de.Status)
//	}
package notification
