package notification

import (
	"fmt"
	"log/slog"
)

// ProviderConfig selects and configures a delivery provider
type ProviderConfig struct {
	Kind   string // "resend", "smtp" or "mock"
	Resend ResendConfig
	SMTP   SMTPConfig
}

// NewProvider creates the provider named by config.Kind
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Kind {
	case "", "resend":
		if config.Resend.APIKey == "" {
			return nil, fmt.Errorf("resend provider requires an API key")
		}
		slog.Info("Using Resend email provider", "endpoint", config.Resend.Endpoint)
		return NewResendProvider(config.Resend), nil
	case "smtp":
		if config.SMTP.Host == "" {
			return nil, fmt.Errorf("smtp provider requires a host")
		}
		return NewSMTPProvider(config.SMTP)
	case "mock":
		slog.Warn("Using mock email provider, no email will be delivered")
		return &MockProvider{}, nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", config.Kind)
	}
}
