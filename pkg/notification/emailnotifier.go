package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
}

// SMTPProvider sends email through an SMTP relay
type SMTPProvider struct {
	SMTPConfig SMTPConfig
	client     *mail.Client
}

func NewSMTPProvider(config SMTPConfig) (*SMTPProvider, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30 * time.Second),
	}

	// Only add authentication if username and password are provided
	if config.Username != "" && config.Password != "" {
		slog.Info("Adding authentication", "user", config.Username)
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if !config.TLS {
		slog.Info("Using NoTLS policy")
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	} else {
		slog.Info("Using TLS Mandatory policy")
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{ServerName: config.Host}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	}

	slog.Info("Creating mail client", "Host", config.Host, "Port", config.Port)
	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "err", err)
		return nil, err
	}

	return &SMTPProvider{SMTPConfig: config, client: client}, nil
}

func (e *SMTPProvider) Send(ctx context.Context, msg Message) (*Result, error) {
	if msg.To == "" {
		return nil, fmt.Errorf("email notification requires 'To' address")
	}
	from := msg.From
	if from == "" {
		from = e.SMTPConfig.From
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		slog.Error("Failed to set from address", "err", err)
		return nil, err
	}
	if err := m.To(msg.To); err != nil {
		slog.Error("Failed to set to address", "err", err)
		return nil, err
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	id := uuid.NewString()
	m.SetMessageIDWithValue(id)

	if err := e.client.DialAndSendWithContext(ctx, m); err != nil {
		slog.Error("Failed to send email", "err", err)
		return nil, fmt.Errorf("SMTP delivery failed: %w", err)
	}

	slog.Info("Email sent successfully", "to", msg.To, "host", e.SMTPConfig.Host, "port", e.SMTPConfig.Port)
	return &Result{ID: id, Payload: map[string]any{"id": id}}, nil
}
