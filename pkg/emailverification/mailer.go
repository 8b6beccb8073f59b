package emailverification

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"

	"github.com/tendant/simple-verify/pkg/notification"
)

const (
	DefaultFrom    = "noreply@yourdomain.com"
	DefaultSubject = "Verify your email address"
)

//go:embed templates/*
var templateFiles embed.FS

var emailTemplate = template.Must(template.ParseFS(templateFiles, "templates/verification_email.html"))

// Request asks for one verification email
type Request struct {
	Email   string
	Token   string
	BaseURL string
}

// Validate checks every field before anything is sent
func (r Request) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	addr, err := mail.ParseAddress(r.Email)
	if err != nil || addr.Address != strings.TrimSpace(r.Email) {
		return &ValidationError{Field: "email", Message: "email is not a valid address"}
	}
	if r.Token == "" {
		return &ValidationError{Field: "token", Message: "token is required"}
	}
	if strings.TrimSpace(r.BaseURL) == "" {
		return &ValidationError{Field: "baseUrl", Message: "baseUrl is required"}
	}
	u, err := url.Parse(r.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "baseUrl", Message: "baseUrl must be an absolute http or https URL"}
	}
	return nil
}

// Links holds the two mutually exclusive actions offered in the email
type Links struct {
	Confirm string
	Deny    string
}

// BuildLinks derives the confirm and deny URLs. Only the confirm link carries the token.
func BuildLinks(baseURL, email, token string) Links {
	base := strings.TrimRight(baseURL, "/")
	return Links{
		Confirm: base + "/verify/confirm?token=" + url.QueryEscape(token) + "&email=" + url.QueryEscape(email),
		Deny:    base + "/verify/deny?email=" + url.QueryEscape(email),
	}
}

// RenderEmail produces the HTML body with one confirm link and one deny link
func RenderEmail(email string, links Links) (string, error) {
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, struct {
		Email      string
		ConfirmURL string
		DenyURL    string
	}{
		Email:      email,
		ConfirmURL: links.Confirm,
		DenyURL:    links.Deny,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Mailer composes and sends confirm-or-deny verification emails
type Mailer struct {
	provider notification.Provider
	from     string
	subject  string
}

type MailerOption func(*Mailer)

func WithFrom(from string) MailerOption {
	return func(m *Mailer) {
		if from != "" {
			m.from = from
		}
	}
}

func WithSubject(subject string) MailerOption {
	return func(m *Mailer) {
		if subject != "" {
			m.subject = subject
		}
	}
}

func NewMailer(provider notification.Provider, opts ...MailerOption) *Mailer {
	m := &Mailer{
		provider: provider,
		from:     DefaultFrom,
		subject:  DefaultSubject,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send validates req and makes exactly one delivery attempt. The returned
// map is the provider's response payload.
func (m *Mailer) Send(ctx context.Context, req Request) (map[string]any, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.Email)
	links := BuildLinks(req.BaseURL, email, req.Token)
	html, err := RenderEmail(email, links)
	if err != nil {
		slog.Error("Failed to render verification email", "err", err)
		return nil, err
	}

	result, err := m.provider.Send(ctx, notification.Message{
		From:    m.from,
		To:      email,
		Subject: m.subject,
		HTML:    html,
	})
	if err != nil {
		emailsSent.WithLabelValues("failed").Inc()
		slog.Error("Error sending verification email", "email", email, "err", err)
		mde := &MailDeliveryError{Err: err}
		var de *notification.DeliveryError
		if errors.As(err, &de) {
			mde.Status = de.Status
			mde.Body = de.Body
		}
		return nil, mde
	}

	emailsSent.WithLabelValues("sent").Inc()
	slog.Info("Verification email sent", "email", email, "id", result.ID)

	if result.Payload != nil {
		return result.Payload, nil
	}
	return map[string]any{"id": result.ID}, nil
}
