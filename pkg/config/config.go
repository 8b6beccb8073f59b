package config

import (
	"net/http"
	"strings"
	"time"

	"github.com/tendant/simple-verify/pkg/identity"
	"github.com/tendant/simple-verify/pkg/notification"
)

// MailConfig selects the delivery provider for verification emails
type MailConfig struct {
	Provider       string `env:"MAIL_PROVIDER" env-default:"resend"`
	From           string `env:"MAIL_FROM" env-default:"noreply@yourdomain.com"`
	ResendAPIKey   string `env:"RESEND_API_KEY" env-default:""`
	ResendEndpoint string `env:"RESEND_ENDPOINT" env-default:"https://api.resend.com/emails"`

	EmailHost     string `env:"EMAIL_HOST" env-default:"localhost"`
	EmailPort     int    `env:"EMAIL_PORT" env-default:"1025"`
	EmailUsername string `env:"EMAIL_USERNAME" env-default:""`
	EmailPassword string `env:"EMAIL_PASSWORD" env-default:""`
	EmailTLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

func (m MailConfig) Validate() ValidationErrors {
	errs := CollectErrors(
		RequireOneOf("MAIL_PROVIDER", m.Provider, "resend", "smtp", "mock"),
		RequireNonEmpty("MAIL_FROM", m.From),
	)
	switch m.Provider {
	case "resend":
		errs = append(errs, CollectErrors(
			RequireNonEmpty("RESEND_API_KEY", m.ResendAPIKey),
			RequireValidURL("RESEND_ENDPOINT", m.ResendEndpoint),
		)...)
	case "smtp":
		errs = append(errs, CollectErrors(
			RequireNonEmpty("EMAIL_HOST", m.EmailHost),
			RequireValidPort("EMAIL_PORT", m.EmailPort),
		)...)
	}
	return errs
}

// ToProviderConfig converts to the notification factory's configuration
func (m MailConfig) ToProviderConfig() notification.ProviderConfig {
	return notification.ProviderConfig{
		Kind: m.Provider,
		Resend: notification.ResendConfig{
			APIKey:   m.ResendAPIKey,
			From:     m.From,
			Endpoint: m.ResendEndpoint,
		},
		SMTP: notification.SMTPConfig{
			Host:     m.EmailHost,
			Port:     m.EmailPort,
			TLS:      m.EmailTLS,
			Username: m.EmailUsername,
			Password: m.EmailPassword,
			From:     m.From,
		},
	}
}

// IdentityConfig selects the identity provider accounts are created at
type IdentityConfig struct {
	Provider            string        `env:"IDENTITY_PROVIDER" env-default:"memory"`
	JWTSecret           string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	GoTrueURL           string        `env:"GOTRUE_URL" env-default:""`
	GoTrueAPIKey        string        `env:"GOTRUE_API_KEY" env-default:""`
	SessionTTL          time.Duration `env:"SESSION_TTL" env-default:"1h"`
	RequireConfirmation bool          `env:"REQUIRE_EMAIL_CONFIRMATION" env-default:"false"`
}

func (i IdentityConfig) Validate() ValidationErrors {
	errs := CollectErrors(
		RequireOneOf("IDENTITY_PROVIDER", i.Provider, "memory", "gotrue"),
		RequireMinLength("JWT_SECRET", i.JWTSecret, 16),
		RequirePositiveDuration("SESSION_TTL", i.SessionTTL),
	)
	if i.Provider == "gotrue" {
		errs = append(errs, CollectErrors(
			RequireValidURL("GOTRUE_URL", i.GoTrueURL),
			RequireNonEmpty("GOTRUE_API_KEY", i.GoTrueAPIKey),
		)...)
	}
	return errs
}

// ToBackendConfig converts to the identity factory's configuration.
// callbackURL is where confirmation links issued by the provider land.
func (i IdentityConfig) ToBackendConfig(callbackURL string, opts ...identity.DirectoryOption) identity.BackendConfig {
	return identity.BackendConfig{
		Kind:      i.Provider,
		JWTSecret: i.JWTSecret,
		GoTrue: identity.GoTrueConfig{
			URL:        i.GoTrueURL,
			APIKey:     i.GoTrueAPIKey,
			RedirectTo: callbackURL,
		},
		Directory: append([]identity.DirectoryOption{
			identity.WithSessionTTL(i.SessionTTL),
			identity.WithRequireConfirmation(i.RequireConfirmation),
		}, opts...),
	}
}

// TokenStoreConfig selects where pending signups are kept
type TokenStoreConfig struct {
	Type          string        `env:"TOKEN_STORE" env-default:"memory"`
	RedisURL      string        `env:"REDIS_URL" env-default:""`
	DataDir       string        `env:"TOKEN_STORE_DIR" env-default:"data/pending"`
	TTL           time.Duration `env:"PENDING_SIGNUP_TTL" env-default:"24h"`
	SweepSchedule string        `env:"TOKEN_SWEEP_SCHEDULE" env-default:"@every 10m"`
}

func (t TokenStoreConfig) Validate() ValidationErrors {
	errs := CollectErrors(
		RequireOneOf("TOKEN_STORE", t.Type, "memory", "redis", "file"),
		RequirePositiveDuration("PENDING_SIGNUP_TTL", t.TTL),
	)
	switch t.Type {
	case "redis":
		errs = append(errs, CollectErrors(RequireNonEmpty("REDIS_URL", t.RedisURL))...)
	case "file":
		errs = append(errs, CollectErrors(
			RequireNonEmpty("TOKEN_STORE_DIR", t.DataDir),
			RequireSchedule("TOKEN_SWEEP_SCHEDULE", t.SweepSchedule),
		)...)
	}
	return errs
}

// SignupConfig holds the signup form rules and where links point
type SignupConfig struct {
	BaseURL             string        `env:"BASE_URL" env-default:"http://localhost:4000"`
	RegistrationEnabled bool          `env:"REGISTRATION_ENABLED" env-default:"true"`
	MinPasswordLength   int           `env:"MIN_PASSWORD_LENGTH" env-default:"6"`
	ConfirmDelay        time.Duration `env:"CONFIRM_DELAY" env-default:"0s"`
	RedirectTo          string        `env:"CALLBACK_REDIRECT_TO" env-default:"/dashboard"`
	RedirectDelay       time.Duration `env:"CALLBACK_REDIRECT_DELAY" env-default:"2s"`
}

func (s SignupConfig) Validate() ValidationErrors {
	errs := CollectErrors(
		RequireValidURL("BASE_URL", s.BaseURL),
		RequireNonEmpty("CALLBACK_REDIRECT_TO", s.RedirectTo),
	)
	if s.MinPasswordLength < 1 {
		errs = append(errs, *invalid("MIN_PASSWORD_LENGTH", "must be positive, got %d", s.MinPasswordLength))
	}
	return errs
}

// CallbackURL is the landing page of provider-native confirmation links
func (s SignupConfig) CallbackURL() string {
	return strings.TrimRight(s.BaseURL, "/") + "/auth/callback"
}

// CookieConfig controls the session and client context cookies
type CookieConfig struct {
	HttpOnly bool `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	Secure   bool `env:"COOKIE_SECURE" env-default:"false"`
}

// SameSite returns the SameSite setting of the session cookie based on Secure.
// The client context cookie is always Lax.
func (c CookieConfig) SameSite() http.SameSite {
	if c.Secure {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}
