package router

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/simple-verify/pkg/client"
	"github.com/tendant/simple-verify/pkg/emailverification"
	emailverificationapi "github.com/tendant/simple-verify/pkg/emailverification/api"
	"github.com/tendant/simple-verify/pkg/identity"
	"github.com/tendant/simple-verify/pkg/notification"
	"github.com/tendant/simple-verify/pkg/signup"
	"github.com/tendant/simple-verify/pkg/tokenstore"
	"github.com/tendant/simple-verify/pkg/verifyflow"
	"github.com/tendant/simple-verify/pkg/webapi"
)

// MinimalOptions contains minimal configuration for running the verification flow
type MinimalOptions struct {
	// Required
	JWTSecret string // Signs and verifies access tokens of the in-memory directory
	BaseURL   string // Base URL the confirm and deny links point at (e.g., "http://localhost:4000")

	// Optional - defaults will be used if not provided
	MailProvider         notification.Provider // Delivers verification emails (default: mock, nothing is sent)
	MailFrom             string                // Sender address (default: emailverification.DefaultFrom)
	KV                   tokenstore.KV         // Pending signup storage (default: in-memory)
	PendingSignupTTL     time.Duration         // Lifetime of a pending signup (default: tokenstore.DefaultTTL)
	MinPasswordLength    int                   // Minimum password length (default: 6)
	RegistrationDisabled bool                  // Refuse new signups
	RedirectTo           string                // Where the callback page sends signed in users (default: "/dashboard")
}

// NewMinimalConfig creates a router configuration backed by an in-memory
// identity directory
//
// Example:
//
//	cfg, err := router.NewMinimalConfig(router.MinimalOptions{
//	    JWTSecret: "your-secret-key-at-least-16",
//	    BaseURL:   "http://localhost:4000",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	router.SetupRoutes(r, cfg)
func NewMinimalConfig(opts MinimalOptions) (Config, error) {
	if opts.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT secret is required")
	}
	if opts.BaseURL == "" {
		return Config{}, fmt.Errorf("base URL is required")
	}

	provider := opts.MailProvider
	if provider == nil {
		slog.Warn("No mail provider configured, verification emails are recorded only")
		provider = &notification.MockProvider{}
	}
	kv := opts.KV
	if kv == nil {
		kv = tokenstore.NewMemoryKV()
	}
	mailFrom := opts.MailFrom
	if mailFrom == "" {
		mailFrom = emailverification.DefaultFrom
	}
	redirectTo := opts.RedirectTo
	if redirectTo == "" {
		redirectTo = "/dashboard"
	}

	mailer := emailverification.NewMailer(provider, emailverification.WithFrom(mailFrom))

	callbackURL := strings.TrimRight(opts.BaseURL, "/") + "/auth/callback"
	directory := identity.NewDirectory(opts.JWTSecret,
		identity.WithConfirmationMailer(provider, mailFrom, callbackURL),
	)

	svcOpts := []signup.SignupServiceOption{
		signup.WithRegistrationEnabled(!opts.RegistrationDisabled),
	}
	if opts.MinPasswordLength > 0 {
		svcOpts = append(svcOpts, signup.WithMinPasswordLength(opts.MinPasswordLength))
	}
	signupService := signup.NewSignupService(mailer, opts.BaseURL, svcOpts...)

	var storeOpts []tokenstore.StoreOption
	if opts.PendingSignupTTL > 0 {
		storeOpts = append(storeOpts, tokenstore.WithTTL(opts.PendingSignupTTL))
	}

	webHandle := webapi.NewHandle(directory, signupService, kv,
		webapi.WithStoreOptions(storeOpts...),
		webapi.WithCallbackOptions(verifyflow.WithRedirect(redirectTo, verifyflow.DefaultRedirectDelay)),
		webapi.WithCookieSetter(client.NewCookieSetter(true, strings.HasPrefix(opts.BaseURL, "https://"))),
	)

	return Config{
		EmailVerificationHandle: emailverificationapi.NewHandler(mailer),
		WebHandle:               webHandle,
		Auth:                    jwtauth.New("HS256", []byte(opts.JWTSecret), nil),
	}, nil
}
