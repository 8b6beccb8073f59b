package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-verify/pkg/client"
	emailverificationapi "github.com/tendant/simple-verify/pkg/emailverification/api"
	"github.com/tendant/simple-verify/pkg/webapi"
)

// DefaultFunctionsPrefix is where the verification mail endpoint is mounted
const DefaultFunctionsPrefix = "/functions/v1"

// Config holds all the dependencies and handlers needed to setup routes
type Config struct {
	// Prefix of the send-custom-verification endpoint, DefaultFunctionsPrefix when empty
	FunctionsPrefix string

	EmailVerificationHandle *emailverificationapi.Handler
	WebHandle               *webapi.Handle

	// Verifies access tokens on authenticated routes
	Auth *jwtauth.JWTAuth

	// Optional, /metrics is not mounted when nil
	MetricsHandler http.Handler
}

func (cfg Config) functionsPrefix() string {
	if cfg.FunctionsPrefix == "" {
		return DefaultFunctionsPrefix
	}
	return cfg.FunctionsPrefix
}

// SetupRoutes mounts all verification routes on the provided router
func SetupRoutes(router chi.Router, cfg Config) {
	// NotFound must be set before any Mount so subrouters inherit it
	router.NotFound(webapi.NotFound)

	SetupPublicRoutes(router, cfg)
	SetupAuthenticatedRoutes(router, cfg)

	if cfg.MetricsHandler != nil {
		router.Handle("/metrics", cfg.MetricsHandler)
	}
}

// SetupPublicRoutes mounts only public routes (no authentication required)
func SetupPublicRoutes(router chi.Router, cfg Config) {
	if cfg.EmailVerificationHandle != nil {
		router.Mount(cfg.functionsPrefix(), cfg.EmailVerificationHandle.Routes())
	}
	if cfg.WebHandle != nil {
		router.Group(func(r chi.Router) {
			cfg.WebHandle.RegisterRoutes(r)
		})
	}
}

// SetupAuthenticatedRoutes mounts only authenticated routes
func SetupAuthenticatedRoutes(router chi.Router, cfg Config) {
	if cfg.Auth == nil || cfg.WebHandle == nil {
		slog.Warn("Authenticated routes not mounted", "auth", cfg.Auth != nil, "web", cfg.WebHandle != nil)
		return
	}

	router.Group(func(r chi.Router) {
		r.Use(client.Verifier(cfg.Auth))
		r.Use(client.AuthUserMiddleware)

		r.Get("/dashboard", cfg.WebHandle.Dashboard)

		// Private endpoint for testing authentication
		r.Get("/private", func(w http.ResponseWriter, r *http.Request) {
			render.PlainText(w, r, http.StatusText(http.StatusOK))
		})
	})
}
