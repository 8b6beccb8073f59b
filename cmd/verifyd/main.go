// Package main runs the email verification service: the verification mail
// endpoint, the confirm-or-deny signup flow and the post-confirmation callback.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-verify/pkg/client"
	pkgconfig "github.com/tendant/simple-verify/pkg/config"
	"github.com/tendant/simple-verify/pkg/emailverification"
	emailverificationapi "github.com/tendant/simple-verify/pkg/emailverification/api"
	"github.com/tendant/simple-verify/pkg/identity"
	"github.com/tendant/simple-verify/pkg/notification"
	"github.com/tendant/simple-verify/pkg/router"
	"github.com/tendant/simple-verify/pkg/signup"
	"github.com/tendant/simple-verify/pkg/tokenstore"
	"github.com/tendant/simple-verify/pkg/verifyflow"
	"github.com/tendant/simple-verify/pkg/webapi"
)

type Config struct {
	AppConfig        app.AppConfig
	MailConfig       pkgconfig.MailConfig
	IdentityConfig   pkgconfig.IdentityConfig
	TokenStoreConfig pkgconfig.TokenStoreConfig
	SignupConfig     pkgconfig.SignupConfig
	CookieConfig     pkgconfig.CookieConfig
	FunctionsPrefix  string `env:"FUNCTIONS_PREFIX" env-default:"/functions/v1"`
	MetricsEnabled   bool   `env:"METRICS_ENABLED" env-default:"true"`
}

func main() {

	// Create a logger with source enabled
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	// Load .env file if it exists (before reading environment variables)
	loadEnvFile()

	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed reading configuration", "error", err)
		os.Exit(-1)
	}

	if err := pkgconfig.Validate(
		config.MailConfig.Validate,
		config.IdentityConfig.Validate,
		config.TokenStoreConfig.Validate,
		config.SignupConfig.Validate,
	); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(-1)
	}

	// Pending signup storage
	kvConfig := tokenstore.KVConfig{DataDir: config.TokenStoreConfig.DataDir}
	if config.TokenStoreConfig.Type == "redis" {
		opts, err := redis.ParseURL(config.TokenStoreConfig.RedisURL)
		if err != nil {
			slog.Error("Invalid redis URL", "error", err)
			os.Exit(-1)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Error("Failed connecting to redis", "addr", opts.Addr, "error", err)
			os.Exit(-1)
		}
		defer rdb.Close()
		kvConfig.Redis = rdb
	}
	kv, err := tokenstore.NewKV(config.TokenStoreConfig.Type, kvConfig)
	if err != nil {
		slog.Error("Failed creating pending signup store", "type", config.TokenStoreConfig.Type, "error", err)
		os.Exit(-1)
	}
	slog.Info("Pending signup store configured", "type", config.TokenStoreConfig.Type, "ttl", config.TokenStoreConfig.TTL)

	// Expired file entries are only dropped on access, sweep them on a schedule
	if fileKV, ok := kv.(*tokenstore.FileKV); ok {
		c := cron.New()
		_, err := c.AddFunc(config.TokenStoreConfig.SweepSchedule, func() {
			n, err := fileKV.Sweep(context.Background())
			if err != nil {
				slog.Error("Pending signup sweep failed", "error", err)
				return
			}
			if n > 0 {
				slog.Info("Swept expired pending signups", "count", n)
			}
		})
		if err != nil {
			slog.Error("Invalid sweep schedule", "schedule", config.TokenStoreConfig.SweepSchedule, "error", err)
			os.Exit(-1)
		}
		c.Start()
		defer c.Stop()
	}

	provider, err := notification.NewProvider(config.MailConfig.ToProviderConfig())
	if err != nil {
		slog.Error("Failed creating mail provider", "provider", config.MailConfig.Provider, "error", err)
		os.Exit(-1)
	}

	backend, err := identity.NewBackend(config.IdentityConfig.ToBackendConfig(
		config.SignupConfig.CallbackURL(),
		identity.WithConfirmationMailer(provider, config.MailConfig.From, config.SignupConfig.CallbackURL()),
	))
	if err != nil {
		slog.Error("Failed creating identity backend", "provider", config.IdentityConfig.Provider, "error", err)
		os.Exit(-1)
	}

	mailer := emailverification.NewMailer(provider, emailverification.WithFrom(config.MailConfig.From))

	signupService := signup.NewSignupService(mailer, config.SignupConfig.BaseURL,
		signup.WithMinPasswordLength(config.SignupConfig.MinPasswordLength),
		signup.WithRegistrationEnabled(config.SignupConfig.RegistrationEnabled),
	)

	cookies := &client.BaseCookieSetter{
		Path:     "/",
		HttpOnly: config.CookieConfig.HttpOnly,
		Secure:   config.CookieConfig.Secure,
		SameSite: config.CookieConfig.SameSite(),
	}

	webHandle := webapi.NewHandle(backend, signupService, kv,
		webapi.WithStoreOptions(tokenstore.WithTTL(config.TokenStoreConfig.TTL)),
		webapi.WithFlowOptions(verifyflow.WithConfirmDelay(config.SignupConfig.ConfirmDelay)),
		webapi.WithCallbackOptions(verifyflow.WithRedirect(config.SignupConfig.RedirectTo, config.SignupConfig.RedirectDelay)),
		webapi.WithCookieSetter(cookies),
	)

	routerConfig := router.Config{
		FunctionsPrefix:         config.FunctionsPrefix,
		EmailVerificationHandle: emailverificationapi.NewHandler(mailer),
		WebHandle:               webHandle,
		Auth:                    jwtauth.New("HS256", []byte(config.IdentityConfig.JWTSecret), nil),
	}

	if config.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		reg.MustRegister(emailverification.Collectors()...)
		reg.MustRegister(signup.Collectors()...)
		routerConfig.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)

	router.SetupRoutes(server.R, routerConfig)

	slog.Info("Verification service ready",
		"base_url", config.SignupConfig.BaseURL,
		"mail_provider", config.MailConfig.Provider,
		"identity_provider", config.IdentityConfig.Provider,
		"functions_prefix", config.FunctionsPrefix)

	server.Run()
}

// loadEnvFile loads environment variables from .env file if it exists
// Only sets variables that are not already set in the environment
func loadEnvFile() {
	envFile := ".env"
	if execPath, err := os.Executable(); err == nil {
		if candidate := filepath.Join(filepath.Dir(execPath), ".env"); fileExists(candidate) {
			envFile = candidate
		}
	}

	if !fileExists(envFile) {
		slog.Info("No .env file found, using environment only")
		return
	}

	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
		return
	}
	slog.Info("Configuration loaded from .env file", "path", envFile)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
