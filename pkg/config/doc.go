// Package config holds the environment configuration sections of the
// verification service and the helpers used to validate them.
//
// Sections carry cleanenv tags and are embedded in the binary's own Config:
//
//	type Config struct {
//		Mail     config.MailConfig
//		Identity config.IdentityConfig
//	}
//
//	cfg := Config{}
//	if err := cleanenv.ReadEnv(&cfg); err != nil {
//		...
//	}
//
// Each section reports its problems through Validate, and Validate at the
// package level combines them:
//
//	err := config.Validate(cfg.Mail.Validate, cfg.Identity.Validate)
//
// All problems are reported together in a ValidationErrors value.
package config
