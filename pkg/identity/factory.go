package identity

import (
	"fmt"
	"log/slog"
)

// BackendConfig selects and configures an identity backend
type BackendConfig struct {
	Kind      string // "memory" or "gotrue"
	JWTSecret string
	GoTrue    GoTrueConfig
	Directory []DirectoryOption
}

// NewBackend creates the backend named by config.Kind
func NewBackend(config BackendConfig) (Backend, error) {
	switch config.Kind {
	case "", "memory":
		if config.JWTSecret == "" {
			return nil, fmt.Errorf("memory identity backend requires a JWT secret")
		}
		slog.Info("Using in-memory identity directory")
		return NewDirectory(config.JWTSecret, config.Directory...), nil
	case "gotrue":
		if config.GoTrue.URL == "" {
			return nil, fmt.Errorf("gotrue identity backend requires a URL")
		}
		slog.Info("Using GoTrue identity provider", "url", config.GoTrue.URL)
		return NewGoTrue(config.GoTrue), nil
	default:
		return nil, fmt.Errorf("unsupported identity provider: %s", config.Kind)
	}
}
