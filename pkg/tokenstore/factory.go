package tokenstore

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KVConfig contains configuration for creating a pending signup key-value store
type KVConfig struct {
	// Redis is required for redis stores
	Redis *redis.Client
	// DataDir is required for file-based stores
	DataDir string
}

// NewKV creates a key-value store based on the persistence type
func NewKV(persistenceType string, config KVConfig) (KV, error) {
	switch persistenceType {
	case "", "memory":
		return NewMemoryKV(), nil
	case "redis":
		if config.Redis == nil {
			return nil, fmt.Errorf("redis client required for redis store")
		}
		return NewRedisKV(config.Redis), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file store")
		}
		return NewFileKV(config.DataDir)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: memory, redis, file)", persistenceType)
	}
}
