// Package coreconfig loads the payment core's optional environment
// configuration, mirroring fiatrails/internal/config's envOr/envOrInt
// helpers and AppConfig shape.
package coreconfig

import (
	"fmt"
	"os"
	"strconv"
)

// StorageBackend selects which storage.Backend implementation to construct.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageRedis  StorageBackend = "redis"
)

// Environment is the runtime environment tag.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Config is the core's optional environment configuration. Per spec §6,
// custody credentials and network selection belong to external
// collaborators and are not modeled here.
type Config struct {
	StorageBackend  StorageBackend
	RedisURL        string
	LogLevel        string
	Environment     Environment
	FundLockRetries int
}

// Load reads Config from the process environment. Every field has a default,
// so Load never fails; it exists as a named step for parity with the
// teacher's Load() and to give future required fields a single seam.
func Load() *Config {
	return &Config{
		StorageBackend:  StorageBackend(envOr("AGENTPAY_STORAGE_BACKEND", string(StorageMemory))),
		RedisURL:        envOr("AGENTPAY_REDIS_URL", "redis://localhost:6379/0"),
		LogLevel:        envOr("AGENTPAY_LOG_LEVEL", "info"),
		Environment:     Environment(envOr("AGENTPAY_ENV", string(EnvDevelopment))),
		FundLockRetries: envOrInt("AGENTPAY_FUND_LOCK_RETRIES", 3),
	}
}

// Validate checks that the loaded configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("coreconfig: unknown storage backend %q", c.StorageBackend)
	}
	if c.StorageBackend == StorageRedis && c.RedisURL == "" {
		return fmt.Errorf("coreconfig: redis backend selected but AGENTPAY_REDIS_URL is empty")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
