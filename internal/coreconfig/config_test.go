package coreconfig

import "testing"

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	t.Setenv("AGENTPAY_STORAGE_BACKEND", "")
	t.Setenv("AGENTPAY_LOG_LEVEL", "")
	t.Setenv("AGENTPAY_ENV", "")
	t.Setenv("AGENTPAY_FUND_LOCK_RETRIES", "")

	cfg := Load()
	if cfg.StorageBackend != StorageMemory {
		t.Errorf("expected default storage backend memory, got %s", cfg.StorageBackend)
	}
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected default environment development, got %s", cfg.Environment)
	}
	if cfg.FundLockRetries != 3 {
		t.Errorf("expected default fund lock retries 3, got %d", cfg.FundLockRetries)
	}
}

func TestLoad_ReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("AGENTPAY_STORAGE_BACKEND", "redis")
	t.Setenv("AGENTPAY_ENV", "production")
	t.Setenv("AGENTPAY_FUND_LOCK_RETRIES", "7")

	cfg := Load()
	if cfg.StorageBackend != StorageRedis {
		t.Errorf("expected redis backend from env, got %s", cfg.StorageBackend)
	}
	if cfg.Environment != EnvProduction {
		t.Errorf("expected production environment from env, got %s", cfg.Environment)
	}
	if cfg.FundLockRetries != 7 {
		t.Errorf("expected fund lock retries 7 from env, got %d", cfg.FundLockRetries)
	}
}

func TestLoad_IgnoresUnparseableFundLockRetries(t *testing.T) {
	t.Setenv("AGENTPAY_FUND_LOCK_RETRIES", "not-a-number")

	cfg := Load()
	if cfg.FundLockRetries != 3 {
		t.Errorf("expected an unparseable override to fall back to the default 3, got %d", cfg.FundLockRetries)
	}
}

func TestConfig_ValidateRejectsUnknownBackend(t *testing.T) {
	cfg := &Config{StorageBackend: "postgres"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an unknown storage backend to fail validation")
	}
}

func TestConfig_ValidateRequiresRedisURLWhenRedisSelected(t *testing.T) {
	cfg := &Config{StorageBackend: StorageRedis, RedisURL: ""}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a missing redis URL with the redis backend to fail validation")
	}
}

func TestConfig_ValidateAcceptsMemoryBackend(t *testing.T) {
	cfg := &Config{StorageBackend: StorageMemory}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected the memory backend to validate cleanly, got %v", err)
	}
}
