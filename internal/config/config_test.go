package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "PORT", "PAYWORD_CHAIN_LENGTH", "PAYWORD_MAX_CHAIN_LENGTH", "PAYWORD_IDENTITY_WIDTH", "PAYWORD_CERT_VALIDITY", "VENDOR_REDEEM_INTERVAL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected development by default, got %q", cfg.AppEnv)
	}
	if cfg.Payword.ChainLength != 10000 {
		t.Fatalf("expected chain length 10000, got %d", cfg.Payword.ChainLength)
	}
	if cfg.Payword.MaxChainLength != 1_000_000 {
		t.Fatalf("expected max chain length 1000000, got %d", cfg.Payword.MaxChainLength)
	}
	if cfg.Payword.IdentityWidth != 128 {
		t.Fatalf("expected identity width 128, got %d", cfg.Payword.IdentityWidth)
	}
	if cfg.Payword.RedeemInterval != 35*time.Second {
		t.Fatalf("expected redeem interval 35s, got %s", cfg.Payword.RedeemInterval)
	}
	if cfg.Payword.CertValidity != 720*time.Hour {
		t.Fatalf("expected certificate validity 720h, got %s", cfg.Payword.CertValidity)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Address())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("IDEMPOTENCY_TTL", "90m")
	t.Setenv("PAYWORD_HASH", "BLAKE2B-160")
	t.Setenv("PAYWORD_CHAIN_LENGTH", "64")
	t.Setenv("PAYWORD_CREDIT_LIMIT", "250")
	t.Setenv("VENDOR_SESSION_IDLE", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IsDev() {
		t.Fatalf("production must not be treated as development")
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.Address())
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("expected 3s shutdown, got %s", cfg.ShutdownPeriod)
	}
	if cfg.IdempotencyTTL != 90*time.Minute {
		t.Fatalf("expected 90m idempotency ttl, got %s", cfg.IdempotencyTTL)
	}
	if cfg.Payword.Hash != "blake2b-160" {
		t.Fatalf("expected lower-cased hash name, got %s", cfg.Payword.Hash)
	}
	if cfg.Payword.ChainLength != 64 || cfg.Payword.CreditLimit != 250 {
		t.Fatalf("unexpected payword settings %+v", cfg.Payword)
	}
	if cfg.Payword.SessionIdle != 0 {
		t.Fatalf("expected idle timeout disabled, got %s", cfg.Payword.SessionIdle)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PAYWORD_CHAIN_LENGTH":     "1",
		"PAYWORD_MAX_CHAIN_LENGTH": "5000",
		"PAYWORD_IDENTITY_WIDTH":   "wide",
		"PAYWORD_OPENING_BALANCE":  "lots",
		"VENDOR_REDEEM_INTERVAL":   "soon",
		"SHUTDOWN_TIMEOUT_SECONDS": "ten",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%q to be rejected", key, value)
			}
		})
	}
}
