package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "PayWord"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"

	defaultIdentityWidth   = 128
	defaultSignatureScheme = "Ed25519"
	defaultHash            = "sha1"
	defaultChainLength     = 10000
	defaultMaxChainLength  = 1_000_000
	defaultCertValidity    = 30 * 24 * time.Hour
	defaultRedeemInterval  = 35 * time.Second
	defaultSessionIdle     = 10 * time.Minute
	defaultClaimTTL        = time.Minute
	defaultRegisterLimit   = 30
	defaultBrokerURL       = "http://localhost:8080"
	defaultClientTimeout   = 10 * time.Second
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	Payword Payword
}

// Payword holds the protocol settings shared by broker, vendor and user.
type Payword struct {
	Identity        string
	IdentityWidth   int
	SignatureScheme string
	Hash            string
	ChainLength     int
	MaxChainLength  int
	CertValidity    time.Duration
	Keystore        string
	BrokerURL       string
	ClientTimeout   time.Duration

	AccountNumber  int64
	OpeningBalance int64
	CreditLimit    int64

	RedeemInterval    time.Duration
	SessionIdle       time.Duration
	RedeemClaimTTL    time.Duration
	RegisterRateLimit int
	AdminToken        string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		Payword: Payword{
			Identity:        os.Getenv("PAYWORD_IDENTITY"),
			SignatureScheme: getEnv("PAYWORD_SIGNATURE_SCHEME", defaultSignatureScheme),
			Hash:            strings.ToLower(getEnv("PAYWORD_HASH", defaultHash)),
			Keystore:        os.Getenv("PAYWORD_KEYSTORE"),
			BrokerURL:       getEnv("BROKER_URL", defaultBrokerURL),
			AdminToken:      os.Getenv("VENDOR_ADMIN_TOKEN"),
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}

	p := &cfg.Payword
	ints := []struct {
		key string
		dst *int
		def int
	}{
		{"PAYWORD_IDENTITY_WIDTH", &p.IdentityWidth, defaultIdentityWidth},
		{"PAYWORD_CHAIN_LENGTH", &p.ChainLength, defaultChainLength},
		{"PAYWORD_MAX_CHAIN_LENGTH", &p.MaxChainLength, defaultMaxChainLength},
		{"REGISTER_RATE_LIMIT", &p.RegisterRateLimit, defaultRegisterLimit},
	}
	for _, v := range ints {
		if *v.dst, err = intEnv(v.key, v.def); err != nil {
			return Config{}, err
		}
	}

	int64s := []struct {
		key string
		dst *int64
	}{
		{"PAYWORD_ACCOUNT_NUMBER", &p.AccountNumber},
		{"PAYWORD_OPENING_BALANCE", &p.OpeningBalance},
		{"PAYWORD_CREDIT_LIMIT", &p.CreditLimit},
	}
	for _, v := range int64s {
		if *v.dst, err = int64Env(v.key); err != nil {
			return Config{}, err
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
		def time.Duration
	}{
		{"PAYWORD_CERT_VALIDITY", &p.CertValidity, defaultCertValidity},
		{"PAYWORD_CLIENT_TIMEOUT", &p.ClientTimeout, defaultClientTimeout},
		{"VENDOR_REDEEM_INTERVAL", &p.RedeemInterval, defaultRedeemInterval},
		{"VENDOR_SESSION_IDLE", &p.SessionIdle, defaultSessionIdle},
		{"REDEEM_CLAIM_TTL", &p.RedeemClaimTTL, defaultClaimTTL},
	}
	for _, v := range durations {
		if *v.dst, err = durationEnv(v.key, v.def); err != nil {
			return Config{}, err
		}
	}

	if p.ChainLength < 2 {
		return Config{}, fmt.Errorf("PAYWORD_CHAIN_LENGTH must be at least 2, got %d", p.ChainLength)
	}
	if p.ChainLength > p.MaxChainLength {
		return Config{}, fmt.Errorf("PAYWORD_CHAIN_LENGTH %d exceeds PAYWORD_MAX_CHAIN_LENGTH %d", p.ChainLength, p.MaxChainLength)
	}
	if p.IdentityWidth <= 0 {
		return Config{}, fmt.Errorf("PAYWORD_IDENTITY_WIDTH must be positive, got %d", p.IdentityWidth)
	}
	if p.RedeemInterval <= 0 {
		return Config{}, fmt.Errorf("VENDOR_REDEEM_INTERVAL must be positive")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether in-memory stores may stand in for Postgres and Redis.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return durationEnv(durationKey, fallback)
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func int64Env(key string) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
