package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Provider access
	ProviderTimeout time.Duration
	ProviderRPS     float64
	MaxPages        int
	PageSize        int

	// Provider credentials. Only Etherscan requires one.
	SolanaAPIKey    string
	EtherscanAPIKey string
	TronGridAPIKey  string

	// SolanaMainnetRPCURL overrides the public mainnet RPC endpoint.
	SolanaMainnetRPCURL string

	// RequireAllProviders fails startup when any provider cannot be
	// registered instead of skipping it.
	RequireAllProviders bool

	// Database configuration. Empty disables persistence.
	DatabaseURL string

	// NATS configuration. Empty disables event publishing.
	NATSURL string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Sync schedule configuration
	SyncInterval    time.Duration
	MinSyncInterval time.Duration

	// Tracing. Empty disables export.
	OTLPEndpoint string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Provider access
	timeout, err := parseDuration("PROVIDER_TIMEOUT", "15s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ProviderTimeout = timeout
	}

	rps, err := parseFloat("PROVIDER_RPS", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ProviderRPS = rps
	}

	maxPages, err := parseInt("MAX_PAGES", 10)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxPages = maxPages
	}

	pageSize, err := parseInt("PAGE_SIZE", 100)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PageSize = pageSize
	}

	// Provider credentials
	cfg.SolanaAPIKey = os.Getenv("SOLANA_API_KEY")
	cfg.EtherscanAPIKey = os.Getenv("ETHERSCAN_API_KEY")
	cfg.TronGridAPIKey = os.Getenv("TRONGRID_API_KEY")
	cfg.SolanaMainnetRPCURL = os.Getenv("SOLANA_MAINNET_RPC_URL")

	requireAll, err := parseBool("REQUIRE_ALL_PROVIDERS", false)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RequireAllProviders = requireAll
	}
	if cfg.RequireAllProviders && cfg.EtherscanAPIKey == "" {
		errs = append(errs, fmt.Errorf("ETHERSCAN_API_KEY is required when REQUIRE_ALL_PROVIDERS is set"))
	}

	// Optional backends
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "chainfeed-wallet-sync")

	// Sync schedule configuration
	syncInterval, err := parseDuration("SYNC_INTERVAL", "5m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SyncInterval = syncInterval
	}

	minSyncInterval, err := parseDuration("MIN_SYNC_INTERVAL", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MinSyncInterval = minSyncInterval
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ProviderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ProviderTimeout must be positive"))
	}

	if c.ProviderRPS <= 0 {
		errs = append(errs, fmt.Errorf("ProviderRPS must be positive"))
	}

	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("MaxPages must be at least 1"))
	}

	if c.PageSize < 1 || c.PageSize > 1000 {
		errs = append(errs, fmt.Errorf("PageSize must be between 1 and 1000"))
	}

	if c.RequireAllProviders && c.EtherscanAPIKey == "" {
		errs = append(errs, fmt.Errorf("EtherscanAPIKey is required when RequireAllProviders is set"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.MinSyncInterval > c.SyncInterval {
		errs = append(errs, fmt.Errorf("MinSyncInterval (%v) cannot be greater than SyncInterval (%v)",
			c.MinSyncInterval, c.SyncInterval))
	}

	if c.MinSyncInterval < time.Second {
		errs = append(errs, fmt.Errorf("MinSyncInterval must be at least 1 second"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}
