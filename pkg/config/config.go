package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Chain
	RPCURL           string
	NetworkID        uint64
	FactoryAddress   string
	MulticallAddress string
	PrivateKey       string // optional: without it the caller is unauthenticated

	// Gauge discovery
	CurveRegistryURL      string
	DiscoveryPollInterval time.Duration

	// Catalog
	CatalogURL          string
	CatalogPollInterval time.Duration
	CatalogCategories   []string
	CatalogNetworks     []uint64

	// Submission
	PostSubmitRefreshDelay time.Duration
	ReceiptPollInterval    time.Duration
	SubmissionTimeout      time.Duration

	// Gas funds guard, disabled when FundsCheckInterval is zero
	FundsCheckInterval time.Duration
	FundsMinBalance    float64 // ETH
	FundsGasMultiplier float64
	FundsHysteresis    float64

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Chain defaults (Ethereum mainnet)
		RPCURL:           getEnvOrDefault("ETH_RPC_URL", "https://eth.llamarpc.com"),
		NetworkID:        getUint64OrDefault("NETWORK_ID", 1),
		FactoryAddress:   getEnvOrDefault("VAULT_FACTORY_ADDRESS", "0x21b1FC8A52f179757bf555346130bF27c0C2A17A"),
		MulticallAddress: getEnvOrDefault("MULTICALL_ADDRESS", "0xcA11bde05977b3631167028862bE2a173976CA11"),
		PrivateKey:       os.Getenv("WALLET_PRIVATE_KEY"),

		// Discovery defaults
		CurveRegistryURL:      getEnvOrDefault("CURVE_REGISTRY_URL", "https://api.curve.finance"),
		DiscoveryPollInterval: getDurationOrDefault("DISCOVERY_POLL_INTERVAL", 5*time.Minute),

		// Catalog defaults
		CatalogURL:          getEnvOrDefault("CATALOG_URL", "https://ydaemon.yearn.fi"),
		CatalogPollInterval: getDurationOrDefault("CATALOG_POLL_INTERVAL", 2*time.Minute),
		CatalogCategories:   getListOrDefault("CATALOG_CATEGORIES", []string{"curveF", "holdingsF"}),
		CatalogNetworks:     getUint64ListOrDefault("CATALOG_NETWORKS", []uint64{1}),

		// Submission defaults
		PostSubmitRefreshDelay: getDurationOrDefault("POST_SUBMIT_REFRESH_DELAY", 1*time.Second),
		ReceiptPollInterval:    getDurationOrDefault("RECEIPT_POLL_INTERVAL", 2*time.Second),
		SubmissionTimeout:      getDurationOrDefault("SUBMISSION_TIMEOUT", 5*time.Minute),

		// Funds guard defaults
		FundsCheckInterval: getDurationOrDefault("FUNDS_CHECK_INTERVAL", time.Minute),
		FundsMinBalance:    getFloatOrDefault("FUNDS_MIN_BALANCE_ETH", 0.02),
		FundsGasMultiplier: getFloatOrDefault("FUNDS_GAS_MULTIPLIER", 1.5),
		FundsHysteresis:    getFloatOrDefault("FUNDS_HYSTERESIS_RATIO", 1.25),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "vaultfactory"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "vaultfactory"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "vault_factory"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.RPCURL == "" {
		return fmt.Errorf("ETH_RPC_URL cannot be empty")
	}

	if c.NetworkID == 0 {
		return fmt.Errorf("NETWORK_ID must be positive")
	}

	if !common.IsHexAddress(c.FactoryAddress) {
		return fmt.Errorf("VAULT_FACTORY_ADDRESS is not a valid address: %q", c.FactoryAddress)
	}

	if !common.IsHexAddress(c.MulticallAddress) {
		return fmt.Errorf("MULTICALL_ADDRESS is not a valid address: %q", c.MulticallAddress)
	}

	if c.CurveRegistryURL == "" {
		return fmt.Errorf("CURVE_REGISTRY_URL cannot be empty")
	}

	if c.CatalogURL == "" {
		return fmt.Errorf("CATALOG_URL cannot be empty")
	}

	if c.DiscoveryPollInterval <= 0 {
		return fmt.Errorf("DISCOVERY_POLL_INTERVAL must be positive, got %v", c.DiscoveryPollInterval)
	}

	if c.PostSubmitRefreshDelay < 0 {
		return fmt.Errorf("POST_SUBMIT_REFRESH_DELAY cannot be negative, got %v", c.PostSubmitRefreshDelay)
	}

	if c.FundsCheckInterval < 0 {
		return fmt.Errorf("FUNDS_CHECK_INTERVAL cannot be negative, got %v", c.FundsCheckInterval)
	}

	if c.FundsCheckInterval > 0 {
		if c.FundsMinBalance <= 0 {
			return fmt.Errorf("FUNDS_MIN_BALANCE_ETH must be positive, got %v", c.FundsMinBalance)
		}
		if c.FundsGasMultiplier <= 0 {
			return fmt.Errorf("FUNDS_GAS_MULTIPLIER must be positive, got %v", c.FundsGasMultiplier)
		}
		if c.FundsHysteresis < 1 {
			return fmt.Errorf("FUNDS_HYSTERESIS_RATIO must be >= 1, got %v", c.FundsHysteresis)
		}
	}

	if c.StorageMode != "console" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'console' or 'postgres', got %q", c.StorageMode)
	}

	return nil
}

// Factory returns the vault factory address.
func (c *Config) Factory() common.Address {
	return common.HexToAddress(c.FactoryAddress)
}

// Multicall returns the Multicall3 address.
func (c *Config) Multicall() common.Address {
	return common.HexToAddress(c.MulticallAddress)
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getUint64OrDefault(key string, defaultValue uint64) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// getListOrDefault reads a comma-separated list. An explicitly empty value
// (e.g. "CATALOG_NETWORKS=,") yields an empty list, not the default.
func getListOrDefault(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}

	items := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

func getUint64ListOrDefault(key string, defaultValue []uint64) []uint64 {
	raw := getListOrDefault(key, nil)
	if raw == nil {
		return defaultValue
	}

	items := make([]uint64, 0, len(raw))
	for _, part := range raw {
		v, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return defaultValue
		}
		items = append(items, v)
	}
	return items
}
