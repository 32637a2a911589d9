// Package config handles loading and validating configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the launchpad sync engine.
type Config struct {
	// HTTP server
	Port int

	// Stacks network
	Network      string // mainnet or testnet
	ChainAPIBase string // derived from Network when unset
	Deployer     string // contract deployer principal
	FactoryName  string // factory contract name under the deployer
	CurveName    string // bonding curve contract name under the deployer

	// Poll sync
	SyncInterval time.Duration
	SyncWarmup   time.Duration
	TxPageLimit  int

	// Webhook
	ChainhookSecret string

	// Database; empty DSN selects the in-memory stores
	PostgresDSN string
}

// Load reads configuration from environment variables with fallback to a
// .env file. Priority order: environment variables > .env file > defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	network := getEnv("STACKS_NETWORK", "testnet")
	apiBase := getEnv("STACKS_API_BASE", "")
	if apiBase == "" {
		if network == "mainnet" {
			apiBase = "https://api.hiro.so"
		} else {
			apiBase = "https://api.testnet.hiro.so"
		}
	}

	cfg := &Config{
		Port: getEnvInt("PORT", 3001),

		Network:      network,
		ChainAPIBase: apiBase,
		Deployer:     getEnv("CONTRACT_DEPLOYER", "ST1ZGGS886YCZHMFXJR1EK61ZP34FNWNSX28M1PMM"),
		FactoryName:  getEnv("FACTORY_CONTRACT", "launchpad-factory"),
		CurveName:    getEnv("CURVE_CONTRACT", "bonding-curve"),

		SyncInterval: time.Duration(getEnvInt("SYNC_INTERVAL_SECONDS", 30)) * time.Second,
		SyncWarmup:   time.Duration(getEnvInt("SYNC_WARMUP_SECONDS", 5)) * time.Second,
		TxPageLimit:  getEnvInt("TX_PAGE_LIMIT", 50),

		ChainhookSecret: getEnv("CHAINHOOK_SECRET", ""),

		PostgresDSN: getEnv("POSTGRES_DSN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if c.Network != "mainnet" && c.Network != "testnet" {
		return fmt.Errorf("STACKS_NETWORK must be mainnet or testnet")
	}

	if c.Deployer == "" {
		return fmt.Errorf("CONTRACT_DEPLOYER is required")
	}

	if strings.Contains(c.Deployer, ".") {
		return fmt.Errorf("CONTRACT_DEPLOYER must be a bare principal without a contract name")
	}

	if c.FactoryName == "" {
		return fmt.Errorf("FACTORY_CONTRACT is required")
	}

	if c.CurveName == "" {
		return fmt.Errorf("CURVE_CONTRACT is required")
	}

	if c.SyncInterval < time.Second {
		return fmt.Errorf("SYNC_INTERVAL_SECONDS must be at least 1")
	}

	if c.TxPageLimit < 1 || c.TxPageLimit > 200 {
		return fmt.Errorf("TX_PAGE_LIMIT must be between 1 and 200")
	}

	return nil
}

// FactoryContract returns the fully qualified factory principal.
func (c *Config) FactoryContract() string {
	return c.Deployer + "." + c.FactoryName
}

// CurveContract returns the fully qualified bonding curve principal.
func (c *Config) CurveContract() string {
	return c.Deployer + "." + c.CurveName
}

// WatchedContracts lists every contract the poll loop follows.
// Registrations come through the factory; buys, sells and graduations
// are calls on the curve contract.
func (c *Config) WatchedContracts() []string {
	return []string{c.FactoryContract(), c.CurveContract()}
}

// MaskedChainhookSecret returns the secret with most characters hidden
// for logging.
func (c *Config) MaskedChainhookSecret() string {
	return maskSecret(c.ChainhookSecret)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
