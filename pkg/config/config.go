// Package config loads the node-operator settings for shieldnoded: listen
// addresses, data directory, and logging — the things an operator tunes
// per deployment, as opposed to the chain parameters and validator set a
// genesis document fixes for the whole network.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds the node-level configuration read from the environment.
type Config struct {
	// ABCI Configuration
	ABCIListenAddr string // CometBFT connects here, e.g. "tcp://0.0.0.0:26658"

	// Server Configuration
	MetricsAddr string
	HealthAddr  string

	// Storage Configuration
	DataDir     string // base directory for the KV store
	GenesisPath string // path to genesis.yaml

	// Logging
	LogLevel string // debug, info, warn, error

	// IBC Configuration
	IBCVerifierMode string // "trusted" (accept all, for devnets) or "strict"
}

// Load reads configuration from environment variables, applying a default
// for every field, including DataDir ("./data") and GenesisPath
// ("./genesis.yaml").
func Load() (*Config, error) {
	cfg := &Config{
		ABCIListenAddr:  getEnv("SHIELDNODE_ABCI_ADDR", "tcp://0.0.0.0:26658"),
		MetricsAddr:     getEnv("SHIELDNODE_METRICS_ADDR", "0.0.0.0:9090"),
		HealthAddr:      getEnv("SHIELDNODE_HEALTH_ADDR", "0.0.0.0:8081"),
		DataDir:         getEnv("SHIELDNODE_DATA_DIR", "./data"),
		GenesisPath:     getEnv("SHIELDNODE_GENESIS_PATH", "./genesis.yaml"),
		LogLevel:        getEnv("SHIELDNODE_LOG_LEVEL", "info"),
		IBCVerifierMode: getEnv("SHIELDNODE_IBC_VERIFIER_MODE", "trusted"),
	}
	return cfg, nil
}

// Validate checks that required configuration is present and internally
// consistent. Call this after Load() before starting the node.
func (c *Config) Validate() error {
	var errs []string

	if c.DataDir == "" {
		errs = append(errs, "SHIELDNODE_DATA_DIR must not be empty")
	}
	if c.GenesisPath == "" {
		errs = append(errs, "SHIELDNODE_GENESIS_PATH must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("SHIELDNODE_LOG_LEVEL %q is not one of debug/info/warn/error", c.LogLevel))
	}
	switch c.IBCVerifierMode {
	case "trusted", "strict":
	default:
		errs = append(errs, fmt.Sprintf("SHIELDNODE_IBC_VERIFIER_MODE %q is not one of trusted/strict", c.IBCVerifierMode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
