// Package config loads deployer settings from the environment. A .env file is
// honored when present via godotenv autoload in the entrypoint.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/launchpad-deployer/internal/pipeline"
)

// Config is the full runtime configuration of the deployer daemon.
type Config struct {
	// DeployerPrivateKey is the hex-encoded operator key used to sign
	// deployment transactions.
	DeployerPrivateKey string `validate:"required"`
	// SolcVersion selects the Solidity compiler release.
	SolcVersion string

	// DatabasePath is the SQLite file location, used when PostgresURL is
	// unset.
	DatabasePath string
	// PostgresURL switches persistence to Postgres when non-empty.
	PostgresURL string

	// MetricsPort serves Prometheus metrics and health endpoints.
	MetricsPort string

	// Pipeline tunes queue sizing and retry budgets.
	Pipeline pipeline.Config
}

// Load reads configuration from the environment, applying defaults for
// everything except the deployer key.
func Load() (*Config, error) {
	cfg := &Config{
		DeployerPrivateKey: os.Getenv("DEPLOYER_PRIVATE_KEY"),
		SolcVersion:        getEnv("SOLC_VERSION", "0.8.27"),
		DatabasePath:       getEnv("DATABASE_PATH", "./data/deployer.db"),
		PostgresURL:        os.Getenv("POSTGRES_URL"),
		MetricsPort:        getEnv("METRICS_PORT", "9090"),
		Pipeline: pipeline.Config{
			DeployWorkers:          getEnvInt("DEPLOY_WORKERS", 0),
			ConfirmWorkers:         getEnvInt("CONFIRM_WORKERS", 0),
			SubmitMaxAttempts:      getEnvInt("SUBMIT_MAX_ATTEMPTS", 0),
			SubmitRetryBackoff:     getEnvDuration("SUBMIT_RETRY_BACKOFF", 0),
			GasSafetyMarginPercent: uint64(getEnvInt("GAS_SAFETY_MARGIN_PERCENT", 0)),
			ConfirmInitialDelay:    getEnvDuration("CONFIRM_INITIAL_DELAY", 0),
			ConfirmPollInterval:    getEnvDuration("CONFIRM_POLL_INTERVAL", 0),
			ConfirmMaxRetries:      getEnvInt("CONFIRM_MAX_RETRIES", 0),
			SweepSchedule:          os.Getenv("SWEEP_SCHEDULE"),
			SweepAfter:             getEnvDuration("SWEEP_AFTER", 0),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
