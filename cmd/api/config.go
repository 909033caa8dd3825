package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/fastprodman/providerwallet/internal/config"
	"github.com/fastprodman/providerwallet/internal/services/ledger"
	"github.com/fastprodman/providerwallet/internal/services/provider"
	"github.com/fastprodman/providerwallet/internal/services/sessionstore"
	"github.com/fastprodman/providerwallet/pkg/envconf"
)

type apiConfig struct {
	App       config.AppConfig
	Postgres  config.PostgresConfig
	Auth      config.AuthConfig
	RateLimit config.RateLimitConfig
	Ledger    ledger.Config
	Sessions  sessionstore.Config
	Provider  provider.Config
}

// readConfig loads an optional .env file, then the process environment,
// and validates the result.
func readConfig() (*apiConfig, error) {
	_ = godotenv.Load()

	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	err = validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	return cfg, nil
}
