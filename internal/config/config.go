/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"brokerdesk-go/internal/models"
)

const (
	BackendSQLite   = "sqlite"
	BackendDocument = "document"
)

// durationVar is one duration setting read from the environment.
type durationVar struct {
	key          string
	defaultValue time.Duration
	dest         *time.Duration
}

func Load() (*models.Config, error) {
	cfg := &models.Config{
		Store: models.StoreConfig{
			Backend:    strings.ToLower(getEnvString("STORE_BACKEND", BackendSQLite)),
			AssetsFile: getEnvString("ASSETS_FILE", "assets.yaml"),
		},
		Database: models.DatabaseConfig{
			Path:          getEnvString("DATABASE_PATH", "broker.db"),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 5),
			SeedDemoUsers: getEnvBool("SEED_DEMO_USERS", false),
		},
		Document: models.DocumentConfig{
			Path:          getEnvString("DOCUMENT_PATH", "broker_pro_db_v1.json"),
			SessionPath:   getEnvString("SESSION_PATH", "broker_pro_session.json"),
			SeedDemoUsers: getEnvBool("SEED_DEMO_USERS", false),
		},
		Http: models.HttpConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
		Auth: models.AuthConfig{
			JwtSecret: os.Getenv("JWT_SECRET"),
		},
		Pricing: models.PricingConfig{
			CoinGeckoURL: getEnvString("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		},
		Redis: models.RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Formance: models.FormanceConfig{
			StackURL:     os.Getenv("FORMANCE_STACK_URL"),
			ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
			ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getEnvString("FORMANCE_LEDGER_NAME", "brokerdesk"),
		},
		Prime: models.PrimeConfig{
			AccessKey:   os.Getenv("PRIME_ACCESS_KEY"),
			Passphrase:  os.Getenv("PRIME_PASSPHRASE"),
			SigningKey:  os.Getenv("PRIME_SIGNING_KEY"),
			PortfolioId: os.Getenv("PRIME_PORTFOLIO_ID"),
		},
		Log: models.LogConfig{
			File:  os.Getenv("LOG_FILE"),
			Level: getEnvString("LOG_LEVEL", "info"),
		},
		Metrics: models.MetricsConfig{
			Namespace: getEnvString("METRICS_NAMESPACE", "brokerdesk"),
		},
	}

	durations := []durationVar{
		{"DB_CONN_MAX_LIFETIME", 5 * time.Minute, &cfg.Database.ConnMaxLifetime},
		{"DB_CONN_MAX_IDLE_TIME", 30 * time.Second, &cfg.Database.ConnMaxIdleTime},
		{"DB_PING_TIMEOUT", 5 * time.Second, &cfg.Database.PingTimeout},
		{"HTTP_SHUTDOWN_TIMEOUT", 15 * time.Second, &cfg.Http.ShutdownTimeout},
		{"SESSION_TTL", 24 * time.Hour, &cfg.Auth.SessionTTL},
		{"PRICE_REFRESH_INTERVAL", 30 * time.Second, &cfg.Pricing.RefreshInterval},
		{"FOREX_TICK_INTERVAL", 3 * time.Second, &cfg.Pricing.ForexInterval},
		{"PRICE_HTTP_TIMEOUT", 10 * time.Second, &cfg.Pricing.HttpTimeout},
		{"QUOTE_CACHE_TTL", 5 * time.Minute, &cfg.Redis.QuoteTTL},
	}
	for _, d := range durations {
		value, err := getEnvDuration(d.key, d.defaultValue)
		if err != nil {
			return nil, err
		}
		*d.dest = value
	}

	if cfg.Store.Backend != BackendSQLite && cfg.Store.Backend != BackendDocument {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: expected %s or %s", cfg.Store.Backend, BackendSQLite, BackendDocument)
	}

	return cfg, nil
}

// RequireJwtSecret fails when the server would otherwise sign tokens with an empty key.
func RequireJwtSecret(cfg *models.Config) error {
	if cfg.Auth.JwtSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
