package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("HTTP_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "broker.db", cfg.Database.Path)
	assert.Equal(t, ":8080", cfg.Http.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 3*time.Second, cfg.Pricing.ForexInterval)
	assert.Equal(t, "brokerdesk", cfg.Formance.LedgerName)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Document")
	t.Setenv("DOCUMENT_PATH", "/tmp/doc.json")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SEED_DEMO_USERS", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendDocument, cfg.Store.Backend)
	assert.Equal(t, "/tmp/doc.json", cfg.Document.Path)
	assert.True(t, cfg.Document.SeedDemoUsers)
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("PRICE_REFRESH_INTERVAL", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRICE_REFRESH_INTERVAL")

	t.Setenv("PRICE_REFRESH_INTERVAL", "")
	t.Setenv("STORE_BACKEND", "postgres")
	_, err = Load()
	assert.Error(t, err)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("BROKERDESK_INT", "not-a-number")
	assert.Equal(t, 7, getEnvInt("BROKERDESK_INT", 7))
	t.Setenv("BROKERDESK_BOOL", "yes-please")
	assert.False(t, getEnvBool("BROKERDESK_BOOL", false))
}
