package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"brokerdesk-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartKey(t *testing.T) {
	assert.Equal(t, "brokerdesk:prices:chart:bitcoin:7", ChartKey("bitcoin", 7))
}

func TestNewDefaultsTTL(t *testing.T) {
	c := New(models.RedisConfig{Addr: "localhost:0"})
	defer c.Close()
	assert.Equal(t, time.Minute, c.ttl)
}

// Runs only against a real server: REDIS_TEST_ADDR=localhost:6379
func TestSnapshotRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	c := New(models.RedisConfig{Addr: addr, DB: 15, QuoteTTL: 10 * time.Second})
	defer c.Close()
	require.NoError(t, c.Ping(ctx))

	snap := models.PriceSnapshot{
		Crypto: map[string]models.CryptoQuote{
			"BTC": {Symbol: "BTC", Usd: decimal.NewFromInt(45000), Change24h: decimal.RequireFromString("2.5")},
		},
		Forex:           map[string]models.ForexQuote{},
		CryptoUpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, c.SaveSnapshot(ctx, snap))

	got, ok, err := c.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, snap.Crypto["BTC"].Usd.Equal(got.Crypto["BTC"].Usd))
	assert.True(t, snap.CryptoUpdatedAt.Equal(got.CryptoUpdatedAt))

	_, ok, err = c.LoadChart(ctx, "nope", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
