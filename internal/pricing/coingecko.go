package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"brokerdesk-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// DefaultCoins maps quoted symbols to CoinGecko ids.
var DefaultCoins = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"USDT": "tether",
}

type baseline struct {
	price  decimal.Decimal
	change decimal.Decimal
	jitter bool
}

// fallbackBaselines are used when CoinGecko cannot be reached.
var fallbackBaselines = map[string]baseline{
	"BTC":  {decimal.NewFromInt(45000), decimal.RequireFromString("2.5"), true},
	"ETH":  {decimal.NewFromInt(2500), decimal.RequireFromString("1.2"), true},
	"USDT": {decimal.NewFromInt(1), decimal.RequireFromString("0.01"), false},
}

// jitterSpan is the full width of the fallback perturbation (+/- 1%).
var jitterSpan = decimal.RequireFromString("0.02")

type CoinGecko struct {
	baseURL string
	http    *http.Client
	coins   map[string]string

	mu   sync.Mutex
	rand *rand.Rand
}

func NewCoinGecko(baseURL string, httpClient *http.Client, coins map[string]string) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if len(coins) == 0 {
		coins = DefaultCoins
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		coins:   coins,
		rand:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
}

type simplePrice struct {
	Usd       *decimal.Decimal `json:"usd"`
	Change24h *decimal.Decimal `json:"usd_24h_change"`
}

// Prices returns one quote per configured coin plus USD at 1. Any coin the upstream
// does not answer for is replaced by its jittered fallback, and the returned error
// reports why.
func (c *CoinGecko) Prices(ctx context.Context) (map[string]models.CryptoQuote, error) {
	quotes, err := c.fetch(ctx)
	if err != nil {
		zap.L().Warn("Crypto price fetch failed, using fallback", zap.Error(err))
		quotes = map[string]models.CryptoQuote{}
	}
	for symbol := range c.coins {
		if _, ok := quotes[symbol]; !ok {
			quotes[symbol] = c.fallback(symbol)
		}
	}
	quotes["USD"] = models.CryptoQuote{Symbol: "USD", Usd: decimal.NewFromInt(1), Change24h: decimal.Zero}
	return quotes, err
}

func (c *CoinGecko) fetch(ctx context.Context) (map[string]models.CryptoQuote, error) {
	ids := make([]string, 0, len(c.coins))
	for _, id := range c.coins {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")

	var body map[string]simplePrice
	if err := c.getJSON(ctx, c.baseURL+"/simple/price?"+q.Encode(), &body); err != nil {
		return nil, err
	}

	out := make(map[string]models.CryptoQuote, len(c.coins))
	for symbol, id := range c.coins {
		p, ok := body[id]
		if !ok || p.Usd == nil || !p.Usd.IsPositive() {
			continue
		}
		change := decimal.Zero
		if p.Change24h != nil {
			change = *p.Change24h
		}
		out[symbol] = models.CryptoQuote{Symbol: symbol, Usd: *p.Usd, Change24h: change}
	}
	if len(out) == 0 {
		return out, fmt.Errorf("no usable prices in response")
	}
	return out, nil
}

func (c *CoinGecko) fallback(symbol string) models.CryptoQuote {
	b, ok := fallbackBaselines[symbol]
	if !ok {
		return models.CryptoQuote{Symbol: symbol, Usd: decimal.Zero, Change24h: decimal.Zero, Fallback: true}
	}
	if !b.jitter {
		return models.CryptoQuote{Symbol: symbol, Usd: b.price, Change24h: b.change, Fallback: true}
	}
	v := c.variation()
	return models.CryptoQuote{
		Symbol:    symbol,
		Usd:       b.price.Mul(decimal.NewFromInt(1).Add(v)).Round(2),
		Change24h: b.change.Add(v.Mul(decimal.NewFromInt(100))).Round(2),
		Fallback:  true,
	}
}

// variation is uniform in [-1%, +1%).
func (c *CoinGecko) variation() decimal.Decimal {
	c.mu.Lock()
	r := c.rand.Float64()
	c.mu.Unlock()
	return decimal.NewFromFloat(r - 0.5).Mul(jitterSpan)
}

type marketChart struct {
	Prices [][2]float64 `json:"prices"`
}

// MarketChart returns USD price samples for the last days. There is no synthetic fallback.
func (c *CoinGecko) MarketChart(ctx context.Context, coinId string, days int) ([]models.ChartPoint, error) {
	if days <= 0 {
		days = 7
	}
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", fmt.Sprint(days))

	var body marketChart
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?%s", c.baseURL, url.PathEscape(coinId), q.Encode())
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return nil, fmt.Errorf("unable to fetch market chart for %s: %w", coinId, err)
	}

	points := make([]models.ChartPoint, 0, len(body.Prices))
	for _, p := range body.Prices {
		points = append(points, models.ChartPoint{
			Time:  time.UnixMilli(int64(p[0])).UTC(),
			Price: decimal.NewFromFloat(p[1]),
		})
	}
	return points, nil
}

func (c *CoinGecko) getJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("unable to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Debug("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("unable to decode response: %w", err)
	}
	return nil
}
