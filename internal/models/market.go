package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CryptoQuote is the USD price of one coin
type CryptoQuote struct {
	Symbol    string          `json:"symbol"`
	Usd       decimal.Decimal `json:"usd"`
	Change24h decimal.Decimal `json:"change24h"`
	Fallback  bool            `json:"fallback"`
}

// ForexQuote is one synthetic currency pair rate
type ForexQuote struct {
	Pair   string          `json:"pair"`
	Rate   decimal.Decimal `json:"rate"`
	Change decimal.Decimal `json:"change"`
}

// PriceSnapshot is the latest view of every market the broker quotes
type PriceSnapshot struct {
	Crypto          map[string]CryptoQuote `json:"crypto"`
	Forex           map[string]ForexQuote  `json:"forex"`
	CryptoUpdatedAt time.Time              `json:"cryptoUpdatedAt"`
	ForexUpdatedAt  time.Time              `json:"forexUpdatedAt"`
}

// ChartPoint is one sample of a market chart
type ChartPoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// TradeValue is the fee breakdown for a prospective trade
type TradeValue struct {
	Total decimal.Decimal `json:"total"`
	Fee   decimal.Decimal `json:"fee"`
	Net   decimal.Decimal `json:"net"`
}
