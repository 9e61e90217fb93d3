package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Asset describes a depositable currency and where the company receives it
type Asset struct {
	Symbol        string
	Network       string
	CoinGeckoId   string
	MinDeposit    decimal.Decimal
	MinWithdrawal decimal.Decimal
	CompanyWallet string
}

// AssetCatalog is keyed by symbol.
type AssetCatalog map[string]Asset

func (c AssetCatalog) Find(symbol string) (Asset, bool) {
	a, ok := c[symbol]
	return a, ok
}

// Symbols returns catalog symbols in sorted order.
func (c AssetCatalog) Symbols() []string {
	out := make([]string, 0, len(c))
	for s := range c {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// CoinIds maps every symbol with a CoinGecko id to that id.
func (c AssetCatalog) CoinIds() map[string]string {
	out := map[string]string{}
	for s, a := range c {
		if a.CoinGeckoId != "" {
			out[s] = a.CoinGeckoId
		}
	}
	return out
}

// DefaultAssetCatalog is used when no assets file is present.
func DefaultAssetCatalog() AssetCatalog {
	return AssetCatalog{
		"BTC": {
			Symbol:        "BTC",
			Network:       "bitcoin-mainnet",
			CoinGeckoId:   "bitcoin",
			MinDeposit:    decimal.RequireFromString("0.001"),
			MinWithdrawal: decimal.RequireFromString("0.001"),
			CompanyWallet: "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
		},
		"USDT": {
			Symbol:        "USDT",
			Network:       "tron-mainnet",
			CoinGeckoId:   "tether",
			MinDeposit:    decimal.NewFromInt(10),
			MinWithdrawal: decimal.NewFromInt(10),
			CompanyWallet: "TN3W4H6rK2ce4vX9YnFQHwKENnHjoxb3m9",
		},
		"ETH": {
			Symbol:        "ETH",
			Network:       "ethereum-mainnet",
			CoinGeckoId:   "ethereum",
			MinDeposit:    decimal.RequireFromString("0.01"),
			MinWithdrawal: decimal.RequireFromString("0.01"),
			CompanyWallet: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb",
		},
	}
}
