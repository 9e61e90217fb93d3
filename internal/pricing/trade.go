package pricing

import (
	"errors"
	"fmt"

	"brokerdesk-go/internal/models"

	"github.com/shopspring/decimal"
)

var (
	// FeeRate is charged on every trade total (0.5%).
	FeeRate = decimal.RequireFromString("0.005")

	minTradeCrypto = decimal.NewFromInt(10)
	minTradeForex  = decimal.NewFromInt(100)

	ErrUnknownPair = errors.New("unknown trading pair")

	cryptoPairs = []string{"BTC/USDT", "ETH/USDT", "BTC/USD", "ETH/USD"}
)

// CryptoPairs lists the crypto pairs open for trading.
func CryptoPairs() []string {
	return append([]string(nil), cryptoPairs...)
}

func IsCryptoPair(pair string) bool {
	for _, p := range cryptoPairs {
		if p == pair {
			return true
		}
	}
	return false
}

// MinTradeTotal is the smallest total accepted for a market.
func MinTradeTotal(market models.Market) decimal.Decimal {
	if market == models.MarketForex {
		return minTradeForex
	}
	return minTradeCrypto
}

// PairPrice prices a listed pair from a snapshot. Forex pairs read the synthetic rate;
// crypto pairs divide the base USD price by the quote USD price.
func PairPrice(pair string, snap models.PriceSnapshot) (decimal.Decimal, models.Market, error) {
	base, quote, ok := models.SplitPair(pair)
	if !ok || base == quote {
		return decimal.Zero, "", fmt.Errorf("%w: %q", ErrUnknownPair, pair)
	}
	if IsForexPair(pair) {
		q, ok := snap.Forex[pair]
		if !ok || !q.Rate.IsPositive() {
			return decimal.Zero, models.MarketForex, fmt.Errorf("%w: no rate for %s", ErrUnknownPair, pair)
		}
		return q.Rate, models.MarketForex, nil
	}

	if !IsCryptoPair(pair) {
		return decimal.Zero, "", fmt.Errorf("%w: %q is not listed", ErrUnknownPair, pair)
	}
	b, okB := snap.Crypto[base]
	q, okQ := snap.Crypto[quote]
	if !okB || !okQ || !b.Usd.IsPositive() || !q.Usd.IsPositive() {
		return decimal.Zero, models.MarketCrypto, fmt.Errorf("%w: no price for %s", ErrUnknownPair, pair)
	}
	return b.Usd.Div(q.Usd).Round(8), models.MarketCrypto, nil
}

// Value computes the total, the fee and the net amount of a prospective trade.
// Buyers pay total plus fee; sellers receive total minus fee.
func Value(amount, price decimal.Decimal, tradeType models.TradeType) models.TradeValue {
	total := amount.Mul(price)
	fee := total.Mul(FeeRate)
	net := total.Sub(fee)
	if tradeType == models.TradeBuy {
		net = total.Add(fee)
	}
	return models.TradeValue{Total: total, Fee: fee, Net: net}
}
