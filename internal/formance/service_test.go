package formance

import (
	"strings"
	"testing"
	"time"

	"brokerdesk-go/internal/models"

	"github.com/shopspring/decimal"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestFormanceAsset(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"USDT", "USDT/6"},
		{"BTC", "BTC/8"},
		{"ETH", "ETH/18"},
		{"USD", "USD/2"},
		{"UNKNOWN", "UNKNOWN/6"}, // default precision
	}
	for _, tt := range tests {
		if got := formanceAsset(tt.symbol); got != tt.want {
			t.Errorf("formanceAsset(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestSmallestUnit(t *testing.T) {
	tests := []struct {
		amount string
		symbol string
		want   string
	}{
		{"0.5", "BTC", "50000000"},
		{"1000", "USDT", "1000000000"},
		{"-2.25", "USD", "225"},
		{"0.123", "USD", "12"}, // truncated
	}
	for _, tt := range tests {
		got := smallestUnit(decimal.RequireFromString(tt.amount), tt.symbol)
		if got != tt.want {
			t.Errorf("smallestUnit(%s, %s) = %s, want %s", tt.amount, tt.symbol, got, tt.want)
		}
	}
}

func TestIsConflictError(t *testing.T) {
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
}

func TestDepositPosting(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	d := &models.Deposit{
		Id:         "dep-1",
		UserId:     "u-1",
		Amount:     decimal.RequireFromString("0.1"),
		Currency:   "BTC",
		TxHash:     "abc",
		ApprovedAt: &at,
	}
	tx := depositPosting(d)
	if tx.Reference == nil || *tx.Reference != "dep-1" {
		t.Fatalf("reference = %v, want dep-1", tx.Reference)
	}
	if tx.Timestamp == nil || !tx.Timestamp.Equal(at) {
		t.Fatalf("timestamp = %v, want %v", tx.Timestamp, at)
	}
	vars := tx.Script.Vars
	if vars["asset"] != "BTC/8" || vars["amount"] != "10000000" || vars["user_id"] != "u-1" {
		t.Fatalf("unexpected vars: %v", vars)
	}
	if !strings.Contains(tx.Script.Plain, "source = @world") {
		t.Fatal("deposit must be funded from @world")
	}
}

func TestWithdrawalPosting(t *testing.T) {
	w := &models.Withdrawal{
		Id:            "wd-1",
		UserId:        "u-1",
		Amount:        decimal.RequireFromString("25"),
		Currency:      "USDT",
		WalletAddress: "TN3W4H6rK2ce4vX9YnFQHwKENnHjoxb3m9",
	}
	tx := withdrawalPosting(w)
	if *tx.Reference != "wd-1" {
		t.Fatalf("reference = %s", *tx.Reference)
	}
	if tx.Script.Vars["amount"] != "25000000" {
		t.Fatalf("amount = %s", tx.Script.Vars["amount"])
	}
	if !strings.Contains(tx.Script.Plain, "destination = @world") {
		t.Fatal("withdrawal must leave to @world")
	}
}

func TestTradePosting_Buy(t *testing.T) {
	tr := &models.Trade{
		Id:     "tr-1",
		UserId: "u-1",
		Type:   models.TradeBuy,
		Pair:   "BTC/USDT",
		Amount: decimal.RequireFromString("0.01"),
		Price:  decimal.RequireFromString("45000"),
		Total:  decimal.RequireFromString("450"),
	}
	tx, err := tradePosting(tr)
	if err != nil {
		t.Fatalf("tradePosting: %v", err)
	}
	v := tx.Script.Vars
	if v["base_source"] != "exchange:BTC_USDT" || v["base_destination"] != "users:u-1" {
		t.Fatalf("buy base leg goes exchange -> user, got %s -> %s", v["base_source"], v["base_destination"])
	}
	if v["quote_source"] != "users:u-1" || v["quote_destination"] != "exchange:BTC_USDT" {
		t.Fatalf("buy quote leg goes user -> exchange, got %s -> %s", v["quote_source"], v["quote_destination"])
	}
	if v["base_amount"] != "1000000" || v["quote_amount"] != "450000000" {
		t.Fatalf("amounts = %s / %s", v["base_amount"], v["quote_amount"])
	}
}

func TestTradePosting_Sell(t *testing.T) {
	tr := &models.Trade{
		Id:     "tr-2",
		UserId: "u-1",
		Type:   models.TradeSell,
		Pair:   "ETH/USD",
		Amount: decimal.RequireFromString("1"),
		Total:  decimal.RequireFromString("2500"),
	}
	tx, err := tradePosting(tr)
	if err != nil {
		t.Fatalf("tradePosting: %v", err)
	}
	v := tx.Script.Vars
	if v["base_source"] != "users:u-1" || v["quote_destination"] != "users:u-1" {
		t.Fatalf("sell reverses both legs, got %v", v)
	}
	if v["quote_asset"] != "USD/2" || v["quote_amount"] != "250000" {
		t.Fatalf("quote leg = %s %s", v["quote_asset"], v["quote_amount"])
	}
}

func TestTradePosting_MalformedPair(t *testing.T) {
	if _, err := tradePosting(&models.Trade{Id: "tr-3", Pair: "BTCUSDT"}); err == nil {
		t.Fatal("expected error for malformed pair")
	}
}
