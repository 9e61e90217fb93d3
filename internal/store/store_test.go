package store

import (
	"testing"

	"brokerdesk-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestRecordFilterMatches(t *testing.T) {
	f := RecordFilter{UserId: "u1", Status: models.StatusPending}
	if !f.Matches("u1", models.StatusPending) {
		t.Fatalf("expected match")
	}
	if f.Matches("u2", models.StatusPending) {
		t.Fatalf("expected user mismatch")
	}
	if f.Matches("u1", models.StatusApproved) {
		t.Fatalf("expected status mismatch")
	}
	if !(RecordFilter{}).Matches("anyone", models.StatusRejected) {
		t.Fatalf("empty filter should match everything")
	}
}

func TestAvailableSubtractsPendingSameCurrency(t *testing.T) {
	pending := []models.Withdrawal{
		{Currency: "BTC", Amount: decimal.RequireFromString("0.1"), Status: models.StatusPending},
		{Currency: "BTC", Amount: decimal.RequireFromString("0.2"), Status: models.StatusApproved},
		{Currency: "ETH", Amount: decimal.RequireFromString("1"), Status: models.StatusPending},
	}
	got := Available(decimal.RequireFromString("0.5"), pending, "BTC")
	if !got.Equal(decimal.RequireFromString("0.4")) {
		t.Fatalf("expected 0.4, got %s", got)
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	if got := Page(items, 2, 1); len(got) != 2 || got[0] != 2 {
		t.Fatalf("unexpected page %v", got)
	}
	if got := Page(items, 0, 10); len(got) != 0 {
		t.Fatalf("expected empty page, got %v", got)
	}
	if got := Page(items, 0, 0); len(got) != 5 {
		t.Fatalf("expected all items, got %v", got)
	}
}
