package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/shopspring/decimal"
)

func mustDec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func applyInTx(t *testing.T, service *Service, leg models.Leg) (*models.BalanceMovement, error) {
	t.Helper()
	ctx := context.Background()
	tx, err := service.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer rollback(tx)

	m, err := service.subledger.applyLeg(ctx, tx, leg, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return m, nil
}

func TestApplyLeg_CreatesAccount(t *testing.T) {
	service := setupTestDb(t)

	m, err := applyInTx(t, service, models.Leg{UserId: "user1", Asset: "BTC", Amount: mustDec("1.5"), Kind: models.MovementDeposit, Ref: "d1"})
	if err != nil {
		t.Fatalf("applyLeg failed: %v", err)
	}
	if !m.BalanceBefore.IsZero() || !m.BalanceAfter.Equal(mustDec("1.5")) {
		t.Errorf("Unexpected movement balances: before=%s after=%s", m.BalanceBefore, m.BalanceAfter)
	}

	balances, err := service.GetBalances(context.Background(), "user1")
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	if !balances.Get("BTC").Equal(mustDec("1.5")) {
		t.Errorf("Expected BTC balance 1.5, got %s", balances.Get("BTC"))
	}
}

func TestApplyLeg_Overdraw(t *testing.T) {
	service := setupTestDb(t)

	if _, err := applyInTx(t, service, models.Leg{UserId: "user1", Asset: "ETH", Amount: mustDec("1"), Kind: models.MovementDeposit}); err != nil {
		t.Fatalf("applyLeg failed: %v", err)
	}
	_, err := applyInTx(t, service, models.Leg{UserId: "user1", Asset: "ETH", Amount: mustDec("-1.000001"), Kind: models.MovementWithdrawal})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}

	balances, err := service.GetBalances(context.Background(), "user1")
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	if !balances.Get("ETH").Equal(mustDec("1")) {
		t.Errorf("Expected ETH balance 1 after failed leg, got %s", balances.Get("ETH"))
	}

	if _, err := applyInTx(t, service, models.Leg{UserId: "user1", Asset: "ETH", Amount: mustDec("-1"), Kind: models.MovementWithdrawal}); err != nil {
		t.Fatalf("Draining to zero should succeed: %v", err)
	}
}

func TestApplyLeg_JournalBalances(t *testing.T) {
	service := setupTestDb(t)

	m, err := applyInTx(t, service, models.Leg{UserId: "user1", Asset: "USDT", Amount: mustDec("250"), Kind: models.MovementDeposit, Ref: "d1"})
	if err != nil {
		t.Fatalf("applyLeg failed: %v", err)
	}

	rows, err := service.db.Query("SELECT account_type, account_id, debit_amount, credit_amount FROM journal_entries WHERE movement_id = ?", m.Id)
	if err != nil {
		t.Fatalf("Failed to query journal: %v", err)
	}
	defer rows.Close()

	debits, credits := decimal.Zero, decimal.Zero
	var counter string
	count := 0
	for rows.Next() {
		var accountType, accountId, debit, credit string
		if err := rows.Scan(&accountType, &accountId, &debit, &credit); err != nil {
			t.Fatalf("Failed to scan journal entry: %v", err)
		}
		if accountType == "system" {
			counter = accountId
		}
		debits = debits.Add(mustDec(debit))
		credits = credits.Add(mustDec(credit))
		count++
	}
	if count != 2 {
		t.Fatalf("Expected 2 journal entries, got %d", count)
	}
	if !debits.Equal(credits) {
		t.Errorf("Journal out of balance: debits=%s credits=%s", debits, credits)
	}
	if counter != "deposits" {
		t.Errorf("Expected system:deposits counter account, got %q", counter)
	}
}

func TestReconcileBalance_DetectsDrift(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	if _, err := applyInTx(t, service, models.Leg{UserId: "user1", Asset: "BTC", Amount: mustDec("0.5"), Kind: models.MovementDeposit}); err != nil {
		t.Fatalf("applyLeg failed: %v", err)
	}
	if err := service.ReconcileUserBalance(ctx, "user1", "BTC"); err != nil {
		t.Fatalf("Reconcile should pass: %v", err)
	}

	if _, err := service.db.Exec("UPDATE account_balances SET balance = '0.6' WHERE user_id = 'user1' AND asset = 'BTC'"); err != nil {
		t.Fatalf("Failed to tamper balance: %v", err)
	}
	if err := service.ReconcileUserBalance(ctx, "user1", "BTC"); err == nil {
		t.Fatal("Expected reconciliation mismatch")
	}
}

func TestApplyLeg_StaleVersion(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	if _, err := applyInTx(t, service, models.Leg{UserId: "user1", Asset: "BTC", Amount: mustDec("1"), Kind: models.MovementDeposit}); err != nil {
		t.Fatalf("applyLeg failed: %v", err)
	}

	tx, err := service.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer rollback(tx)

	// the version check in queryUpdateAccountBalance rejects a row changed after it was read
	if _, err := tx.Exec("UPDATE account_balances SET version = version + 1 WHERE user_id = 'user1'"); err != nil {
		t.Fatalf("Failed to bump version: %v", err)
	}
	_, err = tx.ExecContext(ctx, queryUpdateAccountBalance, "2", "m", time.Now().UTC(), "user1", "BTC", int64(1))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	var version int64
	if err := tx.QueryRow("SELECT version FROM account_balances WHERE user_id = 'user1'").Scan(&version); err != nil {
		t.Fatalf("Failed to read version: %v", err)
	}
	if version != 2 {
		t.Errorf("Stale update should not apply, version=%d", version)
	}
}
