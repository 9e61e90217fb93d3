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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SubledgerService owns account balances and the movement journal
type SubledgerService struct {
	db *sql.DB
}

func NewSubledgerService(db *sql.DB) *SubledgerService {
	return &SubledgerService{
		db: db,
	}
}

func (s *SubledgerService) InitSchema() error {
	schema := `
	-- Account Balances Table (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS account_balances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		asset TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		last_movement_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP,
		UNIQUE(user_id, asset)
	);

	-- Balance Movements Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS balance_movements (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		asset TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference TEXT,
		created_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_account_balances_user_id ON account_balances(user_id);
	CREATE INDEX IF NOT EXISTS idx_movements_user_asset ON balance_movements(user_id, asset);
	CREATE INDEX IF NOT EXISTS idx_movements_reference ON balance_movements(reference);

	-- Journal Entries for Double-Entry Bookkeeping
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		movement_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		asset TEXT NOT NULL,
		debit_amount TEXT NOT NULL DEFAULT '0',
		credit_amount TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_journal_movement_id ON journal_entries(movement_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// applyLeg moves one balance inside tx, recording the movement and its journal entries.
// A leg that would take the balance below zero fails with store.ErrInsufficientBalance.
func (s *SubledgerService) applyLeg(ctx context.Context, tx *sql.Tx, leg models.Leg, at time.Time) (*models.BalanceMovement, error) {
	var accountId, currentStr string
	var version int64

	err := tx.QueryRowContext(ctx, queryGetAccountBalance, leg.UserId, leg.Asset).Scan(&accountId, &currentStr, &version)

	current := decimal.Zero
	if errors.Is(err, sql.ErrNoRows) {
		accountId = uuid.New().String()
		version = 1
		if _, err := tx.ExecContext(ctx, queryInsertAccountBalance, accountId, leg.UserId, leg.Asset, "0", version, at); err != nil {
			return nil, fmt.Errorf("failed to create account balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	} else {
		current, err = decimal.NewFromString(currentStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse current balance '%s': %w", currentStr, err)
		}
	}

	next := current.Add(leg.Amount)
	if next.IsNegative() {
		zap.L().Warn("Leg would overdraw balance",
			zap.String("user_id", leg.UserId),
			zap.String("asset", leg.Asset),
			zap.String("balance", current.String()),
			zap.String("amount", leg.Amount.String()))
		return nil, fmt.Errorf("%w: %s balance %s, needs %s", store.ErrInsufficientBalance, leg.Asset, current, leg.Amount.Neg())
	}

	movement := &models.BalanceMovement{
		Id:            uuid.New().String(),
		UserId:        leg.UserId,
		Asset:         leg.Asset,
		Kind:          leg.Kind,
		Amount:        leg.Amount,
		BalanceBefore: current,
		BalanceAfter:  next,
		Reference:     leg.Ref,
		CreatedAt:     at,
	}

	if _, err := tx.ExecContext(ctx, queryInsertMovement,
		movement.Id, movement.UserId, movement.Asset, string(movement.Kind),
		movement.Amount.String(), movement.BalanceBefore.String(), movement.BalanceAfter.String(),
		movement.Reference, movement.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert movement: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance, next.String(), movement.Id, at, leg.UserId, leg.Asset, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := s.addJournalEntries(ctx, tx, movement); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	zap.L().Debug("Leg applied",
		zap.String("movement_id", movement.Id),
		zap.String("user_id", leg.UserId),
		zap.String("asset", leg.Asset),
		zap.String("old_balance", current.String()),
		zap.String("new_balance", next.String()))

	return movement, nil
}

// applyLegs applies every leg in order and stops at the first failure.
func (s *SubledgerService) applyLegs(ctx context.Context, tx *sql.Tx, legs []models.Leg, at time.Time) error {
	for _, leg := range legs {
		if _, err := s.applyLeg(ctx, tx, leg, at); err != nil {
			return err
		}
	}
	return nil
}

// addJournalEntries books the user side and its counter account.
// Credits to the user are a debit of the user asset account against the counter account.
func (s *SubledgerService) addJournalEntries(ctx context.Context, tx *sql.Tx, m *models.BalanceMovement) error {
	counterType, counterId := counterAccount(m)
	abs := m.Amount.Abs()

	userDebit, userCredit := abs, decimal.Zero
	if m.Amount.IsNegative() {
		userDebit, userCredit = decimal.Zero, abs
	}

	entries := []struct {
		accountType string
		accountId   string
		debit       decimal.Decimal
		credit      decimal.Decimal
	}{
		{"user", m.UserId, userDebit, userCredit},
		{counterType, counterId, userCredit, userDebit},
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), m.Id, e.accountType, e.accountId, m.Asset,
			e.debit.String(), e.credit.String(), m.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func counterAccount(m *models.BalanceMovement) (string, string) {
	switch m.Kind {
	case models.MovementDeposit:
		return "system", "deposits"
	case models.MovementWithdrawal:
		return "system", "withdrawals"
	case models.MovementTrade:
		return "exchange", m.Asset
	default:
		return "system", "opening"
	}
}

// GetBalances returns every asset balance held by the user
func (s *SubledgerService) GetBalances(ctx context.Context, userId string) (models.Balances, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUserBalances, userId)
	if err != nil {
		zap.L().Error("Failed to get balances", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}
	defer closeRows(rows)

	balances := models.Balances{}
	for rows.Next() {
		var asset, balanceStr string
		if err := rows.Scan(&asset, &balanceStr); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		amount, err := decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
		}
		balances[asset] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}
	return balances, nil
}

// allBalances groups every balance row by user
func (s *SubledgerService) allBalances(ctx context.Context) (map[string]models.Balances, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllBalances)
	if err != nil {
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}
	defer closeRows(rows)

	out := map[string]models.Balances{}
	for rows.Next() {
		var userId, asset, balanceStr string
		if err := rows.Scan(&userId, &asset, &balanceStr); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		amount, err := decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
		}
		if out[userId] == nil {
			out[userId] = models.Balances{}
		}
		out[userId][asset] = amount
	}
	return out, rows.Err()
}

// ListMovements returns movement history newest first
func (s *SubledgerService) ListMovements(ctx context.Context, userId, asset string, limit, offset int) ([]models.BalanceMovement, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, queryListMovements, userId, asset, asset, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer closeRows(rows)

	var movements []models.BalanceMovement
	for rows.Next() {
		var m models.BalanceMovement
		var kind, amountStr, beforeStr, afterStr string
		if err := rows.Scan(&m.Id, &m.UserId, &m.Asset, &kind, &amountStr, &beforeStr, &afterStr, &m.Reference, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Kind = models.MovementKind(kind)
		if m.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		if m.BalanceBefore, err = decimal.NewFromString(beforeStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance_before: %w", err)
		}
		if m.BalanceAfter, err = decimal.NewFromString(afterStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance_after: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ReconcileBalance verifies that the current balance matches the sum of all movements
func (s *SubledgerService) ReconcileBalance(ctx context.Context, userId, asset string) error {
	zap.L().Info("Reconciling balance", zap.String("user_id", userId), zap.String("asset", asset))

	balances, err := s.GetBalances(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}
	current := balances.Get(asset)

	rows, err := s.db.QueryContext(ctx, queryMovementAmounts, userId, asset)
	if err != nil {
		return fmt.Errorf("failed to calculate balance from movements: %w", err)
	}
	defer closeRows(rows)

	calculated := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return fmt.Errorf("failed to scan movement amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return fmt.Errorf("failed to parse movement amount '%s': %w", amountStr, err)
		}
		calculated = calculated.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if !current.Equal(calculated) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("asset", asset),
			zap.String("current_balance", current.String()),
			zap.String("calculated_balance", calculated.String()),
			zap.String("difference", current.Sub(calculated).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s", current.String(), calculated.String())
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.String("asset", asset),
		zap.String("balance", current.String()))
	return nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}
