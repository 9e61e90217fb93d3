package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func scanWithdrawal(row rowScanner) (*models.Withdrawal, error) {
	var w models.Withdrawal
	var amount, status string
	var processedAt sql.NullTime
	if err := row.Scan(&w.Id, &w.UserId, &w.UserName, &w.UserEmail, &amount, &w.Currency, &w.WalletAddress,
		&status, &w.AdminNote, &w.CreatedAt, &processedAt); err != nil {
		return nil, err
	}
	var err error
	if w.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse withdrawal amount '%s': %w", amount, err)
	}
	w.Status = models.Status(status)
	w.ProcessedAt = timePtr(processedAt)
	return &w, nil
}

// InsertWithdrawal stores a pending withdrawal after checking the amount against the
// balance not already reserved by other pending withdrawals.
func (s *Service) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	var users int
	if err := tx.QueryRowContext(ctx, queryUserExists, w.UserId).Scan(&users); err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if users == 0 {
		return fmt.Errorf("user %s: %w", w.UserId, store.ErrNotFound)
	}

	balance := decimal.Zero
	var balanceStr, accountId string
	var version int64
	err = tx.QueryRowContext(ctx, queryGetAccountBalance, w.UserId, w.Currency).Scan(&accountId, &balanceStr, &version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to get balance: %w", err)
	default:
		if balance, err = decimal.NewFromString(balanceStr); err != nil {
			return fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
		}
	}

	reserved, err := pendingWithdrawalTotal(ctx, tx, w.UserId, w.Currency)
	if err != nil {
		return err
	}
	available := balance.Sub(reserved)
	if available.LessThan(w.Amount) {
		zap.L().Warn("Withdrawal exceeds available balance",
			zap.String("user_id", w.UserId),
			zap.String("currency", w.Currency),
			zap.String("amount", w.Amount.String()),
			zap.String("available", available.String()))
		return fmt.Errorf("%w: available %s %s", store.ErrInsufficientBalance, available, w.Currency)
	}

	_, err = tx.ExecContext(ctx, queryInsertWithdrawal,
		w.Id, w.UserId, w.UserName, w.UserEmail, w.Amount.String(), w.Currency, w.WalletAddress,
		string(w.Status), w.AdminNote, w.CreatedAt.UTC(), nullTime(w.ProcessedAt))
	if err != nil {
		return fmt.Errorf("failed to insert withdrawal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Withdrawal stored",
		zap.String("withdrawal_id", w.Id),
		zap.String("user_id", w.UserId),
		zap.String("currency", w.Currency),
		zap.String("amount", w.Amount.String()))
	return nil
}

func pendingWithdrawalTotal(ctx context.Context, tx *sql.Tx, userId, currency string) (decimal.Decimal, error) {
	rows, err := tx.QueryContext(ctx, queryPendingWithdrawalAmounts, userId, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum pending withdrawals: %w", err)
	}
	defer closeRows(rows)

	total := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan pending withdrawal: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse pending withdrawal '%s': %w", amountStr, err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

func (s *Service) ListWithdrawals(ctx context.Context, filter store.RecordFilter) ([]models.Withdrawal, error) {
	rows, err := s.db.QueryContext(ctx, queryListWithdrawals,
		filter.UserId, filter.UserId, string(filter.Status), string(filter.Status), limitArg(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer closeRows(rows)

	var out []models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (s *Service) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(s.db.QueryRowContext(ctx, queryGetWithdrawal, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

// SettleWithdrawal approves (debiting the user) or rejects a pending withdrawal.
func (s *Service) SettleWithdrawal(ctx context.Context, params store.SettleParams) (*models.Withdrawal, error) {
	status := models.StatusRejected
	if params.Approve {
		status = models.StatusApproved
	}

	err := s.settle(ctx, "withdrawals", querySettleWithdrawal, params, status, func(tx *sql.Tx) error {
		if !params.Approve {
			return nil
		}
		w, err := scanWithdrawal(tx.QueryRowContext(ctx, queryGetWithdrawal, params.Id))
		if err != nil {
			return fmt.Errorf("failed to reload withdrawal: %w", err)
		}
		return s.subledger.applyLegs(ctx, tx, w.Legs(), params.At.UTC())
	})
	if err != nil {
		return nil, err
	}
	return s.GetWithdrawal(ctx, params.Id)
}
