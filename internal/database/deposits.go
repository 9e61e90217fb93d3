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

func scanDeposit(row rowScanner) (*models.Deposit, error) {
	var d models.Deposit
	var amount, status string
	var approvedAt sql.NullTime
	if err := row.Scan(&d.Id, &d.UserId, &d.UserName, &d.UserEmail, &amount, &d.Currency, &d.TxHash, &d.ProofImage,
		&status, &d.AdminNote, &d.CreatedAt, &approvedAt); err != nil {
		return nil, err
	}
	var err error
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse deposit amount '%s': %w", amount, err)
	}
	d.Status = models.Status(status)
	d.ApprovedAt = timePtr(approvedAt)
	return &d, nil
}

func (s *Service) InsertDeposit(ctx context.Context, d *models.Deposit) error {
	_, err := s.db.ExecContext(ctx, queryInsertDeposit,
		d.Id, d.UserId, d.UserName, d.UserEmail, d.Amount.String(), d.Currency, d.TxHash, d.ProofImage,
		string(d.Status), d.AdminNote, d.CreatedAt.UTC(), nullTime(d.ApprovedAt))
	if err != nil {
		return insertError("deposit", d.UserId, err)
	}
	zap.L().Info("Deposit stored",
		zap.String("deposit_id", d.Id),
		zap.String("user_id", d.UserId),
		zap.String("currency", d.Currency),
		zap.String("amount", d.Amount.String()))
	return nil
}

func (s *Service) ListDeposits(ctx context.Context, filter store.RecordFilter) ([]models.Deposit, error) {
	rows, err := s.db.QueryContext(ctx, queryListDeposits,
		filter.UserId, filter.UserId, string(filter.Status), string(filter.Status), limitArg(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer closeRows(rows)

	var out []models.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *Service) GetDeposit(ctx context.Context, id string) (*models.Deposit, error) {
	d, err := scanDeposit(s.db.QueryRowContext(ctx, queryGetDeposit, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return d, nil
}

// SettleDeposit approves (crediting the user) or rejects a pending deposit.
func (s *Service) SettleDeposit(ctx context.Context, params store.SettleParams) (*models.Deposit, error) {
	status := models.StatusRejected
	if params.Approve {
		status = models.StatusApproved
	}

	err := s.settle(ctx, "deposits", querySettleDeposit, params, status, func(tx *sql.Tx) error {
		if !params.Approve {
			return nil
		}
		d, err := scanDeposit(tx.QueryRowContext(ctx, queryGetDeposit, params.Id))
		if err != nil {
			return fmt.Errorf("failed to reload deposit: %w", err)
		}
		return s.subledger.applyLegs(ctx, tx, d.Legs(), params.At.UTC())
	})
	if err != nil {
		return nil, err
	}
	return s.GetDeposit(ctx, params.Id)
}
