package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"go.uber.org/zap"
)

func scanKyc(row rowScanner) (*models.KycRequest, error) {
	var k models.KycRequest
	var docType, status string
	if err := row.Scan(&k.Id, &k.UserId, &k.UserName, &k.UserEmail, &docType, &k.DocumentNumber,
		&k.FrontImage, &k.BackImage, &status, &k.AdminNote, &k.CreatedAt, &k.UpdatedAt); err != nil {
		return nil, err
	}
	k.DocumentType = models.DocumentType(docType)
	k.Status = models.Status(status)
	return &k, nil
}

// InsertKycRequest stores a submission unless the user already has one pending.
func (s *Service) InsertKycRequest(ctx context.Context, k *models.KycRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	var pending int
	if err := tx.QueryRowContext(ctx, queryHasPendingKyc, k.UserId).Scan(&pending); err != nil {
		return fmt.Errorf("failed to check pending kyc: %w", err)
	}
	if pending > 0 {
		return store.ErrPendingKycExists
	}

	_, err = tx.ExecContext(ctx, queryInsertKyc,
		k.Id, k.UserId, k.UserName, k.UserEmail, string(k.DocumentType), k.DocumentNumber,
		k.FrontImage, k.BackImage, string(k.Status), k.AdminNote, k.CreatedAt.UTC(), k.UpdatedAt.UTC())
	if err != nil {
		return insertError("kyc request", k.UserId, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("KYC request stored",
		zap.String("kyc_id", k.Id),
		zap.String("user_id", k.UserId),
		zap.String("document_type", string(k.DocumentType)))
	return nil
}

func (s *Service) ListKycRequests(ctx context.Context, filter store.RecordFilter) ([]models.KycRequest, error) {
	rows, err := s.db.QueryContext(ctx, queryListKyc,
		filter.UserId, filter.UserId, string(filter.Status), string(filter.Status), limitArg(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list kyc requests: %w", err)
	}
	defer closeRows(rows)

	var out []models.KycRequest
	for rows.Next() {
		k, err := scanKyc(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kyc request: %w", err)
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (s *Service) GetKycRequest(ctx context.Context, id string) (*models.KycRequest, error) {
	k, err := scanKyc(s.db.QueryRowContext(ctx, queryGetKyc, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kyc request: %w", err)
	}
	return k, nil
}

// SettleKycRequest decides a pending request and mirrors the outcome onto the user.
func (s *Service) SettleKycRequest(ctx context.Context, params store.SettleParams) (*models.KycRequest, error) {
	status, kyc := models.StatusRejected, models.KycRejected
	if params.Approve {
		status, kyc = models.StatusApproved, models.KycApproved
	}

	err := s.settle(ctx, "kyc_requests", querySettleKyc, params, status, func(tx *sql.Tx) error {
		k, err := scanKyc(tx.QueryRowContext(ctx, queryGetKyc, params.Id))
		if err != nil {
			return fmt.Errorf("failed to reload kyc request: %w", err)
		}
		res, err := tx.ExecContext(ctx, queryUpdateUserKycStatus, string(kyc), params.At.UTC(), k.UserId)
		if err != nil {
			return fmt.Errorf("failed to update user kyc status: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("kyc request %s owner %s: %w", k.Id, k.UserId, store.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetKycRequest(ctx, params.Id)
}
