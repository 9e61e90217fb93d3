package api

import (
	"context"
	"strings"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"
	"brokerdesk-go/internal/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DepositRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency" validate:"required"`
	TxHash     string          `json:"txHash,omitempty"`
	ProofImage string          `json:"proofImage,omitempty"`
}

// CreateDeposit records a user-reported transfer for admin review.
func (s *BrokerService) CreateDeposit(ctx context.Context, p models.Principal, req DepositRequest) (*Result[models.Deposit], error) {
	u, err := s.actor(ctx, p)
	if err != nil {
		return reject[models.Deposit](err)
	}
	if err := s.validate.Struct(req); err != nil {
		return failWith[models.Deposit](err, "", "Failed to submit deposit request")
	}
	asset, found := s.assets.Find(req.Currency)
	if !found {
		return fail[models.Deposit](CodeValidation, "Unsupported currency "+req.Currency, nil)
	}
	if err := validation.ValidateAmount(req.Amount, asset.MinDeposit); err != nil {
		return failWith[models.Deposit](err, "", "Failed to submit deposit request")
	}
	if err := validation.ValidateTxHash(req.TxHash); err != nil {
		return failWith[models.Deposit](err, "", "Failed to submit deposit request")
	}
	if strings.TrimSpace(req.ProofImage) == "" {
		return fail[models.Deposit](CodeValidation, "Please upload proof of payment", nil)
	}

	d := &models.Deposit{
		Id:         uuid.New().String(),
		UserId:     u.Id,
		UserName:   u.FullName,
		UserEmail:  u.Email,
		Amount:     req.Amount,
		Currency:   asset.Symbol,
		TxHash:     strings.TrimSpace(req.TxHash),
		ProofImage: req.ProofImage,
		Status:     models.StatusPending,
		CreatedAt:  s.now().UTC(),
	}
	err = s.store.InsertDeposit(ctx, d)
	s.countSubmission("deposit", err)
	if err != nil {
		return failWith[models.Deposit](err, "User not found", "Failed to submit deposit request")
	}

	zap.L().Info("Deposit request submitted",
		zap.String("deposit_id", d.Id),
		zap.String("user_id", d.UserId),
		zap.String("currency", d.Currency),
		zap.String("amount", d.Amount.String()))
	return ok("Deposit request submitted successfully", d)
}

func (s *BrokerService) ListDeposits(ctx context.Context, p models.Principal, filter store.RecordFilter) ([]models.Deposit, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	return s.store.ListDeposits(ctx, scope(p, filter))
}

func (s *BrokerService) ApproveDeposit(ctx context.Context, p models.Principal, id, note string) (*Result[models.Deposit], error) {
	return s.settleDeposit(ctx, p, id, note, true)
}

func (s *BrokerService) RejectDeposit(ctx context.Context, p models.Principal, id, note string) (*Result[models.Deposit], error) {
	return s.settleDeposit(ctx, p, id, note, false)
}

func (s *BrokerService) settleDeposit(ctx context.Context, p models.Principal, id, note string, approve bool) (*Result[models.Deposit], error) {
	if err := requireAdmin(p); err != nil {
		return reject[models.Deposit](err)
	}

	var d *models.Deposit
	err := retryConcurrent(ctx, "settle_deposit", func() (err error) {
		d, err = s.store.SettleDeposit(ctx, store.SettleParams{Id: id, Approve: approve, AdminNote: note, At: s.now()})
		return err
	})
	s.countTransition("deposit", approve, err)
	if err != nil {
		generic := "Failed to reject deposit"
		if approve {
			generic = "Failed to approve deposit"
		}
		return failWith[models.Deposit](err, "Deposit not found", generic)
	}

	zap.L().Info("Deposit reviewed",
		zap.String("deposit_id", d.Id),
		zap.String("admin_id", p.UserId),
		zap.String("status", string(d.Status)))

	if !approve {
		return ok("Deposit rejected", d)
	}
	if s.mirror != nil {
		if err := s.mirror.MirrorDeposit(ctx, d); err != nil {
			zap.L().Warn("Ledger mirror failed", zap.String("deposit_id", d.Id), zap.Error(err))
		}
	}
	return ok("Deposit approved successfully", d)
}
