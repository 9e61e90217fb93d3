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

type WithdrawalRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"required"`
	WalletAddress string          `json:"walletAddress,omitempty"`
}

// CreateWithdrawal reserves the amount against the available balance until an admin decides.
func (s *BrokerService) CreateWithdrawal(ctx context.Context, p models.Principal, req WithdrawalRequest) (*Result[models.Withdrawal], error) {
	u, err := s.actor(ctx, p)
	if err != nil {
		return reject[models.Withdrawal](err)
	}
	if err := s.validate.Struct(req); err != nil {
		return failWith[models.Withdrawal](err, "", "Failed to submit withdrawal request")
	}
	asset, found := s.assets.Find(req.Currency)
	if !found {
		return fail[models.Withdrawal](CodeValidation, "Unsupported currency "+req.Currency, nil)
	}
	if err := validation.ValidateAmount(req.Amount, asset.MinWithdrawal); err != nil {
		return failWith[models.Withdrawal](err, "", "Failed to submit withdrawal request")
	}
	address := strings.TrimSpace(req.WalletAddress)
	if err := validation.ValidateWalletAddress(address, asset.Symbol); err != nil {
		return failWith[models.Withdrawal](err, "", "Failed to submit withdrawal request")
	}

	w := &models.Withdrawal{
		Id:            uuid.New().String(),
		UserId:        u.Id,
		UserName:      u.FullName,
		UserEmail:     u.Email,
		Amount:        req.Amount,
		Currency:      asset.Symbol,
		WalletAddress: address,
		Status:        models.StatusPending,
		CreatedAt:     s.now().UTC(),
	}
	err = s.store.InsertWithdrawal(ctx, w)
	s.countSubmission("withdrawal", err)
	if err != nil {
		return failWith[models.Withdrawal](err, "User not found", "Failed to submit withdrawal request")
	}

	zap.L().Info("Withdrawal request submitted",
		zap.String("withdrawal_id", w.Id),
		zap.String("user_id", w.UserId),
		zap.String("currency", w.Currency),
		zap.String("amount", w.Amount.String()))
	return ok("Withdrawal request submitted successfully", w)
}

func (s *BrokerService) ListWithdrawals(ctx context.Context, p models.Principal, filter store.RecordFilter) ([]models.Withdrawal, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	return s.store.ListWithdrawals(ctx, scope(p, filter))
}

func (s *BrokerService) ApproveWithdrawal(ctx context.Context, p models.Principal, id, note string) (*Result[models.Withdrawal], error) {
	return s.settleWithdrawal(ctx, p, id, note, true)
}

func (s *BrokerService) RejectWithdrawal(ctx context.Context, p models.Principal, id, note string) (*Result[models.Withdrawal], error) {
	return s.settleWithdrawal(ctx, p, id, note, false)
}

func (s *BrokerService) settleWithdrawal(ctx context.Context, p models.Principal, id, note string, approve bool) (*Result[models.Withdrawal], error) {
	if err := requireAdmin(p); err != nil {
		return reject[models.Withdrawal](err)
	}

	var w *models.Withdrawal
	err := retryConcurrent(ctx, "settle_withdrawal", func() (err error) {
		w, err = s.store.SettleWithdrawal(ctx, store.SettleParams{Id: id, Approve: approve, AdminNote: note, At: s.now()})
		return err
	})
	s.countTransition("withdrawal", approve, err)
	if err != nil {
		generic := "Failed to reject withdrawal"
		if approve {
			generic = "Failed to approve withdrawal"
		}
		return failWith[models.Withdrawal](err, "Withdrawal not found", generic)
	}

	zap.L().Info("Withdrawal reviewed",
		zap.String("withdrawal_id", w.Id),
		zap.String("admin_id", p.UserId),
		zap.String("status", string(w.Status)))

	if !approve {
		return ok("Withdrawal rejected", w)
	}
	if s.mirror != nil {
		if err := s.mirror.MirrorWithdrawal(ctx, w); err != nil {
			zap.L().Warn("Ledger mirror failed", zap.String("withdrawal_id", w.Id), zap.Error(err))
		}
	}
	return ok("Withdrawal approved successfully", w)
}
