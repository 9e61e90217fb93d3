package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/pricing"
	"brokerdesk-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TradeRequest struct {
	Type   models.TradeType `json:"type" validate:"required,oneof=buy sell"`
	Pair   string           `json:"pair" validate:"required"`
	Amount decimal.Decimal  `json:"amount"`
}

// QuoteTrade prices a prospective trade from the live snapshot without recording it.
func (s *BrokerService) QuoteTrade(pair string, amount decimal.Decimal, tradeType models.TradeType) (models.TradeValue, decimal.Decimal, models.Market, error) {
	price, market, err := pricing.PairPrice(pair, s.prices.Snapshot())
	if err != nil {
		return models.TradeValue{}, decimal.Zero, market, err
	}
	return pricing.Value(amount, price, tradeType), price, market, nil
}

// CreateTrade prices the order server-side and checks the debited leg against the balance
// not reserved by pending withdrawals.
func (s *BrokerService) CreateTrade(ctx context.Context, p models.Principal, req TradeRequest) (*Result[models.Trade], error) {
	u, err := s.actor(ctx, p)
	if err != nil {
		return reject[models.Trade](err)
	}
	req.Pair = strings.ToUpper(strings.TrimSpace(req.Pair))
	if err := s.validate.Struct(req); err != nil {
		return failWith[models.Trade](err, "", "Failed to submit trade request")
	}
	if !req.Amount.IsPositive() {
		return fail[models.Trade](CodeValidation, "Please enter a valid amount", nil)
	}

	value, price, market, err := s.QuoteTrade(req.Pair, req.Amount, req.Type)
	if errors.Is(err, pricing.ErrUnknownPair) {
		return fail[models.Trade](CodeValidation, "Unsupported trading pair "+req.Pair, err)
	}
	if err != nil {
		return failWith[models.Trade](err, "", "Failed to submit trade request")
	}
	if floor := pricing.MinTradeTotal(market); value.Total.LessThan(floor) {
		return fail[models.Trade](CodeValidation, fmt.Sprintf("Minimum trade value is $%s", floor), nil)
	}

	base, quote, _ := models.SplitPair(req.Pair)
	debitAsset, debit := quote, value.Total
	if req.Type == models.TradeSell {
		debitAsset, debit = base, req.Amount
	}
	pending, err := s.store.ListWithdrawals(ctx, store.RecordFilter{UserId: u.Id, Status: models.StatusPending})
	if err != nil {
		return failWith[models.Trade](err, "", "Failed to submit trade request")
	}
	if store.Available(u.Balance.Get(debitAsset), pending, debitAsset).LessThan(debit) {
		return fail[models.Trade](CodeInsufficientBalance, "Insufficient balance",
			fmt.Errorf("%w: %s needs %s", store.ErrInsufficientBalance, debitAsset, debit))
	}

	t := &models.Trade{
		Id:        uuid.New().String(),
		UserId:    u.Id,
		UserName:  u.FullName,
		UserEmail: u.Email,
		Type:      req.Type,
		Market:    market,
		Pair:      req.Pair,
		Amount:    req.Amount,
		Price:     price,
		Total:     value.Total,
		Fee:       value.Fee,
		Status:    models.StatusPending,
		CreatedAt: s.now().UTC(),
	}
	err = s.store.InsertTrade(ctx, t)
	s.countSubmission("trade", err)
	if err != nil {
		return failWith[models.Trade](err, "User not found", "Failed to submit trade request")
	}

	zap.L().Info("Trade request submitted",
		zap.String("trade_id", t.Id),
		zap.String("user_id", t.UserId),
		zap.String("pair", t.Pair),
		zap.String("type", string(t.Type)),
		zap.String("amount", t.Amount.String()),
		zap.String("price", t.Price.String()))
	return ok("Trade request submitted successfully", t)
}

func (s *BrokerService) ListTrades(ctx context.Context, p models.Principal, filter store.RecordFilter) ([]models.Trade, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	return s.store.ListTrades(ctx, scope(p, filter))
}

func (s *BrokerService) ExecuteTrade(ctx context.Context, p models.Principal, id, note string) (*Result[models.Trade], error) {
	return s.settleTrade(ctx, p, id, note, true)
}

func (s *BrokerService) RejectTrade(ctx context.Context, p models.Principal, id, note string) (*Result[models.Trade], error) {
	return s.settleTrade(ctx, p, id, note, false)
}

func (s *BrokerService) settleTrade(ctx context.Context, p models.Principal, id, note string, approve bool) (*Result[models.Trade], error) {
	if err := requireAdmin(p); err != nil {
		return reject[models.Trade](err)
	}

	var t *models.Trade
	err := retryConcurrent(ctx, "settle_trade", func() (err error) {
		t, err = s.store.SettleTrade(ctx, store.SettleParams{Id: id, Approve: approve, AdminNote: note, At: s.now()})
		return err
	})
	s.countTransition("trade", approve, err)
	if err != nil {
		generic := "Failed to reject trade"
		if approve {
			generic = "Failed to execute trade"
		}
		return failWith[models.Trade](err, "Trade not found", generic)
	}

	zap.L().Info("Trade reviewed",
		zap.String("trade_id", t.Id),
		zap.String("admin_id", p.UserId),
		zap.String("status", string(t.Status)))

	if !approve {
		return ok("Trade rejected", t)
	}
	if s.mirror != nil {
		if err := s.mirror.MirrorTrade(ctx, t); err != nil {
			zap.L().Warn("Ledger mirror failed", zap.String("trade_id", t.Id), zap.Error(err))
		}
	}
	return ok("Trade executed successfully", t)
}
