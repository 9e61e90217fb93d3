package api

import (
	"context"
	"sort"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalances returns the principal's balances, or any user's when called by an admin.
func (s *BrokerService) GetBalances(ctx context.Context, p models.Principal, userId string) (models.Balances, error) {
	target, err := s.target(p, userId)
	if err != nil {
		return nil, err
	}
	return s.store.GetBalances(ctx, target)
}

// ListMovements returns the balance audit trail, newest first.
func (s *BrokerService) ListMovements(ctx context.Context, p models.Principal, userId, asset string, limit, offset int) ([]models.BalanceMovement, error) {
	target, err := s.target(p, userId)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return s.store.ListMovements(ctx, target, asset, limit, offset)
}

func (s *BrokerService) target(p models.Principal, userId string) (string, error) {
	if err := requireUser(p); err != nil {
		return "", err
	}
	if userId == "" || userId == p.UserId {
		return p.UserId, nil
	}
	if !p.IsAdmin() {
		return "", &Error{Code: CodeForbidden, Message: "Admin access required"}
	}
	return userId, nil
}

// Portfolio values every balance in USD from the latest snapshot.
func (s *BrokerService) Portfolio(ctx context.Context, p models.Principal) (*models.Portfolio, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	balances, err := s.store.GetBalances(ctx, p.UserId)
	if err != nil {
		return nil, err
	}
	snap := s.prices.Snapshot()

	out := &models.Portfolio{TotalUsd: decimal.Zero}
	for asset, amount := range balances {
		price := usdPrice(asset, snap)
		value := amount.Mul(price).Round(2)
		out.Lines = append(out.Lines, models.PortfolioLine{Asset: asset, Amount: amount, UsdPrice: price, UsdValue: value})
		out.TotalUsd = out.TotalUsd.Add(value)
	}
	sort.Slice(out.Lines, func(i, j int) bool {
		if !out.Lines[i].UsdValue.Equal(out.Lines[j].UsdValue) {
			return out.Lines[i].UsdValue.GreaterThan(out.Lines[j].UsdValue)
		}
		return out.Lines[i].Asset < out.Lines[j].Asset
	})
	return out, nil
}

// usdPrice finds a USD price in the crypto quotes, then in either direction of a forex rate.
func usdPrice(asset string, snap models.PriceSnapshot) decimal.Decimal {
	if asset == "USD" {
		return decimal.NewFromInt(1)
	}
	if q, ok := snap.Crypto[asset]; ok {
		return q.Usd
	}
	if q, ok := snap.Forex[asset+"/USD"]; ok {
		return q.Rate
	}
	if q, ok := snap.Forex["USD/"+asset]; ok && q.Rate.IsPositive() {
		return decimal.NewFromInt(1).DivRound(q.Rate, 8)
	}
	return decimal.Zero
}

// DashboardStats counts pending work. Admins see the whole broker, users only their own.
func (s *BrokerService) DashboardStats(ctx context.Context, p models.Principal) (*models.DashboardStats, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	pending := store.RecordFilter{Status: models.StatusPending}
	if !p.IsAdmin() {
		pending.UserId = p.UserId
	}

	stats := &models.DashboardStats{ApprovedDeposits: map[string]decimal.Decimal{}}
	deposits, err := s.store.ListDeposits(ctx, pending)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.store.ListWithdrawals(ctx, pending)
	if err != nil {
		return nil, err
	}
	trades, err := s.store.ListTrades(ctx, pending)
	if err != nil {
		return nil, err
	}
	kyc, err := s.store.ListKycRequests(ctx, pending)
	if err != nil {
		return nil, err
	}
	stats.PendingDeposits = len(deposits)
	stats.PendingWithdrawals = len(withdrawals)
	stats.PendingTrades = len(trades)
	stats.PendingKyc = len(kyc)

	approved := store.RecordFilter{Status: models.StatusApproved, UserId: pending.UserId}
	done, err := s.store.ListDeposits(ctx, approved)
	if err != nil {
		return nil, err
	}
	for _, d := range done {
		stats.ApprovedDeposits[d.Currency] = stats.ApprovedDeposits[d.Currency].Add(d.Amount)
	}

	if p.IsAdmin() {
		users, err := s.store.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		stats.TotalUsers = len(users)
		stats.UnreadMessages, err = s.store.CountUnread(ctx, "", models.SenderUser)
		if err != nil {
			return nil, err
		}
	} else {
		stats.UnreadMessages, err = s.store.CountUnread(ctx, p.UserId, models.SenderAdmin)
		if err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// DepositInstructions returns where to send a currency: custody first, catalog wallet otherwise.
func (s *BrokerService) DepositInstructions(ctx context.Context, currency string) (*models.DepositInstructions, error) {
	asset, found := s.assets.Find(currency)
	if !found {
		return nil, &Error{Code: CodeNotFound, Message: "Unsupported currency " + currency}
	}
	out := &models.DepositInstructions{
		Currency:   asset.Symbol,
		Network:    asset.Network,
		Address:    asset.CompanyWallet,
		MinDeposit: asset.MinDeposit,
		Source:     "catalog",
	}
	if s.addresses == nil {
		return out, nil
	}
	addr, err := s.addresses.DepositAddress(ctx, asset.Symbol, asset.Network)
	if err != nil {
		zap.L().Warn("Custody address lookup failed, using catalog wallet",
			zap.String("asset", asset.Symbol), zap.Error(err))
		return out, nil
	}
	out.Address, out.Source = addr, "custody"
	return out, nil
}
