package docstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// filterRecords returns matching items newest first, ties broken by insertion order.
func filterRecords[T any](items []T, filter store.RecordFilter, key func(T) (string, models.Status, time.Time)) []T {
	out := make([]T, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		userId, status, _ := key(items[i])
		if filter.Matches(userId, status) {
			out = append(out, items[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		_, _, a := key(out[i])
		_, _, b := key(out[j])
		return a.After(b)
	})
	return store.Page(out, filter.Limit, filter.Offset)
}

func findRecord[T any](items []T, id string, idOf func(*T) string) (*T, error) {
	for i := range items {
		if idOf(&items[i]) == id {
			return &items[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func claimPending(status models.Status) error {
	if status != models.StatusPending {
		return store.ErrNotPending
	}
	return nil
}

// --- Deposits ---

func depositKey(d models.Deposit) (string, models.Status, time.Time) {
	return d.UserId, d.Status, d.CreatedAt
}
func depositId(d *models.Deposit) string { return d.Id }

func (s *Service) InsertDeposit(ctx context.Context, d *models.Deposit) error {
	return s.mutate(func(doc *document) error {
		if err := doc.requireUser(d.UserId); err != nil {
			return err
		}
		doc.Deposits = append(doc.Deposits, *d)
		return nil
	})
}

func (s *Service) ListDeposits(ctx context.Context, filter store.RecordFilter) ([]models.Deposit, error) {
	var out []models.Deposit
	err := s.view(func(doc *document) error {
		out = filterRecords(doc.Deposits, filter, depositKey)
		return nil
	})
	return out, err
}

func (s *Service) GetDeposit(ctx context.Context, id string) (*models.Deposit, error) {
	var out models.Deposit
	err := s.view(func(doc *document) error {
		d, err := findRecord(doc.Deposits, id, depositId)
		if err == nil {
			out = *d
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) SettleDeposit(ctx context.Context, params store.SettleParams) (*models.Deposit, error) {
	var out models.Deposit
	err := s.mutate(func(doc *document) error {
		d, err := findRecord(doc.Deposits, params.Id, depositId)
		if err != nil {
			return err
		}
		if err := claimPending(d.Status); err != nil {
			return err
		}
		at := params.At.UTC()
		d.Status = models.StatusRejected
		if params.Approve {
			d.Status = models.StatusApproved
			if err := doc.applyLegs(d.Legs(), at); err != nil {
				return err
			}
		}
		d.AdminNote = params.AdminNote
		d.ApprovedAt = &at
		out = *d
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("Deposit settled", zap.String("deposit_id", out.Id), zap.String("status", string(out.Status)))
	return &out, nil
}

// --- Withdrawals ---

func withdrawalKey(w models.Withdrawal) (string, models.Status, time.Time) {
	return w.UserId, w.Status, w.CreatedAt
}
func withdrawalId(w *models.Withdrawal) string { return w.Id }

// InsertWithdrawal stores the request only if it fits in the balance not already reserved.
func (s *Service) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	return s.mutate(func(doc *document) error {
		i := doc.userIndex(w.UserId)
		if i < 0 {
			return fmt.Errorf("user %s: %w", w.UserId, store.ErrNotFound)
		}
		available := doc.Users[i].Balance.Get(w.Currency).Sub(pendingTotal(doc.Withdrawals, w.UserId, w.Currency))
		if w.Amount.GreaterThan(available) {
			return fmt.Errorf("%w: available %s %s", store.ErrInsufficientBalance, available, w.Currency)
		}
		doc.Withdrawals = append(doc.Withdrawals, *w)
		return nil
	})
}

func (s *Service) ListWithdrawals(ctx context.Context, filter store.RecordFilter) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	err := s.view(func(doc *document) error {
		out = filterRecords(doc.Withdrawals, filter, withdrawalKey)
		return nil
	})
	return out, err
}

func (s *Service) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	var out models.Withdrawal
	err := s.view(func(doc *document) error {
		w, err := findRecord(doc.Withdrawals, id, withdrawalId)
		if err == nil {
			out = *w
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) SettleWithdrawal(ctx context.Context, params store.SettleParams) (*models.Withdrawal, error) {
	var out models.Withdrawal
	err := s.mutate(func(doc *document) error {
		w, err := findRecord(doc.Withdrawals, params.Id, withdrawalId)
		if err != nil {
			return err
		}
		if err := claimPending(w.Status); err != nil {
			return err
		}
		at := params.At.UTC()
		w.Status = models.StatusRejected
		if params.Approve {
			w.Status = models.StatusApproved
			if err := doc.applyLegs(w.Legs(), at); err != nil {
				return err
			}
		}
		w.AdminNote = params.AdminNote
		w.ProcessedAt = &at
		out = *w
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("Withdrawal settled", zap.String("withdrawal_id", out.Id), zap.String("status", string(out.Status)))
	return &out, nil
}

// --- Trades ---

func tradeKey(t models.Trade) (string, models.Status, time.Time) {
	return t.UserId, t.Status, t.CreatedAt
}
func tradeId(t *models.Trade) string { return t.Id }

func (s *Service) InsertTrade(ctx context.Context, t *models.Trade) error {
	return s.mutate(func(doc *document) error {
		if err := doc.requireUser(t.UserId); err != nil {
			return err
		}
		doc.Trades = append(doc.Trades, *t)
		return nil
	})
}

func (s *Service) ListTrades(ctx context.Context, filter store.RecordFilter) ([]models.Trade, error) {
	var out []models.Trade
	err := s.view(func(doc *document) error {
		out = filterRecords(doc.Trades, filter, tradeKey)
		return nil
	})
	return out, err
}

func (s *Service) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	var out models.Trade
	err := s.view(func(doc *document) error {
		t, err := findRecord(doc.Trades, id, tradeId)
		if err == nil {
			out = *t
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) SettleTrade(ctx context.Context, params store.SettleParams) (*models.Trade, error) {
	var out models.Trade
	err := s.mutate(func(doc *document) error {
		t, err := findRecord(doc.Trades, params.Id, tradeId)
		if err != nil {
			return err
		}
		if err := claimPending(t.Status); err != nil {
			return err
		}
		at := params.At.UTC()
		t.Status = models.StatusRejected
		if params.Approve {
			legs := t.Legs()
			if len(legs) != 2 {
				return fmt.Errorf("trade %s has malformed pair %q", t.Id, t.Pair)
			}
			t.Status = models.StatusCompleted
			if err := doc.applyLegs(legs, at); err != nil {
				return err
			}
		}
		t.AdminNote = params.AdminNote
		t.ExecutedAt = &at
		out = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("Trade settled", zap.String("trade_id", out.Id), zap.String("status", string(out.Status)))
	return &out, nil
}

// --- KYC ---

func kycKey(k models.KycRequest) (string, models.Status, time.Time) {
	return k.UserId, k.Status, k.CreatedAt
}
func kycId(k *models.KycRequest) string { return k.Id }

func (s *Service) InsertKycRequest(ctx context.Context, k *models.KycRequest) error {
	return s.mutate(func(doc *document) error {
		if err := doc.requireUser(k.UserId); err != nil {
			return err
		}
		for _, p := range doc.KycRequests {
			if p.UserId == k.UserId && p.Status == models.StatusPending {
				return store.ErrPendingKycExists
			}
		}
		doc.KycRequests = append(doc.KycRequests, *k)
		return nil
	})
}

func (s *Service) ListKycRequests(ctx context.Context, filter store.RecordFilter) ([]models.KycRequest, error) {
	var out []models.KycRequest
	err := s.view(func(doc *document) error {
		out = filterRecords(doc.KycRequests, filter, kycKey)
		return nil
	})
	return out, err
}

func (s *Service) GetKycRequest(ctx context.Context, id string) (*models.KycRequest, error) {
	var out models.KycRequest
	err := s.view(func(doc *document) error {
		k, err := findRecord(doc.KycRequests, id, kycId)
		if err == nil {
			out = *k
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SettleKycRequest decides a pending request and mirrors the outcome onto the user.
func (s *Service) SettleKycRequest(ctx context.Context, params store.SettleParams) (*models.KycRequest, error) {
	var out models.KycRequest
	err := s.mutate(func(doc *document) error {
		k, err := findRecord(doc.KycRequests, params.Id, kycId)
		if err != nil {
			return err
		}
		if err := claimPending(k.Status); err != nil {
			return err
		}
		i := doc.userIndex(k.UserId)
		if i < 0 {
			return fmt.Errorf("kyc request %s owner %s: %w", k.Id, k.UserId, store.ErrNotFound)
		}
		at := params.At.UTC()
		k.Status, doc.Users[i].KycStatus = models.StatusRejected, models.KycRejected
		if params.Approve {
			k.Status, doc.Users[i].KycStatus = models.StatusApproved, models.KycApproved
		}
		k.AdminNote = params.AdminNote
		k.UpdatedAt = at
		doc.Users[i].UpdatedAt = at
		out = *k
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func pendingTotal(ws []models.Withdrawal, userId, currency string) decimal.Decimal {
	total := decimal.Zero
	for _, w := range ws {
		if w.UserId == userId && w.Currency == currency && w.Status == models.StatusPending {
			total = total.Add(w.Amount)
		}
	}
	return total
}
