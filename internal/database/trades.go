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

func scanTrade(row rowScanner) (*models.Trade, error) {
	var t models.Trade
	var typ, market, amount, price, total, fee, status string
	var executedAt sql.NullTime
	if err := row.Scan(&t.Id, &t.UserId, &t.UserName, &t.UserEmail, &typ, &market, &t.Pair,
		&amount, &price, &total, &fee, &status, &t.AdminNote, &t.CreatedAt, &executedAt); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&t.Amount, amount}, {&t.Price, price}, {&t.Total, total}, {&t.Fee, fee}} {
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse trade value '%s': %w", f.src, err)
		}
		*f.dst = v
	}
	t.Type = models.TradeType(typ)
	t.Market = models.Market(market)
	t.Status = models.Status(status)
	t.ExecutedAt = timePtr(executedAt)
	return &t, nil
}

func (s *Service) InsertTrade(ctx context.Context, t *models.Trade) error {
	_, err := s.db.ExecContext(ctx, queryInsertTrade,
		t.Id, t.UserId, t.UserName, t.UserEmail, string(t.Type), string(t.Market), t.Pair,
		t.Amount.String(), t.Price.String(), t.Total.String(), t.Fee.String(),
		string(t.Status), t.AdminNote, t.CreatedAt.UTC(), nullTime(t.ExecutedAt))
	if err != nil {
		return insertError("trade", t.UserId, err)
	}
	zap.L().Info("Trade stored",
		zap.String("trade_id", t.Id),
		zap.String("user_id", t.UserId),
		zap.String("type", string(t.Type)),
		zap.String("pair", t.Pair),
		zap.String("amount", t.Amount.String()),
		zap.String("total", t.Total.String()))
	return nil
}

func (s *Service) ListTrades(ctx context.Context, filter store.RecordFilter) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, queryListTrades,
		filter.UserId, filter.UserId, string(filter.Status), string(filter.Status), limitArg(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer closeRows(rows)

	var out []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Service) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	t, err := scanTrade(s.db.QueryRowContext(ctx, queryGetTrade, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return t, nil
}

// SettleTrade executes (moving both legs) or rejects a pending trade.
func (s *Service) SettleTrade(ctx context.Context, params store.SettleParams) (*models.Trade, error) {
	status := models.StatusRejected
	if params.Approve {
		status = models.StatusCompleted
	}

	err := s.settle(ctx, "trades", querySettleTrade, params, status, func(tx *sql.Tx) error {
		if !params.Approve {
			return nil
		}
		t, err := scanTrade(tx.QueryRowContext(ctx, queryGetTrade, params.Id))
		if err != nil {
			return fmt.Errorf("failed to reload trade: %w", err)
		}
		legs := t.Legs()
		if len(legs) != 2 {
			return fmt.Errorf("trade %s has malformed pair %q", t.Id, t.Pair)
		}
		return s.subledger.applyLegs(ctx, tx, legs, params.At.UTC())
	})
	if err != nil {
		return nil, err
	}
	return s.GetTrade(ctx, params.Id)
}
