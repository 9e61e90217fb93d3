package formance

import (
	"context"
	"fmt"
	"strings"

	"brokerdesk-go/internal/metrics"
	"brokerdesk-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Numscript templates. Sources allow overdraft because the broker store has already
// validated balances; the ledger only records what was committed.

const numscriptDeposit = `vars {
  asset $asset
  number $amount
  account $user_id
  string $record_id
  string $amount_human
  string $tx_hash
}

send [$asset $amount] (
  source = @world
  destination = @users:$user_id
)

set_tx_meta("event_type", "deposit_approved")
set_tx_meta("record_id", $record_id)
set_tx_meta("amount_human", $amount_human)
set_tx_meta("tx_hash", $tx_hash)
`

const numscriptWithdrawal = `vars {
  asset $asset
  number $amount
  account $user_id
  string $record_id
  string $amount_human
  string $wallet_address
}

send [$asset $amount] (
  source = @users:$user_id allowing unbounded overdraft
  destination = @world
)

set_tx_meta("event_type", "withdrawal_approved")
set_tx_meta("record_id", $record_id)
set_tx_meta("amount_human", $amount_human)
set_tx_meta("wallet_address", $wallet_address)
`

const numscriptTrade = `vars {
  asset $base_asset
  number $base_amount
  asset $quote_asset
  number $quote_amount
  account $base_source
  account $base_destination
  account $quote_source
  account $quote_destination
  string $record_id
  string $pair
  string $side
  string $price
}

send [$base_asset $base_amount] (
  source = $base_source allowing unbounded overdraft
  destination = $base_destination
)

send [$quote_asset $quote_amount] (
  source = $quote_source allowing unbounded overdraft
  destination = $quote_destination
)

set_tx_meta("event_type", "trade_executed")
set_tx_meta("record_id", $record_id)
set_tx_meta("pair", $pair)
set_tx_meta("side", $side)
set_tx_meta("price", $price)
`

// MirrorDeposit records an approved deposit as @world -> @users:{id}.
func (s *Service) MirrorDeposit(ctx context.Context, d *models.Deposit) error {
	return s.post(ctx, "deposit", d.Id, depositPosting(d))
}

// MirrorWithdrawal records an approved withdrawal as @users:{id} -> @world.
func (s *Service) MirrorWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	return s.post(ctx, "withdrawal", w.Id, withdrawalPosting(w))
}

// MirrorTrade records an executed trade as two sends against the pair's exchange account.
func (s *Service) MirrorTrade(ctx context.Context, t *models.Trade) error {
	postTx, err := tradePosting(t)
	if err != nil {
		return err
	}
	return s.post(ctx, "trade", t.Id, postTx)
}

func (s *Service) post(ctx context.Context, kind, recordId string, postTx shared.V2PostTransaction) error {
	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil && isConflictError(err) {
		zap.L().Debug("Ledger transaction already recorded",
			zap.String("kind", kind), zap.String("record_id", recordId))
		err = nil
	}
	if s.metrics != nil {
		s.metrics.LedgerMirror.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	}
	if err != nil {
		return fmt.Errorf("failed to mirror %s %s: %w", kind, recordId, err)
	}

	zap.L().Info("Movement mirrored to Formance",
		zap.String("kind", kind),
		zap.String("record_id", recordId),
		zap.String("ledger", s.ledger))
	return nil
}

func depositPosting(d *models.Deposit) shared.V2PostTransaction {
	return shared.V2PostTransaction{
		Reference: strPtr(d.Id),
		Timestamp: d.ApprovedAt,
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptDeposit,
			Vars: map[string]string{
				"asset":        formanceAsset(d.Currency),
				"amount":       smallestUnit(d.Amount, d.Currency),
				"user_id":      d.UserId,
				"record_id":    d.Id,
				"amount_human": d.Amount.String(),
				"tx_hash":      d.TxHash,
			},
		},
	}
}

func withdrawalPosting(w *models.Withdrawal) shared.V2PostTransaction {
	return shared.V2PostTransaction{
		Reference: strPtr(w.Id),
		Timestamp: w.ProcessedAt,
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptWithdrawal,
			Vars: map[string]string{
				"asset":          formanceAsset(w.Currency),
				"amount":         smallestUnit(w.Amount, w.Currency),
				"user_id":        w.UserId,
				"record_id":      w.Id,
				"amount_human":   w.Amount.String(),
				"wallet_address": w.WalletAddress,
			},
		},
	}
}

// tradePosting builds both legs. Buy: exchange sends base to the user, user sends quote
// to the exchange. Sell reverses both directions.
func tradePosting(t *models.Trade) (shared.V2PostTransaction, error) {
	base, quote, ok := models.SplitPair(t.Pair)
	if !ok {
		return shared.V2PostTransaction{}, fmt.Errorf("trade %s has malformed pair %q", t.Id, t.Pair)
	}
	user := "users:" + t.UserId
	exchange := exchangeAccount(t.Pair)

	baseFrom, baseTo, quoteFrom, quoteTo := exchange, user, user, exchange
	if t.Type == models.TradeSell {
		baseFrom, baseTo, quoteFrom, quoteTo = user, exchange, exchange, user
	}

	return shared.V2PostTransaction{
		Reference: strPtr(t.Id),
		Timestamp: t.ExecutedAt,
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptTrade,
			Vars: map[string]string{
				"base_asset":        formanceAsset(base),
				"base_amount":       smallestUnit(t.Amount, base),
				"quote_asset":       formanceAsset(quote),
				"quote_amount":      smallestUnit(t.Total, quote),
				"base_source":       baseFrom,
				"base_destination":  baseTo,
				"quote_source":      quoteFrom,
				"quote_destination": quoteTo,
				"record_id":         t.Id,
				"pair":              t.Pair,
				"side":              string(t.Type),
				"price":             t.Price.String(),
			},
		},
	}, nil
}

// exchangeAccount turns "BTC/USDT" into a valid ledger address segment.
func exchangeAccount(pair string) string {
	return "exchange:" + strings.ReplaceAll(pair, "/", "_")
}

// smallestUnit converts a human amount to the asset's integer unit, truncating extra digits.
func smallestUnit(amount decimal.Decimal, symbol string) string {
	return amount.Abs().Shift(int32(precisionFor(symbol))).BigInt().String()
}

func strPtr(s string) *string { return &s }
