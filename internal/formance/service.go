// Package formance mirrors committed balance movements into a Formance ledger.
// The local store stays authoritative; the ledger is a write-behind audit copy.
package formance

import (
	"context"
	"errors"
	"fmt"

	"brokerdesk-go/internal/metrics"
	"brokerdesk-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

const defaultLedgerName = "brokerdesk"

// assetPrecision maps asset symbols to their decimal precision.
var assetPrecision = map[string]int{
	"USD":  2,
	"EUR":  2,
	"GBP":  2,
	"AUD":  2,
	"CAD":  2,
	"CHF":  2,
	"NZD":  2,
	"ZAR":  2,
	"JPY":  2,
	"USDT": 6,
	"BTC":  8,
	"ETH":  18,
}

// Service posts one Numscript transaction per settled record.
type Service struct {
	client  *v3.Formance
	ledger  string
	metrics *metrics.Metrics
}

// NewService connects to the stack and creates the ledger if it doesn't already exist.
func NewService(ctx context.Context, cfg models.FormanceConfig, m *metrics.Metrics) (*Service, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("formance config requires StackURL, ClientID, and ClientSecret")
	}
	if cfg.LedgerName == "" {
		cfg.LedgerName = defaultLedgerName
	}

	zap.L().Info("Connecting to Formance Stack",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", cfg.LedgerName))

	client := v3.New(
		v3.WithServerURL(cfg.StackURL),
		v3.WithSecurity(shared.Security{
			ClientID:     v3.Pointer(cfg.ClientID),
			ClientSecret: v3.Pointer(cfg.ClientSecret),
		}),
	)

	svc := &Service{client: client, ledger: cfg.LedgerName, metrics: m}
	if err := svc.ensureLedger(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger exists: %w", err)
	}

	zap.L().Info("Formance ledger mirror initialized", zap.String("ledger", cfg.LedgerName))
	return svc, nil
}

func (s *Service) ensureLedger(ctx context.Context) error {
	_, err := s.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: s.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{
				"application": "brokerdesk",
			},
		},
	})
	if err != nil {
		var apiErr *sdkerrors.V2ErrorResponse
		if errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumLedgerAlreadyExists {
			zap.L().Info("Ledger already exists", zap.String("ledger", s.ledger))
			return nil
		}
		return err
	}
	zap.L().Info("Ledger created", zap.String("ledger", s.ledger))
	return nil
}

// Close is a no-op (HTTP client needs no teardown).
func (s *Service) Close() {}

// formanceAsset returns the Formance UMN notation, e.g. "BTC/8".
func formanceAsset(symbol string) string {
	return fmt.Sprintf("%s/%d", symbol, precisionFor(symbol))
}

func precisionFor(symbol string) int {
	if p, ok := assetPrecision[symbol]; ok {
		return p
	}
	return 6
}

// isConflictError checks whether a Formance SDK error is a CONFLICT (duplicate reference).
func isConflictError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumConflict
}
