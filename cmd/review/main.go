/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"brokerdesk-go/internal/api"
	"brokerdesk-go/internal/common"
	"brokerdesk-go/internal/config"
	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"go.uber.org/zap"
)

const (
	kindDeposits    = "deposits"
	kindWithdrawals = "withdrawals"
	kindTrades      = "trades"
	kindKyc         = "kyc"
)

// reviewer runs admin decisions from the terminal as a stored admin account.
type reviewer struct {
	svc   *api.BrokerService
	admin models.Principal
}

func (r *reviewer) listPending(ctx context.Context, kind string, limit int) error {
	filter := store.RecordFilter{Status: models.StatusPending, Limit: limit}
	common.PrintHeader("PENDING "+strings.ToUpper(kind), common.WideWidth)

	switch kind {
	case kindDeposits:
		records, err := r.svc.ListDeposits(ctx, r.admin, filter)
		if err != nil {
			return err
		}
		for _, d := range records {
			fmt.Printf("%s  %-28s %16s %-5s tx=%s  %s\n", d.Id, d.UserEmail, d.Amount, d.Currency, common.ShortId(d.TxHash), common.FormatTime(d.CreatedAt))
		}
		fmt.Printf("\n%d pending\n", len(records))
	case kindWithdrawals:
		records, err := r.svc.ListWithdrawals(ctx, r.admin, filter)
		if err != nil {
			return err
		}
		for _, w := range records {
			fmt.Printf("%s  %-28s %16s %-5s to=%s  %s\n", w.Id, w.UserEmail, w.Amount, w.Currency, w.WalletAddress, common.FormatTime(w.CreatedAt))
		}
		fmt.Printf("\n%d pending\n", len(records))
	case kindTrades:
		records, err := r.svc.ListTrades(ctx, r.admin, filter)
		if err != nil {
			return err
		}
		for _, t := range records {
			fmt.Printf("%s  %-28s %-4s %-9s %14s @ %-12s total=%s fee=%s\n", t.Id, t.UserEmail, t.Type, t.Pair, t.Amount, t.Price, t.Total, t.Fee)
		}
		fmt.Printf("\n%d pending\n", len(records))
	case kindKyc:
		records, err := r.svc.ListKycRequests(ctx, r.admin, filter)
		if err != nil {
			return err
		}
		for _, k := range records {
			fmt.Printf("%s  %-28s %-16s %s  %s\n", k.Id, k.UserEmail, k.DocumentType, k.DocumentNumber, common.FormatTime(k.CreatedAt))
		}
		fmt.Printf("\n%d pending\n", len(records))
	default:
		return fmt.Errorf("unknown kind %q: expected deposits, withdrawals, trades or kyc", kind)
	}
	return nil
}

// decide approves (or executes, for trades) or rejects one pending record.
func (r *reviewer) decide(ctx context.Context, kind, id string, approve bool, note string) (string, error) {
	var (
		msg string
		err error
	)
	switch kind {
	case kindDeposits:
		var res *api.Result[models.Deposit]
		if approve {
			res, err = r.svc.ApproveDeposit(ctx, r.admin, id, note)
		} else {
			res, err = r.svc.RejectDeposit(ctx, r.admin, id, note)
		}
		msg = res.Message
	case kindWithdrawals:
		var res *api.Result[models.Withdrawal]
		if approve {
			res, err = r.svc.ApproveWithdrawal(ctx, r.admin, id, note)
		} else {
			res, err = r.svc.RejectWithdrawal(ctx, r.admin, id, note)
		}
		msg = res.Message
	case kindTrades:
		var res *api.Result[models.Trade]
		if approve {
			res, err = r.svc.ExecuteTrade(ctx, r.admin, id, note)
		} else {
			res, err = r.svc.RejectTrade(ctx, r.admin, id, note)
		}
		msg = res.Message
	case kindKyc:
		var res *api.Result[models.KycRequest]
		res, err = r.svc.UpdateKycStatus(ctx, r.admin, id, approve, note)
		msg = res.Message
	default:
		return "", fmt.Errorf("unknown kind %q", kind)
	}
	return msg, err
}

func main() {
	ctx := context.Background()

	kindFlag := flag.String("kind", kindDeposits, "Record kind: deposits, withdrawals, trades or kyc")
	adminFlag := flag.String("admin", "admin@broker.com", "Email of the admin account acting on records")
	approveFlag := flag.String("approve", "", "Approve (execute, for trades) the record with this id")
	rejectFlag := flag.String("reject", "", "Reject the record with this id")
	noteFlag := flag.String("note", "", "Admin note stored on the record")
	limitFlag := flag.Int("limit", 50, "Maximum pending records to list")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	if *approveFlag != "" && *rejectFlag != "" {
		zap.L().Fatal("Use only one of --approve and --reject")
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	admin, err := services.Store.GetUserByEmail(ctx, *adminFlag)
	if err != nil {
		zap.L().Fatal("Admin account not found", zap.String("email", *adminFlag), zap.Error(err))
	}
	if !admin.IsAdmin() {
		zap.L().Fatal("Account is not an admin", zap.String("email", admin.Email))
	}

	r := &reviewer{
		svc:   services.Broker,
		admin: models.Principal{UserId: admin.Id, Role: admin.Role},
	}

	kind := strings.ToLower(*kindFlag)
	if *approveFlag == "" && *rejectFlag == "" {
		// Trades are priced at creation, so listing needs no live prices.
		if err := r.listPending(ctx, kind, *limitFlag); err != nil {
			zap.L().Fatal("Failed to list pending records", zap.String("kind", kind), zap.Error(err))
		}
		return
	}

	id, approve := *approveFlag, true
	if *rejectFlag != "" {
		id, approve = *rejectFlag, false
	}
	msg, err := r.decide(ctx, kind, id, approve, *noteFlag)
	if err != nil {
		zap.L().Error("Decision failed", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
		fmt.Printf("✗ %s\n", msg)
		return
	}
	fmt.Printf("✓ %s\n", msg)
	zap.L().Info("Decision recorded", zap.String("kind", kind), zap.String("id", id), zap.Bool("approve", approve))
}
