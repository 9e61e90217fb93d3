package server

import (
	"context"
	"net/http"

	broker "brokerdesk-go/internal/api"
	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"
)

type listInput struct {
	Status string `query:"status" doc:"Only records in this status: pending, approved, rejected or completed"`
	UserId string `query:"userId" doc:"Only this user's records (admins only; ignored for users)"`
	Limit  int    `query:"limit" minimum:"0" doc:"Page size, 10 when omitted"`
	Offset int    `query:"offset" minimum:"0"`
}

func (in *listInput) filter() store.RecordFilter {
	return store.RecordFilter{UserId: in.UserId, Status: models.Status(in.Status), Limit: in.Limit, Offset: in.Offset}
}

type transitionInput struct {
	Id   string `path:"id"`
	Body *struct {
		Note string `json:"note,omitempty" doc:"Admin note stored on the record"`
	} `required:"false"`
}

func (in *transitionInput) note() string {
	if in.Body == nil {
		return ""
	}
	return in.Body.Note
}

// registerTransition wires one admin decision on a pending record.
func registerTransition[T any](api huma.API, operationId, path, summary, tag string, fn func(ctx context.Context, p models.Principal, id, note string) (*broker.Result[T], error)) {
	huma.Register(api, huma.Operation{OperationID: operationId, Method: http.MethodPost, Path: apiPrefix + path, Summary: summary, Tags: []string{tag}, Security: bearerAuth},
		func(ctx context.Context, input *transitionInput) (*resultOutput[T], error) {
			return respond(fn(ctx, principalFrom(ctx), input.Id, input.note()))
		})
}

func registerDepositHandlers(api huma.API, svc *broker.BrokerService) {
	huma.Register(api, huma.Operation{OperationID: "list-deposits", Method: http.MethodGet, Path: apiPrefix + "/deposits", Summary: "List deposits", Tags: []string{"Deposits"}, Security: bearerAuth},
		func(ctx context.Context, input *listInput) (*listOutput[models.Deposit], error) {
			return list(svc.ListDeposits(ctx, principalFrom(ctx), input.filter()))
		})

	huma.Register(api, huma.Operation{OperationID: "create-deposit", Method: http.MethodPost, Path: apiPrefix + "/deposits", Summary: "Submit a deposit request", Tags: []string{"Deposits"}, Security: bearerAuth, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *struct {
			Body broker.DepositRequest
		}) (*resultOutput[models.Deposit], error) {
			return respond(svc.CreateDeposit(ctx, principalFrom(ctx), input.Body))
		})

	registerTransition(api, "approve-deposit", "/deposits/{id}/approve", "Approve a deposit and credit the balance", "Deposits", svc.ApproveDeposit)
	registerTransition(api, "reject-deposit", "/deposits/{id}/reject", "Reject a deposit", "Deposits", svc.RejectDeposit)
}

func registerWithdrawalHandlers(api huma.API, svc *broker.BrokerService) {
	huma.Register(api, huma.Operation{OperationID: "list-withdrawals", Method: http.MethodGet, Path: apiPrefix + "/withdrawals", Summary: "List withdrawals", Tags: []string{"Withdrawals"}, Security: bearerAuth},
		func(ctx context.Context, input *listInput) (*listOutput[models.Withdrawal], error) {
			return list(svc.ListWithdrawals(ctx, principalFrom(ctx), input.filter()))
		})

	huma.Register(api, huma.Operation{OperationID: "create-withdrawal", Method: http.MethodPost, Path: apiPrefix + "/withdrawals", Summary: "Submit a withdrawal request", Tags: []string{"Withdrawals"}, Security: bearerAuth, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *struct {
			Body broker.WithdrawalRequest
		}) (*resultOutput[models.Withdrawal], error) {
			return respond(svc.CreateWithdrawal(ctx, principalFrom(ctx), input.Body))
		})

	registerTransition(api, "approve-withdrawal", "/withdrawals/{id}/approve", "Approve a withdrawal and debit the balance", "Withdrawals", svc.ApproveWithdrawal)
	registerTransition(api, "reject-withdrawal", "/withdrawals/{id}/reject", "Reject a withdrawal", "Withdrawals", svc.RejectWithdrawal)
}

func registerTradeHandlers(api huma.API, svc *broker.BrokerService) {
	huma.Register(api, huma.Operation{OperationID: "list-trades", Method: http.MethodGet, Path: apiPrefix + "/trades", Summary: "List trades", Tags: []string{"Trades"}, Security: bearerAuth},
		func(ctx context.Context, input *listInput) (*listOutput[models.Trade], error) {
			return list(svc.ListTrades(ctx, principalFrom(ctx), input.filter()))
		})

	type quote struct {
		Pair   string           `json:"pair"`
		Market models.Market    `json:"market"`
		Price  decimal.Decimal  `json:"price"`
		Type   models.TradeType `json:"type"`
		models.TradeValue
	}

	huma.Register(api, huma.Operation{OperationID: "quote-trade", Method: http.MethodGet, Path: apiPrefix + "/trades/quote", Summary: "Preview price, total and fee for a trade", Tags: []string{"Trades"}, Security: bearerAuth},
		func(ctx context.Context, input *struct {
			Pair   string `query:"pair" required:"true" doc:"Trading pair, e.g. BTC/USDT or EUR/USD"`
			Amount string `query:"amount" required:"true" doc:"Base amount"`
			Type   string `query:"type" enum:"buy,sell" default:"buy"`
		}) (*bodyOutput[quote], error) {
			amount, err := decimal.NewFromString(input.Amount)
			if err != nil || !amount.IsPositive() {
				return nil, huma.Error400BadRequest("Please enter a valid amount")
			}
			tradeType := models.TradeType(input.Type)
			value, price, market, err := svc.QuoteTrade(input.Pair, amount, tradeType)
			if err != nil {
				return nil, huma.Error400BadRequest("Unsupported trading pair " + input.Pair)
			}
			return &bodyOutput[quote]{Body: quote{Pair: input.Pair, Market: market, Price: price, Type: tradeType, TradeValue: value}}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "create-trade", Method: http.MethodPost, Path: apiPrefix + "/trades", Summary: "Submit a trade request", Tags: []string{"Trades"}, Security: bearerAuth, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *struct {
			Body broker.TradeRequest
		}) (*resultOutput[models.Trade], error) {
			return respond(svc.CreateTrade(ctx, principalFrom(ctx), input.Body))
		})

	registerTransition(api, "execute-trade", "/trades/{id}/execute", "Execute a trade and move both legs", "Trades", svc.ExecuteTrade)
	registerTransition(api, "reject-trade", "/trades/{id}/reject", "Reject a trade", "Trades", svc.RejectTrade)
}

func registerKycHandlers(api huma.API, svc *broker.BrokerService) {
	huma.Register(api, huma.Operation{OperationID: "list-kyc", Method: http.MethodGet, Path: apiPrefix + "/kyc", Summary: "List verification requests", Tags: []string{"KYC"}, Security: bearerAuth},
		func(ctx context.Context, input *listInput) (*listOutput[models.KycRequest], error) {
			return list(svc.ListKycRequests(ctx, principalFrom(ctx), input.filter()))
		})

	huma.Register(api, huma.Operation{OperationID: "submit-kyc", Method: http.MethodPost, Path: apiPrefix + "/kyc", Summary: "Submit identity documents", Tags: []string{"KYC"}, Security: bearerAuth, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *struct {
			Body broker.KycSubmission
		}) (*resultOutput[models.KycRequest], error) {
			return respond(svc.SubmitKyc(ctx, principalFrom(ctx), input.Body))
		})

	kycDecision := func(approve bool) func(context.Context, models.Principal, string, string) (*broker.Result[models.KycRequest], error) {
		return func(ctx context.Context, p models.Principal, id, note string) (*broker.Result[models.KycRequest], error) {
			return svc.UpdateKycStatus(ctx, p, id, approve, note)
		}
	}
	registerTransition(api, "approve-kyc", "/kyc/{id}/approve", "Approve a verification request", "KYC", kycDecision(true))
	registerTransition(api, "reject-kyc", "/kyc/{id}/reject", "Reject a verification request", "KYC", kycDecision(false))
}
