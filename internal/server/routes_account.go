package server

import (
	"context"
	"net/http"

	broker "brokerdesk-go/internal/api"
	"brokerdesk-go/internal/models"

	"github.com/danielgtaylor/huma/v2"
)

func registerAccountHandlers(api huma.API, svc *broker.BrokerService) {
	huma.Register(api, huma.Operation{OperationID: "list-users", Method: http.MethodGet, Path: apiPrefix + "/users", Summary: "List all users", Tags: []string{"Users"}, Security: bearerAuth},
		func(ctx context.Context, input *struct{}) (*listOutput[models.User], error) {
			return list(svc.ListUsers(ctx, principalFrom(ctx)))
		})

	huma.Register(api, huma.Operation{OperationID: "update-user", Method: http.MethodPatch, Path: apiPrefix + "/users/{id}", Summary: "Rename a user or change their role", Tags: []string{"Users"}, Security: bearerAuth},
		func(ctx context.Context, input *struct {
			Id   string `path:"id"`
			Body broker.UserUpdate
		}) (*resultOutput[models.User], error) {
			return respond(svc.UpdateUser(ctx, principalFrom(ctx), input.Id, input.Body))
		})

	huma.Register(api, huma.Operation{OperationID: "toggle-role", Method: http.MethodPost, Path: apiPrefix + "/users/{id}/role", Summary: "Toggle a user between user and admin", Tags: []string{"Users"}, Security: bearerAuth},
		func(ctx context.Context, input *struct {
			Id string `path:"id"`
		}) (*resultOutput[models.User], error) {
			return respond(svc.ToggleRole(ctx, principalFrom(ctx), input.Id))
		})

	huma.Register(api, huma.Operation{OperationID: "get-balances", Method: http.MethodGet, Path: apiPrefix + "/balances", Summary: "Balances per asset", Tags: []string{"Balances"}, Security: bearerAuth},
		func(ctx context.Context, input *struct {
			UserId string `query:"userId" doc:"Another user's balances (admins only)"`
		}) (*bodyOutput[models.Balances], error) {
			b, err := svc.GetBalances(ctx, principalFrom(ctx), input.UserId)
			if err != nil {
				return nil, mapErr(err)
			}
			return &bodyOutput[models.Balances]{Body: b}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-movements", Method: http.MethodGet, Path: apiPrefix + "/movements", Summary: "Balance movement history, newest first", Tags: []string{"Balances"}, Security: bearerAuth},
		func(ctx context.Context, input *struct {
			UserId string `query:"userId" doc:"Another user's history (admins only)"`
			Asset  string `query:"asset"`
			Limit  int    `query:"limit" minimum:"0"`
			Offset int    `query:"offset" minimum:"0"`
		}) (*listOutput[models.BalanceMovement], error) {
			return list(svc.ListMovements(ctx, principalFrom(ctx), input.UserId, input.Asset, input.Limit, input.Offset))
		})

	huma.Register(api, huma.Operation{OperationID: "get-portfolio", Method: http.MethodGet, Path: apiPrefix + "/portfolio", Summary: "Balances valued in USD", Tags: []string{"Balances"}, Security: bearerAuth},
		func(ctx context.Context, input *struct{}) (*bodyOutput[*models.Portfolio], error) {
			pf, err := svc.Portfolio(ctx, principalFrom(ctx))
			if err != nil {
				return nil, mapErr(err)
			}
			return &bodyOutput[*models.Portfolio]{Body: pf}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-dashboard", Method: http.MethodGet, Path: apiPrefix + "/dashboard", Summary: "Pending work and unread counters", Tags: []string{"Balances"}, Security: bearerAuth},
		func(ctx context.Context, input *struct{}) (*bodyOutput[*models.DashboardStats], error) {
			stats, err := svc.DashboardStats(ctx, principalFrom(ctx))
			if err != nil {
				return nil, mapErr(err)
			}
			return &bodyOutput[*models.DashboardStats]{Body: stats}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "deposit-instructions", Method: http.MethodGet, Path: apiPrefix + "/deposit-instructions/{currency}", Summary: "Where to send a deposit", Tags: []string{"Deposits"}, Security: bearerAuth},
		func(ctx context.Context, input *struct {
			Currency string `path:"currency"`
		}) (*bodyOutput[*models.DepositInstructions], error) {
			in, err := svc.DepositInstructions(ctx, input.Currency)
			if err != nil {
				return nil, mapErr(err)
			}
			return &bodyOutput[*models.DepositInstructions]{Body: in}, nil
		})
}
