package server

import (
	"context"
	"net/http"

	broker "brokerdesk-go/internal/api"
	"brokerdesk-go/internal/models"

	"github.com/danielgtaylor/huma/v2"
)

func registerSessionHandlers(api huma.API, svc *broker.BrokerService) {
	huma.Register(api, huma.Operation{OperationID: "register", Method: http.MethodPost, Path: apiPrefix + "/auth/register", Summary: "Register a new user", Tags: []string{"Auth"}, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *struct {
			Body broker.RegisterRequest
		}) (*resultOutput[models.User], error) {
			return respond(svc.Register(ctx, input.Body))
		})

	type loginOutput struct {
		Body *models.LoginResult
	}

	huma.Register(api, huma.Operation{OperationID: "login", Method: http.MethodPost, Path: apiPrefix + "/auth/login", Summary: "Log in and obtain a session token", Tags: []string{"Auth"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Email    string `json:"email" doc:"Account email"`
				Password string `json:"password" doc:"Account password"`
			}
		}) (*loginOutput, error) {
			res, err := svc.Login(ctx, input.Body.Email, input.Body.Password)
			if err != nil {
				return nil, mapErr(err)
			}
			return &loginOutput{Body: res}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "logout", Method: http.MethodPost, Path: apiPrefix + "/auth/logout", Summary: "Revoke the current session", Tags: []string{"Auth"}, Security: bearerAuth, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *struct{}) (*struct{}, error) {
			if err := svc.Logout(ctx, principalFrom(ctx)); err != nil {
				return nil, mapErr(err)
			}
			return nil, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-me", Method: http.MethodGet, Path: apiPrefix + "/me", Summary: "Current user", Tags: []string{"Auth"}, Security: bearerAuth},
		func(ctx context.Context, input *struct{}) (*bodyOutput[*models.User], error) {
			u, err := svc.CurrentUser(ctx, principalFrom(ctx))
			if err != nil {
				return nil, mapErr(err)
			}
			return &bodyOutput[*models.User]{Body: u}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "update-me", Method: http.MethodPatch, Path: apiPrefix + "/me", Summary: "Update display name or password", Tags: []string{"Auth"}, Security: bearerAuth},
		func(ctx context.Context, input *struct {
			Body broker.ProfileUpdate
		}) (*resultOutput[models.User], error) {
			return respond(svc.UpdateProfile(ctx, principalFrom(ctx), input.Body))
		})
}
