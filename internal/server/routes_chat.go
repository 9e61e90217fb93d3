package server

import (
	"context"
	"net/http"

	broker "brokerdesk-go/internal/api"
	"brokerdesk-go/internal/models"

	"github.com/danielgtaylor/huma/v2"
)

type mailboxInput struct {
	UserId string `query:"userId" doc:"Mailbox owner; required for admins, ignored for users"`
}

func registerChatHandlers(api huma.API, svc *broker.BrokerService) {
	huma.Register(api, huma.Operation{OperationID: "list-messages", Method: http.MethodGet, Path: apiPrefix + "/chat/messages", Summary: "Messages in one mailbox, oldest first", Tags: []string{"Chat"}, Security: bearerAuth},
		func(ctx context.Context, input *mailboxInput) (*listOutput[models.ChatMessage], error) {
			return list(svc.Messages(ctx, principalFrom(ctx), input.UserId))
		})

	huma.Register(api, huma.Operation{OperationID: "send-message", Method: http.MethodPost, Path: apiPrefix + "/chat/messages", Summary: "Post a message", Tags: []string{"Chat"}, Security: bearerAuth, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *struct {
			Body struct {
				UserId string `json:"userId,omitempty" doc:"Mailbox owner when an admin replies"`
				Text   string `json:"text" doc:"Message text"`
			}
		}) (*resultOutput[models.ChatMessage], error) {
			return respond(svc.SendMessage(ctx, principalFrom(ctx), input.Body.UserId, input.Body.Text))
		})

	huma.Register(api, huma.Operation{OperationID: "list-conversations", Method: http.MethodGet, Path: apiPrefix + "/chat/conversations", Summary: "Admin inbox, latest activity first", Tags: []string{"Chat"}, Security: bearerAuth},
		func(ctx context.Context, input *struct{}) (*listOutput[models.Conversation], error) {
			return list(svc.Conversations(ctx, principalFrom(ctx)))
		})

	type countOutput struct {
		Body struct {
			Count int `json:"count"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "mark-read", Method: http.MethodPost, Path: apiPrefix + "/chat/read", Summary: "Mark the other side's messages as read", Tags: []string{"Chat"}, Security: bearerAuth},
		func(ctx context.Context, input *mailboxInput) (*countOutput, error) {
			n, err := svc.MarkAsRead(ctx, principalFrom(ctx), input.UserId)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &countOutput{}
			out.Body.Count = n
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "unread-count", Method: http.MethodGet, Path: apiPrefix + "/chat/unread", Summary: "Unread messages for the caller", Tags: []string{"Chat"}, Security: bearerAuth},
		func(ctx context.Context, input *struct{}) (*countOutput, error) {
			n, err := svc.UnreadCount(ctx, principalFrom(ctx))
			if err != nil {
				return nil, mapErr(err)
			}
			out := &countOutput{}
			out.Body.Count = n
			return out, nil
		})
}
