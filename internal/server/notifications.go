package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"shiptrack/internal/domain"
	"shiptrack/internal/engine"
)

type Inbox struct {
	UnreadCount   int                   `json:"unread_count"`
	Counts        map[string]int        `json:"counts"`
	LastMutation  engine.Mutation       `json:"last_mutation"`
	Notifications []domain.Notification `json:"notifications"`
}

type EventList struct {
	Items []domain.Event `json:"items"`
}

func inboxBody(in *engine.Inbox, f engine.InboxFilter) Inbox {
	return Inbox{
		UnreadCount:   in.UnreadCount(),
		Counts:        in.Counts(),
		LastMutation:  in.LastMutation(),
		Notifications: in.Notifications(f),
	}
}

func registerNotifications(api huma.API, cfg Config) {
	in := cfg.Session.Inbox

	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List notifications",
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type" enum:"all,mention,comment,system,action,update"`
		UnreadOnly bool   `query:"unread_only"`
	}) (*struct {
		Body Inbox `json:"body"`
	}, error) {
		return &struct {
			Body Inbox `json:"body"`
		}{Body: inboxBody(in, engine.InboxFilter{Type: input.Type, UnreadOnly: input.UnreadOnly})}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification-read",
		Method:      http.MethodPost,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark a notification as read",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body Inbox `json:"body"`
	}, error) {
		if err := in.MarkRead(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body Inbox `json:"body"`
		}{Body: inboxBody(in, engine.InboxFilter{})}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-all-notifications-read",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark every notification as read",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body Inbox `json:"body"`
	}, error) {
		if err := in.MarkAllRead(ctx); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body Inbox `json:"body"`
		}{Body: inboxBody(in, engine.InboxFilter{})}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-notification",
		Method:      http.MethodDelete,
		Path:        "/notifications/{id}",
		Summary:     "Delete a notification",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body Inbox `json:"body"`
	}, error) {
		if err := in.Delete(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body Inbox `json:"body"`
		}{Body: inboxBody(in, engine.InboxFilter{})}, nil
	})
}

func registerEvents(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
	}, func(ctx context.Context, input *struct {
		EntityKind string `query:"entity_kind" enum:"notification,dataset"`
		Limit      int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body EventList `json:"body"`
	}, error) {
		items, err := cfg.Session.Repo.LatestEvents(ctx, input.EntityKind, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Event{}
		}
		return &struct {
			Body EventList `json:"body"`
		}{Body: EventList{Items: items}}, nil
	})
}
