package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/browse_agent/internal/store"
)

func registerHistoryHandlers(api huma.API, svc Service) {
	type historyInput struct {
		Limit int `query:"limit" default:"100" doc:"Maximum entries to return, most recent first"`
	}
	type historyOutput struct {
		Body struct {
			Entries []store.HistoryEntry `json:"entries"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-history", Method: http.MethodGet, Path: "/api/v1/history", Summary: "List visit history", Tags: []string{"History"}},
		func(ctx context.Context, input *historyInput) (*historyOutput, error) {
			entries, err := svc.ListHistory(ctx, input.Limit)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &historyOutput{}
			out.Body.Entries = entries
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-history", Method: http.MethodDelete, Path: "/api/v1/history", Summary: "Delete all visit history", Tags: []string{"History"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.ClearHistory(ctx); err != nil {
				return nil, mapErr(err)
			}
			return okStatus(), nil
		})
}
