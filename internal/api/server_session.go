package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func registerSessionHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "save-session", Method: http.MethodPost, Path: "/api/v1/session/save", Summary: "Snapshot the current tab set to disk", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.SaveSession(ctx); err != nil {
				return nil, mapErr(err)
			}
			return okStatus(), nil
		})
}
