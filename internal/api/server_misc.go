package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
			Tabs   int    `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			states, err := svc.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Tabs = len(states)
			return out, nil
		})
}
