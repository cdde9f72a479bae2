package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/browse_agent/internal/tabs"
)

func registerTabHandlers(api huma.API, svc Service) {
	type tabListOutput struct {
		Body struct {
			Tabs   []tabs.TabState `json:"tabs"`
			Active int             `json:"active"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List open tabs", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*tabListOutput, error) {
			states, err := svc.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &tabListOutput{}
			out.Body.Tabs = states
			out.Body.Active = -1
			for _, st := range states {
				if st.Active {
					out.Body.Active = st.Index
				}
			}
			return out, nil
		})

	type openTabInput struct {
		Body struct {
			URL string `json:"url,omitempty" doc:"Initial URL. Omit to open the home page."`
		}
	}
	type openTabOutput struct {
		Body struct {
			Index int `json:"index"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "open-tab", Method: http.MethodPost, Path: "/api/v1/tabs", Summary: "Open a new tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *openTabInput) (*openTabOutput, error) {
			idx, err := svc.OpenTab(ctx, input.Body.URL)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &openTabOutput{}
			out.Body.Index = idx
			return out, nil
		})

	type tabIndexInput struct {
		Index int `path:"index"`
	}
	type closeTabOutput struct {
		Body struct {
			Closed bool `json:"closed"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "close-tab", Method: http.MethodDelete, Path: "/api/v1/tabs/{index}", Summary: "Close a tab. Closing the last remaining tab is a no-op.", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIndexInput) (*closeTabOutput, error) {
			closed, err := svc.CloseTab(ctx, input.Index)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &closeTabOutput{}
			out.Body.Closed = closed
			return out, nil
		})

	type setActiveInput struct {
		Body struct {
			Index int `json:"index"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-active-tab", Method: http.MethodPut, Path: "/api/v1/tabs/active", Summary: "Switch the active tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *setActiveInput) (*statusOutput, error) {
			if err := svc.SetActive(ctx, input.Body.Index); err != nil {
				return nil, mapErr(err)
			}
			return okStatus(), nil
		})
}
