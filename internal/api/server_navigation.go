package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/browse_agent/internal/navigation"
)

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func okStatus() *statusOutput {
	out := &statusOutput{}
	out.Body.Status = "ok"
	return out
}

func registerNavigationHandlers(api huma.API, svc Service) {
	type navigateInput struct {
		Body struct {
			Text string `json:"text" doc:"URL or search text, as typed in the address bar"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "navigate", Method: http.MethodPost, Path: "/api/v1/navigate", Summary: "Navigate the active tab from address-bar text", Tags: []string{"Navigation"}},
		func(ctx context.Context, input *navigateInput) (*statusOutput, error) {
			if err := svc.Navigate(ctx, input.Body.Text); err != nil {
				return nil, mapErr(err)
			}
			return okStatus(), nil
		})

	simple := func(id, path, summary string, fn func(context.Context) error) {
		huma.Register(api, huma.Operation{OperationID: id, Method: http.MethodPost, Path: path, Summary: summary, Tags: []string{"Navigation"}},
			func(ctx context.Context, input *struct{}) (*statusOutput, error) {
				if err := fn(ctx); err != nil {
					return nil, mapErr(err)
				}
				return okStatus(), nil
			})
	}
	simple("nav-back", "/api/v1/navigate/back", "History back on the active tab", svc.Back)
	simple("nav-forward", "/api/v1/navigate/forward", "History forward on the active tab", svc.Forward)
	simple("nav-reload", "/api/v1/navigate/reload", "Reload the active tab", svc.Reload)
	simple("nav-stop", "/api/v1/navigate/stop", "Stop loading the active tab", svc.Stop)
	simple("nav-home", "/api/v1/navigate/home", "Load the home page on the active tab", svc.Home)

	type searchInput struct {
		Body struct {
			Query  string `json:"query"`
			Engine string `json:"engine,omitempty" doc:"Search engine name. Omit to use the selected engine."`
			Lucky  bool   `json:"lucky,omitempty" doc:"Jump to the first result instead of the results page"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "search", Method: http.MethodPost, Path: "/api/v1/search", Summary: "Run a web search on the active tab", Tags: []string{"Navigation"}},
		func(ctx context.Context, input *searchInput) (*statusOutput, error) {
			if err := svc.PerformSearch(ctx, input.Body.Query, input.Body.Engine, input.Body.Lucky); err != nil {
				return nil, mapErr(err)
			}
			return okStatus(), nil
		})

	type engineOutput struct {
		Body struct {
			Engine  string   `json:"engine"`
			Known   []string `json:"known"`
			Default string   `json:"default"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-search-engine", Method: http.MethodGet, Path: "/api/v1/search/engine", Summary: "Get the selected search engine", Tags: []string{"Navigation"}},
		func(ctx context.Context, input *struct{}) (*engineOutput, error) {
			out := &engineOutput{}
			out.Body.Engine = svc.SearchEngine()
			out.Body.Known = navigation.Engines()
			out.Body.Default = navigation.DefaultEngine
			return out, nil
		})

	type setEngineInput struct {
		Body struct {
			Engine string `json:"engine"`
		}
	}
	type setEngineOutput struct {
		Body struct {
			Engine string `json:"engine"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-search-engine", Method: http.MethodPut, Path: "/api/v1/search/engine", Summary: "Set the selected search engine. Unknown names fall back to the default.", Tags: []string{"Navigation"}},
		func(ctx context.Context, input *setEngineInput) (*setEngineOutput, error) {
			out := &setEngineOutput{}
			out.Body.Engine = svc.SetSearchEngine(input.Body.Engine)
			return out, nil
		})
}
