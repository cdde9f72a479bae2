package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/browse_agent/internal/consent"
	"github.com/dgnsrekt/browse_agent/internal/store"
)

func registerCredentialHandlers(api huma.API, svc Service) {
	type credListInput struct {
		Domain string `query:"domain" doc:"Filter by site domain. Omit to list all."`
	}
	type credListOutput struct {
		Body struct {
			Credentials []store.Credential `json:"credentials"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-credentials", Method: http.MethodGet, Path: "/api/v1/credentials", Summary: "List saved credentials. Passwords are never returned.", Tags: []string{"Credentials"}},
		func(ctx context.Context, input *credListInput) (*credListOutput, error) {
			creds, err := svc.ListCredentials(ctx, input.Domain)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &credListOutput{}
			out.Body.Credentials = creds
			return out, nil
		})

	type credDeleteInput struct {
		Body struct {
			URL      string `json:"url"`
			Username string `json:"username"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-credential", Method: http.MethodDelete, Path: "/api/v1/credentials", Summary: "Delete one saved credential", Tags: []string{"Credentials"}},
		func(ctx context.Context, input *credDeleteInput) (*statusOutput, error) {
			if err := svc.DeleteCredential(ctx, input.Body.URL, input.Body.Username); err != nil {
				return nil, mapErr(err)
			}
			return okStatus(), nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-credentials", Method: http.MethodDelete, Path: "/api/v1/credentials/all", Summary: "Delete all saved credentials", Tags: []string{"Credentials"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.ClearCredentials(ctx); err != nil {
				return nil, mapErr(err)
			}
			return okStatus(), nil
		})

	type consentListOutput struct {
		Body struct {
			Pending []consent.Request `json:"pending"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-consents", Method: http.MethodGet, Path: "/api/v1/consent", Summary: "List pending save-credential prompts, oldest first", Tags: []string{"Credentials"}},
		func(ctx context.Context, input *struct{}) (*consentListOutput, error) {
			pending, err := svc.PendingConsents(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &consentListOutput{}
			out.Body.Pending = pending
			return out, nil
		})

	type consentResolveInput struct {
		ID   string `path:"id"`
		Body struct {
			Outcome string `json:"outcome" enum:"save,never,not_now" doc:"save persists the credential; never and not_now discard it"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "resolve-consent", Method: http.MethodPost, Path: "/api/v1/consent/{id}", Summary: "Resolve a pending save-credential prompt", Tags: []string{"Credentials"}},
		func(ctx context.Context, input *consentResolveInput) (*statusOutput, error) {
			if err := svc.ResolveConsent(ctx, input.ID, input.Body.Outcome); err != nil {
				return nil, mapErr(err)
			}
			return okStatus(), nil
		})
}
