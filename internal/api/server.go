package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/browse_agent/internal/consent"
	"github.com/dgnsrekt/browse_agent/internal/shell"
	"github.com/dgnsrekt/browse_agent/internal/store"
	"github.com/dgnsrekt/browse_agent/internal/tabs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Service interface {
	ListTabs(ctx context.Context) ([]tabs.TabState, error)
	OpenTab(ctx context.Context, url string) (int, error)
	CloseTab(ctx context.Context, index int) (bool, error)
	SetActive(ctx context.Context, index int) error
	Navigate(ctx context.Context, text string) error
	PerformSearch(ctx context.Context, query, engine string, lucky bool) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Reload(ctx context.Context) error
	Stop(ctx context.Context) error
	Home(ctx context.Context) error
	SearchEngine() string
	SetSearchEngine(name string) string
	ListHistory(ctx context.Context, limit int) ([]store.HistoryEntry, error)
	ClearHistory(ctx context.Context) error
	ListCredentials(ctx context.Context, domain string) ([]store.Credential, error)
	DeleteCredential(ctx context.Context, url, username string) error
	ClearCredentials(ctx context.Context) error
	PendingConsents(ctx context.Context) ([]consent.Request, error)
	ResolveConsent(ctx context.Context, id, outcome string) error
	SaveSession(ctx context.Context) error
}

// NewServer builds the HTTP surface. events, when non-nil, is mounted at
// /api/v1/events as a raw websocket endpoint outside the huma API.
func NewServer(svc Service, events http.Handler) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Browse Agent Shell API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	if events != nil {
		router.Get("/api/v1/events", events.ServeHTTP)
	}

	registerTabHandlers(api, svc)
	registerNavigationHandlers(api, svc)
	registerHistoryHandlers(api, svc)
	registerCredentialHandlers(api, svc)
	registerSessionHandlers(api, svc)
	registerMiscHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *shell.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case shell.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case shell.CodeNotFound:
			return huma.Error404NotFound(coded.Message)
		case shell.CodeEngineUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
