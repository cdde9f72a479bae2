// Package shell is the service layer the UI-facing API calls into. It ties
// the tab registry, stores, interceptor, consent broker, and credential
// bridge together and owns shell-wide state like the selected search
// engine.
package shell

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgnsrekt/browse_agent/internal/bridge"
	"github.com/dgnsrekt/browse_agent/internal/consent"
	"github.com/dgnsrekt/browse_agent/internal/history"
	"github.com/dgnsrekt/browse_agent/internal/navigation"
	"github.com/dgnsrekt/browse_agent/internal/session"
	"github.com/dgnsrekt/browse_agent/internal/store"
	"github.com/dgnsrekt/browse_agent/internal/tabs"
)

type Service struct {
	reg      *tabs.Registry
	recorder *history.Recorder
	snaps    *session.Snapshotter
	store    *store.Store
	consents *consent.Broker

	mu           sync.Mutex
	searchEngine string
}

func NewService(reg *tabs.Registry, rec *history.Recorder, snaps *session.Snapshotter, st *store.Store, consents *consent.Broker, searchEngine string) *Service {
	if !navigation.KnownEngine(searchEngine) {
		searchEngine = navigation.DefaultEngine
	}
	return &Service{
		reg:          reg,
		recorder:     rec,
		snaps:        snaps,
		store:        st,
		consents:     consents,
		searchEngine: searchEngine,
	}
}

// SearchEngine returns the selected search-engine preference.
func (s *Service) SearchEngine() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchEngine
}

// SetSearchEngine updates the preference. Unknown names fall back to the
// default engine, matching the interceptor's template lookup.
func (s *Service) SetSearchEngine(name string) string {
	if !navigation.KnownEngine(name) {
		slog.Warn("unknown search engine, falling back", "requested", name, "fallback", navigation.DefaultEngine)
		name = navigation.DefaultEngine
	}
	s.mu.Lock()
	s.searchEngine = name
	s.mu.Unlock()
	return name
}

// --- Tabs ---

func (s *Service) ListTabs(ctx context.Context) ([]tabs.TabState, error) {
	return s.reg.List(), nil
}

func (s *Service) OpenTab(ctx context.Context, url string) (int, error) {
	idx, err := s.reg.OpenTab(ctx, url)
	if err != nil {
		return 0, newError(CodeEngineUnavailable, "open tab failed", err)
	}
	return idx, nil
}

// CloseTab reports whether a tab was actually closed; closing the last tab
// or a stale index is a no-op.
func (s *Service) CloseTab(ctx context.Context, index int) (bool, error) {
	return s.reg.CloseTab(ctx, index), nil
}

func (s *Service) SetActive(ctx context.Context, index int) error {
	s.reg.SetActive(index)
	return nil
}

// --- Navigation ---

// Navigate handles URL-bar input on the active tab: full URLs load as-is,
// scheme-less host-ish text gets http:// prepended, and anything that looks
// like a question becomes a search with the selected engine.
func (s *Service) Navigate(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return newError(CodeValidation, "navigation text is required", nil)
	}
	if navigation.LooksLikeSearch(text) {
		return s.PerformSearch(ctx, text, "", false)
	}
	if !strings.Contains(text, "://") {
		text = "http://" + text
	}
	return s.loadActive(ctx, text)
}

func (s *Service) PerformSearch(ctx context.Context, query, engine string, lucky bool) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return newError(CodeValidation, "query is required", nil)
	}
	if engine == "" {
		engine = s.SearchEngine()
	}
	var target string
	if lucky {
		target = navigation.LuckySearchURL(query, engine)
	} else {
		target = navigation.SearchURL(query, engine)
	}
	return s.loadActive(ctx, target)
}

func (s *Service) Back(ctx context.Context) error    { return s.activeOp(s.reg.Back(ctx)) }
func (s *Service) Forward(ctx context.Context) error { return s.activeOp(s.reg.Forward(ctx)) }
func (s *Service) Reload(ctx context.Context) error  { return s.activeOp(s.reg.Reload(ctx)) }
func (s *Service) Stop(ctx context.Context) error    { return s.activeOp(s.reg.Stop(ctx)) }
func (s *Service) Home(ctx context.Context) error    { return s.activeOp(s.reg.Home(ctx)) }

func (s *Service) loadActive(ctx context.Context, url string) error {
	return s.activeOp(s.reg.Navigate(ctx, url))
}

func (s *Service) activeOp(err error) error {
	if err != nil {
		return newError(CodeEngineUnavailable, "active tab operation failed", err)
	}
	return nil
}

// --- History ---

func (s *Service) ListHistory(ctx context.Context, limit int) ([]store.HistoryEntry, error) {
	entries, err := s.recorder.List(limit)
	if err != nil {
		return nil, newError(CodeStoreFailure, "list history failed", err)
	}
	return entries, nil
}

func (s *Service) ClearHistory(ctx context.Context) error {
	if err := s.recorder.Clear(); err != nil {
		return newError(CodeStoreFailure, "clear history failed", err)
	}
	return nil
}

// --- Credentials ---

func (s *Service) ListCredentials(ctx context.Context, domain string) ([]store.Credential, error) {
	creds, err := s.store.ListCredentials(domain)
	if err != nil {
		return nil, newError(CodeStoreFailure, "list credentials failed", err)
	}
	return creds, nil
}

func (s *Service) DeleteCredential(ctx context.Context, url, username string) error {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(username) == "" {
		return newError(CodeValidation, "url and username are required", nil)
	}
	if err := s.store.DeleteCredential(url, username); err != nil {
		return newError(CodeStoreFailure, "delete credential failed", err)
	}
	return nil
}

func (s *Service) ClearCredentials(ctx context.Context) error {
	if err := s.store.ClearCredentials(); err != nil {
		return newError(CodeStoreFailure, "clear credentials failed", err)
	}
	return nil
}

// --- Consent ---

func (s *Service) PendingConsents(ctx context.Context) ([]consent.Request, error) {
	return s.consents.Pending(), nil
}

func (s *Service) ResolveConsent(ctx context.Context, id, outcome string) error {
	o, ok := bridge.ParseOutcome(outcome)
	if !ok {
		return newError(CodeValidation, "outcome must be save, never, or not_now", nil)
	}
	if !s.consents.Resolve(id, o) {
		return newError(CodeNotFound, "no pending consent with id "+id, nil)
	}
	return nil
}

// --- Session ---

func (s *Service) SaveSession(ctx context.Context) error {
	if err := s.snaps.Save(s.reg); err != nil {
		return newError(CodeStoreFailure, "save session failed", err)
	}
	return nil
}
