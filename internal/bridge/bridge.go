// Package bridge detects login-form submissions inside page content, asks
// the user for consent, and persists/autofills credentials. The only
// channel to page content is one-shot script injection plus polling of a
// page-global slot, so the protocol is built around idempotent clear-on-read
// consumption and per-tab poll cancellation.
package bridge

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/dgnsrekt/browse_agent/internal/engine"
	"github.com/dgnsrekt/browse_agent/internal/store"
	"github.com/dgnsrekt/browse_agent/internal/tabs"
)

// Outcome is the user's consent decision for one captured submission.
type Outcome int

const (
	// OutcomeNotNow discards the capture; it may reappear on the next
	// submission.
	OutcomeNotNow Outcome = iota
	// OutcomeNever discards the capture. Future prompts for the site are
	// not suppressed; see DESIGN.md.
	OutcomeNever
	// OutcomeSave persists the credential.
	OutcomeSave
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSave:
		return "save"
	case OutcomeNever:
		return "never"
	default:
		return "not_now"
	}
}

// ParseOutcome maps the chrome layer's wire strings to an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "save":
		return OutcomeSave, true
	case "never":
		return OutcomeNever, true
	case "not_now":
		return OutcomeNotNow, true
	}
	return OutcomeNotNow, false
}

// PendingCredential is one captured form submission awaiting consent.
type PendingCredential struct {
	URL      string `json:"url"`
	Domain   string `json:"domain"`
	Username string `json:"username"`
	Password string `json:"-"`
}

// Prompter presents a consent request and blocks for the decision. Only
// OutcomeSave results in persistence.
type Prompter interface {
	ConfirmSave(ctx context.Context, cred PendingCredential) Outcome
}

type slotResult struct {
	Found    bool   `json:"found"`
	URL      string `json:"url"`
	Domain   string `json:"domain"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type fillResult struct {
	Filled bool `json:"filled"`
}

// Bridge runs one poll goroutine per open tab, keyed by the tab's stable
// ID. Polls are cancelled on tab close and on navigation away, so a stale
// tick never reads a slot belonging to an unloaded page context.
type Bridge struct {
	store         *store.Store
	prompt        Prompter
	pollInterval  time.Duration
	autofillDelay time.Duration
	evalTimeout   time.Duration

	mu     sync.Mutex
	polls  map[string]context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

func New(st *store.Store, prompt Prompter, pollInterval, autofillDelay, evalTimeout time.Duration) *Bridge {
	if evalTimeout <= 0 {
		evalTimeout = 5 * time.Second
	}
	return &Bridge{
		store:         st,
		prompt:        prompt,
		pollInterval:  pollInterval,
		autofillDelay: autofillDelay,
		evalTimeout:   evalTimeout,
		polls:         make(map[string]context.CancelFunc),
	}
}

// Listener adapts the bridge to the tab registry's fanout. Load completion
// arms the page; close and navigation cancel the page's poll.
func (b *Bridge) Listener(reg *tabs.Registry) tabs.Listener {
	return func(ev tabs.Event) {
		switch ev.Type {
		case tabs.EventLoadFinished:
			if !ev.Success {
				return
			}
			surf, ok := reg.SurfaceByID(ev.Tab.ID)
			if !ok {
				return
			}
			b.PageLoaded(ev.Tab.ID, ev.Tab.URL, surf)
		case tabs.EventURLChanged:
			// The old page context is gone; a poll against it must not
			// consume the new page's slot. Re-armed on load-finished.
			b.CancelPoll(ev.Tab.ID)
		case tabs.EventClosed:
			b.CancelPoll(ev.Tab.ID)
		}
	}
}

// PageLoaded arms a freshly loaded page: injects the capture script,
// (re)starts the slot poll, and schedules autofill when the domain has a
// stored credential.
func (b *Bridge) PageLoaded(tabID, pageURL string, surf engine.Surface) {
	domain, ok := captureEligible(pageURL)
	if !ok {
		b.CancelPoll(tabID)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return
	}
	if prev, ok := b.polls[tabID]; ok {
		prev()
	}
	b.polls[tabID] = cancel
	b.mu.Unlock()

	if err := b.eval(ctx, surf, jsInstallCapture(), nil); err != nil {
		// Page may already be navigating away; the poll below will just
		// find nothing.
		slog.Debug("capture install failed", "tab_id", tabID, "error", err)
	}

	b.wg.Add(1)
	go b.pollLoop(ctx, tabID, surf)

	b.wg.Add(1)
	go b.autofill(ctx, tabID, domain, surf)
}

// CancelPoll stops the poll for a tab. Safe to call for unknown tabs.
func (b *Bridge) CancelPoll(tabID string) {
	b.mu.Lock()
	cancel, ok := b.polls[tabID]
	if ok {
		delete(b.polls, tabID)
	}
	b.mu.Unlock()
	if ok {
		cancel()
		slog.Debug("credential poll cancelled", "tab_id", tabID)
	}
}

// Close cancels every poll and waits for their goroutines to drain.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	for id, cancel := range b.polls {
		cancel()
		delete(b.polls, id)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bridge) pollLoop(ctx context.Context, tabID string, surf engine.Surface) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		b.PollOnce(ctx, tabID, surf)
	}
}

// PollOnce evaluates the take-slot script once. A populated slot is
// consumed exactly once (the script clears it in the same evaluation) and
// drives the consent flow. Evaluation failures mean the page context is
// gone and are treated as a silent no-op.
func (b *Bridge) PollOnce(ctx context.Context, tabID string, surf engine.Surface) {
	var out slotResult
	if err := b.eval(ctx, surf, jsTakeSlot(), &out); err != nil {
		slog.Debug("credential poll eval failed", "tab_id", tabID, "error", err)
		return
	}
	if !out.Found {
		return
	}

	cred := PendingCredential{
		URL:      out.URL,
		Domain:   out.Domain,
		Username: out.Username,
		Password: out.Password,
	}
	outcome := b.prompt.ConfirmSave(ctx, cred)
	if outcome != OutcomeSave {
		slog.Info("credential capture discarded", "domain", cred.Domain, "outcome", outcome.String())
		return
	}
	if err := b.store.UpsertCredential(cred.URL, cred.Domain, cred.Username, cred.Password); err != nil {
		slog.Warn("credential save failed", "domain", cred.Domain, "error", err)
		return
	}
	slog.Info("credential saved", "domain", cred.Domain, "username", cred.Username)
}

// autofill waits for the capture script's listeners to settle, then writes
// the domain's most recently used credential into the page.
func (b *Bridge) autofill(ctx context.Context, tabID, domain string, surf engine.Surface) {
	defer b.wg.Done()
	select {
	case <-ctx.Done():
		return
	case <-time.After(b.autofillDelay):
	}

	cred, ok, err := b.store.MostRecentForDomain(domain)
	if err != nil {
		slog.Warn("autofill lookup failed", "domain", domain, "error", err)
		return
	}
	if !ok {
		return
	}

	var out fillResult
	if err := b.eval(ctx, surf, jsAutofill(cred.Username, cred.Password), &out); err != nil {
		slog.Debug("autofill eval failed", "tab_id", tabID, "error", err)
		return
	}
	if !out.Filled {
		return
	}
	if err := b.store.TouchCredential(cred.URL, cred.Username); err != nil {
		slog.Debug("autofill touch failed", "domain", domain, "error", err)
	}
	slog.Info("credential autofilled", "domain", domain, "username", cred.Username)
}

func (b *Bridge) eval(ctx context.Context, surf engine.Surface, js string, out any) error {
	evalCtx, cancel := context.WithTimeout(ctx, b.evalTimeout)
	defer cancel()
	return surf.Evaluate(evalCtx, js, out)
}

// captureEligible reports whether a page participates in the credential
// protocol, and its domain. Local and internal pages never do.
func captureEligible(pageURL string) (string, bool) {
	if pageURL == "" {
		return "", false
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return "", false
	}
	host := u.Hostname()
	if host == "" {
		return "", false
	}
	return host, true
}
