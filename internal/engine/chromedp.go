package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/browse_agent/internal/navigation"
)

// ChromeEngine drives a Chromium instance over CDP. Each surface maps to
// one browser tab owned by its own chromedp context.
type ChromeEngine struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
	evalTimeout time.Duration

	mu   sync.Mutex
	hook func(url string) navigation.Decision
}

// Connect attaches to a running Chromium via its CDP HTTP endpoint.
func Connect(ctx context.Context, cdpURL string, evalTimeout time.Duration) (*ChromeEngine, error) {
	slog.Info("Connecting to Chromium", "url", cdpURL)

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), cdpURL)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserStop()
		allocCancel()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &ChromeEngine{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
		evalTimeout: evalTimeout,
	}, nil
}

func (e *ChromeEngine) SetInterceptor(hook func(url string) navigation.Decision) {
	e.mu.Lock()
	e.hook = hook
	e.mu.Unlock()
}

func (e *ChromeEngine) interceptor() func(url string) navigation.Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hook
}

// NewSurface opens a fresh blank tab and wires ev to its page events.
func (e *ChromeEngine) NewSurface(ctx context.Context, ev Events) (Surface, error) {
	tabCtx, tabCancel := chromedp.NewContext(e.browserCtx)

	s := &chromeSurface{
		eng:    e,
		ctx:    tabCtx,
		cancel: tabCancel,
		ev:     ev,
		url:    "about:blank",
	}

	actions := []chromedp.Action{page.Enable()}
	if e.interceptor() != nil {
		actions = append(actions, fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{ResourceType: network.ResourceTypeDocument},
		}))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	chromedp.ListenTarget(tabCtx, s.handleEvent)
	return s, nil
}

func (e *ChromeEngine) Close() error {
	e.browserStop()
	e.allocCancel()
	slog.Info("engine closed")
	return nil
}

type chromeSurface struct {
	eng    *ChromeEngine
	ctx    context.Context
	cancel context.CancelFunc
	ev     Events

	mu     sync.Mutex
	url    string
	closed bool
}

func (s *chromeSurface) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame.ParentID != "" {
			return
		}
		s.setURL(e.Frame.URL)
		if s.ev.URLChanged != nil {
			s.ev.URLChanged(e.Frame.URL)
		}
		if s.ev.IconChanged != nil {
			s.ev.IconChanged()
		}
	case *page.EventNavigatedWithinDocument:
		s.setURL(e.URL)
		if s.ev.URLChanged != nil {
			s.ev.URLChanged(e.URL)
		}
	case *page.EventLoadEventFired:
		go s.finishLoad()
	case *fetch.EventRequestPaused:
		go s.resolvePaused(e)
	}
}

// finishLoad reads the document title, then reports load completion. Events
// fire in that order so consumers see the final title before load_finished.
func (s *chromeSurface) finishLoad() {
	var title string
	tctx, tcancel := context.WithTimeout(s.ctx, s.eng.evalTimeout)
	defer tcancel()
	if err := chromedp.Run(tctx, chromedp.Title(&title)); err != nil {
		slog.Debug("title read failed", "error", err)
	}
	if s.ev.TitleChanged != nil && title != "" {
		s.ev.TitleChanged(title)
	}
	if s.ev.LoadFinished != nil {
		s.ev.LoadFinished(true)
	}
}

// resolvePaused applies the interceptor decision to a paused top-level
// request. Redirects are served as a synthetic 302 so the engine performs
// the hop itself.
func (s *chromeSurface) resolvePaused(e *fetch.EventRequestPaused) {
	var d navigation.Decision
	if hook := s.eng.interceptor(); hook != nil {
		d = hook(e.Request.URL)
	}
	if d.Action == navigation.Block {
		slog.Info("blocked navigation", "url", e.Request.URL)
	}
	if err := chromedp.Run(s.ctx, pausedAction(e.RequestID, d)); err != nil {
		slog.Debug("request resolution failed", "request_id", e.RequestID, "error", err)
	}
}

func pausedAction(id fetch.RequestID, d navigation.Decision) chromedp.Action {
	switch d.Action {
	case navigation.Redirect:
		return fetch.FulfillRequest(id, 302).WithResponseHeaders([]*fetch.HeaderEntry{
			{Name: "Location", Value: d.URL},
		})
	case navigation.Block:
		return fetch.FailRequest(id, network.ErrorReasonBlockedByClient)
	default:
		return fetch.ContinueRequest(id)
	}
}

func (s *chromeSurface) setURL(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

func (s *chromeSurface) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *chromeSurface) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("surface closed")
	}
	return nil
}

// run executes actions without waiting for the resulting page load; load
// completion arrives through the event stream instead.
func (s *chromeSurface) run(ctx context.Context, action chromedp.Action) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx, action)
}

func (s *chromeSurface) Load(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		_, _, errText, _, err := page.Navigate(url).Do(cctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("navigate failed: %s", errText)
		}
		return nil
	}))
}

func (s *chromeSurface) Stop(ctx context.Context) error {
	return s.run(ctx, page.StopLoading())
}

func (s *chromeSurface) Back(ctx context.Context) error {
	return s.historyStep(ctx, -1)
}

func (s *chromeSurface) Forward(ctx context.Context) error {
	return s.historyStep(ctx, 1)
}

func (s *chromeSurface) historyStep(ctx context.Context, delta int64) error {
	return s.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		cur, entries, err := page.GetNavigationHistory().Do(cctx)
		if err != nil {
			return err
		}
		next := cur + delta
		if next < 0 || next >= int64(len(entries)) {
			return nil
		}
		return page.NavigateToHistoryEntry(entries[next].ID).Do(cctx)
	}))
}

func (s *chromeSurface) Reload(ctx context.Context) error {
	return s.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		return page.Reload().Do(cctx)
	}))
}

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func (s *chromeSurface) Evaluate(ctx context.Context, js string, out any) error {
	if err := s.guard(); err != nil {
		return err
	}
	evalCtx, evalCancel := context.WithTimeout(s.ctx, s.eng.evalTimeout)
	defer evalCancel()

	// Scripts return JSON.stringify-ed envelopes, so the remote value is a
	// string.
	var raw string
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(js, &raw)); err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return fmt.Errorf("invalid evaluation envelope: %w", err)
	}
	if !env.OK {
		return fmt.Errorf("script error %s: %s", env.ErrorCode, env.ErrorMessage)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("invalid evaluation data: %w", err)
	}
	return nil
}

// Close tears down the tab. The chromedp context owns the target, so
// cancelling it closes the browser tab.
func (s *chromeSurface) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	return nil
}
