// Package tabs owns the ordered collection of open tabs, the active-tab
// pointer, and the fanout of engine events to the rest of the shell. Each
// tab exclusively owns one render surface; the registry is responsible for
// its teardown.
package tabs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dgnsrekt/browse_agent/internal/engine"
)

// EventType enumerates the registry's published events.
type EventType string

const (
	EventOpened        EventType = "tab_opened"
	EventClosed        EventType = "tab_closed"
	EventActiveChanged EventType = "active_changed"
	EventURLChanged    EventType = "url_changed"
	EventTitleChanged  EventType = "title_changed"
	EventLoadFinished  EventType = "load_finished"
)

// TabState is a point-in-time snapshot of one tab. Index is the position in
// the registry at snapshot time and shifts when earlier tabs close.
type TabState struct {
	ID     string `json:"id"`
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// Event is one registry fanout message. Success and PageTitle are
// meaningful only for EventLoadFinished; PageTitle is the page's reported
// title before display shortening.
type Event struct {
	Type      EventType `json:"type"`
	Tab       TabState  `json:"tab"`
	Success   bool      `json:"success,omitempty"`
	PageTitle string    `json:"page_title,omitempty"`
}

// Listener receives registry events. Listeners run synchronously on the
// publishing goroutine and must not block.
type Listener func(Event)

type tab struct {
	id       string
	surface  engine.Surface
	url      string
	title    string
	rawTitle string
}

// Registry is the ordered tab collection. All exported methods are safe for
// concurrent use; engine event callbacks land here from driver goroutines.
type Registry struct {
	eng     engine.Engine
	homeURL string

	mu        sync.Mutex
	tabs      []*tab
	active    int
	listeners []Listener
}

func NewRegistry(eng engine.Engine, homeURL string) *Registry {
	return &Registry{eng: eng, homeURL: homeURL, active: -1}
}

// Subscribe registers a fanout listener. Must be called before tabs open.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// OpenTab creates a tab loading url (the home URL when empty), makes it
// active, and returns its index.
func (r *Registry) OpenTab(ctx context.Context, url string) (int, error) {
	if url == "" {
		url = r.homeURL
	}

	t := &tab{id: uuid.NewString(), url: url, title: deriveTitle("", url, r.homeURL)}
	surf, err := r.eng.NewSurface(ctx, engine.Events{
		URLChanged:   func(u string) { r.onURLChanged(t.id, u) },
		LoadFinished: func(ok bool) { r.onLoadFinished(t.id, ok) },
		TitleChanged: func(title string) { r.onTitleChanged(t.id, title) },
		IconChanged:  func() { r.onIconChanged(t.id) },
	})
	if err != nil {
		return 0, err
	}
	t.surface = surf

	r.mu.Lock()
	r.tabs = append(r.tabs, t)
	idx := len(r.tabs) - 1
	r.active = idx
	opened := r.stateLocked(idx)
	r.mu.Unlock()

	r.publish(Event{Type: EventOpened, Tab: opened})
	r.publish(Event{Type: EventActiveChanged, Tab: opened})

	if err := surf.Load(ctx, url); err != nil {
		slog.Warn("tab initial load failed", "tab_id", t.id, "url", url, "error", err)
	}
	slog.Info("tab opened", "tab_id", t.id, "index", idx, "url", url)
	return idx, nil
}

// CloseTab tears down the tab at index. Closing the last remaining tab is a
// no-op, as is an out-of-bounds index. Subsequent tabs shift down by one;
// stale indexes held by callers are invalid after this returns.
func (r *Registry) CloseTab(ctx context.Context, index int) bool {
	r.mu.Lock()
	if index < 0 || index >= len(r.tabs) || len(r.tabs) < 2 {
		r.mu.Unlock()
		return false
	}
	t := r.tabs[index]
	closed := r.stateLocked(index)
	r.tabs = append(r.tabs[:index], r.tabs[index+1:]...)
	if index < r.active || r.active >= len(r.tabs) {
		r.active--
	}
	activeState := r.stateLocked(r.active)
	r.mu.Unlock()

	// Publish before the surface dies so the credential bridge cancels its
	// poll against a still-valid page context.
	r.publish(Event{Type: EventClosed, Tab: closed})
	if err := t.surface.Close(ctx); err != nil {
		slog.Debug("surface close failed", "tab_id", t.id, "error", err)
	}
	r.publish(Event{Type: EventActiveChanged, Tab: activeState})
	slog.Info("tab closed", "tab_id", t.id, "index", index)
	return true
}

// SetActive moves the active pointer. Out-of-bounds indexes are a silent
// no-op; chrome refresh is delegated to listeners via EventActiveChanged.
func (r *Registry) SetActive(index int) {
	r.mu.Lock()
	if index < 0 || index >= len(r.tabs) {
		r.mu.Unlock()
		return
	}
	r.active = index
	state := r.stateLocked(index)
	r.mu.Unlock()
	r.publish(Event{Type: EventActiveChanged, Tab: state})
}

// Count returns the number of open tabs.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// ActiveIndex returns the current active tab position.
func (r *Registry) ActiveIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// List snapshots all tabs in order.
func (r *Registry) List() []TabState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TabState, len(r.tabs))
	for i := range r.tabs {
		out[i] = r.stateLocked(i)
	}
	return out
}

// Active snapshots the active tab.
func (r *Registry) Active() (TabState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active < 0 || r.active >= len(r.tabs) {
		return TabState{}, false
	}
	return r.stateLocked(r.active), true
}

// Navigate loads url on the active tab.
func (r *Registry) Navigate(ctx context.Context, url string) error {
	return r.withActive(func(t *tab) error { return t.surface.Load(ctx, url) })
}

// Back, Forward, Reload, Stop and Home drive the active tab's surface.
func (r *Registry) Back(ctx context.Context) error {
	return r.withActive(func(t *tab) error { return t.surface.Back(ctx) })
}

func (r *Registry) Forward(ctx context.Context) error {
	return r.withActive(func(t *tab) error { return t.surface.Forward(ctx) })
}

func (r *Registry) Reload(ctx context.Context) error {
	return r.withActive(func(t *tab) error { return t.surface.Reload(ctx) })
}

func (r *Registry) Stop(ctx context.Context) error {
	return r.withActive(func(t *tab) error { return t.surface.Stop(ctx) })
}

func (r *Registry) Home(ctx context.Context) error {
	return r.Navigate(ctx, r.homeURL)
}

// SurfaceByID returns the render surface for a tab ID, for the credential
// bridge's script injection.
func (r *Registry) SurfaceByID(tabID string) (engine.Surface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tabs {
		if t.id == tabID {
			return t.surface, true
		}
	}
	return nil, false
}

func (r *Registry) withActive(fn func(*tab) error) error {
	r.mu.Lock()
	if r.active < 0 || r.active >= len(r.tabs) {
		r.mu.Unlock()
		return nil
	}
	t := r.tabs[r.active]
	r.mu.Unlock()
	return fn(t)
}

// stateLocked builds a snapshot for the tab at index. Caller holds mu.
func (r *Registry) stateLocked(index int) TabState {
	if index < 0 || index >= len(r.tabs) {
		return TabState{Index: -1}
	}
	t := r.tabs[index]
	return TabState{
		ID:     t.id,
		Index:  index,
		URL:    t.url,
		Title:  t.title,
		Active: index == r.active,
	}
}

func (r *Registry) publish(ev Event) {
	r.mu.Lock()
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

func (r *Registry) onURLChanged(tabID, url string) {
	r.mu.Lock()
	idx, t := r.findLocked(tabID)
	if t == nil {
		r.mu.Unlock()
		return
	}
	t.url = url
	t.rawTitle = ""
	// Show a loading placeholder until the page reports its real title.
	if url != r.homeURL {
		t.title = loadingTitle
	} else {
		t.title = deriveTitle("", url, r.homeURL)
	}
	state := r.stateLocked(idx)
	r.mu.Unlock()
	r.publish(Event{Type: EventURLChanged, Tab: state})
}

func (r *Registry) onTitleChanged(tabID, rawTitle string) {
	r.mu.Lock()
	idx, t := r.findLocked(tabID)
	if t == nil {
		r.mu.Unlock()
		return
	}
	t.rawTitle = rawTitle
	t.title = deriveTitle(rawTitle, t.url, r.homeURL)
	state := r.stateLocked(idx)
	r.mu.Unlock()
	r.publish(Event{Type: EventTitleChanged, Tab: state})
}

func (r *Registry) onIconChanged(tabID string) {
	r.mu.Lock()
	idx, t := r.findLocked(tabID)
	if t == nil {
		r.mu.Unlock()
		return
	}
	state := r.stateLocked(idx)
	r.mu.Unlock()
	r.publish(Event{Type: EventTitleChanged, Tab: state})
}

func (r *Registry) onLoadFinished(tabID string, success bool) {
	r.mu.Lock()
	idx, t := r.findLocked(tabID)
	if t == nil {
		r.mu.Unlock()
		return
	}
	if t.title == loadingTitle {
		t.title = deriveTitle("", t.url, r.homeURL)
	}
	rawTitle := t.rawTitle
	state := r.stateLocked(idx)
	r.mu.Unlock()
	r.publish(Event{Type: EventLoadFinished, Tab: state, Success: success, PageTitle: rawTitle})
}

func (r *Registry) findLocked(tabID string) (int, *tab) {
	for i, t := range r.tabs {
		if t.id == tabID {
			return i, t
		}
	}
	return -1, nil
}
