package tabs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dgnsrekt/browse_agent/internal/engine"
	"github.com/dgnsrekt/browse_agent/internal/navigation"
)

type fakeSurface struct {
	ev engine.Events

	mu     sync.Mutex
	loads  []string
	closed bool
	backs  int
	stops  int
}

func (f *fakeSurface) Load(ctx context.Context, url string) error {
	f.mu.Lock()
	f.loads = append(f.loads, url)
	f.mu.Unlock()
	return nil
}

func (f *fakeSurface) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return nil
}

func (f *fakeSurface) Back(ctx context.Context) error {
	f.mu.Lock()
	f.backs++
	f.mu.Unlock()
	return nil
}

func (f *fakeSurface) Forward(ctx context.Context) error { return nil }
func (f *fakeSurface) Reload(ctx context.Context) error  { return nil }

func (f *fakeSurface) Evaluate(ctx context.Context, js string, out any) error { return nil }
func (f *fakeSurface) URL() string                                            { return "" }

func (f *fakeSurface) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSurface) lastLoad() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loads) == 0 {
		return ""
	}
	return f.loads[len(f.loads)-1]
}

type fakeEngine struct {
	mu       sync.Mutex
	surfaces []*fakeSurface
	failNext bool
}

func (f *fakeEngine) NewSurface(ctx context.Context, ev engine.Events) (engine.Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, errors.New("engine down")
	}
	s := &fakeSurface{ev: ev}
	f.surfaces = append(f.surfaces, s)
	return s, nil
}

func (f *fakeEngine) SetInterceptor(hook func(url string) navigation.Decision) {}
func (f *fakeEngine) Close() error                                             { return nil }

const testHome = "https://home.example/"

func newTestRegistry(t *testing.T) (*Registry, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{}
	return NewRegistry(eng, testHome), eng
}

func collectEvents(r *Registry) *[]Event {
	var events []Event
	r.Subscribe(func(ev Event) { events = append(events, ev) })
	return &events
}

func TestOpenTabDefaultsToHome(t *testing.T) {
	reg, eng := newTestRegistry(t)

	idx, err := reg.OpenTab(context.Background(), "")
	if err != nil {
		t.Fatalf("OpenTab() = %v; want nil", err)
	}
	if idx != 0 {
		t.Fatalf("OpenTab() index = %d; want 0", idx)
	}
	if got := eng.surfaces[0].lastLoad(); got != testHome {
		t.Fatalf("surface loaded %q; want %q", got, testHome)
	}

	state, ok := reg.Active()
	if !ok {
		t.Fatal("Active() not found after OpenTab")
	}
	if state.Title != "Home" {
		t.Fatalf("active title = %q; want Home", state.Title)
	}
}

func TestOpenTabActivatesAndPublishes(t *testing.T) {
	reg, _ := newTestRegistry(t)
	events := collectEvents(reg)

	if _, err := reg.OpenTab(context.Background(), "https://a.com/"); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}
	if _, err := reg.OpenTab(context.Background(), "https://b.com/"); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}

	if reg.ActiveIndex() != 1 {
		t.Fatalf("ActiveIndex() = %d; want 1", reg.ActiveIndex())
	}

	var types []EventType
	for _, ev := range *events {
		types = append(types, ev.Type)
	}
	want := []EventType{EventOpened, EventActiveChanged, EventOpened, EventActiveChanged}
	if len(types) != len(want) {
		t.Fatalf("event types = %v; want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event[%d] = %v; want %v", i, types[i], want[i])
		}
	}
}

func TestOpenTabEngineFailure(t *testing.T) {
	reg, eng := newTestRegistry(t)
	eng.failNext = true

	if _, err := reg.OpenTab(context.Background(), ""); err == nil {
		t.Fatal("OpenTab() = nil; want error")
	}
	if reg.Count() != 0 {
		t.Fatalf("Count() = %d; want 0", reg.Count())
	}
}

func TestCloseLastTabIsNoOp(t *testing.T) {
	reg, eng := newTestRegistry(t)
	if _, err := reg.OpenTab(context.Background(), ""); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}

	if reg.CloseTab(context.Background(), 0) {
		t.Fatal("CloseTab() on last tab = true; want false")
	}
	if reg.Count() != 1 {
		t.Fatalf("Count() = %d; want 1", reg.Count())
	}
	if eng.surfaces[0].closed {
		t.Fatal("last tab surface was closed")
	}
}

func TestCloseTabReindexes(t *testing.T) {
	reg, eng := newTestRegistry(t)
	ctx := context.Background()
	for _, u := range []string{"https://a.com/", "https://b.com/", "https://c.com/"} {
		if _, err := reg.OpenTab(ctx, u); err != nil {
			t.Fatalf("OpenTab() = %v", err)
		}
	}
	reg.SetActive(2)

	if !reg.CloseTab(ctx, 0) {
		t.Fatal("CloseTab(0) = false; want true")
	}
	if !eng.surfaces[0].closed {
		t.Fatal("closed tab surface still open")
	}

	states := reg.List()
	if len(states) != 2 {
		t.Fatalf("List() len = %d; want 2", len(states))
	}
	if states[0].URL != "https://b.com/" || states[0].Index != 0 {
		t.Fatalf("states[0] = %+v; want b.com at index 0", states[0])
	}
	// The active tab shifted down with the close.
	if reg.ActiveIndex() != 1 {
		t.Fatalf("ActiveIndex() = %d; want 1", reg.ActiveIndex())
	}
}

func TestCloseActiveTabMovesPointer(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	for range [3]int{} {
		if _, err := reg.OpenTab(ctx, "https://a.com/"); err != nil {
			t.Fatalf("OpenTab() = %v", err)
		}
	}

	if !reg.CloseTab(ctx, 2) {
		t.Fatal("CloseTab(2) = false; want true")
	}
	if reg.ActiveIndex() != 1 {
		t.Fatalf("ActiveIndex() = %d; want 1", reg.ActiveIndex())
	}
}

func TestCloseTabOutOfBounds(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.OpenTab(ctx, ""); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}
	if _, err := reg.OpenTab(ctx, ""); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}

	if reg.CloseTab(ctx, 5) || reg.CloseTab(ctx, -1) {
		t.Fatal("CloseTab() out of bounds = true; want false")
	}
}

func TestSetActiveOutOfBoundsIsSilent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if _, err := reg.OpenTab(context.Background(), ""); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}
	events := collectEvents(reg)

	reg.SetActive(7)
	if reg.ActiveIndex() != 0 {
		t.Fatalf("ActiveIndex() = %d; want 0", reg.ActiveIndex())
	}
	if len(*events) != 0 {
		t.Fatalf("events = %v; want none", *events)
	}
}

func TestActiveTabOperationsTargetActiveSurface(t *testing.T) {
	reg, eng := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.OpenTab(ctx, "https://a.com/"); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}
	if _, err := reg.OpenTab(ctx, "https://b.com/"); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}
	reg.SetActive(0)

	if err := reg.Back(ctx); err != nil {
		t.Fatalf("Back() = %v", err)
	}
	if eng.surfaces[0].backs != 1 || eng.surfaces[1].backs != 0 {
		t.Fatalf("backs = (%d, %d); want (1, 0)", eng.surfaces[0].backs, eng.surfaces[1].backs)
	}

	if err := reg.Home(ctx); err != nil {
		t.Fatalf("Home() = %v", err)
	}
	if got := eng.surfaces[0].lastLoad(); got != testHome {
		t.Fatalf("Home() loaded %q; want %q", got, testHome)
	}
}

func TestURLChangeShowsLoadingThenTitle(t *testing.T) {
	reg, eng := newTestRegistry(t)
	if _, err := reg.OpenTab(context.Background(), "https://a.com/"); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}
	surf := eng.surfaces[0]

	surf.ev.URLChanged("https://a.com/page")
	state, _ := reg.Active()
	if state.Title != "Loading..." {
		t.Fatalf("title during load = %q; want Loading...", state.Title)
	}

	surf.ev.TitleChanged("A Page")
	state, _ = reg.Active()
	if state.Title != "A Page" {
		t.Fatalf("title = %q; want A Page", state.Title)
	}

	surf.ev.LoadFinished(true)
	state, _ = reg.Active()
	if state.Title != "A Page" {
		t.Fatalf("title after load = %q; want A Page", state.Title)
	}
}

func TestLoadFinishWithoutTitleFallsBackToHost(t *testing.T) {
	reg, eng := newTestRegistry(t)
	if _, err := reg.OpenTab(context.Background(), "https://a.com/"); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}
	surf := eng.surfaces[0]

	surf.ev.URLChanged("https://www.wiki.example/article")
	surf.ev.LoadFinished(true)

	state, _ := reg.Active()
	if state.Title != "wiki.example" {
		t.Fatalf("title = %q; want wiki.example", state.Title)
	}
	if state.URL != "https://www.wiki.example/article" {
		t.Fatalf("url = %q; want the navigated url", state.URL)
	}
}

func TestLoadFinishedEventCarriesSuccess(t *testing.T) {
	reg, eng := newTestRegistry(t)
	if _, err := reg.OpenTab(context.Background(), "https://a.com/"); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}
	events := collectEvents(reg)

	eng.surfaces[0].ev.LoadFinished(false)
	if len(*events) != 1 {
		t.Fatalf("events len = %d; want 1", len(*events))
	}
	ev := (*events)[0]
	if ev.Type != EventLoadFinished || ev.Success {
		t.Fatalf("event = %+v; want load_finished with success=false", ev)
	}
}

func TestSurfaceByID(t *testing.T) {
	reg, eng := newTestRegistry(t)
	if _, err := reg.OpenTab(context.Background(), ""); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}
	state, _ := reg.Active()

	surf, ok := reg.SurfaceByID(state.ID)
	if !ok || surf != engine.Surface(eng.surfaces[0]) {
		t.Fatal("SurfaceByID() did not return the tab's surface")
	}
	if _, ok := reg.SurfaceByID("nope"); ok {
		t.Fatal("SurfaceByID(unknown) = true; want false")
	}
}

func TestLoadFinishedEventCarriesRawTitle(t *testing.T) {
	reg, eng := newTestRegistry(t)
	if _, err := reg.OpenTab(context.Background(), "https://a.com/"); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}
	surf := eng.surfaces[0]

	long := "A deliberately long article title that display shortening would cut"
	surf.ev.URLChanged("https://a.com/article")
	surf.ev.TitleChanged(long)

	events := collectEvents(reg)
	surf.ev.LoadFinished(true)
	if len(*events) != 1 {
		t.Fatalf("events len = %d; want 1", len(*events))
	}
	ev := (*events)[0]
	if ev.PageTitle != long {
		t.Fatalf("PageTitle = %q; want the full page title", ev.PageTitle)
	}
	if ev.Tab.Title == long {
		t.Fatalf("Tab.Title = %q; want the shortened display title", ev.Tab.Title)
	}

	// A fresh navigation forgets the previous page's title.
	surf.ev.URLChanged("https://a.com/next")
	*events = nil
	surf.ev.LoadFinished(true)
	if got := (*events)[0].PageTitle; got != "" {
		t.Fatalf("PageTitle after navigation = %q; want empty", got)
	}
}
