package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/browse_agent/internal/store"
)

// scriptedSurface answers the bridge's three scripts: capture install is
// acknowledged, the slot is consumed clear-on-read, and autofill reports a
// configured fill result.
type scriptedSurface struct {
	mu      sync.Mutex
	slot    *slotResult
	filled  bool
	evalErr error
	evals   []string
}

func (s *scriptedSurface) Evaluate(ctx context.Context, js string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evals = append(s.evals, js)
	if s.evalErr != nil {
		return s.evalErr
	}
	switch v := out.(type) {
	case *slotResult:
		if s.slot != nil {
			*v = *s.slot
			s.slot = nil
		}
	case *fillResult:
		v.Filled = s.filled
	}
	return nil
}

func (s *scriptedSurface) Load(ctx context.Context, url string) error { return nil }
func (s *scriptedSurface) Stop(ctx context.Context) error             { return nil }
func (s *scriptedSurface) Back(ctx context.Context) error             { return nil }
func (s *scriptedSurface) Forward(ctx context.Context) error          { return nil }
func (s *scriptedSurface) Reload(ctx context.Context) error           { return nil }
func (s *scriptedSurface) URL() string                                { return "" }
func (s *scriptedSurface) Close(ctx context.Context) error            { return nil }

func (s *scriptedSurface) evalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.evals)
}

type stubPrompter struct {
	mu      sync.Mutex
	outcome Outcome
	asked   []PendingCredential
}

func (p *stubPrompter) ConfirmSave(ctx context.Context, cred PendingCredential) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, cred)
	return p.outcome
}

func (p *stubPrompter) askedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.asked)
}

func testBridge(t *testing.T, outcome Outcome) (*Bridge, *store.Store, *stubPrompter) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	prompt := &stubPrompter{outcome: outcome}
	b := New(st, prompt, 10*time.Millisecond, time.Millisecond, time.Second)
	t.Cleanup(b.Close)
	return b, st, prompt
}

func capturedSlot() *slotResult {
	return &slotResult{
		Found:    true,
		URL:      "https://site.com/login",
		Domain:   "site.com",
		Username: "alice",
		Password: "s3cret",
	}
}

func TestPollOnceSavesOnConsent(t *testing.T) {
	b, st, prompt := testBridge(t, OutcomeSave)
	surf := &scriptedSurface{slot: capturedSlot()}

	b.PollOnce(context.Background(), "tab-1", surf)

	if prompt.askedCount() != 1 {
		t.Fatalf("prompter asked %d times; want 1", prompt.askedCount())
	}
	cred, found, err := st.MostRecentForDomain("site.com")
	if err != nil || !found {
		t.Fatalf("MostRecentForDomain() = (%v, %v); want found", found, err)
	}
	if cred.Username != "alice" || cred.Password != "s3cret" {
		t.Fatalf("saved credential = %+v; want alice/s3cret", cred)
	}
}

func TestPollOnceConsumesSlotAtMostOnce(t *testing.T) {
	b, _, prompt := testBridge(t, OutcomeSave)
	surf := &scriptedSurface{slot: capturedSlot()}

	b.PollOnce(context.Background(), "tab-1", surf)
	b.PollOnce(context.Background(), "tab-1", surf)

	if prompt.askedCount() != 1 {
		t.Fatalf("prompter asked %d times; want 1", prompt.askedCount())
	}
}

func TestPollOnceDiscardsWithoutSave(t *testing.T) {
	for _, outcome := range []Outcome{OutcomeNotNow, OutcomeNever} {
		t.Run(outcome.String(), func(t *testing.T) {
			b, st, prompt := testBridge(t, outcome)
			surf := &scriptedSurface{slot: capturedSlot()}

			b.PollOnce(context.Background(), "tab-1", surf)

			if prompt.askedCount() != 1 {
				t.Fatalf("prompter asked %d times; want 1", prompt.askedCount())
			}
			if _, found, _ := st.MostRecentForDomain("site.com"); found {
				t.Fatal("credential persisted without an explicit save")
			}
		})
	}
}

func TestPollOnceEvalFailureIsNoOp(t *testing.T) {
	b, _, prompt := testBridge(t, OutcomeSave)
	surf := &scriptedSurface{slot: capturedSlot(), evalErr: errors.New("context torn down")}

	b.PollOnce(context.Background(), "tab-1", surf)

	if prompt.askedCount() != 0 {
		t.Fatalf("prompter asked %d times; want 0", prompt.askedCount())
	}
}

func TestPollOnceEmptySlotDoesNothing(t *testing.T) {
	b, _, prompt := testBridge(t, OutcomeSave)
	surf := &scriptedSurface{}

	b.PollOnce(context.Background(), "tab-1", surf)

	if prompt.askedCount() != 0 {
		t.Fatalf("prompter asked %d times; want 0", prompt.askedCount())
	}
}

func TestPageLoadedIneligiblePage(t *testing.T) {
	b, _, _ := testBridge(t, OutcomeSave)
	surf := &scriptedSurface{}

	b.PageLoaded("tab-1", "file:///home/user/notes.html", surf)

	b.mu.Lock()
	polls := len(b.polls)
	b.mu.Unlock()
	if polls != 0 {
		t.Fatalf("polls = %d; want 0 for a local page", polls)
	}
	if surf.evalCount() != 0 {
		t.Fatalf("evals = %d; want 0 for a local page", surf.evalCount())
	}
}

func TestPageLoadedInstallsCaptureAndPolls(t *testing.T) {
	b, st, _ := testBridge(t, OutcomeSave)
	if err := st.UpsertCredential("https://site.com/login", "site.com", "alice", "pw"); err != nil {
		t.Fatalf("UpsertCredential() = %v", err)
	}
	surf := &scriptedSurface{slot: capturedSlot(), filled: true}

	b.PageLoaded("tab-1", "https://site.com/login", surf)

	deadline := time.After(2 * time.Second)
	for {
		surf.mu.Lock()
		var sawInstall, sawAutofill bool
		for _, js := range surf.evals {
			if strings.Contains(js, "__browseAgentCaptureHooked") {
				sawInstall = true
			}
			if strings.Contains(js, "dispatchEvent") {
				sawAutofill = true
			}
		}
		surf.mu.Unlock()
		if sawInstall && sawAutofill {
			break
		}
		select {
		case <-deadline:
			t.Fatal("capture install and autofill were not evaluated")
		case <-time.After(5 * time.Millisecond):
		}
	}
	b.CancelPoll("tab-1")
}

func TestCancelPollStopsTicks(t *testing.T) {
	b, _, _ := testBridge(t, OutcomeSave)
	surf := &scriptedSurface{}

	b.PageLoaded("tab-1", "https://site.com/", surf)
	b.CancelPoll("tab-1")

	quiesced := surf.evalCount()
	time.Sleep(50 * time.Millisecond)
	// One in-flight tick may land after the cancel; none after that.
	if surf.evalCount() > quiesced+1 {
		t.Fatalf("evals kept arriving after cancel: %d -> %d", quiesced, surf.evalCount())
	}
}

func TestCancelPollUnknownTab(t *testing.T) {
	b, _, _ := testBridge(t, OutcomeSave)
	b.CancelPoll("never-seen")
}

func TestCloseDrainsPolls(t *testing.T) {
	b, _, _ := testBridge(t, OutcomeSave)
	surf := &scriptedSurface{}
	b.PageLoaded("tab-1", "https://a.com/", surf)
	b.PageLoaded("tab-2", "https://b.com/", surf)

	done := make(chan struct{})
	go func() {
		b.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not drain poll goroutines")
	}
}

func TestCaptureEligible(t *testing.T) {
	tests := []struct {
		url        string
		wantDomain string
		wantOK     bool
	}{
		{"https://site.com/login", "site.com", true},
		{"http://intranet.local/", "intranet.local", true},
		{"file:///etc/passwd", "", false},
		{"about:blank", "", false},
		{"data:text/html,hi", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		domain, ok := captureEligible(tt.url)
		if domain != tt.wantDomain || ok != tt.wantOK {
			t.Fatalf("captureEligible(%q) = (%q, %v); want (%q, %v)", tt.url, domain, ok, tt.wantDomain, tt.wantOK)
		}
	}
}

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		in     string
		want   Outcome
		wantOK bool
	}{
		{"save", OutcomeSave, true},
		{"never", OutcomeNever, true},
		{"not_now", OutcomeNotNow, true},
		{"maybe", OutcomeNotNow, false},
		{"", OutcomeNotNow, false},
	}
	for _, tt := range tests {
		got, ok := ParseOutcome(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("ParseOutcome(%q) = (%v, %v); want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNewAppliesEvalTimeout(t *testing.T) {
	b := New(nil, &stubPrompter{}, time.Second, time.Second, 250*time.Millisecond)
	defer b.Close()
	if b.evalTimeout != 250*time.Millisecond {
		t.Fatalf("evalTimeout = %v, want %v", b.evalTimeout, 250*time.Millisecond)
	}

	fallback := New(nil, &stubPrompter{}, time.Second, time.Second, 0)
	defer fallback.Close()
	if fallback.evalTimeout != 5*time.Second {
		t.Fatalf("evalTimeout = %v, want %v", fallback.evalTimeout, 5*time.Second)
	}
}
