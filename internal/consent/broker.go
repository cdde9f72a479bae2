// Package consent queues credential-save prompts for the chrome layer. The
// bridge blocks on ConfirmSave while the chrome layer lists pending
// requests and posts a decision; an unanswered request resolves to Not-now.
package consent

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/browse_agent/internal/bridge"
)

// Request is one pending consent prompt.
type Request struct {
	ID         string                   `json:"id"`
	Credential bridge.PendingCredential `json:"credential"`
	CreatedAt  time.Time                `json:"created_at"`
}

type waiter struct {
	req Request
	ch  chan bridge.Outcome
}

// Broker implements bridge.Prompter over a pending-request queue.
type Broker struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*waiter
}

// NewBroker creates a broker whose unanswered prompts fall back to Not-now
// after timeout.
func NewBroker(timeout time.Duration) *Broker {
	return &Broker{timeout: timeout, pending: make(map[string]*waiter)}
}

// ConfirmSave parks the request until the chrome layer resolves it. The
// timeout and cancellation fallbacks are Not-now: no persistence without an
// explicit Save.
func (b *Broker) ConfirmSave(ctx context.Context, cred bridge.PendingCredential) bridge.Outcome {
	w := &waiter{
		req: Request{ID: uuid.NewString(), Credential: cred, CreatedAt: time.Now()},
		ch:  make(chan bridge.Outcome, 1),
	}
	b.mu.Lock()
	b.pending[w.req.ID] = w
	b.mu.Unlock()
	defer b.remove(w.req.ID)

	slog.Info("consent prompt pending", "id", w.req.ID, "domain", cred.Domain)

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case outcome := <-w.ch:
		return outcome
	case <-timer.C:
		slog.Info("consent prompt timed out", "id", w.req.ID)
		return bridge.OutcomeNotNow
	case <-ctx.Done():
		return bridge.OutcomeNotNow
	}
}

// Pending lists unanswered requests, oldest first.
func (b *Broker) Pending() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, 0, len(b.pending))
	for _, w := range b.pending {
		out = append(out, w.req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Resolve delivers the decision for a pending request. Returns false for
// unknown or already-resolved IDs.
func (b *Broker) Resolve(id string, outcome bridge.Outcome) bool {
	b.mu.Lock()
	w, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	w.ch <- outcome
	return true
}

func (b *Broker) remove(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}
