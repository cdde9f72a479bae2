// Package relay streams tab registry events to chrome-layer subscribers:
// URL bar refreshes, tab strip updates, and title changes all ride the same
// feed.
package relay

import (
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/browse_agent/internal/tabs"
)

const subscriberBufSize = 64

// Broker fans registry events out to all subscribed websocket clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan tabs.Event
	nextID      atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int64]chan tabs.Event)}
}

// Listener adapts the broker to the registry fanout.
func (b *Broker) Listener() tabs.Listener {
	return b.Publish
}

// Subscribe registers a client. The channel is buffered; slow consumers
// have events dropped rather than stalling the registry.
func (b *Broker) Subscribe() (int64, <-chan tabs.Event) {
	id := b.nextID.Add(1)
	ch := make(chan tabs.Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers without blocking.
func (b *Broker) Publish(ev tabs.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
