package broadcast

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mr1hm/relief-hub/internal/models"
)

const (
	EventNewDisaster    = "newDisaster"
	EventReportDisaster = "reportDisaster"
)

// subscriberBuffer bounds how far a subscriber may lag before events are skipped.
const subscriberBuffer = 100

// Event is one real-time message. Report is set for server-originated
// events; Payload carries a client frame being relayed as-is.
type Event struct {
	Name    string
	Report  *models.Report
	Payload json.RawMessage
	Origin  uint64 // subscriber that sent it; 0 for server events
}

// Data returns the JSON body for the event.
func (e Event) Data() (json.RawMessage, error) {
	if e.Payload != nil {
		return e.Payload, nil
	}
	return json.Marshal(e.Report)
}

type Broadcaster struct {
	subscribers map[uint64]chan Event
	nextID      atomic.Uint64
	mu          sync.RWMutex

	// OnDrop is called for every event skipped for a slow subscriber.
	OnDrop func()
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan Event),
	}
}

func (b *Broadcaster) Subscribe() (uint64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Broadcast delivers ev to every subscriber except its origin. It never
// blocks; a subscriber with a full buffer misses the event.
func (b *Broadcaster) Broadcast(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		if id == ev.Origin {
			continue
		}
		select {
		case ch <- ev:
		default:
			if b.OnDrop != nil {
				b.OnDrop()
			}
		}
	}
}

// Deliver satisfies notify.Sink for newly stored reports.
func (b *Broadcaster) Deliver(r *models.Report) {
	b.Broadcast(Event{Name: EventNewDisaster, Report: r})
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels so connection loops exit.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
