// Package notify is a process-wide notice bus. Publishers never block;
// subscribers get pushed events on a buffered channel.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the severity of a notice
type Kind string

// Kind values
const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// DefaultDuration is how long a notice stays up unless told otherwise
const DefaultDuration = 5 * time.Second

// Sticky keeps a notice until it is dismissed
const Sticky time.Duration = -1

const subscriberBuffer = 32

// Notice is one message for the user
type Notice struct {
	ID        string
	Kind      Kind
	Title     string
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
	ExpiresAt time.Time
}

// EventType says what happened to a notice
type EventType int

// EventType values
const (
	EventAdded EventType = iota
	EventRemoved
)

// Event is pushed to subscribers
type Event struct {
	Type   EventType
	Notice Notice
}

// Bus holds the active notices and the subscribers
type Bus struct {
	mu      sync.RWMutex
	notices []Notice
	timers  map[string]*time.Timer
	subs    map[int]chan Event
	nextSub int
	closed  bool
	now     func() time.Time
}

// New returns an empty bus
func New() *Bus {
	return &Bus{
		timers: make(map[string]*time.Timer),
		subs:   make(map[int]chan Event),
		now:    time.Now,
	}
}

var (
	defaultBus  *Bus
	defaultOnce sync.Once
)

// Default returns the process-wide bus
func Default() *Bus {
	defaultOnce.Do(func() { defaultBus = New() })
	return defaultBus
}

// Publish adds a notice and pushes it to subscribers. A zero Duration
// means DefaultDuration, Sticky means the notice stays until dismissed.
func (b *Bus) Publish(n Notice) Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	n.ID = uuid.NewString()
	n.CreatedAt = b.now()
	if n.Duration == 0 {
		n.Duration = DefaultDuration
	}
	if n.Duration > 0 {
		n.ExpiresAt = n.CreatedAt.Add(n.Duration)
	}
	if b.closed {
		return n
	}

	b.notices = append(b.notices, n)
	if n.Duration > 0 {
		id := n.ID
		b.timers[id] = time.AfterFunc(n.Duration, func() { b.Dismiss(id) })
	}
	b.broadcastLocked(Event{Type: EventAdded, Notice: n})
	return n
}

// Success publishes a success notice
func (b *Bus) Success(message string) Notice {
	return b.Publish(Notice{Kind: KindSuccess, Message: message})
}

// Error publishes an error notice
func (b *Bus) Error(message string) Notice {
	return b.Publish(Notice{Kind: KindError, Message: message})
}

// Warning publishes a warning notice
func (b *Bus) Warning(message string) Notice {
	return b.Publish(Notice{Kind: KindWarning, Message: message})
}

// Info publishes an info notice
func (b *Bus) Info(message string) Notice {
	return b.Publish(Notice{Kind: KindInfo, Message: message})
}

// Dismiss removes a notice. It returns false when the notice is already gone.
func (b *Bus) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, n := range b.notices {
		if n.ID != id {
			continue
		}
		b.notices = append(b.notices[:i:i], b.notices[i+1:]...)
		if t, ok := b.timers[id]; ok {
			t.Stop()
			delete(b.timers, id)
		}
		b.broadcastLocked(Event{Type: EventRemoved, Notice: n})
		return true
	}
	return false
}

// Active lists the notices currently up, oldest first
func (b *Bus) Active() []Notice {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Notice(nil), b.notices...)
}

// Subscribe returns a channel of events and a func that cancels the
// subscription and closes the channel. Events are dropped when the
// channel is full.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Close stops expiry timers and closes every subscription
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Bus) broadcastLocked(e Event) {
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
