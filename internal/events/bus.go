package events

import (
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Handler receives every event published after its subscription.
type Handler func(Event)

// Subscription identifies a registered handler. Subscribers must cancel
// before the objects they observe are torn down.
type Subscription struct {
	id  string
	bus *Bus
}

func (s *Subscription) Cancel() {
	if s.bus != nil {
		s.bus.unsubscribe(s.id)
		s.bus = nil
	}
}

// Bus is a synchronous publish/subscribe registry. Publish runs handlers
// inline on the caller's goroutine; all publishing happens on the single
// consumer context, so handlers never run concurrently with each other.
type Bus struct {
	mu       sync.Mutex
	handlers map[string]Handler
	order    []string
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

func (b *Bus) Subscribe(h Handler) *Subscription {
	id, err := gonanoid.New()
	if err != nil {
		// gonanoid only fails if the OS entropy source does, in which
		// case nothing else in the process works either.
		panic(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[id] = h
	b.order = append(b.order, id)
	return &Subscription{id: id, bus: b}
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		if h, ok := b.handlers[id]; ok {
			hs = append(hs, h)
		}
	}
	b.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}
