package feed

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Cancel stops a subscription. It is safe to call more than once.
type Cancel func()

// Publisher fans change events out to subscribers.
type Publisher interface {
	Publish(events ...Event)
}

// Broker dispatches change events to in-process subscriptions. Each
// subscription runs its handler on its own goroutine, one call at a time.
// Events that arrive while a handler is busy coalesce into a single extra
// call, which is enough because handlers re-read the full state.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]*subscription)}
}

type subscription struct {
	kind     Kind
	key      string
	handler  func()
	pending  chan struct{}
	done     chan struct{}
	canceled atomic.Bool
	once     sync.Once
}

// Subscribe registers handler for events of kind. An empty key matches every
// key of that kind. The handler runs once right away and again after every
// matching event until the returned Cancel is called.
func (b *Broker) Subscribe(kind Kind, key string, handler func()) Cancel {
	s := &subscription{
		kind:    kind,
		key:     key,
		handler: handler,
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	s.signal()
	go s.run()

	return func() {
		s.once.Do(func() {
			s.canceled.Store(true)
			close(s.done)
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Broker) Publish(events ...Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range events {
		for _, s := range b.subs {
			if s.matches(e) {
				s.signal()
			}
		}
	}
}

// Len returns the number of open subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (s *subscription) matches(e Event) bool {
	if e.Kind == KindResync {
		return true
	}
	return e.Kind == s.kind && (s.key == "" || s.key == e.Key)
}

func (s *subscription) signal() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.pending:
			if s.canceled.Load() {
				return
			}
			s.invoke()
		}
	}
}

func (s *subscription) invoke() {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("subscription handler panicked", "kind", s.kind, "key", s.key, "panic", p)
		}
	}()
	s.handler()
}
