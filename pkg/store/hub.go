package store

import (
	"context"
	"sync"

	"github.com/goliatone/go-formsync/internal/valuepath"
)

// Hub fans snapshots out to subscribers. Every subscriber has its own queue
// drained by one goroutine, so events reach it in publish order and a slow
// subscriber never blocks the publisher or its peers.
//
// Adapters call Subscribe and Publish while holding the lock that guards
// their data, which keeps the initial snapshot and later changes ordered.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[int]*subscriber
	nextID int
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]*subscriber)}
}

type event struct {
	snap Snapshot
	err  error
}

type subscriber struct {
	fn     SnapshotFunc
	mu     sync.Mutex
	queue  []event
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Subscribe registers fn for ref, queues initial as its first event and
// returns the function that stops delivery. Cancelling ctx also stops it.
func (h *Hub) Subscribe(ctx context.Context, ref Ref, initial Snapshot, fn SnapshotFunc) Unsubscribe {
	sub := &subscriber{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		go fn(Snapshot{}, ErrClosed)
		return func() {}
	}
	key := ref.Path()
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]*subscriber)
	}
	id := h.nextID
	h.nextID++
	h.subs[key][id] = sub
	sub.push(event{snap: cloneSnapshot(initial)})
	h.mu.Unlock()

	go sub.run()

	unsubscribe := func() {
		h.mu.Lock()
		if subs := h.subs[key]; subs != nil {
			delete(subs, id)
			if len(subs) == 0 {
				delete(h.subs, key)
			}
		}
		h.mu.Unlock()
		sub.stop()
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				unsubscribe()
			case <-sub.done:
			}
		}()
	}
	return unsubscribe
}

// Publish queues snap for every subscriber of its ref.
func (h *Hub) Publish(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[snap.Ref.Path()] {
		sub.push(event{snap: cloneSnapshot(snap)})
	}
}

// Fail delivers err to every subscriber of ref.
func (h *Hub) Fail(ref Ref, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[ref.Path()] {
		sub.push(event{err: err})
	}
}

// Subscribers returns the number of active subscriptions for ref.
func (h *Hub) Subscribers(ref Ref) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ref.Path()])
}

// Close stops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]map[int]*subscriber)
	h.mu.Unlock()

	for _, group := range subs {
		for _, sub := range group {
			sub.stop()
		}
	}
}

func (s *subscriber) push(ev event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			s.fn(ev.snap, ev.err)
		}
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() {
		close(s.done)
	})
}

func cloneSnapshot(snap Snapshot) Snapshot {
	out := snap
	out.Data = valuepath.CloneMap(snap.Data)
	return out
}
