package session

import (
	"sync"
)

// Hub fans session events out to listeners. Emit calls are serialized so every listener sees
// every event once, in Seq order. Listeners must not call Emit.
type Hub struct {
	emitMu sync.Mutex
	seq    uint64

	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
	order     []int
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[int]Listener)}
}

func (h *Hub) Subscribe(fn Listener) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.listeners[id] = fn
	h.order = append(h.order, id)
	return &hubSubscription{hub: h, id: id}
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.listeners[id]; !ok {
		return
	}
	delete(h.listeners, id)
	for i, lid := range h.order {
		if lid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of live listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Emit sequences an event and delivers it synchronously to the current listeners.
func (h *Hub) Emit(kind EventKind, sess *Session) Event {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.seq++
	ev := Event{Seq: h.seq, Kind: kind}
	if sess != nil && kind != SignedOut {
		cp := *sess
		ev.Session = &cp
	}

	h.mu.RLock()
	fns := make([]Listener, 0, len(h.order))
	for _, id := range h.order {
		fns = append(fns, h.listeners[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
	return ev
}

type hubSubscription struct {
	hub  *Hub
	id   int
	once sync.Once
}

func (s *hubSubscription) Unsubscribe() {
	s.once.Do(func() { s.hub.unsubscribe(s.id) })
}
