package realtime

import (
	"slices"
	"sync"

	"github.com/nhle/carpool-client/internal/model"
)

// subscriberBuffer is how many events a subscriber may fall behind before
// new events are dropped for it.
const subscriberBuffer = 64

type subscriber struct {
	ch   chan model.Notification
	once sync.Once
}

// hub fans every published notification out to all current subscribers.
type hub struct {
	mu   sync.RWMutex
	next int
	subs map[int]*subscriber
}

func newHub() *hub {
	return &hub{subs: make(map[int]*subscriber)}
}

func (h *hub) subscribe() (<-chan model.Notification, func()) {
	s := &subscriber{ch: make(chan model.Notification, subscriberBuffer)}

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = s
	h.mu.Unlock()

	return s.ch, func() {
		s.once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// publish delivers n to every subscriber in registration order without
// waiting. It returns how many subscribers had a full buffer and missed n.
func (h *hub) publish(n model.Notification) (dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		select {
		case h.subs[id].ch <- n:
		default:
			dropped++
		}
	}
	return dropped
}

// drain discards every event still buffered for any subscriber and
// returns how many were discarded. Callers run it once the publishing
// read loop has stopped.
func (h *hub) drain() (discarded int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.subs {
		for empty := false; !empty; {
			select {
			case <-s.ch:
				discarded++
			default:
				empty = true
			}
		}
	}
	return discarded
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
