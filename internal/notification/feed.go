package notification

import (
	"sync"

	"github.com/nhle/carpool-client/internal/model"
)

// Snapshot is the state published to subscribers: the list, most recent
// first, and its unread count.
type Snapshot struct {
	Items  []model.Notification
	Unread int
}

func newSnapshot(items []model.Notification) Snapshot {
	return Snapshot{
		Items:  append([]model.Notification(nil), items...),
		Unread: model.UnreadCount(items),
	}
}

// feed is a replay-latest broadcast: every subscriber holds at most one
// pending snapshot, and a newer snapshot replaces an unread older one.
// A new subscriber starts with the current snapshot.
type feed struct {
	mu      sync.Mutex
	latest  Snapshot
	next    int
	readers map[int]chan Snapshot
}

func newFeed() *feed {
	return &feed{
		latest:  Snapshot{Items: []model.Notification{}},
		readers: make(map[int]chan Snapshot),
	}
}

func (f *feed) subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	f.mu.Lock()
	id := f.next
	f.next++
	f.readers[id] = ch
	ch <- f.latest
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.readers, id)
			f.mu.Unlock()
		})
	}
}

func (f *feed) publish(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.latest = s
	for _, ch := range f.readers {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (f *feed) current() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}
