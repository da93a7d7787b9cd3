package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/nhle/carpool-client/internal/model"
)

// ErrNotInitialized is returned by mutations issued outside a session.
var ErrNotInitialized = errors.New("notification store not initialized")

const defaultRequestTimeout = 30 * time.Second

// Connection is the push-event channel the store listens to.
type Connection interface {
	Connect(ctx context.Context, token string) error
	Disconnect()
	Events() (<-chan model.Notification, func())
}

// API is the subset of the REST backend the store needs.
type API interface {
	ListNotifications(ctx context.Context, token string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, token string, id int64) error
	MarkAllNotificationsRead(ctx context.Context, token string) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for recovered failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithDedupe makes a push that repeats an existing id replace that entry
// (moving it to the front) instead of adding a duplicate.
func WithDedupe(enabled bool) Option {
	return func(s *Store) { s.dedupe = enabled }
}

// WithRequestTimeout bounds every REST call issued by the store.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Store owns the in-memory notification list of the current session. It
// is the only writer of that list; readers go through Subscribe or the
// query methods.
//
// Every session started by Initialize gets a new generation. Work started
// for one generation (bulk fetch, listener, mark-read responses) is
// discarded if the generation changed by the time it completes, so a
// fast logout/login never leaks old state into the new session.
type Store struct {
	api     API
	conn    Connection
	log     zerolog.Logger
	dedupe  bool
	timeout time.Duration
	feed    *feed

	// tasks tracks the connect and bulk fetch of each session; listeners
	// tracks the per-session event loops.
	tasks     conc.WaitGroup
	listeners conc.WaitGroup

	mu          sync.Mutex
	initialized bool
	generation  uint64
	sessionID   string
	token       string
	items       []model.Notification
	stop        context.CancelFunc
	unsubscribe func()
}

// NewStore creates an empty, uninitialized store.
func NewStore(api API, conn Connection, opts ...Option) *Store {
	s := &Store{
		api:     api,
		conn:    conn,
		log:     zerolog.Nop(),
		timeout: defaultRequestTimeout,
		feed:    newFeed(),
		items:   []model.Notification{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize starts the session for token: it subscribes to push events,
// connects the channel and issues one bulk fetch. Calls made while a
// session is active are no-ops, as are calls with an empty token. It
// returns without waiting for the network.
func (s *Store) Initialize(token string) {
	if token == "" {
		return
	}

	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.generation++
	gen := s.generation
	s.sessionID = uuid.NewString()
	s.token = token
	ctx, stop := context.WithCancel(context.Background())
	s.stop = stop
	events, unsubscribe := s.conn.Events()
	s.unsubscribe = unsubscribe
	log := s.log.With().Str("session", s.sessionID).Uint64("generation", gen).Logger()
	s.mu.Unlock()

	log.Info().Msg("notification session started")

	s.listeners.Go(func() { s.listen(ctx, gen, events) })
	// The connection logs its own failures; the list still loads without it.
	s.tasks.Go(func() { _ = s.conn.Connect(ctx, token) })
	s.tasks.Go(func() { s.load(ctx, gen, token, log) })
}

// Teardown ends the session: the channel is disconnected, the list is
// emptied and the next Initialize starts from scratch. Safe to call when
// no session is active.
func (s *Store) Teardown() {
	s.mu.Lock()
	wasActive := s.initialized
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.initialized = false
	s.generation++
	s.token = ""
	s.items = []model.Notification{}
	s.feed.publish(newSnapshot(s.items))
	sessionID := s.sessionID
	s.sessionID = ""
	s.mu.Unlock()

	s.conn.Disconnect()

	if wasActive {
		s.log.Info().Str("session", sessionID).Msg("notification session ended")
	}
}

// Wait blocks until the connect and bulk fetch of every started session
// have finished.
func (s *Store) Wait() {
	s.tasks.Wait()
}

// Close tears the session down and waits for all background work.
func (s *Store) Close() {
	s.Teardown()
	s.tasks.Wait()
	s.listeners.Wait()
}

// Initialized reports whether a session is active.
func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Subscribe returns a channel that immediately holds the current
// snapshot and then receives every later one. A slow reader skips
// intermediate snapshots but always ends on the latest. Snapshots are
// shared between readers and must not be modified.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	return s.feed.subscribe()
}

// Snapshot returns the current list and unread count.
func (s *Store) Snapshot() Snapshot {
	return s.feed.current()
}

// Notifications returns a copy of the current list, most recent first.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.items...)
}

// UnreadCount returns the number of unread notifications in the list.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.UnreadCount(s.items)
}

// MarkAsRead asks the server to mark notification id as read and, once
// it confirms, flags that entry locally. On failure the list is left
// untouched and the error is logged and returned.
func (s *Store) MarkAsRead(ctx context.Context, id int64) error {
	token, gen, err := s.session()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.api.MarkNotificationRead(ctx, token, id); err != nil {
		s.log.Error().Err(err).Int64("id", id).Msg("marking notification as read failed")
		return err
	}

	s.mutate(gen, func(items []model.Notification) []model.Notification {
		for i := range items {
			if items[i].ID == id {
				items[i].IsRead = true
			}
		}
		return items
	})
	return nil
}

// MarkAllAsRead asks the server to mark every notification as read and,
// once it confirms, flags every local entry. On failure the list is left
// untouched and the error is logged and returned.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	token, gen, err := s.session()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.api.MarkAllNotificationsRead(ctx, token); err != nil {
		s.log.Error().Err(err).Msg("marking all notifications as read failed")
		return err
	}

	s.mutate(gen, func(items []model.Notification) []model.Notification {
		for i := range items {
			items[i].IsRead = true
		}
		return items
	})
	return nil
}

func (s *Store) session() (string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return "", 0, ErrNotInitialized
	}
	return s.token, s.generation, nil
}

// mutate applies fn to a copy of the list if gen is still the active
// session, then publishes the result. It reports whether fn ran.
func (s *Store) mutate(gen uint64, fn func([]model.Notification) []model.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized || s.generation != gen {
		s.log.Debug().Uint64("generation", gen).Msg("discarding result of an ended session")
		return false
	}
	s.items = fn(append([]model.Notification(nil), s.items...))
	s.feed.publish(newSnapshot(s.items))
	return true
}

// load performs the bulk fetch. A failure keeps whatever the list holds.
func (s *Store) load(ctx context.Context, gen uint64, token string, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.api.ListNotifications(ctx, token)
	if err != nil {
		if ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Error().Err(err).Msg("loading notifications failed")
		}
		return
	}

	if s.mutate(gen, func([]model.Notification) []model.Notification {
		return append([]model.Notification(nil), list...)
	}) {
		log.Debug().Int("count", len(list)).Msg("notifications loaded")
	}
}

// listen applies pushed notifications in arrival order until the
// session's context ends.
func (s *Store) listen(ctx context.Context, gen uint64, events <-chan model.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-events:
			s.mutate(gen, func(items []model.Notification) []model.Notification {
				if s.dedupe {
					items = removeID(items, n.ID)
				}
				return append([]model.Notification{n}, items...)
			})
		}
	}
}

func removeID(items []model.Notification, id int64) []model.Notification {
	out := items[:0]
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}
