package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nhle/carpool-client/internal/model"
)

// EventNotificationNew is the Socket.IO event carrying a new notification.
const EventNotificationNew = "notification:new"

const (
	defaultHandshakeTimeout = 20 * time.Second
	defaultHeartbeatWindow  = 45 * time.Second
	disconnectWriteTimeout  = time.Second
)

var (
	// ErrConnectRejected is returned when the server answers the CONNECT
	// packet with CONNECT_ERROR (typically an invalid token).
	ErrConnectRejected = errors.New("connection rejected by server")

	// ErrAborted is returned by Connect when Disconnect ran while the
	// handshake was still in progress.
	ErrAborted = errors.New("connect aborted by disconnect")
)

// State is the lifecycle state of the channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithTransports sets the transports to try, in order.
// Unknown names are skipped at connect time.
func WithTransports(names ...string) Option {
	return func(m *Manager) {
		if len(names) > 0 {
			m.transports = append([]string(nil), names...)
		}
	}
}

// WithHandshakeTimeout bounds the time from dial to CONNECT ack.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.handshakeTimeout = d
		}
	}
}

// WithLogger sets the logger used for lifecycle and transport errors.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// WithHTTPClient sets the client used by the polling transport.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		m.dialers[transportPolling] = dialPolling(c)
	}
}

// Manager owns the single push-event channel of the process. At most one
// connection is live at a time; Connect while connecting or connected is
// a no-op.
type Manager struct {
	baseURL          *url.URL
	transports       []string
	dialers          map[string]dialFunc
	handshakeTimeout time.Duration
	log              zerolog.Logger
	hub              *hub

	mu      sync.Mutex
	state   State
	current *connection
}

// connection is one connect attempt and, once the handshake succeeds,
// the live channel it produced.
type connection struct {
	ctx    context.Context
	cancel context.CancelFunc

	// t is set under Manager.mu once the handshake succeeded; a nil t
	// means no read loop was started.
	t    transport
	sid  string
	open openPayload

	loopDone  chan struct{}
	closeOnce sync.Once
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.t != nil {
			_ = c.t.Close()
		}
	})
}

// NewManager creates a Manager for the Socket.IO server at rawURL.
func NewManager(rawURL string, opts ...Option) (*Manager, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing realtime url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("realtime url %q must be absolute", rawURL)
	}

	m := &Manager{
		baseURL:          u,
		transports:       []string{transportWebsocket, transportPolling},
		handshakeTimeout: defaultHandshakeTimeout,
		log:              zerolog.Nop(),
		hub:              newHub(),
		dialers: map[string]dialFunc{
			transportWebsocket: dialWebsocket(websocket.DefaultDialer),
			transportPolling:   dialPolling(&http.Client{}),
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Events registers a new subscriber and returns its channel together
// with the function that unsubscribes it. Every subscriber receives every
// notification:new event of every connection made while it is
// subscribed; nothing from a connection is delivered after Disconnect
// returns or once a new Connect starts. A subscriber that falls more than
// a buffer behind misses events rather than stalling the channel.
func (m *Manager) Events() (<-chan model.Notification, func()) {
	return m.hub.subscribe()
}

// Connect opens the channel authenticated with token. It returns nil
// without doing anything if a connection is already open or opening.
// On failure the error is logged and returned, and the state goes back
// to disconnected. There is no automatic retry.
func (m *Manager) Connect(ctx context.Context, token string) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		state := m.state
		m.mu.Unlock()
		m.log.Debug().Stringer("state", state).Msg("connect ignored, channel already open")
		return nil
	}
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		return err
	}

	// Leftovers of a connection that dropped on its own.
	m.discardPending()

	connCtx, cancel := context.WithCancel(context.Background())
	c := &connection{ctx: connCtx, cancel: cancel, loopDone: make(chan struct{})}
	m.current = c
	m.state = StateConnecting
	m.mu.Unlock()

	// The handshake ends on the caller's cancellation, the timeout, or a
	// Disconnect of this attempt, whichever comes first.
	hsCtx, hsCancel := context.WithTimeout(ctx, m.handshakeTimeout)
	stop := context.AfterFunc(connCtx, hsCancel)
	t, open, err := m.handshake(hsCtx, token)
	stop()
	hsCancel()

	m.mu.Lock()
	if m.current != c {
		m.mu.Unlock()
		if t != nil {
			_ = t.Close()
		}
		m.log.Debug().Msg("connect aborted by disconnect")
		return ErrAborted
	}
	if err != nil {
		m.current = nil
		m.state = StateDisconnected
		m.mu.Unlock()
		cancel()
		m.log.Error().Err(err).Str("url", m.baseURL.Redacted()).Msg("realtime handshake failed")
		return err
	}
	c.t = t
	c.sid = open.SID
	c.open = open
	m.state = StateConnected
	m.mu.Unlock()

	m.log.Info().
		Str("transport", t.Name()).
		Str("sid", open.SID).
		Msg("realtime channel connected")

	go m.readLoop(c)
	return nil
}

// Disconnect closes the channel, or cancels a connect in progress. It is
// a no-op when nothing is open and returns only after the connection's
// read loop has stopped.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	c := m.current
	if c == nil {
		m.discardPending()
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.state = StateDisconnected
	running := c.t != nil
	m.mu.Unlock()

	if running {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectWriteTimeout)
		if packet, err := encodeSocket(socketDisconnect, nil); err == nil {
			_ = c.t.WritePacket(ctx, packet)
		}
		cancel()
	}
	c.close()
	if running {
		<-c.loopDone
	}

	m.mu.Lock()
	// A newer connection with a read loop owns what is buffered now.
	if m.current == nil || m.current.t == nil {
		m.discardPending()
	}
	m.mu.Unlock()

	m.log.Info().Str("sid", c.sid).Msg("realtime channel disconnected")
}

// handshake tries each configured transport in order and returns the
// first one that completes the Engine.IO open and Socket.IO connect.
// A CONNECT_ERROR stops the fallback: another transport would carry the
// same token.
func (m *Manager) handshake(ctx context.Context, token string) (transport, openPayload, error) {
	var errs []error
	for _, name := range m.transports {
		dial, ok := m.dialers[name]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown transport %q", name))
			continue
		}

		t, err := dial(ctx, m.baseURL)
		if err != nil {
			m.log.Warn().Err(err).Str("transport", name).Msg("transport unavailable")
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		open, err := negotiate(ctx, t, token)
		if err != nil {
			_ = t.Close()
			if errors.Is(err, ErrConnectRejected) {
				return nil, openPayload{}, err
			}
			m.log.Warn().Err(err).Str("transport", name).Msg("handshake over transport failed")
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return t, open, nil
	}

	if len(errs) == 0 {
		return nil, openPayload{}, errors.New("no transports configured")
	}
	return nil, openPayload{}, fmt.Errorf("connecting to %s: %w", m.baseURL.Redacted(), errors.Join(errs...))
}

type authPayload struct {
	Token string `json:"token"`
}

// negotiate reads the OPEN packet, sends CONNECT with the auth payload
// and waits for the server's answer.
func negotiate(ctx context.Context, t transport, token string) (openPayload, error) {
	var open openPayload

	raw, err := t.ReadPacket(ctx)
	if err != nil {
		return open, fmt.Errorf("reading open packet: %w", err)
	}
	p, err := parseEnginePacket(raw)
	if err != nil {
		return open, err
	}
	if p.typ != engineOpen {
		return open, fmt.Errorf("expected open packet, got %q", raw)
	}
	if err := decodeOpen(p.data, &open); err != nil {
		return open, err
	}

	packet, err := encodeSocket(socketConnect, authPayload{Token: token})
	if err != nil {
		return open, err
	}
	if err := t.WritePacket(ctx, packet); err != nil {
		return open, fmt.Errorf("sending connect: %w", err)
	}

	for {
		raw, err := t.ReadPacket(ctx)
		if err != nil {
			return open, fmt.Errorf("waiting for connect ack: %w", err)
		}
		p, err := parseEnginePacket(raw)
		if err != nil {
			continue
		}

		switch p.typ {
		case enginePing:
			if err := t.WritePacket(ctx, string(enginePong)); err != nil {
				return open, fmt.Errorf("answering ping: %w", err)
			}
		case engineClose:
			return open, errors.New("server closed the session during handshake")
		case engineMessage:
			sp, err := parseSocketPacket(p.data)
			if err != nil || sp.namespace != defaultNamespace {
				continue
			}
			switch sp.typ {
			case socketConnect:
				return open, nil
			case socketConnectError:
				var ce connectError
				_ = json.Unmarshal(sp.data, &ce)
				return open, fmt.Errorf("%w: %s", ErrConnectRejected, ce.Message)
			}
		}
	}
}

// readLoop consumes packets until the connection is closed by either
// side or the heartbeat window passes without traffic.
func (m *Manager) readLoop(c *connection) {
	defer close(c.loopDone)

	window := time.Duration(c.open.PingInterval+c.open.PingTimeout) * time.Millisecond
	if window <= 0 {
		window = defaultHeartbeatWindow
	}

	for {
		readCtx, cancel := context.WithTimeout(c.ctx, window)
		raw, err := c.t.ReadPacket(readCtx)
		cancel()
		if err != nil {
			if c.ctx.Err() == nil {
				m.log.Warn().Err(err).Str("sid", c.sid).Msg("realtime transport error")
			}
			m.drop(c)
			return
		}

		p, err := parseEnginePacket(raw)
		if err != nil {
			m.log.Debug().Err(err).Msg("skipping malformed packet")
			continue
		}

		switch p.typ {
		case enginePing:
			if err := c.t.WritePacket(c.ctx, string(enginePong)); err != nil {
				if c.ctx.Err() == nil {
					m.log.Warn().Err(err).Str("sid", c.sid).Msg("answering ping failed")
				}
				m.drop(c)
				return
			}
		case engineClose:
			m.log.Info().Str("sid", c.sid).Msg("server closed the realtime session")
			m.drop(c)
			return
		case engineMessage:
			if !m.handleMessage(c, p.data) {
				m.drop(c)
				return
			}
		}
	}
}

// handleMessage dispatches one Socket.IO packet. It returns false when
// the server disconnected the socket.
func (m *Manager) handleMessage(c *connection, data string) bool {
	sp, err := parseSocketPacket(data)
	if err != nil {
		m.log.Debug().Err(err).Msg("skipping malformed socket packet")
		return true
	}
	if sp.namespace != defaultNamespace {
		return true
	}

	switch sp.typ {
	case socketDisconnect:
		m.log.Info().Str("sid", c.sid).Msg("server disconnected the socket")
		return false
	case socketEvent:
		name, args, err := decodeEvent(sp.data)
		if err != nil {
			m.log.Warn().Err(err).Msg("skipping malformed event")
			return true
		}
		if name != EventNotificationNew || len(args) == 0 {
			return true
		}
		var n model.Notification
		if err := json.Unmarshal(args[0], &n); err != nil {
			m.log.Warn().Err(err).Str("event", name).Msg("skipping undecodable notification")
			return true
		}
		if c.ctx.Err() != nil {
			return true
		}
		m.log.Debug().Int64("id", n.ID).Msg("notification received")
		if dropped := m.hub.publish(n); dropped > 0 {
			m.log.Warn().
				Int64("id", n.ID).
				Int("subscribers", dropped).
				Msg("subscriber buffer full, notification dropped")
		}
	}
	return true
}

// discardPending empties every subscriber buffer so no event of a
// retired connection is delivered. m.mu must be held.
func (m *Manager) discardPending() {
	if n := m.hub.drain(); n > 0 {
		m.log.Debug().Int("events", n).Msg("discarded events of a closed connection")
	}
}

// drop retires c after a transport-side end of the connection.
func (m *Manager) drop(c *connection) {
	m.mu.Lock()
	if m.current == c {
		m.current = nil
		m.state = StateDisconnected
	}
	m.mu.Unlock()
	c.close()
}
