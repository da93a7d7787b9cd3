package realtime

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nhle/carpool-client/internal/model"
)

const testOpenPacket = `0{"sid":"%s","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`

// fakeServer speaks just enough Engine.IO/Socket.IO to exercise the
// Manager over both transports.
type fakeServer struct {
	ts       *httptest.Server
	upgrader websocket.Upgrader

	// rejectToken makes CONNECT with this token fail with CONNECT_ERROR.
	rejectToken string
	// noWebsocket refuses websocket upgrades so clients fall back.
	noWebsocket bool
	// silent accepts websocket upgrades but never sends the open packet.
	silent bool

	mu          sync.Mutex
	peers       map[*wsPeer]bool
	polls       map[string]*pollSession
	tokens      []string
	connects    int
	pongs       int
	disconnects int
	nextSID     int
}

type wsPeer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *wsPeer) send(packet string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, []byte(packet))
}

type pollSession struct {
	out    chan string
	authed bool
	closed bool
}

func newFakeServer(t *testing.T, configure ...func(*fakeServer)) *fakeServer {
	t.Helper()
	s := &fakeServer{
		peers: make(map[*wsPeer]bool),
		polls: make(map[string]*pollSession),
	}
	for _, fn := range configure {
		fn(s)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/socket.io/", s.handle)
	s.ts = httptest.NewServer(mux)
	t.Cleanup(func() {
		s.closeAll()
		s.ts.Close()
	})
	return s
}

func (s *fakeServer) URL() string { return s.ts.URL }

func (s *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("EIO") != "4" {
		http.Error(w, "bad protocol", http.StatusBadRequest)
		return
	}
	switch r.URL.Query().Get("transport") {
	case "websocket":
		if s.noWebsocket {
			http.Error(w, "websocket disabled", http.StatusBadRequest)
			return
		}
		s.serveWebsocket(w, r)
	case "polling":
		s.servePolling(w, r)
	default:
		http.Error(w, "unknown transport", http.StatusBadRequest)
	}
}

func (s *fakeServer) newSID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSID++
	return fmt.Sprintf("%s-%d", prefix, s.nextSID)
}

// handleInbound processes one client packet and returns the replies.
func (s *fakeServer) handleInbound(packet string) (replies []string, authed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case strings.HasPrefix(packet, "40"):
		var auth struct {
			Token string `json:"token"`
		}
		_ = json.Unmarshal([]byte(packet[2:]), &auth)
		s.tokens = append(s.tokens, auth.Token)
		if auth.Token == s.rejectToken {
			return []string{`44{"message":"invalid token"}`}, false
		}
		s.connects++
		return []string{`40{"sid":"socket"}`}, true
	case packet == "3":
		s.pongs++
	case packet == "41":
		s.disconnects++
	}
	return nil, false
}

func (s *fakeServer) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	peer := &wsPeer{conn: conn}
	defer func() {
		s.mu.Lock()
		delete(s.peers, peer)
		s.mu.Unlock()
		conn.Close()
	}()

	if !s.silent {
		if err := peer.send(fmt.Sprintf(testOpenPacket, s.newSID("ws"))); err != nil {
			return
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		replies, authed := s.handleInbound(string(data))
		if authed {
			s.mu.Lock()
			s.peers[peer] = true
			s.mu.Unlock()
		}
		for _, reply := range replies {
			_ = peer.send(reply)
		}
	}
}

func (s *fakeServer) servePolling(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if sid == "" {
		sid = s.newSID("poll")
		s.mu.Lock()
		s.polls[sid] = &pollSession{out: make(chan string, 64)}
		s.mu.Unlock()
		_, _ = io.WriteString(w, fmt.Sprintf(testOpenPacket, sid))
		return
	}

	s.mu.Lock()
	sess, ok := s.polls[sid]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown sid", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		for _, packet := range splitPayload(string(body)) {
			if packet == "1" {
				s.mu.Lock()
				sess.closed = true
				s.mu.Unlock()
				continue
			}
			replies, authed := s.handleInbound(packet)
			if authed {
				s.mu.Lock()
				sess.authed = true
				s.mu.Unlock()
			}
			for _, reply := range replies {
				sess.out <- reply
			}
		}
		_, _ = io.WriteString(w, "ok")
	case http.MethodGet:
		var packets []string
		select {
		case p := <-sess.out:
			packets = append(packets, p)
		case <-time.After(100 * time.Millisecond):
			packets = append(packets, "6")
		case <-r.Context().Done():
			return
		}
	drain:
		for {
			select {
			case p := <-sess.out:
				packets = append(packets, p)
			default:
				break drain
			}
		}
		_, _ = io.WriteString(w, strings.Join(packets, payloadSeparator))
	}
}

// push sends a notification:new event to every authenticated client.
func (s *fakeServer) push(t *testing.T, payload string) {
	t.Helper()
	packet := `42["notification:new",` + payload + `]`

	s.mu.Lock()
	peers := make([]*wsPeer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	var sessions []*pollSession
	for _, sess := range s.polls {
		if sess.authed && !sess.closed {
			sessions = append(sessions, sess)
		}
	}
	s.mu.Unlock()

	for _, p := range peers {
		if err := p.send(packet); err != nil {
			t.Logf("push to peer failed: %v", err)
		}
	}
	for _, sess := range sessions {
		sess.out <- packet
	}
}

// ping sends an Engine.IO ping to every websocket client.
func (s *fakeServer) ping() {
	s.mu.Lock()
	peers := make([]*wsPeer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		_ = p.send("2")
	}
}

// closeAll drops every websocket client from the server side.
func (s *fakeServer) closeAll() {
	s.mu.Lock()
	peers := make([]*wsPeer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		_ = p.conn.Close()
	}
}

func (s *fakeServer) stats() (connects, pongs, disconnects, peers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects, s.pongs, s.disconnects, len(s.peers)
}

func (s *fakeServer) seenTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func receive(t *testing.T, ch <-chan model.Notification) model.Notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for notification")
		return model.Notification{}
	}
}

func expectNothing(t *testing.T, ch <-chan model.Notification) {
	t.Helper()
	select {
	case n := <-ch:
		t.Fatalf("unexpected notification %+v", n)
	case <-time.After(150 * time.Millisecond):
	}
}
