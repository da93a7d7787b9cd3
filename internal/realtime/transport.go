package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	transportWebsocket = "websocket"
	transportPolling   = "polling"
)

// transport moves raw Engine.IO packets. ReadPacket is only ever called
// from one goroutine at a time; WritePacket and Close may be called
// concurrently with it.
type transport interface {
	Name() string
	ReadPacket(ctx context.Context) (string, error)
	WritePacket(ctx context.Context, packet string) error
	Close() error
}

type dialFunc func(ctx context.Context, base *url.URL) (transport, error)

// wsTransport carries one Engine.IO packet per websocket text frame.
type wsTransport struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func dialWebsocket(dialer *websocket.Dialer) dialFunc {
	return func(ctx context.Context, base *url.URL) (transport, error) {
		u := engineURL(base, transportWebsocket, "")
		switch u.Scheme {
		case "https":
			u.Scheme = "wss"
		case "http":
			u.Scheme = "ws"
		}

		conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("dialing %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
			}
			return nil, fmt.Errorf("dialing %s: %w", u.Redacted(), err)
		}
		return &wsTransport{conn: conn}, nil
	}
}

func (t *wsTransport) Name() string { return transportWebsocket }

func (t *wsTransport) ReadPacket(ctx context.Context) (string, error) {
	deadline, _ := ctx.Deadline()
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}
	stop := context.AfterFunc(ctx, func() { _ = t.conn.Close() })
	defer stop()

	for {
		typ, data, err := t.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", err
		}
		if typ == websocket.TextMessage {
			return string(data), nil
		}
	}
}

func (t *wsTransport) WritePacket(ctx context.Context, packet string) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(packet))
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// pollingTransport implements Engine.IO long-polling: a GET per read
// that the server holds open until packets are available, and a POST
// per write.
type pollingTransport struct {
	client *http.Client
	base   *url.URL
	sid    string

	// pending holds packets received but not yet returned by ReadPacket.
	pending []string

	wmu       sync.Mutex
	closeOnce sync.Once
}

func dialPolling(client *http.Client) dialFunc {
	return func(ctx context.Context, base *url.URL) (transport, error) {
		t := &pollingTransport{client: client, base: base}

		packets, err := t.poll(ctx)
		if err != nil {
			return nil, err
		}
		if len(packets) == 0 {
			return nil, errors.New("polling handshake: empty response")
		}
		open, err := parseEnginePacket(packets[0])
		if err != nil || open.typ != engineOpen {
			return nil, fmt.Errorf("polling handshake: expected open packet, got %q", packets[0])
		}
		var payload openPayload
		if err := decodeOpen(open.data, &payload); err != nil {
			return nil, err
		}
		t.sid = payload.SID

		// The open packet is replayed so the handshake reads it like any
		// other transport.
		t.pending = packets
		return t, nil
	}
}

func (t *pollingTransport) Name() string { return transportPolling }

func (t *pollingTransport) ReadPacket(ctx context.Context) (string, error) {
	for len(t.pending) == 0 {
		packets, err := t.poll(ctx)
		if err != nil {
			return "", err
		}
		t.pending = packets
	}
	p := t.pending[0]
	t.pending = t.pending[1:]
	return p, nil
}

func (t *pollingTransport) poll(ctx context.Context) ([]string, error) {
	u := engineURL(t.base, transportPolling, t.sid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating poll request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading poll response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d polling %s", resp.StatusCode, u.Redacted())
	}
	return splitPayload(string(body)), nil
}

func (t *pollingTransport) WritePacket(ctx context.Context, packet string) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	u := engineURL(t.base, transportPolling, t.sid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(packet))
	if err != nil {
		return fmt.Errorf("creating post request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", u.Redacted(), err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d posting to %s", resp.StatusCode, u.Redacted())
	}
	return nil
}

// Close tells the server the session is over. Any blocked poll is
// released by the caller cancelling its context.
func (t *pollingTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = t.WritePacket(ctx, string(engineClose))
	})
	return err
}
